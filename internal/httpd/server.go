// Copyright 2025 The dofs Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpd projects the engine surface onto an HTTP and
// WebSocket wire API. The adapters wrap the core; they are not part of
// it. Errors travel as POSIX short names.
package httpd

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/benallfree/dofs/internal/actor"
	"github.com/benallfree/dofs/internal/engine"
)

// Server serves filesystem instances over HTTP and WebSocket. It runs
// in one of two modes: bound to a single actor, or backed by an actor
// system that routes each request to the instance named by its
// `instance` query parameter.
type Server struct {
	actor  *actor.Actor
	system *actor.System
}

// NewServer creates a wire adapter bound to a single actor.
func NewServer(a *actor.Actor) *Server {
	return &Server{actor: a}
}

// NewSystemServer creates a wire adapter that serves every instance of
// the given system, selected per request by the `instance` query
// parameter. Requests without one land on the "default" instance.
func NewSystemServer(sys *actor.System) *Server {
	return &Server{system: sys}
}

// DefaultInstance is the instance ID used when a request to a system
// server names none.
const DefaultInstance = "default"

// actorFor resolves the actor a request addresses.
func (s *Server) actorFor(r *http.Request) (*actor.Actor, error) {
	if s.actor != nil {
		return s.actor, nil
	}
	id := r.URL.Query().Get("instance")
	if id == "" {
		id = DefaultInstance
	}
	return s.system.Get(id)
}

// Handler returns the route table for this instance.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /ls", s.handleLs)
	mux.HandleFunc("GET /file", s.handleFile)
	mux.HandleFunc("POST /rm", s.handleRm)
	mux.HandleFunc("POST /mkdir", s.handleMkdir)
	mux.HandleFunc("POST /rmdir", s.handleRmdir)
	mux.HandleFunc("POST /mv", s.handleMv)
	mux.HandleFunc("POST /symlink", s.handleSymlink)
	mux.HandleFunc("GET /stat", s.handleStat)
	mux.HandleFunc("GET /df", s.handleDf)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// statView is the wire shape of an attribute record.
type statView struct {
	IsFile      bool      `json:"isFile"`
	IsDirectory bool      `json:"isDirectory"`
	IsSymlink   bool      `json:"isSymlink"`
	Size        int64     `json:"size"`
	Mode        uint32    `json:"mode"`
	Uid         uint32    `json:"uid"`
	Gid         uint32    `json:"gid"`
	Mtime       time.Time `json:"mtime"`
	Ctime       time.Time `json:"ctime"`
	Atime       time.Time `json:"atime"`
	Crtime      time.Time `json:"crtime"`
	Blocks      int64     `json:"blocks"`
	Nlink       uint32    `json:"nlink"`
	Rdev        uint32    `json:"rdev"`
	Flags       uint32    `json:"flags"`
	BlkSize     uint32    `json:"blksize"`
	Kind        string    `json:"kind"`
}

func newStatView(a *engine.Attr) statView {
	return statView{
		IsFile:      a.IsFile(),
		IsDirectory: a.IsDir(),
		IsSymlink:   a.IsSymlink(),
		Size:        a.Size,
		Mode:        a.Perm,
		Uid:         a.Uid,
		Gid:         a.Gid,
		Mtime:       a.Mtime,
		Ctime:       a.Ctime,
		Atime:       a.Atime,
		Crtime:      a.Crtime,
		Blocks:      a.Blocks,
		Nlink:       a.Nlink,
		Rdev:        a.Rdev,
		Flags:       a.Flags,
		BlkSize:     a.BlkSize,
		Kind:        string(a.Kind),
	}
}

// errnoStatus maps engine errnos to HTTP status codes.
var errnoStatus = map[syscall.Errno]int{
	syscall.ENOENT:    http.StatusNotFound,
	syscall.EEXIST:    http.StatusConflict,
	syscall.ENOTEMPTY: http.StatusConflict,
	syscall.EISDIR:    http.StatusBadRequest,
	syscall.ENOTDIR:   http.StatusBadRequest,
	syscall.EINVAL:    http.StatusBadRequest,
	syscall.EPERM:     http.StatusForbidden,
	syscall.ENOSPC:    http.StatusInsufficientStorage,
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if s, ok := errnoStatus[errno]; ok {
			status = s
		}
	} else {
		log.Errorf("[httpd] internal error: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": engine.ErrnoName(err)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "EINVAL"})
		return
	}
	reader, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "EINVAL"})
		return
	}
	part, err := reader.NextPart()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "EINVAL"})
		return
	}
	defer part.Close()

	a, err := s.actorFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var written int64
	err = a.Do(func(fs *engine.Engine) error {
		var doErr error
		written, doErr = fs.WriteFileFrom(path, part)
		return doErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"written": written})
}

func (s *Server) handleLs(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	recursive := r.URL.Query().Get("recursive") == "true"

	a, err := s.actorFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var names []string
	err = a.Do(func(fs *engine.Engine) error {
		var doErr error
		names, doErr = fs.ListDir(path, engine.ListDirOptions{Recursive: recursive})
		return doErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")

	a, err := s.actorFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var data []byte
	err = a.Do(func(fs *engine.Engine) error {
		var doErr error
		data, doErr = fs.ReadFile(path)
		return doErr
	})
	if err != nil {
		writeError(w, err)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (s *Server) handleRm(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	a, err := s.actorFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	err = a.Do(func(fs *engine.Engine) error {
		return fs.Unlink(path)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMkdir(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	recursive := r.URL.Query().Get("recursive") == "true"
	a, err := s.actorFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	err = a.Do(func(fs *engine.Engine) error {
		return fs.Mkdir(path, engine.MkdirOptions{Recursive: recursive})
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleRmdir(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	recursive := r.URL.Query().Get("recursive") == "true"
	a, err := s.actorFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	err = a.Do(func(fs *engine.Engine) error {
		return fs.Rmdir(path, engine.RmdirOptions{Recursive: recursive})
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMv(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	a, err := s.actorFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	err = a.Do(func(fs *engine.Engine) error {
		return fs.Rename(from, to)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleSymlink(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	path := r.URL.Query().Get("path")
	a, err := s.actorFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	err = a.Do(func(fs *engine.Engine) error {
		return fs.Symlink(target, path)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleStat(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")

	a, err := s.actorFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var attr *engine.Attr
	err = a.Do(func(fs *engine.Engine) error {
		var doErr error
		attr, doErr = fs.Stat(path)
		return doErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatView(attr))
}

func (s *Server) handleDf(w http.ResponseWriter, r *http.Request) {
	a, err := s.actorFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var stats *engine.DeviceStats
	err = a.Do(func(fs *engine.Engine) error {
		var doErr error
		stats, doErr = fs.DeviceStats()
		return doErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
