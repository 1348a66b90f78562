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

package httpd

import (
	"net/http"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/benallfree/dofs/internal/actor"
	"github.com/benallfree/dofs/internal/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsRequest is one JSON frame from a FUSE-style client. Data travels
// base64-encoded by the JSON []byte convention. Unknown fields are
// ignored.
type wsRequest struct {
	ID        int64   `json:"id"`
	Operation string  `json:"operation"`
	Path      string  `json:"path"`
	NewPath   string  `json:"newPath,omitempty"`
	Target    string  `json:"target,omitempty"`
	Data      []byte  `json:"data,omitempty"`
	Offset    int64   `json:"offset,omitempty"`
	Length    *int64  `json:"length,omitempty"`
	Size      int64   `json:"size,omitempty"`
	Mode      *uint32 `json:"mode,omitempty"`
	Uid       *uint32 `json:"uid,omitempty"`
	Gid       *uint32 `json:"gid,omitempty"`
	Recursive bool    `json:"recursive,omitempty"`
}

// wsResponse is the reply frame for one request ID.
type wsResponse struct {
	ID      int64       `json:"id"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// handleWS carries JSON request/response frames over one WebSocket
// connection. The instance is chosen at connect time (`instance` query
// parameter on a system server). Frames are processed in arrival
// order; the actor serializes them against other callers of the same
// instance.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	a, err := s.actorFor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("[httpd] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	log.Debugf("[httpd] websocket client connected: %s (instance %s)", r.RemoteAddr, a.ID())

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("[httpd] websocket read failed: %v", err)
			}
			return
		}
		resp := dispatch(a, req)
		if err := conn.WriteJSON(resp); err != nil {
			log.Warnf("[httpd] websocket write failed: %v", err)
			return
		}
	}
}

// dispatch executes one frame against the instance's engine.
func dispatch(a *actor.Actor, req wsRequest) wsResponse {
	var data interface{}
	err := a.Do(func(fs *engine.Engine) error {
		var doErr error
		data, doErr = runOperation(fs, req)
		return doErr
	})
	if err != nil {
		return wsResponse{ID: req.ID, Success: false, Error: engine.ErrnoName(err)}
	}
	return wsResponse{ID: req.ID, Success: true, Data: data}
}

func runOperation(fs *engine.Engine, req wsRequest) (interface{}, error) {
	switch req.Operation {
	case "readdir":
		return fs.ListDir(req.Path, engine.ListDirOptions{Recursive: req.Recursive})
	case "getattr":
		attr, err := fs.Stat(req.Path)
		if err != nil {
			return nil, err
		}
		return newStatView(attr), nil
	case "setattr":
		return nil, fs.SetAttr(req.Path, engine.SetAttrUpdate{Mode: req.Mode, Uid: req.Uid, Gid: req.Gid})
	case "read":
		return fs.Read(req.Path, engine.ReadOptions{Offset: req.Offset, Length: req.Length})
	case "write":
		err := fs.Write(req.Path, req.Data, engine.WriteOptions{Offset: req.Offset})
		if err != nil {
			return nil, err
		}
		return len(req.Data), nil
	case "create":
		return nil, fs.Create(req.Path, engine.CreateOptions{Mode: req.Mode})
	case "mkdir":
		return nil, fs.Mkdir(req.Path, engine.MkdirOptions{Recursive: req.Recursive, Mode: req.Mode})
	case "rmdir":
		return nil, fs.Rmdir(req.Path, engine.RmdirOptions{Recursive: req.Recursive})
	case "unlink":
		return nil, fs.Unlink(req.Path)
	case "rename":
		return nil, fs.Rename(req.Path, req.NewPath)
	case "symlink":
		return nil, fs.Symlink(req.Target, req.Path)
	case "readlink":
		return fs.Readlink(req.Path)
	case "truncate":
		return nil, fs.Truncate(req.Path, req.Size)
	case "statfs":
		return fs.DeviceStats()
	default:
		log.Debugf("[httpd] unknown operation %q", req.Operation)
		return nil, engine.EINVAL
	}
}
