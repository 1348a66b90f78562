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

// Package engine implements the filesystem storage engine: path
// resolution, inode attributes, chunked file content, directory
// operations, and device accounting over one instance store.
//
// The engine performs no internal locking. The host actor serializes
// all calls to one instance; see the actor package.
package engine

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/benallfree/dofs/internal/store"
)

// Engine is the storage engine for one filesystem instance.
type Engine struct {
	st        *store.Store
	db        *store.DB
	chunkSize int64
	umask     uint32
}

// Options configures engine construction.
type Options struct {
	// Umask applied to create/mkdir modes when the operation carries
	// none of its own. Zero is a valid (and the default) umask.
	Umask uint32
}

// New constructs an engine over an opened instance store. The chunk
// granularity comes from the store, where it was pinned at first
// initialization.
func New(st *store.Store, opts Options) *Engine {
	return &Engine{
		st:        st,
		db:        st.DB(),
		chunkSize: st.ChunkSize(),
		umask:     opts.Umask,
	}
}

// Store returns the underlying instance store.
func (e *Engine) Store() *store.Store {
	return e.st
}

// ChunkSize returns the instance's block granularity in bytes.
func (e *Engine) ChunkSize() int64 {
	return e.chunkSize
}

// allocIno returns max(ino)+1, never less than 2. After the
// highest-numbered inode is unlinked its number can be issued again;
// no stale reference survives an unlink under the single-writer model.
func (e *Engine) allocIno(ctx context.Context) (int64, error) {
	maxIno, err := e.db.MaxIno(ctx)
	if err != nil {
		return 0, err
	}
	ino := maxIno + 1
	if ino < 2 {
		ino = 2
	}
	return ino, nil
}

// getAttr loads and decodes the attribute record for an inode.
func (e *Engine) getAttr(ctx context.Context, ino int64) (*Attr, error) {
	file, err := e.db.GetFile(ctx, ino)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return UnmarshalAttr(file.Attr)
}

// putAttr encodes and stores the attribute record for an inode.
func (e *Engine) putAttr(ctx context.Context, ino int64, attr *Attr) error {
	blob, err := MarshalAttr(attr)
	if err != nil {
		return err
	}
	return e.db.UpdateAttr(ctx, ino, blob)
}

// CreateOptions configures Create. Unknown options of the loose source
// records have no equivalent here; missing fields take the §4.2
// defaults.
type CreateOptions struct {
	Mode  *uint32
	Umask *uint32
}

func (o CreateOptions) umask(def uint32) uint32 {
	if o.Umask != nil {
		return *o.Umask
	}
	return def
}

// Create creates an empty regular file at path. The parent directory
// must exist; an existing entry at path fails with EEXIST.
func (e *Engine) Create(path string, opts CreateOptions) error {
	ctx := context.Background()
	log.Debugf("[engine] create %q", path)

	parentIno, leaf, err := e.splitLeaf(ctx, path, EEXIST)
	if err != nil {
		return err
	}
	if _, err := e.db.GetChild(ctx, parentIno, leaf); err == nil {
		return EEXIST
	} else if !isNotFound(err) {
		return err
	}

	ino, err := e.allocIno(ctx)
	if err != nil {
		return err
	}
	perm := applyMode(opts.Mode, opts.umask(e.umask), DefaultFilePerm)
	attr, err := MarshalAttr(newAttr(ino, KindFile, perm, 1, 0))
	if err != nil {
		return err
	}
	return e.db.InsertFile(ctx, &store.FileModel{
		Ino:    ino,
		Name:   leaf,
		Parent: parentRef(parentIno),
		IsDir:  0,
		Attr:   attr,
	})
}

// Stat returns the attribute record for the object at path.
func (e *Engine) Stat(path string) (*Attr, error) {
	ctx := context.Background()
	ino, err := e.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	return e.getAttr(ctx, ino)
}

// SetAttrUpdate carries the fields setattr may change. Nil fields are
// left untouched.
type SetAttrUpdate struct {
	Mode *uint32
	Uid  *uint32
	Gid  *uint32
}

// SetAttr updates only the provided attribute fields and refreshes
// ctime.
func (e *Engine) SetAttr(path string, upd SetAttrUpdate) error {
	ctx := context.Background()
	ino, err := e.resolve(ctx, path)
	if err != nil {
		return err
	}
	attr, err := e.getAttr(ctx, ino)
	if err != nil {
		return err
	}
	if upd.Mode != nil {
		attr.Perm = *upd.Mode & 0o7777
	}
	if upd.Uid != nil {
		attr.Uid = *upd.Uid
	}
	if upd.Gid != nil {
		attr.Gid = *upd.Gid
	}
	attr.Ctime = time.Now()
	return e.putAttr(ctx, ino, attr)
}
