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

// Package actor hosts filesystem engines behind the single-writer
// boundary the engine relies on. One Actor owns one instance store and
// serializes every call; a System maps instance IDs to actors.
package actor

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/benallfree/dofs/internal/engine"
	"github.com/benallfree/dofs/internal/store"
)

// Options configures the stores and engines a System creates.
type Options struct {
	ChunkSize  int64
	DeviceSize int64
	Umask      uint32
}

// Actor is the single-writer host for one filesystem instance. All
// engine calls go through Do, which serializes them; operations issued
// to one instance are totally ordered in arrival order.
type Actor struct {
	id string
	mu sync.Mutex
	st *store.Store
	fs *engine.Engine
}

// Open creates or opens the instance store at path and wraps it in an
// actor. The flock held by the store enforces exclusivity across
// processes; the actor's mutex enforces it within this one.
func Open(id, path string, opts Options) (*Actor, error) {
	st, err := store.OpenOrCreate(path, engine.RootAttr(), store.Options{
		ChunkSize:  opts.ChunkSize,
		DeviceSize: opts.DeviceSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open instance %s: %w", id, err)
	}
	log.Infof("[actor] instance %s open at %s (chunk size %d)", id, path, st.ChunkSize())
	return &Actor{
		id: id,
		st: st,
		fs: engine.New(st, engine.Options{Umask: opts.Umask}),
	}, nil
}

// ID returns the instance identity this actor serves.
func (a *Actor) ID() string {
	return a.id
}

// Do runs fn against the engine with the actor's write lock held. The
// lock spans the whole call, including any stream pulls inside
// WriteFileFrom — between pulls, other operations on this instance
// stay blocked, matching the host's single-writer guarantee.
func (a *Actor) Do(fn func(fs *engine.Engine) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fn(a.fs)
}

// Close closes the underlying store and releases the instance lock.
func (a *Actor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st.Close()
}

// System is a registry of actors keyed by instance ID. Instances are
// fully isolated from each other: each gets its own store file under
// the data directory.
type System struct {
	mu      sync.Mutex
	dataDir string
	opts    Options
	actors  map[string]*Actor
}

// NewSystem creates an actor registry storing instance files under
// dataDir.
func NewSystem(dataDir string, opts Options) *System {
	return &System{
		dataDir: dataDir,
		opts:    opts,
		actors:  make(map[string]*Actor),
	}
}

// Get returns the actor for an instance ID, opening it on first use.
// An empty ID allocates a fresh instance with a generated identity.
func (s *System) Get(id string) (*Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if a, ok := s.actors[id]; ok {
		return a, nil
	}
	path := filepath.Join(s.dataDir, id+".dofs")
	a, err := Open(id, path, s.opts)
	if err != nil {
		return nil, err
	}
	s.actors[id] = a
	return a, nil
}

// Close closes every open actor. The first error is returned; closing
// continues regardless.
func (s *System) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for id, a := range s.actors {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.actors, id)
	}
	return firstErr
}
