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

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/benallfree/dofs/internal/util"
)

// Store is a SQLite-backed instance store. One store belongs to exactly
// one filesystem instance; the flock guard enforces the single-writer
// boundary at the process level.
type Store struct {
	path      string
	db        *sql.DB
	bunDB     *DB
	lock      *flock.Flock
	chunkSize int64
}

// Options configures store creation and opening.
type Options struct {
	// ChunkSize is the block granularity in bytes. Zero means
	// DefaultChunkSize on create; on open, zero accepts whatever the
	// store was created with.
	ChunkSize int64

	// DeviceSize is the initial capacity ceiling in bytes. Zero means
	// DefaultDeviceSize. Only consulted on create.
	DeviceSize int64

	// BusyTimeout in milliseconds for the SQLite busy handler. Zero
	// means DefaultBusyTimeout.
	BusyTimeout int
}

func (o Options) busyTimeout() int {
	if o.BusyTimeout > 0 {
		return o.BusyTimeout
	}
	return DefaultBusyTimeout
}

// execPragma runs a PRAGMA statement using Query (not Exec) because
// libsql returns rows for PRAGMA statements.
func execPragma(db *sql.DB, pragma string) error {
	rows, err := db.Query(pragma)
	if err != nil {
		return err
	}
	rows.Close()
	return nil
}

// applyPragmas sets essential PRAGMAs after opening a libsql connection.
// libsql ignores DSN-based _pragma=value parameters, so all PRAGMAs must
// be set explicitly via SQL statements after the connection is opened.
func applyPragmas(db *sql.DB, busyTimeout int) error {
	// Busy timeout MUST be set first — journal_mode=WAL below needs
	// exclusive access and will wait for locks instead of failing
	// immediately with "database is locked".
	if err := execPragma(db, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout)); err != nil {
		return fmt.Errorf("failed to set busy_timeout: %w", err)
	}

	if err := execPragma(db, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to set journal_mode=WAL: %w", err)
	}

	// WAL with NORMAL sync is safe against process crashes and avoids
	// an fsync on every commit.
	if err := execPragma(db, "PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous=NORMAL: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return nil
}

// acquireLock takes the instance lock file next to the store file.
// Failure to acquire means another writer owns this instance.
func acquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock instance: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("instance %s is locked by another writer", path)
	}
	return lock, nil
}

// Create creates a new instance store. rootAttr is the serialized
// attribute record seeded onto the root directory inode.
func Create(path string, rootAttr []byte, opts Options) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("file already exists: %s", path)
	}

	lock, err := acquireLock(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	st, err := initStore(path, db, lock, opts, rootAttr)
	if err != nil {
		db.Close()
		lock.Unlock()
		os.Remove(path)
		return nil, err
	}
	return st, nil
}

// Open opens an existing instance store. If opts.ChunkSize is nonzero
// it must match the pinned granularity the store was created with.
func Open(path string, opts Options) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	lock, err := acquireLock(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := applyPragmas(db, opts.busyTimeout()); err != nil {
		db.Close()
		lock.Unlock()
		return nil, err
	}

	bunDB := NewDB(db)
	ctx := context.Background()

	fileType, err := bunDB.GetSchemaInfo(ctx, "type")
	if err != nil {
		db.Close()
		lock.Unlock()
		return nil, fmt.Errorf("failed to read schema info: %w", err)
	}
	if fileType != "instance" {
		db.Close()
		lock.Unlock()
		return nil, fmt.Errorf("not an instance store (type=%s)", fileType)
	}

	chunkSize, err := bunDB.GetMetaInt64(ctx, MetaChunkSize)
	if err != nil {
		db.Close()
		lock.Unlock()
		return nil, fmt.Errorf("failed to read chunk size: %w", err)
	}
	if chunkSize <= 0 {
		db.Close()
		lock.Unlock()
		return nil, fmt.Errorf("store has no pinned chunk size")
	}
	if opts.ChunkSize != 0 && opts.ChunkSize != chunkSize {
		db.Close()
		lock.Unlock()
		return nil, fmt.Errorf("chunk size mismatch: store pinned at %d, requested %d", chunkSize, opts.ChunkSize)
	}

	return &Store{
		path:      path,
		db:        db,
		bunDB:     bunDB,
		lock:      lock,
		chunkSize: chunkSize,
	}, nil
}

// OpenOrCreate opens the store at path, creating it first if absent.
func OpenOrCreate(path string, rootAttr []byte, opts Options) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Create(path, rootAttr, opts)
	}
	return Open(path, opts)
}

// initStore applies pragmas, creates the schema, and seeds meta and the
// root directory row. The schema statements are retried on transient
// lock errors because another process may be checkpointing the WAL of
// a sibling store; pragmas and seeding are not retried.
func initStore(path string, db *sql.DB, lock *flock.Flock, opts Options, rootAttr []byte) (*Store, error) {
	if err := applyPragmas(db, opts.busyTimeout()); err != nil {
		return nil, err
	}

	ctx := context.Background()
	err := util.WithLockRetry(ctx, func() error {
		if err := execScript(db, instanceSchema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return execScript(db, initSchemaInfo, SchemaVersion)
	})
	if err != nil {
		return nil, err
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	deviceSize := opts.DeviceSize
	if deviceSize <= 0 {
		deviceSize = DefaultDeviceSize
	}

	bunDB := NewDB(db)
	if err := bunDB.SeedMeta(ctx, MetaChunkSize, strconv.FormatInt(chunkSize, 10)); err != nil {
		return nil, fmt.Errorf("failed to seed chunk size: %w", err)
	}
	if err := bunDB.SeedMeta(ctx, MetaDeviceSize, strconv.FormatInt(deviceSize, 10)); err != nil {
		return nil, fmt.Errorf("failed to seed device size: %w", err)
	}
	if err := bunDB.SeedMeta(ctx, MetaSpaceUsed, "0"); err != nil {
		return nil, fmt.Errorf("failed to seed space used: %w", err)
	}
	if err := bunDB.SeedRoot(ctx, rootAttr); err != nil {
		return nil, fmt.Errorf("failed to initialize root: %w", err)
	}

	return &Store{
		path:      path,
		db:        db,
		bunDB:     bunDB,
		lock:      lock,
		chunkSize: chunkSize,
	}, nil
}

// Close checkpoints the WAL, closes the database, releases the instance
// lock, and removes the WAL sidecar files.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	// TRUNCATE mode: checkpoint and then truncate the WAL file to zero
	// bytes. PRAGMA wal_checkpoint returns rows, so Query not Exec.
	rows, err := s.db.Query("PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		log.Warnf("WAL checkpoint failed: %v", err)
	} else {
		rows.Close()
	}

	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil

	os.Remove(s.path + "-wal")
	os.Remove(s.path + "-shm")

	if s.lock != nil {
		s.lock.Unlock()
	}
	return nil
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// ChunkSize returns the pinned block granularity for this instance.
func (s *Store) ChunkSize() int64 {
	return s.chunkSize
}

// DB returns the typed query wrapper.
func (s *Store) DB() *DB {
	return s.bunDB
}

// SQL returns the underlying *sql.DB.
func (s *Store) SQL() *sql.DB {
	return s.db
}
