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

package engine

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// ReadFile returns the whole content of the file at path.
func (e *Engine) ReadFile(path string) ([]byte, error) {
	return e.Read(path, ReadOptions{})
}

// ReadFileStream returns a lazy reader over the file at path. The file
// size is pinned at open; content is pulled chunk by chunk.
func (e *Engine) ReadFileStream(path string) (io.ReadCloser, error) {
	attr, err := e.Stat(path)
	if err != nil {
		return nil, err
	}
	if attr.IsDir() {
		return nil, EISDIR
	}
	return &fileReader{engine: e, path: path, size: attr.Size}, nil
}

// fileReader streams a file's content through chunk-sized reads.
type fileReader struct {
	engine *Engine
	path   string
	size   int64
	offset int64
	closed bool
}

func (r *fileReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, fmt.Errorf("read from closed file reader")
	}
	if r.offset >= r.size {
		return 0, io.EOF
	}
	n := min64(int64(len(p)), r.size-r.offset)
	if n > r.engine.chunkSize {
		n = r.engine.chunkSize
	}
	data, err := r.engine.Read(r.path, ReadOptions{Offset: r.offset, Length: &n})
	if err != nil {
		return 0, err
	}
	copy(p, data)
	r.offset += int64(len(data))
	return len(data), nil
}

func (r *fileReader) Close() error {
	r.closed = true
	return nil
}

// WriteFile replaces the content at path with data: any existing entry
// is unlinked first, then an empty regular file is created and written
// in one pass. The quota check runs before any mutation (accounting
// for the bytes the unlink would reclaim), so a rejected upload leaves
// the prior file intact and never creates the destination.
func (e *Engine) WriteFile(path string, data []byte) error {
	ctx := context.Background()
	log.Debugf("[engine] writeFile %q len=%d", path, len(data))

	reclaim, err := e.reclaimableAt(ctx, path)
	if err != nil {
		return err
	}
	deviceSize, spaceUsed, err := e.accounting(ctx)
	if err != nil {
		return err
	}
	if spaceUsed-reclaim+int64(len(data)) > deviceSize {
		return ENOSPC
	}

	if err := e.Unlink(path); err != nil && err != ENOENT {
		return err
	}
	if err := e.Create(path, CreateOptions{}); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return e.Write(path, data, WriteOptions{})
}

// WriteFileString is a convenience wrapper over WriteFile.
func (e *Engine) WriteFileString(path, data string) error {
	return e.WriteFile(path, []byte(data))
}

// WriteFileFrom replaces the content at path from a pull-based byte
// stream. Each pulled buffer is preflighted against the device size
// before it is written; on ENOSPC or a stream error the partial file
// is left in place with the bytes that made it through. Callers that
// need atomic visibility use the tempfile-then-rename idiom.
func (e *Engine) WriteFileFrom(path string, r io.Reader) (int64, error) {
	ctx := context.Background()
	log.Debugf("[engine] writeFile %q from stream", path)

	if err := e.Unlink(path); err != nil && err != ENOENT {
		return 0, err
	}
	if err := e.Create(path, CreateOptions{}); err != nil {
		return 0, err
	}

	var total int64
	buf := make([]byte, e.chunkSize)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			deviceSize, spaceUsed, err := e.accounting(ctx)
			if err != nil {
				return total, err
			}
			if spaceUsed+int64(n) > deviceSize {
				return total, ENOSPC
			}
			if err := e.Write(path, buf[:n], WriteOptions{Offset: total}); err != nil {
				return total, err
			}
			total += int64(n)
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, fmt.Errorf("stream read failed: %w", readErr)
		}
	}
}

// reclaimableAt returns the stored bytes an unlink of path would
// reclaim. Missing paths reclaim nothing; a directory at path cannot
// be replaced by writeFile.
func (e *Engine) reclaimableAt(ctx context.Context, path string) (int64, error) {
	ino, err := e.resolve(ctx, path)
	if err == ENOENT {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	attr, err := e.getAttr(ctx, ino)
	if err != nil {
		return 0, err
	}
	if attr.IsDir() {
		return 0, EISDIR
	}
	return e.db.SumChunkLengths(ctx, ino)
}
