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
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/benallfree/dofs/internal/store"
)

// ReadOptions configures Read. A nil Length reads to end of file.
type ReadOptions struct {
	Offset int64
	Length *int64
}

// WriteOptions configures Write.
type WriteOptions struct {
	Offset int64
}

// Read returns bytes from the file at path. The returned buffer is
// end-offset bytes long, zero-filled wherever no chunk covers the
// range; absent chunks are semantically zero.
func (e *Engine) Read(path string, opts ReadOptions) ([]byte, error) {
	ctx := context.Background()

	ino, err := e.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	attr, err := e.getAttr(ctx, ino)
	if err != nil {
		return nil, err
	}
	if attr.IsDir() {
		return nil, EISDIR
	}

	offset := opts.Offset
	end := attr.Size
	if opts.Length != nil {
		end = offset + *opts.Length
	}
	if end <= offset {
		return []byte{}, nil
	}

	buf := make([]byte, end-offset)

	// Ranged scan: only chunks that can overlap [offset, end).
	start := (offset / e.chunkSize) * e.chunkSize
	chunks, err := e.db.ListChunkRange(ctx, ino, start, end)
	if err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		copyChunkRange(buf, offset, end, chunk)
	}
	return buf, nil
}

// copyChunkRange copies the overlap of a chunk with [offset, end) into
// buf, which is addressed from offset.
func copyChunkRange(buf []byte, offset, end int64, chunk store.ChunkModel) {
	chunkStart := chunk.Offset
	chunkEnd := chunk.Offset + chunk.Length
	from := max64(offset, chunkStart)
	to := min64(end, chunkEnd)
	if from >= to {
		return
	}
	copy(buf[from-offset:to-offset], chunk.Data[from-chunkStart:to-chunkStart])
}

// Write writes data into the file at path at the given offset. A
// missing file is created first (the parent directory must exist).
// Fails with ENOSPC before any mutation when the write would grow the
// instance past the device size.
func (e *Engine) Write(path string, data []byte, opts WriteOptions) error {
	ctx := context.Background()

	ino, err := e.resolve(ctx, path)
	if err == ENOENT {
		// Preflight before the auto-create so a rejected write leaves
		// no empty file behind.
		if len(data) > 0 {
			if err := e.preflight(ctx, opts.Offset+int64(len(data))); err != nil {
				return err
			}
		}
		if err := e.Create(path, CreateOptions{}); err != nil {
			return err
		}
		ino, err = e.resolve(ctx, path)
	}
	if err != nil {
		return err
	}

	attr, err := e.getAttr(ctx, ino)
	if err != nil {
		return err
	}
	if attr.IsDir() {
		return EISDIR
	}

	if len(data) == 0 {
		return nil
	}

	offset := opts.Offset
	end := offset + int64(len(data))

	// Preflight before any mutation: a rejected write leaves the store
	// unchanged.
	additional := end - attr.Size
	if additional < 0 {
		additional = 0
	}
	if err := e.preflight(ctx, additional); err != nil {
		return err
	}

	log.Tracef("[engine] write %q ino=%d offset=%d len=%d", path, ino, offset, len(data))

	return e.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		pos := int64(0)
		for pos < int64(len(data)) {
			absOffset := offset + pos
			chunkOffset := (absOffset / e.chunkSize) * e.chunkSize
			offInChunk := absOffset - chunkOffset
			writeLen := min64(e.chunkSize-offInChunk, int64(len(data))-pos)

			existing, err := e.db.GetChunkWith(tx, ctx, ino, chunkOffset)
			if err != nil {
				return err
			}

			// Overlay the slice onto the existing chunk content,
			// zero-filled where absent.
			buf := make([]byte, e.chunkSize)
			existingLen := int64(0)
			if existing != nil {
				existingLen = existing.Length
				copy(buf, existing.Data[:existing.Length])
			}
			copy(buf[offInChunk:], data[pos:pos+writeLen])

			// Full chunk everywhere except the tail slice, which keeps
			// whatever length the chunk already had if longer.
			length := e.chunkSize
			if endInChunk := offInChunk + writeLen; endInChunk < e.chunkSize && pos+writeLen == int64(len(data)) {
				length = max64(existingLen, endInChunk)
			}

			if err := e.db.UpsertChunkWith(tx, ctx, &store.ChunkModel{
				Ino:    ino,
				Offset: chunkOffset,
				Data:   buf[:length],
				Length: length,
			}); err != nil {
				return err
			}
			pos += writeLen
		}

		return e.finishSizeChange(tx, ctx, ino)
	})
}

// Truncate shrinks or extends the file at path to size bytes.
// Extension is sparse: the size field grows, later reads of the gap
// return zeros, and no chunks are stored for it.
func (e *Engine) Truncate(path string, size int64) error {
	if size < 0 {
		return EINVAL
	}
	ctx := context.Background()

	ino, err := e.resolve(ctx, path)
	if err != nil {
		return err
	}
	attr, err := e.getAttr(ctx, ino)
	if err != nil {
		return err
	}
	if attr.IsDir() {
		return EISDIR
	}

	log.Debugf("[engine] truncate %q ino=%d size=%d", path, ino, size)

	return e.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		boundary := (size / e.chunkSize) * e.chunkSize
		tailLen := size - boundary

		// The range delete below removes the straddling chunk too, so
		// capture it first.
		var tail *store.ChunkModel
		if tailLen > 0 {
			tail, err = e.db.GetChunkWith(tx, ctx, ino, boundary)
			if err != nil {
				return err
			}
		}

		if err := e.db.DeleteChunksFrom(tx, ctx, ino, boundary); err != nil {
			return err
		}

		if tail != nil {
			newLen := min64(tail.Length, tailLen)
			data := tail.Data
			if int64(len(data)) > newLen {
				data = data[:newLen]
			}
			if err := e.db.UpsertChunkWith(tx, ctx, &store.ChunkModel{
				Ino:    ino,
				Offset: boundary,
				Data:   data,
				Length: newLen,
			}); err != nil {
				return err
			}
		}

		now := time.Now()
		attr.SetSize(size)
		attr.Mtime = now
		attr.Ctime = now
		blob, err := MarshalAttr(attr)
		if err != nil {
			return err
		}
		if err := e.db.UpdateAttrWith(tx, ctx, ino, blob); err != nil {
			return err
		}
		return e.refreshSpaceUsed(tx, ctx)
	})
}

// finishSizeChange recomputes the authoritative file size from the
// chunk sum, stores it into the attribute record with fresh
// mtime/ctime, and refreshes the global space accounting. Runs inside
// the caller's transaction.
func (e *Engine) finishSizeChange(tx bun.Tx, ctx context.Context, ino int64) error {
	size, err := e.db.SumChunkLengthsWith(tx, ctx, ino)
	if err != nil {
		return err
	}
	file, err := e.db.GetFileWith(tx, ctx, ino)
	if err != nil {
		return mapStoreErr(err)
	}
	attr, err := UnmarshalAttr(file.Attr)
	if err != nil {
		return err
	}
	now := time.Now()
	attr.SetSize(size)
	attr.Mtime = now
	attr.Ctime = now
	blob, err := MarshalAttr(attr)
	if err != nil {
		return err
	}
	if err := e.db.UpdateAttrWith(tx, ctx, ino, blob); err != nil {
		return err
	}
	return e.refreshSpaceUsed(tx, ctx)
}

// refreshSpaceUsed re-derives the cached space_used meta row from the
// chunk table. The recompute is idempotent and authoritative, so any
// interrupted operation heals on the next size change.
func (e *Engine) refreshSpaceUsed(tx bun.Tx, ctx context.Context) error {
	used, err := e.db.SumAllChunkLengthsWith(tx, ctx)
	if err != nil {
		return err
	}
	return e.db.SetMetaInt64With(tx, ctx, store.MetaSpaceUsed, used)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
