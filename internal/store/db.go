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
	"strconv"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/benallfree/dofs/internal/common"
)

// DB wraps a Bun database instance for type-safe queries against the
// instance store tables.
type DB struct {
	*bun.DB
}

// NewDB wraps an existing *sql.DB with Bun's type-safe query builder.
func NewDB(sqlDB *sql.DB) *DB {
	return &DB{DB: bun.NewDB(sqlDB, sqlitedialect.New())}
}

// --- Schema Info Operations ---

// GetSchemaInfo retrieves a schema info value by key.
func (db *DB) GetSchemaInfo(ctx context.Context, key string) (string, error) {
	var info SchemaInfoModel
	err := db.NewSelect().
		Model(&info).
		Where("key = ?", key).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return info.Value, nil
}

// SeedRoot inserts the root directory row (ino=1, name="/", parent
// NULL) if it does not already exist.
func (db *DB) SeedRoot(ctx context.Context, attr []byte) error {
	_, err := db.NewRaw(`
		INSERT OR IGNORE INTO files (ino, name, parent, is_dir, attr, data)
		VALUES (?, '/', NULL, 1, ?, NULL)
	`, RootIno, attr).Exec(ctx)
	return err
}

// --- Meta Operations ---

// GetMeta retrieves a meta value by key. Missing keys yield "".
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var m MetaModel
	err := db.NewSelect().
		Model(&m).
		Where("key = ?", key).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.Value, nil
}

// SetMeta sets a meta value (upserts).
func (db *DB) SetMeta(ctx context.Context, key, value string) error {
	return db.SetMetaWith(db.DB, ctx, key, value)
}

// SetMetaWith is like SetMeta but uses the provided bun.IDB (for
// transaction support).
func (db *DB) SetMetaWith(idb bun.IDB, ctx context.Context, key, value string) error {
	_, err := idb.NewInsert().
		Model(&MetaModel{Key: key, Value: value}).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	return err
}

// SeedMeta inserts a meta value only if the key is absent.
func (db *DB) SeedMeta(ctx context.Context, key, value string) error {
	_, err := db.NewRaw(`INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)`, key, value).Exec(ctx)
	return err
}

// GetMetaInt64 retrieves a meta value parsed as int64. Missing keys
// yield 0.
func (db *DB) GetMetaInt64(ctx context.Context, key string) (int64, error) {
	value, err := db.GetMeta(ctx, key)
	if err != nil {
		return 0, err
	}
	if value == "" {
		return 0, nil
	}
	return strconv.ParseInt(value, 10, 64)
}

// SetMetaInt64 sets a meta value from an int64.
func (db *DB) SetMetaInt64(ctx context.Context, key string, value int64) error {
	return db.SetMeta(ctx, key, strconv.FormatInt(value, 10))
}

// SetMetaInt64With is like SetMetaInt64 but uses the provided bun.IDB.
func (db *DB) SetMetaInt64With(idb bun.IDB, ctx context.Context, key string, value int64) error {
	return db.SetMetaWith(idb, ctx, key, strconv.FormatInt(value, 10))
}

// --- File Row Operations ---

// GetFile retrieves a files row by inode number.
// Returns common.ErrNotFound if the inode doesn't exist.
func (db *DB) GetFile(ctx context.Context, ino int64) (*FileModel, error) {
	return db.GetFileWith(db.DB, ctx, ino)
}

// GetFileWith is like GetFile but uses the provided bun.IDB.
func (db *DB) GetFileWith(idb bun.IDB, ctx context.Context, ino int64) (*FileModel, error) {
	var file FileModel
	err := idb.NewSelect().
		Model(&file).
		Where("ino = ?", ino).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// GetChild finds the files row named name under parent.
// Returns common.ErrNotFound if no such entry exists.
func (db *DB) GetChild(ctx context.Context, parent int64, name string) (*FileModel, error) {
	var file FileModel
	err := db.NewSelect().
		Model(&file).
		Where("parent = ?", parent).
		Where("name = ?", name).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// ListChildren retrieves all files rows under parent, ordered by name.
func (db *DB) ListChildren(ctx context.Context, parent int64) ([]FileModel, error) {
	var files []FileModel
	err := db.NewSelect().
		Model(&files).
		Where("parent = ?", parent).
		Order("name").
		Scan(ctx)
	return files, err
}

// CountChildren returns the number of entries under parent.
func (db *DB) CountChildren(ctx context.Context, parent int64) (int, error) {
	return db.NewSelect().
		Model((*FileModel)(nil)).
		Where("parent = ?", parent).
		Count(ctx)
}

// MaxIno returns the maximum allocated inode number.
func (db *DB) MaxIno(ctx context.Context) (int64, error) {
	var maxIno sql.NullInt64
	err := db.NewRaw(`SELECT MAX(ino) FROM files`).Scan(ctx, &maxIno)
	if err != nil {
		return RootIno, err
	}
	if maxIno.Valid {
		return maxIno.Int64, nil
	}
	return RootIno, nil
}

// InsertFile inserts a new files row.
func (db *DB) InsertFile(ctx context.Context, file *FileModel) error {
	_, err := db.NewInsert().Model(file).Exec(ctx)
	return err
}

// UpdateAttr replaces the serialized attribute record for an inode.
func (db *DB) UpdateAttr(ctx context.Context, ino int64, attr []byte) error {
	return db.UpdateAttrWith(db.DB, ctx, ino, attr)
}

// UpdateAttrWith is like UpdateAttr but uses the provided bun.IDB.
func (db *DB) UpdateAttrWith(idb bun.IDB, ctx context.Context, ino int64, attr []byte) error {
	_, err := idb.NewUpdate().
		Model((*FileModel)(nil)).
		Set("attr = ?", attr).
		Where("ino = ?", ino).
		Exec(ctx)
	return err
}

// UpdateEntry moves a files row to a new (parent, name). Used by rename.
func (db *DB) UpdateEntry(ctx context.Context, ino int64, parent int64, name string) error {
	return db.UpdateEntryWith(db.DB, ctx, ino, parent, name)
}

// UpdateEntryWith is like UpdateEntry but uses the provided bun.IDB.
func (db *DB) UpdateEntryWith(idb bun.IDB, ctx context.Context, ino int64, parent int64, name string) error {
	_, err := idb.NewUpdate().
		Model((*FileModel)(nil)).
		Set("parent = ?", parent).
		Set("name = ?", name).
		Where("ino = ?", ino).
		Exec(ctx)
	return err
}

// DeleteFile removes a files row by inode number.
func (db *DB) DeleteFile(ctx context.Context, ino int64) error {
	return db.DeleteFileWith(db.DB, ctx, ino)
}

// DeleteFileWith is like DeleteFile but uses the provided bun.IDB.
func (db *DB) DeleteFileWith(idb bun.IDB, ctx context.Context, ino int64) error {
	_, err := idb.NewDelete().
		Model((*FileModel)(nil)).
		Where("ino = ?", ino).
		Exec(ctx)
	return err
}

// --- Chunk Operations ---

// GetChunk retrieves a single chunk row. Returns nil (no error) if the
// chunk is absent — absent chunks are semantically zero-filled.
func (db *DB) GetChunk(ctx context.Context, ino, offset int64) (*ChunkModel, error) {
	return db.GetChunkWith(db.DB, ctx, ino, offset)
}

// GetChunkWith is like GetChunk but uses the provided bun.IDB.
func (db *DB) GetChunkWith(idb bun.IDB, ctx context.Context, ino, offset int64) (*ChunkModel, error) {
	var chunk ChunkModel
	err := idb.NewSelect().
		Model(&chunk).
		Where("ino = ?", ino).
		Where("offset = ?", offset).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// ListChunks retrieves all chunk rows for an inode ordered by offset.
func (db *DB) ListChunks(ctx context.Context, ino int64) ([]ChunkModel, error) {
	var chunks []ChunkModel
	err := db.NewSelect().
		Model(&chunks).
		Where("ino = ?", ino).
		Order("offset").
		Scan(ctx)
	return chunks, err
}

// ListChunkRange retrieves chunk rows covering [start, end) ordered by
// offset. start and end are chunk-aligned byte offsets.
func (db *DB) ListChunkRange(ctx context.Context, ino, start, end int64) ([]ChunkModel, error) {
	var chunks []ChunkModel
	err := db.NewSelect().
		Model(&chunks).
		Where("ino = ?", ino).
		Where("offset >= ?", start).
		Where("offset < ?", end).
		Order("offset").
		Scan(ctx)
	return chunks, err
}

// UpsertChunk inserts or replaces a chunk row.
func (db *DB) UpsertChunk(ctx context.Context, chunk *ChunkModel) error {
	return db.UpsertChunkWith(db.DB, ctx, chunk)
}

// UpsertChunkWith is like UpsertChunk but uses the provided bun.IDB.
func (db *DB) UpsertChunkWith(idb bun.IDB, ctx context.Context, chunk *ChunkModel) error {
	_, err := idb.NewInsert().
		Model(chunk).
		On("CONFLICT (ino, offset) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("length = EXCLUDED.length").
		Exec(ctx)
	return err
}

// DeleteChunks removes all chunk rows for an inode.
func (db *DB) DeleteChunks(ctx context.Context, ino int64) error {
	return db.DeleteChunksWith(db.DB, ctx, ino)
}

// DeleteChunksWith is like DeleteChunks but uses the provided bun.IDB.
func (db *DB) DeleteChunksWith(idb bun.IDB, ctx context.Context, ino int64) error {
	_, err := idb.NewDelete().
		Model((*ChunkModel)(nil)).
		Where("ino = ?", ino).
		Exec(ctx)
	return err
}

// DeleteChunksFrom removes all chunk rows for an inode at or past the
// given byte offset.
func (db *DB) DeleteChunksFrom(idb bun.IDB, ctx context.Context, ino, offset int64) error {
	_, err := idb.NewDelete().
		Model((*ChunkModel)(nil)).
		Where("ino = ?", ino).
		Where("offset >= ?", offset).
		Exec(ctx)
	return err
}

// SumChunkLengths returns the total stored bytes for one inode.
func (db *DB) SumChunkLengths(ctx context.Context, ino int64) (int64, error) {
	return db.SumChunkLengthsWith(db.DB, ctx, ino)
}

// SumChunkLengthsWith is like SumChunkLengths but uses the provided bun.IDB.
func (db *DB) SumChunkLengthsWith(idb bun.IDB, ctx context.Context, ino int64) (int64, error) {
	var sum sql.NullInt64
	err := idb.NewRaw(`SELECT SUM(length) FROM chunks WHERE ino = ?`, ino).Scan(ctx, &sum)
	if err != nil {
		return 0, err
	}
	if sum.Valid {
		return sum.Int64, nil
	}
	return 0, nil
}

// SumAllChunkLengths returns the total stored bytes across all inodes.
// This is the authoritative value behind the space_used meta row.
func (db *DB) SumAllChunkLengths(ctx context.Context) (int64, error) {
	return db.SumAllChunkLengthsWith(db.DB, ctx)
}

// SumAllChunkLengthsWith is like SumAllChunkLengths but uses the
// provided bun.IDB.
func (db *DB) SumAllChunkLengthsWith(idb bun.IDB, ctx context.Context) (int64, error) {
	var sum sql.NullInt64
	err := idb.NewRaw(`SELECT SUM(length) FROM chunks`).Scan(ctx, &sum)
	if err != nil {
		return 0, err
	}
	if sum.Valid {
		return sum.Int64, nil
	}
	return 0, nil
}

// HasChunks reports whether any chunk row exists in the store.
func (db *DB) HasChunks(ctx context.Context) (bool, error) {
	return db.NewSelect().Model((*ChunkModel)(nil)).Exists(ctx)
}
