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
	"database/sql"

	"github.com/uptrace/bun"
)

// Bun ORM models for the instance store tables.

// SchemaInfoModel represents the schema_info table.
type SchemaInfoModel struct {
	bun.BaseModel `bun:"table:schema_info"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// MetaModel represents the meta table (settings + device accounting).
type MetaModel struct {
	bun.BaseModel `bun:"table:meta"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// FileModel represents the files table: one row per directory entry
// and per inode. Parent is NULL only for the root. Data holds the raw
// symlink target for symlinks and is NULL otherwise.
type FileModel struct {
	bun.BaseModel `bun:"table:files"`

	Ino    int64         `bun:"ino,pk"`
	Name   string        `bun:"name,notnull"`
	Parent sql.NullInt64 `bun:"parent"`
	IsDir  int64         `bun:"is_dir,notnull"`
	Attr   []byte        `bun:"attr"`
	Data   []byte        `bun:"data"`
}

// ChunkModel represents the chunks table: fixed-size payload blocks
// addressed by (ino, offset). Offset is always a multiple of the
// instance chunk size; Length is the actual byte count stored (the
// tail chunk may be short).
type ChunkModel struct {
	bun.BaseModel `bun:"table:chunks"`

	Ino    int64  `bun:"ino,pk"`
	Offset int64  `bun:"offset,pk"`
	Data   []byte `bun:"data,notnull"`
	Length int64  `bun:"length,notnull"`
}
