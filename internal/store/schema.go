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
	"fmt"
	"strings"
)

const SchemaVersion = "1"

// DefaultChunkSize is the block granularity for file content. 4KB is
// the per-instance default; the value is pinned in meta on first
// initialization and immutable afterwards.
const DefaultChunkSize = 4096

// DefaultDeviceSize is the default capacity ceiling (1 GiB).
const DefaultDeviceSize = 1 << 30

// DefaultBusyTimeout in milliseconds (30 seconds).
const DefaultBusyTimeout = 30000

// RootIno is the inode number of the always-present root directory.
const RootIno = 1

// Well-known meta keys.
const (
	MetaDeviceSize = "device_size"
	MetaSpaceUsed  = "space_used"
	MetaChunkSize  = "chunk_size"
)

// Schema SQL for an instance store. Statements are idempotent; they
// run when a store is created, and Open does not run them.
const instanceSchema = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Instance settings and device accounting
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- One row per directory entry = per inode (no hard links)
CREATE TABLE IF NOT EXISTS files (
    ino INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    parent INTEGER,
    is_dir INTEGER NOT NULL,
    attr BLOB,
    data BLOB
);

-- Directory lookup and listing
CREATE UNIQUE INDEX IF NOT EXISTS idx_files_parent_name ON files(parent, name);
CREATE INDEX IF NOT EXISTS idx_files_parent ON files(parent);

-- Payload blocks for regular files
CREATE TABLE IF NOT EXISTS chunks (
    ino INTEGER NOT NULL,
    offset INTEGER NOT NULL,
    data BLOB NOT NULL,
    length INTEGER NOT NULL,
    PRIMARY KEY (ino, offset)
);
`

const initSchemaInfo = `
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('version', ?);
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('type', 'instance');
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('created_at', datetime('now'));
`

// execScript runs a multi-statement SQL script, feeding each statement
// its share of args by placeholder count. The libsql driver rejects
// multi-statement Exec, so statements run one at a time.
func execScript(db *sql.DB, script string, args ...interface{}) error {
	next := 0
	for _, stmt := range sqlStatements(script) {
		n := strings.Count(stmt, "?")
		if next+n > len(args) {
			return fmt.Errorf("schema script wants %d args, have %d", next+n, len(args))
		}
		if _, err := db.Exec(stmt, args[next:next+n]...); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
		next += n
	}
	return nil
}

// sqlStatements splits a script into semicolon-terminated statements,
// dropping blank and comment lines.
func sqlStatements(script string) []string {
	var stmts []string
	var buf []string
	flush := func() {
		if len(buf) > 0 {
			stmts = append(stmts, strings.Join(buf, "\n"))
			buf = buf[:0]
		}
	}
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		buf = append(buf, line)
		if strings.HasSuffix(line, ";") {
			flush()
		}
	}
	flush()
	return stmts
}
