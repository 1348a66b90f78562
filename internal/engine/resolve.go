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
	"database/sql"
	"errors"

	"github.com/benallfree/dofs/internal/common"
	"github.com/benallfree/dofs/internal/store"
)

// isNotFound reports whether a store error means "no such row".
func isNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}

// mapStoreErr translates store-level sentinel errors into engine
// errnos. Infrastructure errors pass through for wrapping by callers.
func mapStoreErr(err error) error {
	if isNotFound(err) {
		return ENOENT
	}
	return err
}

// parentRef builds the nullable parent column value for a files row.
func parentRef(ino int64) sql.NullInt64 {
	return sql.NullInt64{Int64: ino, Valid: true}
}

// resolve walks the directory tree from the root to the inode named by
// an absolute path. Symlinks are not followed: they resolve to their
// own inode. An empty path or "/" resolves to the root.
func (e *Engine) resolve(ctx context.Context, path string) (int64, error) {
	parts := common.SplitPath(path)
	cur := int64(store.RootIno)
	for i, part := range parts {
		child, err := e.db.GetChild(ctx, cur, part)
		if err != nil {
			return 0, mapStoreErr(err)
		}
		if i < len(parts)-1 && child.IsDir == 0 {
			return 0, ENOTDIR
		}
		cur = child.Ino
	}
	return cur, nil
}

// splitLeaf resolves all but the last path segment and returns the
// parent inode plus the leaf name. The parent must be a directory.
// emptyErr is returned for the root path, which has no leaf: EEXIST
// for create-family callers (the root always exists), ENOENT for
// rename.
func (e *Engine) splitLeaf(ctx context.Context, path string, emptyErr error) (int64, string, error) {
	parentParts, leaf, ok := common.SplitLeaf(path)
	if !ok {
		return 0, "", emptyErr
	}

	cur := int64(store.RootIno)
	for _, part := range parentParts {
		child, err := e.db.GetChild(ctx, cur, part)
		if err != nil {
			return 0, "", mapStoreErr(err)
		}
		if child.IsDir == 0 {
			return 0, "", ENOTDIR
		}
		cur = child.Ino
	}
	return cur, leaf, nil
}
