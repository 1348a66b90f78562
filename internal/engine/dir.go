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

	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/benallfree/dofs/internal/common"
	"github.com/benallfree/dofs/internal/store"
)

// MkdirOptions configures Mkdir.
type MkdirOptions struct {
	// Recursive creates missing intermediate directories with the same
	// mode and umask as the leaf.
	Recursive bool
	Mode      *uint32
	Umask     *uint32
}

func (o MkdirOptions) umask(def uint32) uint32 {
	if o.Umask != nil {
		return *o.Umask
	}
	return def
}

// Mkdir creates a directory at path. Without Recursive, a missing
// intermediate yields ENOENT; an existing entry at path yields EEXIST.
func (e *Engine) Mkdir(path string, opts MkdirOptions) error {
	ctx := context.Background()
	log.Debugf("[engine] mkdir %q recursive=%v", path, opts.Recursive)

	perm := applyMode(opts.Mode, opts.umask(e.umask), DefaultDirPerm)

	if !opts.Recursive {
		parentIno, leaf, err := e.splitLeaf(ctx, path, EEXIST)
		if err != nil {
			return err
		}
		return e.mkdirOne(ctx, parentIno, leaf, perm)
	}

	parts := common.SplitPath(path)
	if len(parts) == 0 {
		return EEXIST
	}
	cur := int64(store.RootIno)
	for i, part := range parts {
		child, err := e.db.GetChild(ctx, cur, part)
		if err == nil {
			if child.IsDir == 0 {
				if i == len(parts)-1 {
					return EEXIST
				}
				return ENOTDIR
			}
			if i == len(parts)-1 {
				return EEXIST
			}
			cur = child.Ino
			continue
		}
		if !isNotFound(err) {
			return err
		}
		ino, mkErr := e.mkdirAlloc(ctx, cur, part, perm)
		if mkErr != nil {
			return mkErr
		}
		cur = ino
	}
	return nil
}

// mkdirOne creates a single directory entry under parentIno.
func (e *Engine) mkdirOne(ctx context.Context, parentIno int64, leaf string, perm uint32) error {
	if _, err := e.db.GetChild(ctx, parentIno, leaf); err == nil {
		return EEXIST
	} else if !isNotFound(err) {
		return err
	}
	_, err := e.mkdirAlloc(ctx, parentIno, leaf, perm)
	return err
}

// mkdirAlloc allocates an inode and inserts the directory row.
func (e *Engine) mkdirAlloc(ctx context.Context, parentIno int64, leaf string, perm uint32) (int64, error) {
	ino, err := e.allocIno(ctx)
	if err != nil {
		return 0, err
	}
	attr, err := MarshalAttr(newAttr(ino, KindDirectory, perm, 2, 0))
	if err != nil {
		return 0, err
	}
	err = e.db.InsertFile(ctx, &store.FileModel{
		Ino:    ino,
		Name:   leaf,
		Parent: parentRef(parentIno),
		IsDir:  1,
		Attr:   attr,
	})
	if err != nil {
		return 0, err
	}
	return ino, nil
}

// RmdirOptions configures Rmdir.
type RmdirOptions struct {
	// Recursive removes the whole subtree depth-first.
	Recursive bool
}

// Rmdir removes the directory at path. A non-empty directory fails
// with ENOTEMPTY unless Recursive is set. The root cannot be removed.
func (e *Engine) Rmdir(path string, opts RmdirOptions) error {
	ctx := context.Background()
	log.Debugf("[engine] rmdir %q recursive=%v", path, opts.Recursive)

	ino, err := e.resolve(ctx, path)
	if err != nil {
		return err
	}
	if ino == store.RootIno {
		return EPERM
	}
	attr, err := e.getAttr(ctx, ino)
	if err != nil {
		return err
	}
	if !attr.IsDir() {
		return ENOTDIR
	}

	if opts.Recursive {
		return e.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := e.removeTree(tx, ctx, ino); err != nil {
				return err
			}
			if err := e.db.DeleteFileWith(tx, ctx, ino); err != nil {
				return err
			}
			return e.refreshSpaceUsed(tx, ctx)
		})
	}

	count, err := e.db.CountChildren(ctx, ino)
	if err != nil {
		return err
	}
	if count > 0 {
		return ENOTEMPTY
	}
	return e.db.DeleteFile(ctx, ino)
}

// removeTree deletes every descendant of a directory, chunks included.
func (e *Engine) removeTree(tx bun.Tx, ctx context.Context, dirIno int64) error {
	children, err := e.db.ListChildren(ctx, dirIno)
	if err != nil {
		return err
	}
	for _, child := range children {
		if child.IsDir == 1 {
			if err := e.removeTree(tx, ctx, child.Ino); err != nil {
				return err
			}
		} else {
			if err := e.db.DeleteChunksWith(tx, ctx, child.Ino); err != nil {
				return err
			}
		}
		if err := e.db.DeleteFileWith(tx, ctx, child.Ino); err != nil {
			return err
		}
	}
	return nil
}

// ListDirOptions configures ListDir.
type ListDirOptions struct {
	// Recursive yields all descendants pre-order, paths relative to
	// the argument.
	Recursive bool
}

// ListDir returns the names in the directory at path, preceded by the
// synthetic "." and ".." entries. Beyond that prefix, the only
// ordering guarantee is whatever the store returns (name order).
func (e *Engine) ListDir(path string, opts ListDirOptions) ([]string, error) {
	ctx := context.Background()

	ino, err := e.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	attr, err := e.getAttr(ctx, ino)
	if err != nil {
		return nil, err
	}
	if !attr.IsDir() {
		return nil, ENOTDIR
	}

	names := []string{".", ".."}
	if opts.Recursive {
		if err := e.walkDir(ctx, ino, "", &names); err != nil {
			return nil, err
		}
		return names, nil
	}

	children, err := e.db.ListChildren(ctx, ino)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		names = append(names, child.Name)
	}
	return names, nil
}

// walkDir appends a pre-order listing of a directory subtree, with
// entries prefixed by rel.
func (e *Engine) walkDir(ctx context.Context, dirIno int64, rel string, names *[]string) error {
	children, err := e.db.ListChildren(ctx, dirIno)
	if err != nil {
		return err
	}
	for _, child := range children {
		entry := child.Name
		if rel != "" {
			entry = rel + "/" + child.Name
		}
		*names = append(*names, entry)
		if child.IsDir == 1 {
			if err := e.walkDir(ctx, child.Ino, entry, names); err != nil {
				return err
			}
		}
	}
	return nil
}

// Unlink removes the file or symlink at path together with all its
// chunks. Directories fail with EISDIR; use Rmdir.
func (e *Engine) Unlink(path string) error {
	ctx := context.Background()
	log.Debugf("[engine] unlink %q", path)

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

	return e.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := e.db.DeleteFileWith(tx, ctx, ino); err != nil {
			return err
		}
		if err := e.db.DeleteChunksWith(tx, ctx, ino); err != nil {
			return err
		}
		return e.refreshSpaceUsed(tx, ctx)
	})
}

// Symlink creates a symbolic link at path holding target. Targets are
// stored as raw bytes in the files row; they are never traversed by
// the resolver.
func (e *Engine) Symlink(target, path string) error {
	ctx := context.Background()
	log.Debugf("[engine] symlink %q -> %q", path, target)

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
	attr, err := MarshalAttr(newAttr(ino, KindSymlink, SymlinkPerm, 1, int64(len(target))))
	if err != nil {
		return err
	}
	return e.db.InsertFile(ctx, &store.FileModel{
		Ino:    ino,
		Name:   leaf,
		Parent: parentRef(parentIno),
		IsDir:  0,
		Attr:   attr,
		Data:   []byte(target),
	})
}

// Readlink returns the target of the symlink at path. A missing path
// or a non-symlink yields ENOENT.
func (e *Engine) Readlink(path string) (string, error) {
	ctx := context.Background()

	ino, err := e.resolve(ctx, path)
	if err != nil {
		return "", err
	}
	file, err := e.db.GetFile(ctx, ino)
	if err != nil {
		return "", mapStoreErr(err)
	}
	attr, err := UnmarshalAttr(file.Attr)
	if err != nil {
		return "", err
	}
	if !attr.IsSymlink() {
		return "", ENOENT
	}
	return string(file.Data), nil
}

// Rename moves the entry at old to new. An existing destination is
// replaced atomically: files and symlinks are deleted with their
// chunks, empty directories are deleted, non-empty directories fail
// with ENOTEMPTY. This is the contract behind the tempfile-then-rename
// upload idiom.
func (e *Engine) Rename(oldPath, newPath string) error {
	ctx := context.Background()
	log.Debugf("[engine] rename %q -> %q", oldPath, newPath)

	oldParent, oldLeaf, err := e.splitLeaf(ctx, oldPath, ENOENT)
	if err != nil {
		return err
	}
	src, err := e.db.GetChild(ctx, oldParent, oldLeaf)
	if err != nil {
		return mapStoreErr(err)
	}

	newParent, newLeaf, err := e.splitLeaf(ctx, newPath, ENOENT)
	if err != nil {
		return err
	}
	if oldParent == newParent && oldLeaf == newLeaf {
		return nil
	}

	dst, err := e.db.GetChild(ctx, newParent, newLeaf)
	if err != nil && !isNotFound(err) {
		return err
	}
	if dst != nil && dst.IsDir == 1 {
		count, err := e.db.CountChildren(ctx, dst.Ino)
		if err != nil {
			return err
		}
		if count > 0 {
			return ENOTEMPTY
		}
	}

	return e.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if dst != nil {
			if err := e.db.DeleteFileWith(tx, ctx, dst.Ino); err != nil {
				return err
			}
			if err := e.db.DeleteChunksWith(tx, ctx, dst.Ino); err != nil {
				return err
			}
			if err := e.refreshSpaceUsed(tx, ctx); err != nil {
				return err
			}
		}
		return e.db.UpdateEntryWith(tx, ctx, src.Ino, newParent, newLeaf)
	})
}
