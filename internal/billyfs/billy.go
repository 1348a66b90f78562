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

// Package billyfs adapts the engine to the go-billy filesystem
// interface so host programs can consume an instance through the
// standard in-process library surface.
package billyfs

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"

	"github.com/benallfree/dofs/internal/common"
	"github.com/benallfree/dofs/internal/engine"
)

// Filesystem implements billy.Filesystem over one engine instance.
type Filesystem struct {
	fs *engine.Engine
}

// New wraps an engine in a billy.Filesystem.
func New(fs *engine.Engine) *Filesystem {
	return &Filesystem{fs: fs}
}

var _ billy.Filesystem = (*Filesystem)(nil)

// Create creates or truncates the named file.
func (b *Filesystem) Create(filename string) (billy.File, error) {
	return b.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

// Open opens the named file read-only.
func (b *Filesystem) Open(filename string) (billy.File, error) {
	return b.OpenFile(filename, os.O_RDONLY, 0)
}

// OpenFile opens the named file with the given flags.
func (b *Filesystem) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	attr, err := b.fs.Stat(filename)
	switch {
	case err == nil:
		if attr.IsDir() {
			return nil, engine.EISDIR
		}
		if flag&os.O_EXCL != 0 {
			return nil, os.ErrExist
		}
		if flag&os.O_TRUNC != 0 {
			if err := b.fs.Truncate(filename, 0); err != nil {
				return nil, err
			}
			attr.SetSize(0)
		}
	case err == engine.ENOENT && flag&os.O_CREATE != 0:
		mode := uint32(perm.Perm())
		if err := b.fs.Create(filename, engine.CreateOptions{Mode: &mode}); err != nil {
			return nil, err
		}
		attr, err = b.fs.Stat(filename)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	f := &file{fs: b.fs, name: filename, flag: flag}
	if flag&os.O_APPEND != 0 {
		f.offset = attr.Size
	}
	return f, nil
}

// Stat returns file info for the named path.
func (b *Filesystem) Stat(filename string) (os.FileInfo, error) {
	attr, err := b.fs.Stat(filename)
	if err != nil {
		return nil, err
	}
	return newFileInfo(common.BaseName(filename), attr), nil
}

// Lstat is identical to Stat: the resolver never follows symlinks, so
// every stat is already an lstat.
func (b *Filesystem) Lstat(filename string) (os.FileInfo, error) {
	return b.Stat(filename)
}

// Rename moves oldpath to newpath, replacing any existing destination.
func (b *Filesystem) Rename(oldpath, newpath string) error {
	return b.fs.Rename(oldpath, newpath)
}

// Remove removes the named file, symlink, or empty directory.
func (b *Filesystem) Remove(filename string) error {
	err := b.fs.Unlink(filename)
	if err == engine.EISDIR {
		return b.fs.Rmdir(filename, engine.RmdirOptions{})
	}
	return err
}

// Join joins path elements.
func (b *Filesystem) Join(elem ...string) string {
	return "/" + common.JoinPath(elem...)
}

// TempFile creates a uniquely named file under dir.
func (b *Filesystem) TempFile(dir, prefix string) (billy.File, error) {
	if dir == "" {
		dir = "/"
	}
	name := b.Join(dir, prefix+uuid.NewString())
	return b.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
}

// ReadDir lists the named directory.
func (b *Filesystem) ReadDir(path string) ([]os.FileInfo, error) {
	names, err := b.fs.ListDir(path, engine.ListDirOptions{})
	if err != nil {
		return nil, err
	}
	var infos []os.FileInfo
	for _, name := range names {
		if name == "." || name == ".." {
			continue
		}
		attr, err := b.fs.Stat(b.Join(path, name))
		if err != nil {
			return nil, err
		}
		infos = append(infos, newFileInfo(name, attr))
	}
	return infos, nil
}

// MkdirAll creates the named directory and any missing parents.
func (b *Filesystem) MkdirAll(filename string, perm os.FileMode) error {
	mode := uint32(perm.Perm())
	err := b.fs.Mkdir(filename, engine.MkdirOptions{Recursive: true, Mode: &mode})
	if err == engine.EEXIST {
		// MkdirAll tolerates an existing directory.
		attr, statErr := b.fs.Stat(filename)
		if statErr == nil && attr.IsDir() {
			return nil
		}
		return err
	}
	return err
}

// Symlink creates a symbolic link at link pointing to target.
func (b *Filesystem) Symlink(target, link string) error {
	return b.fs.Symlink(target, link)
}

// Readlink returns the target of the named symlink.
func (b *Filesystem) Readlink(link string) (string, error) {
	return b.fs.Readlink(link)
}

// Chroot is not supported; every instance is already self-contained.
func (b *Filesystem) Chroot(path string) (billy.Filesystem, error) {
	return nil, billy.ErrNotSupported
}

// Root returns the root path of the instance.
func (b *Filesystem) Root() string {
	return "/"
}

// Capabilities advertises what this filesystem supports.
func (b *Filesystem) Capabilities() billy.Capability {
	return billy.WriteCapability | billy.ReadCapability |
		billy.ReadAndWriteCapability | billy.SeekCapability |
		billy.TruncateCapability
}

// file is a billy.File over one engine path with a seek cursor.
type file struct {
	fs     *engine.Engine
	name   string
	flag   int
	offset int64
	closed bool
}

var _ billy.File = (*file)(nil)

func (f *file) Name() string {
	return f.name
}

func (f *file) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if f.flag&os.O_WRONLY != 0 {
		return 0, fmt.Errorf("file %s is write-only", f.name)
	}
	attr, err := f.fs.Stat(f.name)
	if err != nil {
		return 0, err
	}
	if off >= attr.Size {
		return 0, io.EOF
	}
	length := min64(int64(len(p)), attr.Size-off)
	data, err := f.fs.Read(f.name, engine.ReadOptions{Offset: off, Length: &length})
	if err != nil {
		return 0, err
	}
	n := copy(p, data)
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

func (f *file) Write(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if err := f.fs.Write(f.name, p, engine.WriteOptions{Offset: f.offset}); err != nil {
		return 0, err
	}
	f.offset += int64(len(p))
	return len(p), nil
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	switch whence {
	case io.SeekStart:
		f.offset = offset
	case io.SeekCurrent:
		f.offset += offset
	case io.SeekEnd:
		attr, err := f.fs.Stat(f.name)
		if err != nil {
			return 0, err
		}
		f.offset = attr.Size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if f.offset < 0 {
		f.offset = 0
	}
	return f.offset, nil
}

func (f *file) Close() error {
	f.closed = true
	return nil
}

func (f *file) Truncate(size int64) error {
	return f.fs.Truncate(f.name, size)
}

// Lock and Unlock are no-ops: the instance already has exactly one
// writer.
func (f *file) Lock() error   { return nil }
func (f *file) Unlock() error { return nil }

// fileInfo adapts an attribute record to os.FileInfo.
type fileInfo struct {
	name string
	attr *engine.Attr
}

func newFileInfo(name string, attr *engine.Attr) *fileInfo {
	return &fileInfo{name: name, attr: attr}
}

func (fi *fileInfo) Name() string { return fi.name }
func (fi *fileInfo) Size() int64  { return fi.attr.Size }

func (fi *fileInfo) Mode() os.FileMode {
	mode := os.FileMode(fi.attr.Perm & 0o777)
	switch {
	case fi.attr.IsDir():
		mode |= os.ModeDir
	case fi.attr.IsSymlink():
		mode |= os.ModeSymlink
	}
	return mode
}

func (fi *fileInfo) ModTime() time.Time { return fi.attr.Mtime }
func (fi *fileInfo) IsDir() bool        { return fi.attr.IsDir() }
func (fi *fileInfo) Sys() interface{}   { return fi.attr }

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
