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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/benallfree/dofs/internal/store"
)

// Kind discriminates the filesystem object types.
type Kind string

const (
	KindDirectory Kind = "directory"
	KindFile      Kind = "file"
	KindSymlink   Kind = "symlink"
)

// Default permission bits applied when create/mkdir receive no mode.
const (
	DefaultFilePerm = 0o644
	DefaultDirPerm  = 0o755
	SymlinkPerm     = 0o777
)

// DefaultBlkSize is the advertised I/O block size in attribute records.
const DefaultBlkSize = 512

// Attr is the per-inode attribute record stored serialized in the
// files.attr column.
type Attr struct {
	Ino     int64     `json:"ino"`
	Size    int64     `json:"size"`
	Blocks  int64     `json:"blocks"`
	Atime   time.Time `json:"atime"`
	Mtime   time.Time `json:"mtime"`
	Ctime   time.Time `json:"ctime"`
	Crtime  time.Time `json:"crtime"`
	Kind    Kind      `json:"kind"`
	Perm    uint32    `json:"perm"` // 12-bit POSIX mode
	Nlink   uint32    `json:"nlink"`
	Uid     uint32    `json:"uid"`
	Gid     uint32    `json:"gid"`
	Rdev    uint32    `json:"rdev"`
	Flags   uint32    `json:"flags"`
	BlkSize uint32    `json:"blksize"`
}

// IsDir returns true if the record describes a directory.
func (a *Attr) IsDir() bool {
	return a.Kind == KindDirectory
}

// IsFile returns true if the record describes a regular file.
func (a *Attr) IsFile() bool {
	return a.Kind == KindFile
}

// IsSymlink returns true if the record describes a symbolic link.
func (a *Attr) IsSymlink() bool {
	return a.Kind == KindSymlink
}

// SetSize updates the size and the derived 512-byte block count.
func (a *Attr) SetSize(size int64) {
	a.Size = size
	a.Blocks = (size + DefaultBlkSize - 1) / DefaultBlkSize
}

// MarshalAttr serializes an attribute record for the files.attr column.
func MarshalAttr(a *Attr) ([]byte, error) {
	return json.Marshal(a)
}

// UnmarshalAttr deserializes an attribute record from the files.attr
// column.
func UnmarshalAttr(data []byte) (*Attr, error) {
	var a Attr
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("corrupt attribute record: %w", err)
	}
	return &a, nil
}

// newAttr builds a fresh attribute record with all timestamps set to
// now and ownership taken from the process.
func newAttr(ino int64, kind Kind, perm uint32, nlink uint32, size int64) *Attr {
	now := time.Now()
	a := &Attr{
		Ino:     ino,
		Atime:   now,
		Mtime:   now,
		Ctime:   now,
		Crtime:  now,
		Kind:    kind,
		Perm:    perm & 0o7777,
		Nlink:   nlink,
		Uid:     uint32(os.Getuid()),
		Gid:     uint32(os.Getgid()),
		BlkSize: DefaultBlkSize,
	}
	a.SetSize(size)
	return a
}

// applyMode resolves the effective permission bits from an optional
// mode, the umask, and the default for the object kind.
func applyMode(mode *uint32, umask uint32, def uint32) uint32 {
	m := def
	if mode != nil {
		m = *mode
	}
	return m & ^umask & 0o7777
}

// RootAttr returns the serialized attribute record seeded onto the root
// directory at first initialization (ino=1, 0755, nlink=2).
func RootAttr() []byte {
	attr, err := MarshalAttr(newAttr(store.RootIno, KindDirectory, DefaultDirPerm, 2, 0))
	if err != nil {
		// json.Marshal of a plain struct cannot fail
		panic(err)
	}
	return attr
}
