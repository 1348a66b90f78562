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
	"errors"
	"syscall"
)

// Engine error codes mapped to syscall errors
var (
	ENOENT    = syscall.ENOENT    // No such file or directory
	EEXIST    = syscall.EEXIST    // File exists
	ENOTDIR   = syscall.ENOTDIR   // Not a directory
	EISDIR    = syscall.EISDIR    // Is a directory
	ENOTEMPTY = syscall.ENOTEMPTY // Directory not empty
	ENOSPC    = syscall.ENOSPC    // No space left on device
	EINVAL    = syscall.EINVAL    // Invalid argument
	EPERM     = syscall.EPERM     // Operation not permitted
	EIO       = syscall.EIO       // I/O error
)

// errnoNames maps engine errnos to their POSIX short names for the
// wire adapters.
var errnoNames = map[syscall.Errno]string{
	syscall.ENOENT:    "ENOENT",
	syscall.EEXIST:    "EEXIST",
	syscall.ENOTDIR:   "ENOTDIR",
	syscall.EISDIR:    "EISDIR",
	syscall.ENOTEMPTY: "ENOTEMPTY",
	syscall.ENOSPC:    "ENOSPC",
	syscall.EINVAL:    "EINVAL",
	syscall.EPERM:     "EPERM",
	syscall.EACCES:    "EACCES",
	syscall.EIO:       "EIO",
}

// ErrnoName returns the POSIX short name for an engine error. Errors
// that are not named errnos report as EIO.
func ErrnoName(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if name, ok := errnoNames[errno]; ok {
			return name
		}
	}
	return "EIO"
}
