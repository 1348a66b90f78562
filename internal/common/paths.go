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

package common

import "strings"

// Paths are split literally on "/". Only empty segments are dropped;
// "." and ".." are ordinary component names and are never resolved —
// callers are expected to provide canonical paths, and a literal "."
// or ".." segment simply fails to resolve like any other missing name.

// SplitPath splits a path into its components. Empty segments are
// discarded, so "//a///b" and "/a/b" split identically.
func SplitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// NormalizePath strips leading, trailing, and doubled slashes. The
// root path ("/", "") normalizes to the empty string.
func NormalizePath(path string) string {
	return strings.Join(SplitPath(path), "/")
}

// SplitLeaf splits a path into the components of its parent directory
// and the final name. ok is false for the root path, which has no leaf.
func SplitLeaf(path string) (parent []string, leaf string, ok bool) {
	parts := SplitPath(path)
	if len(parts) == 0 {
		return nil, "", false
	}
	return parts[:len(parts)-1], parts[len(parts)-1], true
}

// JoinPath joins path components and normalizes the result.
func JoinPath(parts ...string) string {
	return NormalizePath(strings.Join(parts, "/"))
}

// ParentPath returns the parent directory of a path.
func ParentPath(path string) string {
	parts := SplitPath(path)
	if len(parts) <= 1 {
		return ""
	}
	return strings.Join(parts[:len(parts)-1], "/")
}

// BaseName returns the final component of a path.
func BaseName(path string) string {
	parts := SplitPath(path)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
