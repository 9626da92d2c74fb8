// Copyright 2025 Google LLC
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

// Package inode is the Superblock: the authoritative, lazily-populated
// mapping between inode numbers and object-store paths for a single mount.
package inode

import (
	"fmt"
	"time"

	"github.com/jacobsa/fuse/fuseops"
)

// ID is the numeric inode identifier exposed to the kernel. 1 is the mount
// root; all others are assigned monotonically as names are discovered.
type ID = fuseops.InodeID

// RootID is the inode number of the mount point itself.
const RootID ID = fuseops.RootInodeID

// Kind tags whether an inode denotes a file or a directory. There are no
// other kinds in this read-only view.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// Stat is the attribute set the Facade turns into a FileAttr: size, kind,
// and the freshness marker used to decide whether cached state is still
// good enough to answer getattr without a round trip.
type Stat struct {
	Size      uint64
	Kind      Kind
	FetchedAt time.Time
}

// Record is the Superblock's internal bookkeeping for one inode: its
// (parent, name) edge, the full object-store key it denotes, and its
// cached Stat.
type Record struct {
	ID       ID
	Parent   ID
	Name     string // raw basename; empty only for the root
	Kind     Kind
	FullKey  string // object key for files; prefix ending in "/" for directories (empty for root)
	Stat     Stat
}

// LookedUp is the result of a successful lookup or getattr: enough for the
// Facade to build a fuseops.ChildInodeEntry / Attr response.
type LookedUp struct {
	ID      ID
	Stat    Stat
	FullKey string
}

////////////////////////////////////////////////////////////////////////
// Errors
////////////////////////////////////////////////////////////////////////

// Error is the Superblock's internal error taxonomy. The Facade translates
// each Kind to a POSIX errno at the kernel boundary.
type Error struct {
	Kind  ErrorKind
	Ino   ID
	Name  string
	Cause error
}

type ErrorKind int

const (
	ErrClient ErrorKind = iota
	ErrFileDoesNotExist
	ErrInodeDoesNotExist
	ErrInvalidFileName
	ErrNotADirectory
)

func (e *Error) Error() string {
	switch e.Kind {
	case ErrClient:
		return fmt.Sprintf("object store error: %v", e.Cause)
	case ErrFileDoesNotExist:
		return fmt.Sprintf("no such object for name %q", e.Name)
	case ErrInodeDoesNotExist:
		return fmt.Sprintf("stale inode %d", e.Ino)
	case ErrInvalidFileName:
		return fmt.Sprintf("invalid file name %q", e.Name)
	case ErrNotADirectory:
		return fmt.Sprintf("inode %d is not a directory", e.Ino)
	default:
		return "unknown inode error"
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func clientError(cause error) error {
	return &Error{Kind: ErrClient, Cause: cause}
}

func fileDoesNotExist(name string) error {
	return &Error{Kind: ErrFileDoesNotExist, Name: name}
}

func inodeDoesNotExist(ino ID) error {
	return &Error{Kind: ErrInodeDoesNotExist, Ino: ino}
}

func invalidFileName(name string) error {
	return &Error{Kind: ErrInvalidFileName, Name: name}
}

func notADirectory(ino ID) error {
	return &Error{Kind: ErrNotADirectory, Ino: ino}
}
