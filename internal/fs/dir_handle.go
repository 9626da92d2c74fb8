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

package fs

import (
	"context"
	"io"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"

	"github.com/objfuse/objfuse/internal/inode"
)

// Offsets 1 and 2 are reserved for "." and ".."; real children start at 3,
// matching the classic POSIX directory-enumeration convention (each
// Dirent.Offset names where the *next* readdir() call should resume).
const (
	dotOffset       fuseops.DirOffset = 1
	dotDotOffset    fuseops.DirOffset = 2
	firstChildOffset                 = dotDotOffset
)

// DirHandle buffers directory entries read from a Superblock cursor and
// hands them to the kernel in offset order. Because a LIST continuation
// token cannot be rewound, a seek to offset 0 reopens the cursor from
// scratch rather than replaying a buffer; any other seek to an offset we
// no longer have buffered is rejected, matching the kernel's own
// telldir/seekdir contract for directories backed by a non-seekable
// listing.
type DirHandle struct {
	sb        *inode.Superblock
	dirIno    inode.ID
	parentIno inode.ID
	batchSize int

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	cursor *inode.ReaddirHandle
	// GUARDED_BY(mu)
	entries []fuseutil.Dirent
	// entriesOffset is the logical offset of entries[0].
	// GUARDED_BY(mu)
	entriesOffset fuseops.DirOffset
}

func newDirHandle(sb *inode.Superblock, dirIno, parentIno inode.ID, cursor *inode.ReaddirHandle, batchSize int) *DirHandle {
	if batchSize <= 0 {
		batchSize = 100
	}
	dh := &DirHandle{sb: sb, dirIno: dirIno, parentIno: parentIno, cursor: cursor, batchSize: batchSize}
	dh.mu = syncutil.NewInvariantMutex(dh.checkInvariants)
	return dh
}

func (dh *DirHandle) checkInvariants() {
	if len(dh.entries) > 0 && dh.entries[0].Offset <= dh.entriesOffset {
		panic("dir handle entries out of order with entriesOffset")
	}
}

// ReadDir serves one kernel readdir() call.
func (dh *DirHandle) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	dh.mu.Lock()
	defer dh.mu.Unlock()

	if op.Offset == 0 {
		cursor, err := dh.sb.OpenDir(dh.dirIno)
		if err != nil {
			return toErrno(err)
		}
		dh.cursor = cursor
		dh.entries = nil
		dh.entriesOffset = firstChildOffset
	}

	offset := op.Offset

	if offset == 0 {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], fuseutil.Dirent{
			Offset: dotOffset,
			Inode:  dh.dirIno,
			Name:   ".",
			Type:   fuseutil.DT_Dir,
		})
		if n == 0 {
			return nil
		}
		op.BytesRead += n
		offset = dotOffset
	}

	if offset == dotOffset {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], fuseutil.Dirent{
			Offset: dotDotOffset,
			Inode:  dh.parentIno,
			Name:   "..",
			Type:   fuseutil.DT_Dir,
		})
		if n == 0 {
			return nil
		}
		op.BytesRead += n
		offset = dotDotOffset
	}

	if offset < dh.entriesOffset {
		return fuse.EINVAL
	}

	index := int(offset - dh.entriesOffset)
	if index > len(dh.entries) {
		return fuse.EINVAL
	}

	if index == len(dh.entries) {
		fresh, err := dh.readMore(ctx)
		if err != nil {
			return toErrno(err)
		}

		dh.entriesOffset += fuseops.DirOffset(len(dh.entries))
		dh.entries = fresh
		index = 0
	}

	for i := index; i < len(dh.entries); i++ {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], dh.entries[i])
		if n == 0 {
			break
		}
		op.BytesRead += n
	}

	return nil
}

// readMore pulls up to batchSize more entries from the cursor, assigning
// each the logical offset it should be resumed from.
//
// LOCKS_REQUIRED(dh.mu)
func (dh *DirHandle) readMore(ctx context.Context) ([]fuseutil.Dirent, error) {
	var out []fuseutil.Dirent
	base := dh.entriesOffset + fuseops.DirOffset(len(dh.entries))

	for len(out) < dh.batchSize {
		e, err := dh.cursor.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		looked := dh.cursor.Install(e)
		out = append(out, fuseutil.Dirent{
			Offset: base + fuseops.DirOffset(len(out)) + 1,
			Inode:  looked.ID,
			Name:   e.Name,
			Type:   direntType(e.Kind),
		})
	}

	return out, nil
}

func direntType(k inode.Kind) fuseutil.DirentType {
	if k == inode.KindDirectory {
		return fuseutil.DT_Dir
	}
	return fuseutil.DT_File
}
