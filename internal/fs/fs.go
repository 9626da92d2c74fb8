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

// Package fs is the Filesystem Facade: it adapts the jacobsa/fuse kernel
// protocol to the Superblock and Prefetcher. Every exported method
// implements one fuseutil.FileSystem operation.
package fs

import (
	"os"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"

	"github.com/objfuse/objfuse/internal/inode"
	"github.com/objfuse/objfuse/internal/prefetch"
)

// Config carries the parts of the mount configuration the Facade itself
// needs, independent of cfg.Config so this package stays importable without
// the CLI layer.
type Config struct {
	Uid, Gid  uint32
	FileMode  os.FileMode
	DirMode   os.FileMode
	// ReaddirBatchSize bounds how many children are pulled from the
	// Superblock per directory-listing refill.
	ReaddirBatchSize int
}

// Filesystem implements fuseutil.FileSystem over a Superblock and
// Prefetcher. Unimplemented (write-path) operations fall through to
// fuseutil.NotImplementedFileSystem and report ENOSYS.
type Filesystem struct {
	fuseutil.NotImplementedFileSystem

	sb  *inode.Superblock
	pf  *prefetch.Prefetcher
	cfg Config

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	nextHandleID fuseops.HandleID
	// GUARDED_BY(mu)
	dirHandles map[fuseops.HandleID]*DirHandle
	// GUARDED_BY(mu)
	fileHandles map[fuseops.HandleID]*FileHandle
}

func NewFilesystem(sb *inode.Superblock, pf *prefetch.Prefetcher, cfg Config) *Filesystem {
	if cfg.ReaddirBatchSize == 0 {
		cfg.ReaddirBatchSize = 100
	}

	fs := &Filesystem{
		sb:           sb,
		pf:           pf,
		cfg:          cfg,
		nextHandleID: 1,
		dirHandles:   make(map[fuseops.HandleID]*DirHandle),
		fileHandles:  make(map[fuseops.HandleID]*FileHandle),
	}
	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)

	return fs
}

func (fs *Filesystem) checkInvariants() {
	if fs.nextHandleID == 0 {
		panic("handle ID counter wrapped")
	}
}

////////////////////////////////////////////////////////////////////////
// Namespace operations
////////////////////////////////////////////////////////////////////////

func (fs *Filesystem) Init(op *fuseops.InitOp) error {
	return nil
}

func (fs *Filesystem) LookUpInode(op *fuseops.LookUpInodeOp) error {
	looked, err := fs.sb.LookUpChild(op.Context(), inode.ID(op.Parent), op.Name)
	if err != nil {
		return toErrno(err)
	}

	op.Entry.Child = looked.ID
	op.Entry.Attributes = fs.attrFromStat(looked.Stat)
	return nil
}

func (fs *Filesystem) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) error {
	stat, err := fs.sb.GetAttr(op.Context(), op.Inode)
	if err != nil {
		return toErrno(err)
	}

	op.Attributes = fs.attrFromStat(stat)
	return nil
}

func (fs *Filesystem) ForgetInode(op *fuseops.ForgetInodeOp) error {
	fs.sb.ForgetInode(op.Inode)
	return nil
}

////////////////////////////////////////////////////////////////////////
// Directory operations
////////////////////////////////////////////////////////////////////////

func (fs *Filesystem) OpenDir(op *fuseops.OpenDirOp) error {
	cursor, err := fs.sb.OpenDir(op.Inode)
	if err != nil {
		return toErrno(err)
	}

	parentIno, err := fs.sb.ParentOf(op.Inode)
	if err != nil {
		return toErrno(err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	id := fs.nextHandleID
	fs.nextHandleID++
	fs.dirHandles[id] = newDirHandle(fs.sb, op.Inode, parentIno, cursor, fs.cfg.ReaddirBatchSize)
	op.Handle = id

	return nil
}

func (fs *Filesystem) ReadDir(op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	dh, ok := fs.dirHandles[op.Handle]
	fs.mu.Unlock()
	if !ok {
		return fuse.EBADF
	}

	return dh.ReadDir(op.Context(), op)
}

func (fs *Filesystem) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.dirHandles, op.Handle)
	return nil
}

////////////////////////////////////////////////////////////////////////
// File operations
////////////////////////////////////////////////////////////////////////

func (fs *Filesystem) OpenFile(op *fuseops.OpenFileOp) error {
	fullKey, kind, err := fs.sb.FullKey(op.Inode)
	if err != nil {
		return toErrno(err)
	}
	if kind != inode.KindFile {
		return fuse.EINVAL
	}

	stat, err := fs.sb.GetAttr(op.Context(), op.Inode)
	if err != nil {
		return toErrno(err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	id := fs.nextHandleID
	fs.nextHandleID++
	fs.fileHandles[id] = newFileHandle(fs.pf, op.Inode, fullKey, stat.Size)
	op.Handle = id

	// The engine does its own pipelined prefetching; let the kernel skip its
	// own page cache and read-ahead so the two don't double-buffer.
	op.UseDirectIO = true

	return nil
}

func (fs *Filesystem) ReadFile(op *fuseops.ReadFileOp) error {
	fs.mu.Lock()
	fh, ok := fs.fileHandles[op.Handle]
	fs.mu.Unlock()
	if !ok {
		return fuse.EBADF
	}

	data, err := fh.Read(op.Context(), op.Offset, len(op.Dst))
	if err != nil {
		return toErrno(err)
	}

	op.BytesRead = copy(op.Dst, data)
	return nil
}

func (fs *Filesystem) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) error {
	fs.mu.Lock()
	fh, ok := fs.fileHandles[op.Handle]
	delete(fs.fileHandles, op.Handle)
	fs.mu.Unlock()

	if ok {
		fh.Close()
	}
	return nil
}
