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
	"sync"

	"github.com/objfuse/objfuse/internal/inode"
	"github.com/objfuse/objfuse/internal/prefetch"
)

// FileHandle is the state behind one open-file handle ID: the inode, its
// full object key, the size observed at open time, and a lazily created
// PrefetchGetObject. Per spec, the object's size is fixed for the life of
// the handle even if the underlying object is replaced mid-open.
type FileHandle struct {
	pf  *prefetch.Prefetcher
	ino inode.ID
	key string
	size uint64

	mu  sync.Mutex
	pgo *prefetch.PrefetchGetObject
}

func newFileHandle(pf *prefetch.Prefetcher, ino inode.ID, key string, size uint64) *FileHandle {
	return &FileHandle{pf: pf, ino: ino, key: key, size: size}
}

// Read serves one kernel read() call, lazily starting the prefetch engine
// on the first call. The mutex is held across the (possibly blocking)
// streaming read, which is intentional: distinct open files read in
// parallel without contention since each owns its own FileHandle.
func (h *FileHandle) Read(ctx context.Context, offset int64, size int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pgo == nil {
		h.pgo = h.pf.Get(h.key, h.size)
	}

	return h.pgo.Read(ctx, uint64(offset), uint64(size))
}

// Close cancels any in-flight prefetch for this handle.
func (h *FileHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pgo != nil {
		h.pgo.Close()
	}
}
