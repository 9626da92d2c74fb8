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

package inode

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DirEntry is one child name yielded while walking a directory: enough for
// the Facade to build a fuseutil.Dirent without reaching back into the
// object-store response.
type DirEntry struct {
	Name string
	Kind Kind
	// Size is the object size for files; always zero for directories.
	Size uint64
}

// ReaddirHandle is a forward-only cursor over one directory's children. It
// is not safe for concurrent use by more than one reader at a time, matching
// the kernel's guarantee that a single open directory handle is read
// serially.
//
// There is no way to seek a LIST continuation token backwards, so a
// ReaddirHandle can only be driven forward; the Facade is responsible for
// rejecting out-of-order offsets before they reach here.
type ReaddirHandle struct {
	sb       *Superblock
	dirIno   ID
	prefix   string
	pageSize int64

	mu sync.Mutex

	// GUARDED_BY(mu)
	buffered []DirEntry
	// GUARDED_BY(mu)
	token string
	// GUARDED_BY(mu)
	exhausted bool
	// pushedBack holds one entry returned to the cursor by Readd, to be
	// replayed before buffered is consulted again.
	// GUARDED_BY(mu)
	pushedBack *DirEntry
}

// OpenDir returns a cursor over the children of the directory ino.
func (sb *Superblock) OpenDir(ino ID) (*ReaddirHandle, error) {
	rec, err := sb.record(ino)
	if err != nil {
		return nil, err
	}
	if rec.Kind != KindDirectory {
		return nil, notADirectory(ino)
	}

	return &ReaddirHandle{
		sb:       sb,
		dirIno:   ino,
		prefix:   rec.FullKey,
		pageSize: sb.readdirPageSize,
	}, nil
}

// DirIno returns the inode number of the directory this cursor walks.
func (h *ReaddirHandle) DirIno() ID { return h.dirIno }

// Install assigns (or reuses) a stable inode number for entry, backed by
// the listing data already in hand — no extra round trip to the object
// store is needed since Next already observed the entry's kind and size.
func (h *ReaddirHandle) Install(entry DirEntry) *LookedUp {
	fullKey := h.prefix + entry.Name
	if entry.Kind == KindDirectory {
		fullKey += "/"
	}
	return h.sb.installOrUpdate(h.dirIno, entry.Name, entry.Kind, fullKey, Stat{
		Size:      entry.Size,
		Kind:      entry.Kind,
		FetchedAt: h.sb.clk.Now(),
	})
}

// Readd pushes entry back onto the front of the cursor, to be returned again
// by the next call to Next. Only one entry is held: a second Readd before
// Next replaces the first.
func (h *ReaddirHandle) Readd(entry DirEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pushedBack = &entry
}

// Next returns the next child in the directory, fetching another page from
// the object store if the current one is exhausted. It returns io.EOF once
// every child has been yielded.
func (h *ReaddirHandle) Next(ctx context.Context) (DirEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pushedBack != nil {
		e := *h.pushedBack
		h.pushedBack = nil
		return e, nil
	}

	for len(h.buffered) == 0 {
		if h.exhausted {
			return DirEntry{}, io.EOF
		}
		if err := h.fill(ctx); err != nil {
			return DirEntry{}, err
		}
	}

	e := h.buffered[0]
	h.buffered = h.buffered[1:]
	return e, nil
}

// fill issues one LIST page and appends its entries to the buffer.
//
// LOCKS_REQUIRED(h.mu)
func (h *ReaddirHandle) fill(ctx context.Context) error {
	page, err := h.sb.client.ListObjectsV2(ctx, h.sb.bucket, h.prefix, "/", h.token, h.pageSize)
	if err != nil {
		return clientError(fmt.Errorf("ListObjectsV2(%s): %w", h.prefix, err))
	}

	dirNames := make(map[string]struct{}, len(page.CommonPrefixes))

	for _, cp := range page.CommonPrefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(cp, h.prefix), "/")
		if name == "" {
			continue
		}
		dirNames[name] = struct{}{}
		h.buffered = append(h.buffered, DirEntry{Name: name, Kind: KindDirectory})
	}

	for _, o := range page.Contents {
		// The prefix's own placeholder key (if the backend writes one) is not
		// a child of itself.
		if o.Key == h.prefix {
			continue
		}
		name := strings.TrimPrefix(o.Key, h.prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		// A name that is simultaneously a file and a common prefix is listed
		// once, as the directory.
		if _, isDir := dirNames[name]; isDir {
			continue
		}
		h.buffered = append(h.buffered, DirEntry{Name: name, Kind: KindFile, Size: o.Size})
	}

	if page.NextContinuationToken == "" {
		h.exhausted = true
	} else {
		h.token = page.NextContinuationToken
	}

	return nil
}

