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

// Package objclienttest provides an in-memory fake of objclient.Client for
// exercising the Superblock, Prefetcher, and Facade without a network.
package objclienttest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/objfuse/objfuse/internal/objclient"
)

// Fake is a single-bucket in-memory object store.
type Fake struct {
	mu      sync.Mutex
	objects map[string][]byte

	headCalls atomic.Int64
	listCalls atomic.Int64
	getCalls  atomic.Int64
}

func New() *Fake {
	return &Fake{objects: make(map[string][]byte)}
}

// Put installs (or overwrites) an object's contents.
func (f *Fake) Put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
}

func (f *Fake) Calls() (head, list, get int64) {
	return f.headCalls.Load(), f.listCalls.Load(), f.getCalls.Load()
}

func (f *Fake) HeadObject(_ context.Context, _, key string) (objclient.ObjectMetadata, error) {
	f.headCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[key]
	if !ok {
		return objclient.ObjectMetadata{}, objclient.ErrNotFound
	}
	return objclient.ObjectMetadata{Size: uint64(len(data))}, nil
}

func (f *Fake) ListObjectsV2(_ context.Context, _, prefix, delimiter, continuationToken string, maxKeys int64) (objclient.ListPage, error) {
	f.listCalls.Add(1)
	f.mu.Lock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	f.mu.Unlock()
	sort.Strings(keys)

	// Collapse to common prefixes / contents the way S3 does with a "/"
	// delimiter, paginating at maxKeys distinct entries (prefixes count once).
	type entry struct {
		isPrefix bool
		name     string
		size     uint64
	}
	var all []entry
	seenPrefix := make(map[string]bool)
	for _, k := range keys {
		rest := k[len(prefix):]
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+len(delimiter)]
				if !seenPrefix[cp] {
					seenPrefix[cp] = true
					all = append(all, entry{isPrefix: true, name: cp})
				}
				continue
			}
		}
		f.mu.Lock()
		size := uint64(len(f.objects[k]))
		f.mu.Unlock()
		all = append(all, entry{name: k, size: size})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].name < all[j].name })

	start := 0
	if continuationToken != "" {
		for i, e := range all {
			if e.name == continuationToken {
				start = i + 1
				break
			}
		}
	}

	if maxKeys <= 0 {
		maxKeys = int64(len(all))
	}

	page := objclient.ListPage{}
	end := start
	for end < len(all) && int64(end-start) < maxKeys {
		e := all[end]
		if e.isPrefix {
			page.CommonPrefixes = append(page.CommonPrefixes, e.name)
		} else {
			page.Contents = append(page.Contents, objclient.ListedObject{Key: e.name, Size: e.size})
		}
		end++
	}
	if end < len(all) {
		page.NextContinuationToken = all[end-1].name
	}

	return page, nil
}

func (f *Fake) GetObject(_ context.Context, _, key string, rng *objclient.ByteRange) (objclient.StreamingBody, error) {
	f.getCalls.Add(1)
	f.mu.Lock()
	data, ok := f.objects[key]
	f.mu.Unlock()
	if !ok {
		return nil, objclient.ErrNotFound
	}

	if rng == nil {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	start, end := rng.Start, rng.End
	if start > uint64(len(data)) {
		start = uint64(len(data))
	}
	end++ // ByteRange.End is inclusive
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	if start > end {
		return nil, fmt.Errorf("objclienttest: invalid range %d-%d for %d-byte object", rng.Start, rng.End, len(data))
	}

	return io.NopCloser(bytes.NewReader(data[start:end])), nil
}
