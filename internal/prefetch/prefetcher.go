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

// Package prefetch turns sequential kernel read() calls into pipelined,
// backpressured range-GETs against an object store. A Prefetcher is a
// cheap, shared handle; each open file owns one PrefetchGetObject at a
// time, manufactured by Prefetcher.Get.
package prefetch

import (
	"github.com/objfuse/objfuse/internal/objclient"
)

// Config tunes the prefetch window. Defaults are chosen to saturate a fast
// object store with a modest number of parallel range GETs.
type Config struct {
	// InitialRequestSize is the size of the first range GET issued against
	// a freshly opened or reset stream.
	InitialRequestSize uint64
	// MaxRequestSize bounds the doubling growth of successive range sizes.
	MaxRequestSize uint64
	// MaxInFlight bounds the number of concurrent range GETs.
	MaxInFlight int64
	// BufferHighWaterMark bounds, in bytes, the sum of in-flight plus
	// completed-but-unconsumed data. Once reached, new range GETs are not
	// issued until read() drains buffered bytes.
	BufferHighWaterMark int64
}

// DefaultConfig matches the values named in the design as tuned to
// saturate several GB/s aggregate throughput with a handful of parallel
// range GETs.
func DefaultConfig() Config {
	return Config{
		InitialRequestSize:  1 << 20,   // 1 MiB
		MaxRequestSize:      64 << 20,  // 64 MiB
		MaxInFlight:         8,
		BufferHighWaterMark: 256 << 20, // 256 MiB
	}
}

// Prefetcher is a shared, cheap-to-copy handle onto an object-store client.
// It does no buffering itself; all per-read state lives in the
// PrefetchGetObject instances it manufactures.
type Prefetcher struct {
	client objclient.Client
	bucket string
	cfg    Config
}

func NewPrefetcher(client objclient.Client, bucket string, cfg Config) *Prefetcher {
	return &Prefetcher{client: client, bucket: bucket, cfg: cfg}
}

// Get manufactures a PrefetchGetObject for one open file. objectSize is the
// size observed at open time and does not change for the life of the
// returned handle.
func (p *Prefetcher) Get(key string, objectSize uint64) *PrefetchGetObject {
	return newPrefetchGetObject(p.client, p.bucket, key, objectSize, p.cfg)
}
