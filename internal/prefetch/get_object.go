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

package prefetch

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/objfuse/objfuse/internal/metrics"
	"github.com/objfuse/objfuse/internal/objclient"
)

// chunk is one completed range GET, not yet fully consumed by read().
type chunk struct {
	start    uint64
	data     []byte
	consumed int
}

func (c *chunk) remaining() []byte { return c.data[c.consumed:] }

// PrefetchGetObject is the state of one streaming read against one object:
// the expected next read offset, the prefetch-window policy, a bounded
// in-flight queue, and a buffer of completed-but-unconsumed ranges.
//
// A PrefetchGetObject is safe for concurrent use, but the Facade serializes
// calls to Read per FileHandle; there is no benefit to calling it from
// multiple goroutines at once.
type PrefetchGetObject struct {
	client objclient.Client
	bucket string
	key    string
	size   uint64
	cfg    Config

	ctx    context.Context
	cancel context.CancelFunc

	inFlightSem *semaphore.Weighted
	bufferSem   *semaphore.Weighted

	mu                 sync.Mutex
	cond               *sync.Cond
	expectedNextOffset uint64
	nextRequestOffset  uint64
	nextRequestSize    uint64
	completed          map[uint64]*chunk
	pumpDone           chan struct{}
	fetchErr           error
	generation         int // bumped on every reset, to let stale pump goroutines notice
}

func newPrefetchGetObject(client objclient.Client, bucket, key string, size uint64, cfg Config) *PrefetchGetObject {
	ctx, cancel := context.WithCancel(context.Background())

	g := &PrefetchGetObject{
		client:      client,
		bucket:      bucket,
		key:         key,
		size:        size,
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
		inFlightSem: semaphore.NewWeighted(cfg.MaxInFlight),
		bufferSem:   semaphore.NewWeighted(cfg.BufferHighWaterMark),
		completed:   make(map[uint64]*chunk),
	}
	g.cond = sync.NewCond(&g.mu)
	g.startPump(0, cfg.InitialRequestSize)

	return g
}

// startPump begins issuing range GETs from offset, using the given initial
// request size. LOCKS_EXCLUDED(g.mu) — call only at construction, before
// concurrent Read calls can observe g.generation; resetLocked restarts the
// pump itself since it already holds g.mu.
func (g *PrefetchGetObject) startPump(offset, requestSize uint64) {
	g.mu.Lock()
	g.nextRequestOffset = offset
	g.nextRequestSize = requestSize
	g.pumpDone = make(chan struct{})
	gen := g.generation
	done := g.pumpDone
	g.mu.Unlock()

	go g.pump(gen, done)
}

// pump issues range GETs until the object is exhausted, the context is
// canceled, or a newer generation (from reset) supersedes this one.
func (g *PrefetchGetObject) pump(gen int, done chan struct{}) {
	defer close(done)

	for {
		g.mu.Lock()
		if g.generation != gen {
			g.mu.Unlock()
			return
		}
		if g.nextRequestOffset >= g.size {
			g.mu.Unlock()
			return
		}

		start := g.nextRequestOffset
		reqSize := g.nextRequestSize
		if start+reqSize > g.size {
			reqSize = g.size - start
		}
		end := start + reqSize - 1

		g.nextRequestOffset += reqSize
		g.nextRequestSize *= 2
		if g.nextRequestSize > g.cfg.MaxRequestSize {
			g.nextRequestSize = g.cfg.MaxRequestSize
		}
		g.mu.Unlock()

		if err := g.bufferSem.Acquire(g.ctx, int64(reqSize)); err != nil {
			return
		}
		metrics.PrefetchWindowBytes.Add(float64(reqSize))
		if err := g.inFlightSem.Acquire(g.ctx, 1); err != nil {
			g.releaseBuffer(int64(reqSize))
			return
		}

		go g.fetchRange(gen, start, end, reqSize)
	}
}

// fetchRange issues one range GET and, on success, files the result under
// its start offset for Read to consume in order.
func (g *PrefetchGetObject) fetchRange(gen int, start, end, size uint64) {
	defer g.inFlightSem.Release(1)

	body, err := g.client.GetObject(g.ctx, g.bucket, g.key, &objclient.ByteRange{Start: start, End: end})
	if err != nil {
		g.releaseBuffer(int64(size))
		g.recordErr(gen, fmt.Errorf("GetObject(%s) [%d-%d]: %w", g.key, start, end, err))
		return
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		g.releaseBuffer(int64(size))
		g.recordErr(gen, fmt.Errorf("reading range [%d-%d] of %s: %w", start, end, g.key, err))
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.generation != gen {
		// A reset happened while this range was in flight; the bytes are
		// for a stream nobody will read from again.
		g.releaseBuffer(int64(size))
		return
	}
	g.completed[start] = &chunk{start: start, data: data}
	g.cond.Broadcast()
}

// releaseBuffer releases n bytes of buffer reservation and keeps the
// exported prefetch-window gauge in sync with it.
func (g *PrefetchGetObject) releaseBuffer(n int64) {
	g.bufferSem.Release(n)
	metrics.PrefetchWindowBytes.Add(-float64(n))
}

func (g *PrefetchGetObject) recordErr(gen int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.generation == gen && g.fetchErr == nil {
		g.fetchErr = err
		g.cond.Broadcast()
	}
}

// Read serves size bytes starting at offset. Sequential reads are served
// from the prefetch buffer; any other offset resets the stream. The
// returned slice is a fresh copy owned by the caller.
func (g *PrefetchGetObject) Read(ctx context.Context, offset uint64, size uint64) ([]byte, error) {
	if err := g.ctx.Err(); err != nil {
		return nil, err
	}
	if offset > g.size {
		offset = g.size
	}
	if offset+size > g.size {
		size = g.size - offset
	}
	if size == 0 {
		return nil, nil
	}

	g.mu.Lock()
	if offset != g.expectedNextOffset {
		g.resetLocked(offset)
	}
	g.mu.Unlock()

	out := make([]byte, 0, size)
	for uint64(len(out)) < size {
		g.mu.Lock()
		for {
			if g.fetchErr != nil {
				err := g.fetchErr
				g.mu.Unlock()
				return nil, err
			}
			_, ok := g.completed[g.expectedNextOffset]
			if ok {
				break
			}
			if ctx.Err() != nil {
				g.mu.Unlock()
				return nil, ctx.Err()
			}
			g.cond.Wait()
		}

		c := g.completed[g.expectedNextOffset]
		need := size - uint64(len(out))
		avail := c.remaining()
		take := avail
		if uint64(len(take)) > need {
			take = take[:need]
		}
		out = append(out, take...)
		c.consumed += len(take)
		g.expectedNextOffset += uint64(len(take))

		delete(g.completed, c.start)
		if len(c.remaining()) == 0 {
			g.releaseBuffer(int64(len(c.data)))
		} else {
			// The chunk is only partly consumed; re-key it at the offset the
			// next Read will actually look up, so a non-aligned read doesn't
			// strand it under its original (now stale) start offset.
			c.start = g.expectedNextOffset
			g.completed[c.start] = c
		}
		g.mu.Unlock()
	}

	metrics.BytesReadTotal.Add(float64(len(out)))
	return out, nil
}

// resetLocked discards in-flight and buffered state and starts a fresh,
// minimum-sized pump at offset. LOCKS_REQUIRED(g.mu)
func (g *PrefetchGetObject) resetLocked(offset uint64) {
	g.generation++
	for start, c := range g.completed {
		g.releaseBuffer(int64(len(c.data)))
		delete(g.completed, start)
	}
	g.fetchErr = nil
	g.expectedNextOffset = offset

	gen := g.generation
	g.nextRequestOffset = offset
	g.nextRequestSize = g.cfg.InitialRequestSize
	g.pumpDone = make(chan struct{})
	done := g.pumpDone

	go g.pump(gen, done)
}

// Close cancels all in-flight range GETs. It is safe to call more than
// once; subsequent Read calls will fail once the context is done.
func (g *PrefetchGetObject) Close() {
	g.cancel()
}
