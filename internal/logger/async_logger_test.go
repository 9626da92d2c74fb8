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

package logger

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsyncLogger_WriteAndClose(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	a := NewAsyncLogger(syncWriter{&buf, &mu}, 16)

	fmt.Fprintln(a, "line one")
	fmt.Fprintln(a, "line two")
	fmt.Fprintln(a, "line three")

	assert.NoError(t, a.Close())

	mu.Lock()
	defer mu.Unlock()
	got := buf.String()
	assert.Contains(t, got, "line one")
	assert.Contains(t, got, "line two")
	assert.Contains(t, got, "line three")
}

func TestAsyncLogger_DropsWhenBufferFull(t *testing.T) {
	block := make(chan struct{})
	w := &blockingWriter{release: block, started: make(chan struct{})}
	a := NewAsyncLogger(w, 1)

	// The background goroutine picks up the first write and blocks on it,
	// so the buffered channel (capacity 1) fills on the second write and
	// the third is dropped rather than blocking the caller.
	fmt.Fprintln(a, "first")
	<-w.started
	fmt.Fprintln(a, "second")
	fmt.Fprintln(a, "third")

	close(block)
	assert.NoError(t, a.Close())
}

type syncWriter struct {
	buf *bytes.Buffer
	mu  *sync.Mutex
}

func (w syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

type blockingWriter struct {
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	w.once.Do(func() { close(w.started) })
	<-w.release
	return len(p), nil
}
