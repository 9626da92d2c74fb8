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
	"fmt"
	"io"
	"os"
)

// AsyncLogger decouples slow file writes (rotation, flushing to a network
// filesystem) from the goroutine producing log lines: Write enqueues a copy
// of p onto a bounded channel and returns immediately, while a single
// background goroutine drains the channel into the wrapped writer in order.
// A full buffer drops the message rather than block the caller; dropped
// messages are reported to stderr.
type AsyncLogger struct {
	w       io.Writer
	entries chan []byte
	done    chan struct{}
}

func NewAsyncLogger(w io.Writer, bufferSize int) *AsyncLogger {
	a := &AsyncLogger{
		w:       w,
		entries: make(chan []byte, bufferSize),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncLogger) run() {
	defer close(a.done)
	for p := range a.entries {
		if _, err := a.w.Write(p); err != nil {
			fmt.Fprintf(os.Stderr, "async logger: write failed: %v\n", err)
		}
	}
}

// Write never blocks: a full buffer drops the message.
func (a *AsyncLogger) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)

	select {
	case a.entries <- cp:
	default:
		fmt.Fprintf(os.Stderr, "async logger: buffer full, dropping message\n")
	}

	return len(p), nil
}

// Close drains the buffer and waits for it to be flushed, then closes the
// wrapped writer if it is an io.Closer.
func (a *AsyncLogger) Close() error {
	close(a.entries)
	<-a.done

	if c, ok := a.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
