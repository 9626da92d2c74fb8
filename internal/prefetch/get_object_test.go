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

package prefetch_test

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/objfuse/objfuse/internal/objclient/objclienttest"
	"github.com/objfuse/objfuse/internal/prefetch"
)

type PrefetchGetObjectTest struct {
	suite.Suite
	ctx     context.Context
	fake    *objclienttest.Fake
	content []byte
}

func TestPrefetchGetObjectSuite(t *testing.T) {
	suite.Run(t, new(PrefetchGetObjectTest))
}

func (t *PrefetchGetObjectTest) SetupTest() {
	t.ctx = context.Background()
	t.fake = objclienttest.New()

	t.content = make([]byte, 5<<20) // 5 MiB
	rand.New(rand.NewSource(1)).Read(t.content)
	t.fake.Put("obj", t.content)
}

func (t *PrefetchGetObjectTest) smallWindowConfig() prefetch.Config {
	return prefetch.Config{
		InitialRequestSize:  64 << 10,
		MaxRequestSize:      1 << 20,
		MaxInFlight:         4,
		BufferHighWaterMark: 4 << 20,
	}
}

func (t *PrefetchGetObjectTest) TestSequentialReadMatchesObject() {
	p := prefetch.NewPrefetcher(t.fake, "bucket", t.smallWindowConfig())
	g := p.Get("obj", uint64(len(t.content)))

	var got []byte
	const step = 200 * 1024
	for uint64(len(got)) < uint64(len(t.content)) {
		b, err := g.Read(t.ctx, uint64(len(got)), step)
		require.NoError(t.T(), err)
		if len(b) == 0 {
			break
		}
		got = append(got, b...)
	}

	assert.True(t.T(), bytes.Equal(got, t.content))
}

func (t *PrefetchGetObjectTest) TestReadPastEndOfFileReturnsZeroBytes() {
	p := prefetch.NewPrefetcher(t.fake, "bucket", t.smallWindowConfig())
	g := p.Get("obj", uint64(len(t.content)))

	b, err := g.Read(t.ctx, uint64(len(t.content)), 10)
	require.NoError(t.T(), err)
	assert.Empty(t.T(), b)
}

func (t *PrefetchGetObjectTest) TestClampedReadNearEndOfFile() {
	p := prefetch.NewPrefetcher(t.fake, "bucket", t.smallWindowConfig())
	size := uint64(len(t.content))
	g := p.Get("obj", size)

	b, err := g.Read(t.ctx, size-10, 1000)
	require.NoError(t.T(), err)
	assert.Len(t.T(), b, 10)
	assert.Equal(t.T(), t.content[size-10:], b)
}

func (t *PrefetchGetObjectTest) TestSeekBackwardsResetsAndStillReadsCorrectly() {
	p := prefetch.NewPrefetcher(t.fake, "bucket", t.smallWindowConfig())
	g := p.Get("obj", uint64(len(t.content)))

	first, err := g.Read(t.ctx, 0, 1<<20)
	require.NoError(t.T(), err)

	second, err := g.Read(t.ctx, 0, 1<<20)
	require.NoError(t.T(), err)

	assert.Equal(t.T(), first, second)
	assert.Equal(t.T(), t.content[:1<<20], second)
}

func (t *PrefetchGetObjectTest) TestRandomSeekReadsCorrectBytes() {
	p := prefetch.NewPrefetcher(t.fake, "bucket", t.smallWindowConfig())
	g := p.Get("obj", uint64(len(t.content)))

	offset := uint64(3 << 20)
	b, err := g.Read(t.ctx, offset, 4096)
	require.NoError(t.T(), err)
	assert.Equal(t.T(), t.content[offset:offset+4096], b)
}

func (t *PrefetchGetObjectTest) TestCloseCancelsOutstandingPrefetch() {
	p := prefetch.NewPrefetcher(t.fake, "bucket", t.smallWindowConfig())
	g := p.Get("obj", uint64(len(t.content)))

	_, err := g.Read(t.ctx, 0, 4096)
	require.NoError(t.T(), err)

	g.Close()
}
