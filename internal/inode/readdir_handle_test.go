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

package inode_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/objfuse/objfuse/internal/clock"
	"github.com/objfuse/objfuse/internal/inode"
	"github.com/objfuse/objfuse/internal/objclient/objclienttest"
)

type ReaddirHandleTest struct {
	suite.Suite
	ctx  context.Context
	fake *objclienttest.Fake
	sb   *inode.Superblock
}

func TestReaddirHandleSuite(t *testing.T) {
	suite.Run(t, new(ReaddirHandleTest))
}

func (t *ReaddirHandleTest) SetupTest() {
	t.ctx = context.Background()
	t.fake = objclienttest.New()
	clk := clock.NewFakeClock(time.Unix(0, 0))
	t.sb = inode.NewSuperblock("bucket", "", t.fake, clk, 0, 0)
}

func (t *ReaddirHandleTest) names(h *inode.ReaddirHandle) []string {
	var got []string
	for {
		e, err := h.Next(t.ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t.T(), err)
		got = append(got, e.Name)
	}
	return got
}

func (t *ReaddirHandleTest) TestListsFilesAndDirectories() {
	t.fake.Put("a.txt", []byte("1"))
	t.fake.Put("b.txt", []byte("22"))
	t.fake.Put("sub/c.txt", []byte("333"))

	h, err := t.sb.OpenDir(inode.RootID)
	require.NoError(t.T(), err)

	assert.ElementsMatch(t.T(), []string{"a.txt", "b.txt", "sub"}, t.names(h))
}

func (t *ReaddirHandleTest) TestEmptyDirectory() {
	h, err := t.sb.OpenDir(inode.RootID)
	require.NoError(t.T(), err)

	_, err = h.Next(t.ctx)
	assert.Equal(t.T(), io.EOF, err)
}

func (t *ReaddirHandleTest) TestReaddPushesEntryBack() {
	t.fake.Put("a.txt", []byte("1"))
	t.fake.Put("b.txt", []byte("22"))

	h, err := t.sb.OpenDir(inode.RootID)
	require.NoError(t.T(), err)

	first, err := h.Next(t.ctx)
	require.NoError(t.T(), err)

	h.Readd(first)

	replayed, err := h.Next(t.ctx)
	require.NoError(t.T(), err)
	assert.Equal(t.T(), first, replayed)
}

func (t *ReaddirHandleTest) TestOpenDirOnFileFails() {
	t.fake.Put("a.txt", []byte("1"))
	looked, err := t.sb.LookUpChild(t.ctx, inode.RootID, "a.txt")
	require.NoError(t.T(), err)

	_, err = t.sb.OpenDir(looked.ID)
	assert.Error(t.T(), err)
}

func (t *ReaddirHandleTest) TestNestedDirectoryListing() {
	h, err := t.sb.OpenDir(inode.RootID)
	require.NoError(t.T(), err)
	t.fake.Put("sub/d.txt", []byte("x"))
	_ = h

	subLooked, err := t.sb.LookUpChild(t.ctx, inode.RootID, "sub")
	require.NoError(t.T(), err)

	subHandle, err := t.sb.OpenDir(subLooked.ID)
	require.NoError(t.T(), err)
	assert.Equal(t.T(), []string{"d.txt"}, t.names(subHandle))
}
