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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/objfuse/objfuse/internal/clock"
	"github.com/objfuse/objfuse/internal/inode"
	"github.com/objfuse/objfuse/internal/objclient/objclienttest"
)

type SuperblockTest struct {
	suite.Suite
	ctx   context.Context
	fake  *objclienttest.Fake
	clk   *clock.FakeClock
	sb    *inode.Superblock
}

func TestSuperblockSuite(t *testing.T) {
	suite.Run(t, new(SuperblockTest))
}

func (t *SuperblockTest) SetupTest() {
	t.ctx = context.Background()
	t.fake = objclienttest.New()
	t.clk = clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	t.sb = inode.NewSuperblock("bucket", "", t.fake, t.clk, 0, 0)
}

func (t *SuperblockTest) TestLookUpFile() {
	t.fake.Put("hello.txt", []byte("hello world"))

	got, err := t.sb.LookUpChild(t.ctx, inode.RootID, "hello.txt")
	require.NoError(t.T(), err)
	assert.Equal(t.T(), inode.KindFile, got.Stat.Kind)
	assert.EqualValues(t.T(), 11, got.Stat.Size)
	assert.Equal(t.T(), "hello.txt", got.FullKey)
}

func (t *SuperblockTest) TestLookUpDirectory() {
	t.fake.Put("dir/child.txt", []byte("x"))

	got, err := t.sb.LookUpChild(t.ctx, inode.RootID, "dir")
	require.NoError(t.T(), err)
	assert.Equal(t.T(), inode.KindDirectory, got.Stat.Kind)
	assert.Equal(t.T(), "dir/", got.FullKey)
}

func (t *SuperblockTest) TestLookUpMissing() {
	_, err := t.sb.LookUpChild(t.ctx, inode.RootID, "nope")
	require.Error(t.T(), err)

	var ierr *inode.Error
	require.True(t.T(), errors.As(err, &ierr))
	assert.Equal(t.T(), inode.ErrFileDoesNotExist, ierr.Kind)
}

func (t *SuperblockTest) TestLookUpInvalidName() {
	_, err := t.sb.LookUpChild(t.ctx, inode.RootID, "a/b")
	require.Error(t.T(), err)

	var ierr *inode.Error
	require.True(t.T(), errors.As(err, &ierr))
	assert.Equal(t.T(), inode.ErrInvalidFileName, ierr.Kind)
}

func (t *SuperblockTest) TestRepeatedLookUpReusesInode() {
	t.fake.Put("hello.txt", []byte("hello world"))

	first, err := t.sb.LookUpChild(t.ctx, inode.RootID, "hello.txt")
	require.NoError(t.T(), err)

	second, err := t.sb.LookUpChild(t.ctx, inode.RootID, "hello.txt")
	require.NoError(t.T(), err)

	assert.Equal(t.T(), first.ID, second.ID)
}

func (t *SuperblockTest) TestGetAttrWithoutTTLNeverRevalidates() {
	t.fake.Put("hello.txt", []byte("hello world"))
	looked, err := t.sb.LookUpChild(t.ctx, inode.RootID, "hello.txt")
	require.NoError(t.T(), err)

	t.fake.Put("hello.txt", []byte("hello world, now longer"))

	stat, err := t.sb.GetAttr(t.ctx, looked.ID)
	require.NoError(t.T(), err)
	assert.EqualValues(t.T(), 11, stat.Size)

	_, _, getCalls := t.fake.Calls()
	_ = getCalls
}

func (t *SuperblockTest) TestGetAttrWithTTLRevalidatesAfterExpiry() {
	t.sb = inode.NewSuperblock("bucket", "", t.fake, t.clk, time.Minute, 0)
	t.fake.Put("hello.txt", []byte("hello world"))

	looked, err := t.sb.LookUpChild(t.ctx, inode.RootID, "hello.txt")
	require.NoError(t.T(), err)

	t.fake.Put("hello.txt", []byte("hello world, now much longer"))

	stat, err := t.sb.GetAttr(t.ctx, looked.ID)
	require.NoError(t.T(), err)
	assert.EqualValues(t.T(), 11, stat.Size, "should still be cached before TTL expiry")

	t.clk.Advance(2 * time.Minute)

	stat, err = t.sb.GetAttr(t.ctx, looked.ID)
	require.NoError(t.T(), err)
	assert.EqualValues(t.T(), 28, stat.Size, "should revalidate after TTL expiry")
}

func (t *SuperblockTest) TestGetAttrUnknownInode() {
	_, err := t.sb.GetAttr(t.ctx, inode.ID(12345))
	require.Error(t.T(), err)

	var ierr *inode.Error
	require.True(t.T(), errors.As(err, &ierr))
	assert.Equal(t.T(), inode.ErrInodeDoesNotExist, ierr.Kind)
}

func (t *SuperblockTest) TestLookUpChildOfFileIsNotADirectory() {
	t.fake.Put("hello.txt", []byte("hello world"))
	looked, err := t.sb.LookUpChild(t.ctx, inode.RootID, "hello.txt")
	require.NoError(t.T(), err)

	_, err = t.sb.LookUpChild(t.ctx, looked.ID, "child")
	require.Error(t.T(), err)

	var ierr *inode.Error
	require.True(t.T(), errors.As(err, &ierr))
	assert.Equal(t.T(), inode.ErrNotADirectory, ierr.Kind)
}
