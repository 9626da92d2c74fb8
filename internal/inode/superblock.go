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
	"strings"
	"time"

	"github.com/jacobsa/syncutil"

	"github.com/objfuse/objfuse/internal/clock"
	"github.com/objfuse/objfuse/internal/objclient"
)

// Clock is the duck-type consumed for stamping freshness markers; satisfied
// by both clock.RealClock and clock.FakeClock.
type Clock interface {
	Now() time.Time
}

var _ Clock = clock.RealClock{}

// Superblock is the authoritative inode table for one mount: it turns
// (parent inode, child name) edges into stable inode numbers backed by
// object-store keys, and answers attribute queries against the client.
//
// A Superblock is safe for concurrent use. mu guards both maps and the next
// id counter; it is held only for the bookkeeping around a lookup, never for
// the duration of the network call itself.
type Superblock struct {
	client  objclient.Client
	bucket  string
	// rootPrefix is prepended to every key; it is empty or ends in "/".
	rootPrefix string
	clk        Clock
	attrTTL    time.Duration
	// readdirPageSize bounds how many keys a single LIST call returns while
	// walking a directory; NewSuperblock replaces a value <= 0 with 1000.
	readdirPageSize int64

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	nextID ID

	// GUARDED_BY(mu)
	byIno map[ID]*Record

	// GUARDED_BY(mu)
	byParentName map[string]*Record
}

func NewSuperblock(bucket, rootPrefix string, client objclient.Client, clk Clock, attrTTL time.Duration, readdirPageSize int64) *Superblock {
	if rootPrefix != "" && !strings.HasSuffix(rootPrefix, "/") {
		rootPrefix += "/"
	}
	if readdirPageSize <= 0 {
		readdirPageSize = 1000
	}

	sb := &Superblock{
		client:          client,
		bucket:          bucket,
		rootPrefix:      rootPrefix,
		clk:             clk,
		attrTTL:         attrTTL,
		readdirPageSize: readdirPageSize,
		nextID:          RootID + 1,
		byIno:           make(map[ID]*Record),
		byParentName:    make(map[string]*Record),
	}
	sb.mu = syncutil.NewInvariantMutex(sb.checkInvariants)

	root := &Record{
		ID:      RootID,
		Parent:  RootID,
		Name:    "",
		Kind:    KindDirectory,
		FullKey: rootPrefix,
		Stat:    Stat{Kind: KindDirectory, FetchedAt: clk.Now()},
	}
	sb.byIno[RootID] = root

	return sb
}

func (sb *Superblock) checkInvariants() {
	if len(sb.byIno) != len(sb.byParentName)+1 {
		panic(fmt.Sprintf(
			"inode table out of sync: %d inodes, %d edges",
			len(sb.byIno), len(sb.byParentName)))
	}
}

func parentNameKey(parent ID, name string) string {
	return fmt.Sprintf("%d/%s", parent, name)
}

// LookUpChild resolves name within the directory ino parent, allocating a
// new inode number on first discovery and reusing it on every subsequent
// lookup for the same edge. It returns *Error wrapping ErrFileDoesNotExist
// when no file or directory exists by that name.
func (sb *Superblock) LookUpChild(ctx context.Context, parent ID, name string) (*LookedUp, error) {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return nil, invalidFileName(name)
	}

	parentPrefix, err := sb.prefixForDir(parent)
	if err != nil {
		return nil, err
	}

	fileKey := parentPrefix + name
	dirPrefix := parentPrefix + name + "/"

	var fileMeta objclient.ObjectMetadata
	var fileExists bool
	var dirExists bool

	b := syncutil.NewBundle(ctx)

	b.Add(func(ctx context.Context) (err error) {
		meta, err := sb.client.HeadObject(ctx, sb.bucket, fileKey)
		if err == objclient.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		fileMeta = meta
		fileExists = true
		return nil
	})

	b.Add(func(ctx context.Context) (err error) {
		page, err := sb.client.ListObjectsV2(ctx, sb.bucket, dirPrefix, "/", "", 1)
		if err != nil {
			return err
		}
		dirExists = len(page.CommonPrefixes) > 0 || len(page.Contents) > 0
		return nil
	})

	if err := b.Join(); err != nil {
		return nil, clientError(err)
	}

	switch {
	case dirExists:
		return sb.installOrUpdate(parent, name, KindDirectory, dirPrefix, Stat{
			Kind:      KindDirectory,
			FetchedAt: sb.clk.Now(),
		}), nil

	case fileExists:
		return sb.installOrUpdate(parent, name, KindFile, fileKey, Stat{
			Size:      fileMeta.Size,
			Kind:      KindFile,
			FetchedAt: sb.clk.Now(),
		}), nil

	default:
		return nil, fileDoesNotExist(name)
	}
}

// installOrUpdate assigns (or reuses) the inode number for a (parent, name)
// edge and installs the freshly observed stat.
func (sb *Superblock) installOrUpdate(parent ID, name string, kind Kind, fullKey string, stat Stat) *LookedUp {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	key := parentNameKey(parent, name)
	rec, ok := sb.byParentName[key]
	if !ok {
		id := sb.nextID
		sb.nextID++
		rec = &Record{ID: id, Parent: parent, Name: name}
		sb.byParentName[key] = rec
		sb.byIno[id] = rec
	}

	rec.Kind = kind
	rec.FullKey = fullKey
	rec.Stat = stat

	return &LookedUp{ID: rec.ID, Stat: rec.Stat, FullKey: rec.FullKey}
}

// GetAttr returns the cached Stat for ino, revalidating against the object
// store first if attrTTL is non-zero and the cached marker has expired.
func (sb *Superblock) GetAttr(ctx context.Context, ino ID) (Stat, error) {
	rec, err := sb.record(ino)
	if err != nil {
		return Stat{}, err
	}

	if sb.attrTTL <= 0 {
		return rec.Stat, nil
	}

	sb.mu.Lock()
	stale := sb.clk.Now().Sub(rec.Stat.FetchedAt) >= sb.attrTTL
	sb.mu.Unlock()
	if !stale {
		return rec.Stat, nil
	}

	fresh, err := sb.revalidate(ctx, rec)
	if err != nil {
		return Stat{}, err
	}
	return fresh, nil
}

func (sb *Superblock) revalidate(ctx context.Context, rec *Record) (Stat, error) {
	var stat Stat

	switch rec.Kind {
	case KindDirectory:
		// A limit-1 LIST refreshes the marker; directories carry no size. An
		// empty result is not treated as an error.
		_, err := sb.client.ListObjectsV2(ctx, sb.bucket, rec.FullKey, "/", "", 1)
		if err != nil {
			return Stat{}, clientError(err)
		}
		stat = Stat{Kind: KindDirectory, FetchedAt: sb.clk.Now()}

	default:
		meta, err := sb.client.HeadObject(ctx, sb.bucket, rec.FullKey)
		if err == objclient.ErrNotFound {
			return Stat{}, inodeDoesNotExist(rec.ID)
		}
		if err != nil {
			return Stat{}, clientError(err)
		}
		stat = Stat{Size: meta.Size, Kind: KindFile, FetchedAt: sb.clk.Now()}
	}

	sb.mu.Lock()
	rec.Stat = stat
	sb.mu.Unlock()

	return stat, nil
}

// ParentOf returns the inode number of ino's parent directory. The root is
// its own parent, matching the kernel's expectation for ".." at the mount
// point.
func (sb *Superblock) ParentOf(ino ID) (ID, error) {
	rec, err := sb.record(ino)
	if err != nil {
		return 0, err
	}
	return rec.Parent, nil
}

// FullKey returns the object-store key (file) or prefix (directory, ending
// in "/") that ino denotes.
func (sb *Superblock) FullKey(ino ID) (string, Kind, error) {
	rec, err := sb.record(ino)
	if err != nil {
		return "", 0, err
	}
	return rec.FullKey, rec.Kind, nil
}

func (sb *Superblock) record(ino ID) (*Record, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	rec, ok := sb.byIno[ino]
	if !ok {
		return nil, inodeDoesNotExist(ino)
	}
	return rec, nil
}

// prefixForDir validates that parent denotes a directory and returns its
// full key prefix.
func (sb *Superblock) prefixForDir(parent ID) (string, error) {
	rec, err := sb.record(parent)
	if err != nil {
		return "", err
	}
	if rec.Kind != KindDirectory {
		return "", notADirectory(parent)
	}
	return rec.FullKey, nil
}

// ForgetInode drops the kernel's reference count for ino. There is no
// eviction in a read-only, single-generation view: every discovered inode
// lives for the life of the mount, so this is a no-op kept only to satisfy
// the FUSE Forget contract.
func (sb *Superblock) ForgetInode(ino ID) {}
