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

package fs

import (
	"os"
	"time"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/objfuse/objfuse/internal/inode"
)

// attrFromStat builds the kernel-facing attribute set for stat. There are
// no POSIX timestamps to report beyond the epoch: the object store exposes
// no reliable mtime/ctime distinct from last-modified, which this design
// does not track.
func (fs *Filesystem) attrFromStat(stat inode.Stat) fuseops.InodeAttributes {
	mode := fs.cfg.FileMode
	nlink := uint32(1)
	if stat.Kind == inode.KindDirectory {
		mode = os.ModeDir | fs.cfg.DirMode
		nlink = 2
	}

	epoch := time.Unix(0, 0)
	return fuseops.InodeAttributes{
		Size:   stat.Size,
		Nlink:  nlink,
		Mode:   mode,
		Atime:  epoch,
		Mtime:  epoch,
		Ctime:  epoch,
		Crtime: epoch,
		Uid:    fs.cfg.Uid,
		Gid:    fs.cfg.Gid,
	}
}
