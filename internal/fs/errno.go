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
	"errors"

	"github.com/jacobsa/fuse"

	"github.com/objfuse/objfuse/internal/inode"
)

// toErrno translates the Superblock's error taxonomy to the errno the
// kernel expects back. Nothing here is retried; the object client is free
// to retry internally before ever surfacing an error up to this layer.
func toErrno(err error) error {
	if err == nil {
		return nil
	}

	var ierr *inode.Error
	if errors.As(err, &ierr) {
		switch ierr.Kind {
		case inode.ErrFileDoesNotExist, inode.ErrInodeDoesNotExist:
			return fuse.ENOENT
		case inode.ErrInvalidFileName:
			return fuse.EINVAL
		case inode.ErrNotADirectory:
			return fuse.ENOTDIR
		default:
			return fuse.EIO
		}
	}

	return fuse.EIO
}
