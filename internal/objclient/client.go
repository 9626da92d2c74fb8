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

// Package objclient defines the narrow surface the rest of the tree needs
// from an object store: head, list, and ranged get. Real traffic goes
// through S3Client (service/s3); tests use objclienttest.Fake.
package objclient

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by HeadObject when the key does not exist. It is
// not a ClientError: the Superblock treats it as "absent", not a failure.
var ErrNotFound = errors.New("objclient: object not found")

// ObjectMetadata is the result of a HeadObject call.
type ObjectMetadata struct {
	Size uint64
}

// ListedObject is one content entry returned by ListObjectsV2.
type ListedObject struct {
	Key  string
	Size uint64
}

// ListPage is one page of a ListObjectsV2 response.
type ListPage struct {
	// CommonPrefixes holds the "directories" implied by the delimiter, each
	// already including the trailing delimiter.
	CommonPrefixes []string
	Contents       []ListedObject
	// NextContinuationToken is empty when the listing is exhausted.
	NextContinuationToken string
}

// StreamingBody is the body of a GetObject response. It must be closed to
// release the underlying connection; closing early cancels the transfer.
type StreamingBody interface {
	io.ReadCloser
}

// ByteRange is an inclusive byte range, as sent in an HTTP Range header.
type ByteRange struct {
	Start uint64
	End   uint64 // inclusive
}

// Client is the object-store surface the Superblock and Prefetcher consume.
// Implementations must be safe for concurrent use.
type Client interface {
	HeadObject(ctx context.Context, bucket, key string) (ObjectMetadata, error)

	ListObjectsV2(ctx context.Context, bucket, prefix, delimiter, continuationToken string, maxKeys int64) (ListPage, error)

	GetObject(ctx context.Context, bucket, key string, rng *ByteRange) (StreamingBody, error)
}
