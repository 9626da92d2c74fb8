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

package objclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/objfuse/objfuse/internal/metrics"
)

// S3Config configures the real S3-backed Client.
type S3Config struct {
	Region   string
	Endpoint string // empty for the default AWS endpoint
	Profile  string // shared-credentials profile; empty uses the default chain
	// ForcePathStyle is required by most S3-compatible (non-AWS) endpoints.
	ForcePathStyle bool
}

// S3Client implements Client against Amazon S3 or an S3-compatible endpoint.
type S3Client struct {
	svc *s3.S3
}

func NewS3Client(cfg S3Config) (*S3Client, error) {
	awsCfg := aws.NewConfig().
		WithRegion(cfg.Region).
		WithS3ForcePathStyle(cfg.ForcePathStyle)

	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}

	opts := session.Options{Config: *awsCfg}
	if cfg.Profile != "" {
		opts.Profile = cfg.Profile
		opts.SharedConfigState = session.SharedConfigEnable
	}

	sess, err := session.NewSessionWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("session.NewSessionWithOptions: %w", err)
	}

	// Ensure credential resolution happens once up front rather than lazily
	// on the first request, so mount fails fast on bad setup.
	if _, err := sess.Config.Credentials.Get(); err != nil {
		if cfg.Profile == "" {
			// Fall back to the default chain (env, instance role, etc.).
			sess.Config.Credentials = credentials.NewChainCredentials(nil)
		}
	}

	return &S3Client{svc: s3.New(sess)}, nil
}

func (c *S3Client) HeadObject(ctx context.Context, bucket, key string) (ObjectMetadata, error) {
	metrics.ObjectRequestsTotal.WithLabelValues(metrics.OpHead).Inc()

	out, err := c.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return ObjectMetadata{}, ErrNotFound
		}
		return ObjectMetadata{}, fmt.Errorf("HeadObject(%s): %w", key, err)
	}

	var size uint64
	if out.ContentLength != nil {
		size = uint64(*out.ContentLength)
	}
	return ObjectMetadata{Size: size}, nil
}

func (c *S3Client) ListObjectsV2(ctx context.Context, bucket, prefix, delimiter, continuationToken string, maxKeys int64) (ListPage, error) {
	metrics.ObjectRequestsTotal.WithLabelValues(metrics.OpList).Inc()

	in := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int64(maxKeys),
	}
	if delimiter != "" {
		in.Delimiter = aws.String(delimiter)
	}
	if continuationToken != "" {
		in.ContinuationToken = aws.String(continuationToken)
	}

	out, err := c.svc.ListObjectsV2WithContext(ctx, in)
	if err != nil {
		return ListPage{}, fmt.Errorf("ListObjectsV2(%s): %w", prefix, err)
	}

	page := ListPage{}
	for _, cp := range out.CommonPrefixes {
		if cp.Prefix != nil {
			page.CommonPrefixes = append(page.CommonPrefixes, *cp.Prefix)
		}
	}
	for _, o := range out.Contents {
		if o.Key == nil {
			continue
		}
		var size uint64
		if o.Size != nil {
			size = uint64(*o.Size)
		}
		page.Contents = append(page.Contents, ListedObject{Key: *o.Key, Size: size})
	}
	if out.NextContinuationToken != nil {
		page.NextContinuationToken = *out.NextContinuationToken
	}

	return page, nil
}

func (c *S3Client) GetObject(ctx context.Context, bucket, key string, rng *ByteRange) (StreamingBody, error) {
	metrics.ObjectRequestsTotal.WithLabelValues(metrics.OpGet).Inc()

	in := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if rng != nil {
		in.Range = aws.String(fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End))
	}

	out, err := c.svc.GetObjectWithContext(ctx, in)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GetObject(%s): %w", key, err)
	}

	return out.Body, nil
}

func isNotFound(err error) bool {
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
