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

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jacobsa/daemonize"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/kardianos/osext"

	"github.com/objfuse/objfuse/cfg"
	"github.com/objfuse/objfuse/internal/clock"
	intfs "github.com/objfuse/objfuse/internal/fs"
	"github.com/objfuse/objfuse/internal/inode"
	"github.com/objfuse/objfuse/internal/logger"
	"github.com/objfuse/objfuse/internal/metrics"
	"github.com/objfuse/objfuse/internal/mount"
	"github.com/objfuse/objfuse/internal/objclient"
	"github.com/objfuse/objfuse/internal/perms"
	"github.com/objfuse/objfuse/internal/prefetch"
)

const (
	SuccessfulMountMessage         = "File system has been successfully mounted."
	UnsuccessfulMountMessagePrefix = "Error while mounting objfuse"

	inBackgroundModeEnvVar = "OBJFUSE_IN_BACKGROUND_MODE"
)

// mount is the entry point shared by foreground and daemonized runs: it
// re-execs itself in the background unless --foreground or the
// already-backgrounded marker env var is set, then builds and serves the
// filesystem.
func mount(ctx context.Context, bucketName, mountPoint string, c *cfg.Config) error {
	if err := logger.Init(logger.Config{
		Format:   string(c.Logging.Format),
		Severity: string(c.Logging.Severity),
		FilePath: c.Logging.FilePath,
		Rotate: logger.RotateConfig{
			MaxFileSizeMB:   c.Logging.LogRotate.MaxFileSizeMB,
			BackupFileCount: c.Logging.LogRotate.BackupFileCount,
			Compress:        c.Logging.LogRotate.Compress,
		},
	}); err != nil {
		return fmt.Errorf("logger.Init: %w", err)
	}

	if !c.Foreground && os.Getenv(inBackgroundModeEnvVar) == "" {
		return daemonizeAndMount(bucketName, mountPoint)
	}

	mfs, err := mountFilesystem(ctx, bucketName, mountPoint, c)
	if err != nil {
		if os.Getenv(inBackgroundModeEnvVar) != "" {
			if sigErr := daemonize.SignalOutcome(err); sigErr != nil {
				logger.Errorf("daemonize.SignalOutcome: %v", sigErr)
			}
		}
		return err
	}

	logger.Infof(SuccessfulMountMessage)
	if os.Getenv(inBackgroundModeEnvVar) != "" {
		if sigErr := daemonize.SignalOutcome(nil); sigErr != nil {
			logger.Errorf("daemonize.SignalOutcome: %v", sigErr)
		}
	}

	return mfs.Join(ctx)
}

// daemonizeAndMount re-execs the current binary with the same arguments,
// marked as already backgrounded, and waits for it to report success or
// failure over the daemonize pipe.
func daemonizeAndMount(bucketName, mountPoint string) error {
	path, err := osext.Executable()
	if err != nil {
		return fmt.Errorf("osext.Executable: %w", err)
	}

	env := append(os.Environ(), inBackgroundModeEnvVar+"=true")

	if err := daemonize.Run(path, os.Args[1:], env, os.Stdout); err != nil {
		return fmt.Errorf("daemonize.Run: %w", err)
	}

	logger.Infof(SuccessfulMountMessage)
	return nil
}

func mountFilesystem(ctx context.Context, bucketName, mountPoint string, c *cfg.Config) (*fuse.MountedFileSystem, error) {
	uid, gid, err := perms.MyUserAndGroup()
	if err != nil {
		return nil, fmt.Errorf("MyUserAndGroup: %w", err)
	}
	if uid == 0 && c.FileSystem.Uid < 0 {
		fmt.Fprintln(os.Stdout, `
WARNING: objfuse invoked as root. This will cause all files to be owned by
root. If this is not what you intended, invoke objfuse as the user that
will be interacting with the file system.`)
	}
	if c.FileSystem.Uid >= 0 {
		uid = uint32(c.FileSystem.Uid)
	}
	if c.FileSystem.Gid >= 0 {
		gid = uint32(c.FileSystem.Gid)
	}

	client, err := objclient.NewS3Client(objclient.S3Config{
		Region:         c.Bucket.Region,
		Endpoint:       c.Bucket.Endpoint,
		ForcePathStyle: c.Bucket.Endpoint != "",
	})
	if err != nil {
		return nil, fmt.Errorf("objclient.NewS3Client: %w", err)
	}

	sb := inode.NewSuperblock(bucketName, c.Bucket.Prefix, client, clock.RealClock{}, c.Cache.AttrTTL, int64(c.FileSystem.ReaddirBatchSize))

	pf := prefetch.NewPrefetcher(client, bucketName, prefetch.Config{
		InitialRequestSize:  uint64(c.Prefetch.InitialRequestSizeMB) << 20,
		MaxRequestSize:      uint64(c.Prefetch.MaxRequestSizeMB) << 20,
		MaxInFlight:         c.Prefetch.MaxInFlight,
		BufferHighWaterMark: int64(c.Prefetch.BufferHighWaterMarkMB) << 20,
	})

	filesystem := intfs.NewFilesystem(sb, pf, intfs.Config{
		Uid:              uid,
		Gid:              gid,
		FileMode:         os.FileMode(c.FileSystem.FileMode),
		DirMode:          os.FileMode(c.FileSystem.DirMode),
		ReaddirBatchSize: c.FileSystem.ReaddirBatchSize,
	})

	if c.Metrics.Port != 0 {
		addr := fmt.Sprintf("127.0.0.1:%d", c.Metrics.Port)
		srv, err := metrics.Serve(addr)
		if err != nil {
			logger.Warnf("metrics.Serve(%s): %v", addr, err)
		} else {
			logger.Infof("Serving metrics on %s", srv.Addr())
		}
	}

	logger.Infof("Mounting file system %q at %q...", bucketName, mountPoint)
	mfs, err := fuse.Mount(mountPoint, fuseutil.NewFileSystemServer(filesystem), getFuseMountConfig(bucketName, c))
	if err != nil {
		return nil, fmt.Errorf("fuse.Mount: %w", err)
	}

	return mfs, nil
}

func getFuseMountConfig(bucketName string, c *cfg.Config) *fuse.MountConfig {
	parsedOptions := make(map[string]string)
	for _, o := range c.FuseOptions {
		mount.ParseOptions(parsedOptions, o)
	}

	mountCfg := &fuse.MountConfig{
		FSName:     bucketName,
		Subtype:    "objfuse",
		VolumeName: "objfuse",
		Options:    parsedOptions,
		// The Superblock holds its mutex only for bookkeeping, never across
		// the HEAD/LIST probes of LookUpInode, so concurrent lookups in the
		// same directory benefit from the kernel dispatching them in parallel.
		EnableParallelDirOps: true,
	}

	// Log severity to jacobsa/fuse's own error/debug loggers: ErrorLogger is
	// attached unless severity is OFF, and only TRACE additionally attaches
	// the (very verbose) protocol DebugLogger.
	if c.Logging.Severity == "" || c.Logging.Severity != "OFF" {
		mountCfg.ErrorLogger = logger.NewLegacyErrorLogger("fuse: ")
	}
	if c.Logging.Severity == "TRACE" {
		mountCfg.DebugLogger = logger.NewLegacyDebugLogger("fuse_debug: ")
	}

	return mountCfg
}
