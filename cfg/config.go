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

package cfg

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	AppName string `yaml:"app-name"`

	// Foreground keeps the process attached to the terminal instead of
	// daemonizing. Mirrors the teacher's own --foreground flag.
	Foreground bool `yaml:"foreground"`

	// FuseOptions are repeated raw "-o key=value" mount options, handed to
	// fuse.MountConfig.Options verbatim after parsing.
	FuseOptions []string `yaml:"fuse-options"`

	Bucket BucketConfig `yaml:"bucket"`

	Debug DebugConfig `yaml:"debug"`

	FileSystem FileSystemConfig `yaml:"file-system"`

	Cache CacheConfig `yaml:"cache"`

	Prefetch PrefetchConfig `yaml:"prefetch"`

	Logging LoggingConfig `yaml:"logging"`

	Metrics MetricsConfig `yaml:"metrics"`
}

// BucketConfig names the object-store bucket mounted read-only and, for an
// S3-compatible store that isn't AWS itself, the endpoint to dial.
type BucketConfig struct {
	Name     string `yaml:"name"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogMutex bool `yaml:"log-mutex"`
}

type FileSystemConfig struct {
	DirMode  Octal `yaml:"dir-mode"`
	FileMode Octal `yaml:"file-mode"`

	Uid int `yaml:"uid"`
	Gid int `yaml:"gid"`

	ReaddirBatchSize int `yaml:"readdir-batch-size"`
}

// CacheConfig controls how long a looked-up inode's metadata is trusted
// before GetAttr revalidates it against the bucket.
type CacheConfig struct {
	AttrTTL time.Duration `yaml:"attr-ttl"`
}

// PrefetchConfig tunes the range-GET read-ahead engine; see
// internal/prefetch. Sizes are in MiB on the CLI and converted to bytes
// when building a prefetch.Config.
type PrefetchConfig struct {
	InitialRequestSizeMB int   `yaml:"initial-request-size-mb"`
	MaxRequestSizeMB     int   `yaml:"max-request-size-mb"`
	MaxInFlight          int64 `yaml:"max-in-flight"`
	BufferHighWaterMarkMB int  `yaml:"buffer-high-water-mark-mb"`
}

type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`
	Format   LogFormat   `yaml:"format"`
	FilePath string      `yaml:"file-path"`

	LogRotate LogRotateConfig `yaml:"log-rotate"`
}

type LogRotateConfig struct {
	MaxFileSizeMB   int  `yaml:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count"`
	Compress        bool `yaml:"compress"`
}

func DefaultLogRotateConfig() LogRotateConfig {
	return LogRotateConfig{MaxFileSizeMB: 512, BackupFileCount: 10, Compress: false}
}

// MetricsConfig controls the Prometheus exposition endpoint; a zero Port
// disables it.
type MetricsConfig struct {
	Port int `yaml:"port"`
}

func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	bind := func(flagName, viperKey string) {
		if err != nil {
			return
		}
		err = viper.BindPFlag(viperKey, flagSet.Lookup(flagName))
	}

	flagSet.StringP("app-name", "", "", "The application name of this mount.")
	bind("app-name", "app-name")

	flagSet.BoolP("foreground", "", false, "Stay attached to the terminal instead of daemonizing.")
	bind("foreground", "foreground")

	flagSet.StringSliceP("o", "o", nil, "Additional FUSE mount option(s), in mount(8) -o syntax. May be repeated.")
	bind("o", "fuse-options")

	flagSet.StringP("bucket", "", "", "Name of the bucket to mount.")
	bind("bucket", "bucket.name")

	flagSet.StringP("prefix", "", "", "Only the subtree under this key prefix is exposed as the mount root.")
	bind("prefix", "bucket.prefix")

	flagSet.StringP("region", "", "us-east-1", "Region of the bucket.")
	bind("region", "bucket.region")

	flagSet.StringP("endpoint", "", "", "Override endpoint for an S3-compatible store other than AWS.")
	bind("endpoint", "bucket.endpoint")

	flagSet.BoolP("debug_invariants", "", false, "Exit when internal invariants are violated.")
	bind("debug_invariants", "debug.exit-on-invariant-violation")

	flagSet.BoolP("debug_mutex", "", false, "Print debug messages when a mutex is held too long.")
	bind("debug_mutex", "debug.log-mutex")

	flagSet.IntP("dir-mode", "", 0555, "Permissions bits for directories, in octal.")
	bind("dir-mode", "file-system.dir-mode")

	flagSet.IntP("file-mode", "", 0444, "Permissions bits for files, in octal.")
	bind("file-mode", "file-system.file-mode")

	flagSet.IntP("uid", "", -1, "UID owner of all inodes. -1 means the current process uid.")
	bind("uid", "file-system.uid")

	flagSet.IntP("gid", "", -1, "GID owner of all inodes. -1 means the current process gid.")
	bind("gid", "file-system.gid")

	flagSet.IntP("readdir-batch-size", "", 100, "Directory entries fetched from the bucket per LIST call.")
	bind("readdir-batch-size", "file-system.readdir-batch-size")

	flagSet.DurationP("attr-ttl", "", 60*time.Second, "How long a cached inode's attributes are trusted before revalidation.")
	bind("attr-ttl", "cache.attr-ttl")

	flagSet.IntP("prefetch-initial-request-size-mb", "", 1, "Size of the first range-GET issued for a sequential read.")
	bind("prefetch-initial-request-size-mb", "prefetch.initial-request-size-mb")

	flagSet.IntP("prefetch-max-request-size-mb", "", 64, "Cap on the doubling range-GET request size.")
	bind("prefetch-max-request-size-mb", "prefetch.max-request-size-mb")

	flagSet.Int64P("prefetch-max-in-flight", "", 8, "Maximum concurrent range-GETs per open file.")
	bind("prefetch-max-in-flight", "prefetch.max-in-flight")

	flagSet.IntP("prefetch-buffer-high-water-mark-mb", "", 256, "Maximum bytes of completed-but-unread prefetch data buffered per open file.")
	bind("prefetch-buffer-high-water-mark-mb", "prefetch.buffer-high-water-mark-mb")

	flagSet.StringP("log-severity", "", "INFO", "One of TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	bind("log-severity", "logging.severity")

	flagSet.StringP("log-format", "", "json", "One of text, json.")
	bind("log-format", "logging.format")

	flagSet.StringP("log-file", "", "", "Path to a log file. Empty means log to stderr.")
	bind("log-file", "logging.file-path")

	flagSet.IntP("log-rotate-max-file-size-mb", "", 512, "Log file size at which it is rotated.")
	bind("log-rotate-max-file-size-mb", "logging.log-rotate.max-file-size-mb")

	flagSet.IntP("log-rotate-backup-file-count", "", 10, "Number of rotated log files kept. 0 keeps all.")
	bind("log-rotate-backup-file-count", "logging.log-rotate.backup-file-count")

	flagSet.BoolP("log-rotate-compress", "", false, "Gzip rotated log files.")
	bind("log-rotate-compress", "logging.log-rotate.compress")

	flagSet.IntP("metrics-port", "", 0, "Port to serve Prometheus metrics on. 0 disables the endpoint.")
	bind("metrics-port", "metrics.port")

	return err
}
