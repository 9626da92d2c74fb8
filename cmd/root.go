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
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/objfuse/objfuse/cfg"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	MountConfig   cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "objfuse [flags] bucket mount_point",
	Short: "Mount an object-store bucket read-only as a local FUSE filesystem",
	Long: `objfuse is a FUSE adapter that exposes a read-only, POSIX-shaped view
of an S3-compatible bucket: directories are key prefixes, files are
objects, and reads stream through a pipelined, backpressured prefetch
engine rather than the kernel's own page cache.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}

		bucketName, mountPoint, err := populateArgs(args)
		if err != nil {
			return err
		}

		return mount(cmd.Context(), bucketName, mountPoint, &MountConfig)
	},
}

func populateArgs(args []string) (bucketName string, mountPoint string, err error) {
	switch len(args) {
	case 1:
		bucketName = MountConfig.Bucket.Name
		mountPoint = args[0]
	case 2:
		bucketName = args[0]
		mountPoint = args[1]
	default:
		err = fmt.Errorf("%s takes one or two arguments: [bucket] mount_point", filepath.Base(os.Args[0]))
		return
	}

	if bucketName == "" {
		err = fmt.Errorf("no bucket specified: pass it as an argument or set --bucket")
		return
	}

	mountPoint, err = filepath.Abs(mountPoint)
	if err != nil {
		err = fmt.Errorf("resolving mount point: %w", err)
		return
	}

	return
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&MountConfig)
		return
	}

	resolved, err := filepath.Abs(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("resolving config file path: %w", err)
		return
	}

	viper.SetConfigFile(resolved)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&MountConfig)
}
