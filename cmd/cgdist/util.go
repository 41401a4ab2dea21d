// Copyright © 2018-2020 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shenwei356/cgdist/config"
)

func checkError(err error) {
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func getFlagString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	checkError(err)
	return v
}

func getFlagFloat64(cmd *cobra.Command, name string) float64 {
	v, err := cmd.Flags().GetFloat64(name)
	checkError(err)
	return v
}

func getFlagInt(cmd *cobra.Command, name string) int {
	v, err := cmd.Flags().GetInt(name)
	checkError(err)
	return v
}

func getFlagBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	checkError(err)
	return v
}

// loadConfig reads the --config flag if given, else falls back to
// config.Default(). Command-line flags set here win over whatever the
// file contained.
func loadConfig(cmd *cobra.Command) config.Config {
	path := getFlagString(cmd, "config")
	var cfg config.Config
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		checkError(err)
	} else {
		cfg = config.Default()
	}

	if cmd.Flags().Changed("hasher") {
		cfg.Hasher = getFlagString(cmd, "hasher")
	}
	if cmd.Flags().Changed("distance-mode") {
		cfg.DistanceMode = getFlagString(cmd, "distance-mode")
	}
	if cmd.Flags().Changed("cache") {
		cfg.CachePath = getFlagString(cmd, "cache")
	}
	if cmd.Flags().Changed("no-hamming-fallback") {
		cfg.NoHammingFallback = getFlagBool(cmd, "no-hamming-fallback")
	}
	if cmd.Flags().Changed("min-shared-loci") {
		cfg.Filter.MinSharedLoci = getFlagInt(cmd, "min-shared-loci")
	}
	return cfg
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "TOML configuration file")
	cmd.Flags().String("hasher", "", "override configured hasher (crc32, sha256, md5, sequence, hamming)")
	cmd.Flags().String("distance-mode", "", "override configured distance mode (SnpsOnly, SnpsAndIndelEvents, SnpsAndIndelBases, Hamming)")
	cmd.Flags().String("cache", "", "override configured cache path")
	cmd.Flags().Bool("no-hamming-fallback", false, "disable the fallback-to-1 rule for SnpsOnly on a cache miss")
	cmd.Flags().Int("min-shared-loci", 0, "override configured minimum shared loci")
}

func fatalf(format string, args ...interface{}) {
	checkError(fmt.Errorf(format, args...))
}
