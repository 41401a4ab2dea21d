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
	"runtime"

	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"
)

// VERSION is the cgdist release version.
const VERSION = "0.1.0"

// RootCmd is the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "cgdist",
	Short: "cgMLST genetic-distance and recombination-detection toolkit",
	Long: fmt.Sprintf(`cgdist - cgMLST genetic-distance and recombination-detection toolkit

Computes pairwise genetic distance matrices for bacterial samples
described by core-genome MLST (cgMLST) allelic profiles, and detects
likely recombination events from a sequence-alignment cache.

Version: %s

`, VERSION),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		threads := getFlagInt(cmd, "threads")
		if threads < 1 {
			threads = runtime.NumCPU()
		}
		runtime.GOMAXPROCS(threads)
		sorts.MaxProcs = threads
	},
}

// Execute adds all child commands to RootCmd and runs it. Called once
// from main().
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().Int("threads", 0, "number of CPUs to use (0 = all available)")
	RootCmd.AddCommand(distanceCmd)
	RootCmd.AddCommand(recombineCmd)
	RootCmd.AddCommand(enrichCmd)
	RootCmd.AddCommand(cacheInfoCmd)
}
