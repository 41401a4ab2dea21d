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
	"github.com/spf13/cobra"

	"github.com/shenwei356/cgdist/enrich"
	"github.com/shenwei356/cgdist/fingerprint"
	"github.com/shenwei356/cgdist/seqdb"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Add per-sequence lengths to an existing alignment cache",
	Run:   runEnrich,
}

func init() {
	addConfigFlags(enrichCmd)
	enrichCmd.Flags().String("schema", "", "FASTA schema directory or index file (required)")
	enrichCmd.MarkFlagRequired("schema")
}

func runEnrich(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	h, ok := fingerprint.Lookup(cfg.Hasher)
	if !ok {
		fatalf("unknown hasher %q", cfg.Hasher)
	}

	c := loadOrCreateCache(cfg, false)
	if c.Len() == 0 {
		fatalf("cache at %s has no entries; run 'cgdist distance' first", cfg.CachePath)
	}

	sources, err := seqdb.Schema(getFlagString(cmd, "schema"))
	checkError(err)
	db, err := seqdb.Load(sources, h, nil)
	checkError(err)

	result := enrich.Run(c, db)
	log.Infof("enrichment touched %d entries, skipped %d (fingerprint absent from schema)",
		result.EntriesTouched, result.EntriesSkipped)

	mode, err := cfg.Mode()
	checkError(err)
	saveCacheIfDirty(cfg, c, mode)
}
