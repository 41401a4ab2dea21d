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
	"bufio"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shenwei356/cgdist/align"
	"github.com/shenwei356/cgdist/cache"
	"github.com/shenwei356/cgdist/config"
	"github.com/shenwei356/cgdist/distance"
	"github.com/shenwei356/cgdist/distmode"
	"github.com/shenwei356/cgdist/fingerprint"
	"github.com/shenwei356/cgdist/profile"
	"github.com/shenwei356/cgdist/seqdb"
)

var distanceCmd = &cobra.Command{
	Use:   "distance",
	Short: "Compute the sample x sample genetic distance matrix from a cgMLST profile table",
	Run:   runDistance,
}

func init() {
	addConfigFlags(distanceCmd)
	distanceCmd.Flags().StringP("profiles", "p", "", "allelic profile table, TSV/CSV (required)")
	distanceCmd.Flags().String("sep", "\t", "profile table field separator")
	distanceCmd.Flags().String("missing", "-", "token used for a missing allele call")
	distanceCmd.Flags().String("schema", "", "FASTA schema directory or index file (required unless --distance-mode=Hamming)")
	distanceCmd.Flags().Float64("sample-threshold", 0, "drop samples below this non-missing fraction")
	distanceCmd.Flags().Float64("locus-threshold", 0, "drop loci below this non-missing fraction")
	distanceCmd.Flags().StringP("out", "o", "-", "output path ('-' for stdout)")
	distanceCmd.Flags().Bool("gzip-output", false, "gzip the output file")
	distanceCmd.Flags().Bool("force-recompute", false, "discard an incompatible cache instead of failing")
	distanceCmd.MarkFlagRequired("profiles")
}

func runDistance(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	h, ok := fingerprint.Lookup(cfg.Hasher)
	if !ok {
		fatalf("unknown hasher %q", cfg.Hasher)
	}
	mode, err := cfg.Mode()
	checkError(err)
	scoringCfg := cfg.ScoringConfig()

	m, err := profile.Load(getFlagString(cmd, "profiles"), profile.LoadOptions{
		Separator:     rune(getFlagString(cmd, "sep")[0]),
		MissingMarker: getFlagString(cmd, "missing"),
		Hasher:        h,
	})
	checkError(err)
	log.Infof("loaded %d samples x %d loci", len(m.Samples), len(m.Loci))

	filtered, err := m.Apply(profile.Filter{}, profile.Filter{}, profile.QualityThresholds{
		SampleThreshold: overrideOrDefault(cmd, "sample-threshold", cfg.Filter.SampleThreshold),
		LocusThreshold:  overrideOrDefault(cmd, "locus-threshold", cfg.Filter.LocusThreshold),
	})
	checkError(err)
	if len(filtered.Samples) != len(m.Samples) || len(filtered.Loci) != len(m.Loci) {
		log.Infof("filtering retained %d samples x %d loci", len(filtered.Samples), len(filtered.Loci))
	}

	db := loadSchemaIfNeeded(cmd, filtered, h, mode)

	c := loadOrCreateCache(cfg, getFlagBool(cmd, "force-recompute"))
	e := align.NewEngine(scoringCfg, db, cfg.Hasher, c)

	started := time.Now()
	result := distance.Run(e, filtered, mode, cfg.Filter.MinSharedLoci, cfg.NoHammingFallback)
	log.Infof("assembled %d x %d distance matrix in %s", len(result.Samples), len(result.Samples), time.Since(started))

	saveCacheIfDirty(cfg, c, mode)

	checkError(withOutput(getFlagString(cmd, "out"), getFlagBool(cmd, "gzip-output"), func(w *bufio.Writer) error {
		return writeMatrixTSV(w, result)
	}))
}

// loadSchemaIfNeeded resolves and loads only the sequences the matrix's
// unique fingerprint pairs can ever need, using the database's selective
// loading mode. A schema is optional only when the distance mode never
// consults sequence data.
func loadSchemaIfNeeded(cmd *cobra.Command, m *profile.Matrix, h fingerprint.Hasher, mode distmode.Mode) *seqdb.Database {
	schemaPath := getFlagString(cmd, "schema")
	if schemaPath == "" {
		if mode != distmode.Hamming {
			fatalf("--schema is required unless --distance-mode=Hamming")
		}
		return nil
	}

	sources, err := seqdb.Schema(schemaPath)
	checkError(err)

	required := make(map[seqdb.LocusFingerprint]struct{})
	for locus, pairs := range m.UniquePairs() {
		for _, p := range pairs {
			required[seqdb.LocusFingerprint{Locus: locus, Fingerprint: p[0]}] = struct{}{}
			required[seqdb.LocusFingerprint{Locus: locus, Fingerprint: p[1]}] = struct{}{}
		}
	}
	db, err := seqdb.Load(sources, h, required)
	checkError(err)
	return db
}

// loadOrCreateCache opens cfg's cache path, falling back to a fresh cache
// when the file does not exist yet or is incompatible and force-recompute
// was requested. Any other load error is fatal.
func loadOrCreateCache(cfg config.Config, forceRecompute bool) *cache.Cache {
	scoringCfg := cfg.ScoringConfig()
	mode, err := cfg.Mode()
	checkError(err)
	h := mustHasher(cfg.Hasher)

	path, err := cfg.ResolveCachePath()
	checkError(err)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Infof("no cache at %s yet, starting fresh", path)
		return cache.New(scoringCfg, cfg.Hasher, mode)
	}
	c, err := cache.Load(path, scoringCfg, cfg.Hasher, h, forceRecompute)
	checkError(err)
	return c
}

func mustHasher(name string) fingerprint.Hasher {
	h, ok := fingerprint.Lookup(name)
	if !ok {
		fatalf("unknown hasher %q", name)
	}
	return h
}

func saveCacheIfDirty(cfg config.Config, c *cache.Cache, mode distmode.Mode) {
	if !c.IsDirty() {
		return
	}
	path, err := cfg.ResolveCachePath()
	checkError(err)
	checkError(c.Save(path, mode))
	log.Infof("saved %d cache entries to %s", c.Len(), path)
}

// writeMatrixTSV renders a distance.Matrix as "Sample<TAB>s1<TAB>s2...",
// one row per sample, undefined cells rendered as NA (the output
// format section).
func writeMatrixTSV(w *bufio.Writer, m distance.Matrix) error {
	if _, err := fmt.Fprint(w, "Sample"); err != nil {
		return err
	}
	for _, s := range m.Samples {
		if _, err := fmt.Fprintf(w, "\t%s", s); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w, "\n"); err != nil {
		return err
	}
	for i, s := range m.Samples {
		if _, err := fmt.Fprint(w, s); err != nil {
			return err
		}
		for j := range m.Samples {
			cell := "NA"
			if v := m.Values[i][j]; v != nil {
				cell = strconv.Itoa(*v)
			}
			if _, err := fmt.Fprintf(w, "\t%s", cell); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprint(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
