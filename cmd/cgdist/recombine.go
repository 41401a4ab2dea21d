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

	"github.com/shenwei356/stable"
	"github.com/spf13/cobra"

	"github.com/shenwei356/cgdist/fingerprint"
	"github.com/shenwei356/cgdist/profile"
	"github.com/shenwei356/cgdist/recombine"
)

var recombineCmd = &cobra.Command{
	Use:   "recombine",
	Short: "Scan an enriched alignment cache for probable recombination events",
	Run:   runRecombine,
}

func init() {
	addConfigFlags(recombineCmd)
	recombineCmd.Flags().StringP("profiles", "p", "", "allelic profile table, TSV/CSV (required)")
	recombineCmd.Flags().String("sep", "\t", "profile table field separator")
	recombineCmd.Flags().String("missing", "-", "token used for a missing allele call")
	recombineCmd.Flags().Float64("locus-threshold", 0, "L%: minimum fraction of samples a locus must have called, as 0-1")
	recombineCmd.Flags().Float64("sample-threshold", 0, "S%: minimum fraction of effective loci a sample must have called, as 0-1")
	recombineCmd.Flags().Int("hamming-upper-bound", 0, "H: maximum allele-level Hamming distance for a sample pair to be screened")
	recombineCmd.Flags().Float64("density-threshold", 0, "T%: minimum mutation density (percent) for an allele pair to be reported")
	recombineCmd.Flags().StringP("out", "o", "-", "output path ('-' for stdout)")
	recombineCmd.MarkFlagRequired("profiles")
}

func runRecombine(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	h, ok := fingerprint.Lookup(cfg.Hasher)
	if !ok {
		fatalf("unknown hasher %q", cfg.Hasher)
	}

	m, err := profile.Load(getFlagString(cmd, "profiles"), profile.LoadOptions{
		Separator:     rune(getFlagString(cmd, "sep")[0]),
		MissingMarker: getFlagString(cmd, "missing"),
		Hasher:        h,
	})
	checkError(err)
	log.Infof("loaded %d samples x %d loci", len(m.Samples), len(m.Loci))

	c := loadOrCreateCache(cfg, false)
	if c.Len() == 0 {
		fatalf("cache at %s has no entries; run 'cgdist distance' (and 'cgdist enrich') first", cfg.CachePath)
	}

	in := recombine.Inputs{
		Cache:             c,
		Matrix:            m,
		LocusThreshold:    overrideOrDefault(cmd, "locus-threshold", cfg.Recombination.LocusThreshold),
		SampleThreshold:   overrideOrDefault(cmd, "sample-threshold", cfg.Recombination.SampleThreshold),
		HammingUpperBound: cfg.Recombination.HammingUpperBound,
		DensityThreshold:  overrideOrDefault(cmd, "density-threshold", cfg.Recombination.DensityThreshold),
	}
	if cmd.Flags().Changed("hamming-upper-bound") {
		in.HammingUpperBound = getFlagInt(cmd, "hamming-upper-bound")
	}

	result := recombine.Run(in)
	log.Infof("found %d recombining allele pairs across %d sample pairs", len(result.Events), len(result.Pairs))

	checkError(withOutput(getFlagString(cmd, "out"), false, func(w *bufio.Writer) error {
		return writeRecombinationTables(w, result)
	}))
}

func overrideOrDefault(cmd *cobra.Command, flag string, fallback float64) float64 {
	if cmd.Flags().Changed(flag) {
		return getFlagFloat64(cmd, flag)
	}
	return fallback
}

func writeRecombinationTables(w *bufio.Writer, result recombine.Result) error {
	style := &stable.TableStyle{
		Name:      "plain",
		HeaderRow: stable.RowStyle{Begin: "", Sep: "\t", End: ""},
		DataRow:   stable.RowStyle{Begin: "", Sep: "\t", End: ""},
		Padding:   "",
	}

	fmt.Fprintln(w, "# recombining allele pairs")
	events := stable.New()
	events.HeaderWithFormat([]stable.Column{
		{Header: "locus"},
		{Header: "sample_low"},
		{Header: "sample_high"},
		{Header: "snps", Align: stable.AlignRight},
		{Header: "indel_events", Align: stable.AlignRight},
		{Header: "avg_length", Align: stable.AlignRight},
		{Header: "density_pct", Align: stable.AlignRight},
	})
	for _, e := range result.Events {
		events.AddRow([]interface{}{
			e.Locus, e.SampleLow, e.SampleHigh, e.SNPs, e.IndelEvents,
			fmt.Sprintf("%.1f", e.AvgLength), fmt.Sprintf("%.2f", e.TotalDensity),
		})
	}
	if _, err := w.Write(events.Render(style)); err != nil {
		return err
	}

	fmt.Fprintln(w, "\n# sample-pair summary")
	pairs := stable.New()
	pairs.HeaderWithFormat([]stable.Column{
		{Header: "sample_low"},
		{Header: "sample_high"},
		{Header: "recombining_loci", Align: stable.AlignRight},
		{Header: "effective_loci", Align: stable.AlignRight},
		{Header: "pct", Align: stable.AlignRight},
	})
	for _, p := range result.Pairs {
		pairs.AddRow([]interface{}{
			p.SampleLow, p.SampleHigh, p.RecombiningLociCount, p.TotalEffectiveLoci,
			fmt.Sprintf("%.2f", p.Percentage),
		})
	}
	_, err := w.Write(pairs.Render(style))
	return err
}
