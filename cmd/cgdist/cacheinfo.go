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
	"sort"

	humanize "github.com/dustin/go-humanize"
	"github.com/shenwei356/stable"
	"github.com/spf13/cobra"

	"github.com/shenwei356/cgdist/cache"
)

var cacheInfoCmd = &cobra.Command{
	Use:   "cache-info",
	Short: "Summarize an alignment cache's bound parameters and contents",
	Run:   runCacheInfo,
}

func init() {
	addConfigFlags(cacheInfoCmd)
	cacheInfoCmd.Flags().Int("top", 10, "number of loci to list, ranked by entry count")
}

func runCacheInfo(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	path, err := cfg.ResolveCachePath()
	checkError(err)

	info, err := os.Stat(path)
	checkError(err)

	h := mustHasher(cfg.Hasher)
	c, err := cache.Load(path, cfg.ScoringConfig(), cfg.Hasher, h, false)
	checkError(err)

	summary := c.Summarize()

	fmt.Printf("file           %s\n", path)
	fmt.Printf("size           %s\n", humanize.Bytes(uint64(info.Size())))
	fmt.Printf("format version %d\n", c.Metadata.FormatVersion)
	fmt.Printf("hasher         %s\n", c.Metadata.HasherName)
	fmt.Printf("distance mode  %s\n", c.Metadata.DistanceMode)
	fmt.Printf("scoring        %s\n", c.Metadata.AlignmentConfig)
	fmt.Printf("created        %s\n", c.Metadata.Created.Format("2006-01-02 15:04:05"))
	fmt.Printf("last modified  %s\n", c.Metadata.LastModified.Format("2006-01-02 15:04:05"))
	if c.Metadata.UserNote != "" {
		fmt.Printf("note           %s\n", c.Metadata.UserNote)
	}
	fmt.Printf("entries        %s\n", humanize.Comma(int64(summary.TotalEntries)))
	fmt.Printf("unique loci    %s\n", humanize.Comma(int64(summary.UniqueLoci)))
	fmt.Printf("total snps     %s\n", humanize.Comma(summary.TotalSNPs))
	fmt.Printf("total indels   %s events, %s bases\n",
		humanize.Comma(summary.TotalIndelEvents), humanize.Comma(summary.TotalIndelBases))
	fmt.Println()

	type locusCount struct {
		locus string
		n     int
	}
	counts := make([]locusCount, 0, len(summary.PerLocusEntries))
	for l, n := range summary.PerLocusEntries {
		counts = append(counts, locusCount{l, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].n != counts[j].n {
			return counts[i].n > counts[j].n
		}
		return counts[i].locus < counts[j].locus
	})

	top := getFlagInt(cmd, "top")
	if top > len(counts) {
		top = len(counts)
	}

	style := &stable.TableStyle{
		Name:      "plain",
		HeaderRow: stable.RowStyle{Begin: "", Sep: "  ", End: ""},
		DataRow:   stable.RowStyle{Begin: "", Sep: "  ", End: ""},
		Padding:   "",
	}
	tbl := stable.New()
	tbl.HeaderWithFormat([]stable.Column{
		{Header: "locus"},
		{Header: "entries", Align: stable.AlignRight},
	})
	for _, lc := range counts[:top] {
		tbl.AddRow([]interface{}{lc.locus, lc.n})
	}
	os.Stdout.Write(tbl.Render(style))
}
