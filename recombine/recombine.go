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

// Package recombine scans an enriched cache for allele pairs whose
// per-base mutation density exceeds a threshold, restricted to a
// Hamming-screened set of sample pairs.
package recombine

import (
	"runtime"
	"sort"
	"sync"

	"github.com/shenwei356/cgdist/cache"
	"github.com/shenwei356/cgdist/profile"
)

// Inputs configures a recombination scan.
type Inputs struct {
	Cache             *cache.Cache
	Matrix            *profile.Matrix
	LocusThreshold    float64 // L%, as a fraction in [0,1]
	SampleThreshold   float64 // S%, as a fraction in [0,1]
	HammingUpperBound int     // H
	DensityThreshold  float64 // T%, as a percentage, e.g. 3.0
}

// Event is a single recombining allele pair attributed to a sample pair.
type Event struct {
	Locus           string
	FingerprintLow  string
	FingerprintHigh string
	SampleLow       string
	SampleHigh      string
	SNPs            int
	IndelEvents     int
	AvgLength       float64
	TotalDensity    float64
}

// PairSummary aggregates events by canonical sample pair.
type PairSummary struct {
	SampleLow            string
	SampleHigh           string
	RecombiningLociCount int
	TotalEffectiveLoci   int
	Percentage           float64
}

// Result holds both scan outputs.
type Result struct {
	Events []Event      // sorted by TotalDensity descending
	Pairs  []PairSummary // sorted by RecombiningLociCount descending
}

type samplePair struct{ Low, High string }

func canonicalPair(a, b string) samplePair {
	if a <= b {
		return samplePair{Low: a, High: b}
	}
	return samplePair{Low: b, High: a}
}

// Run executes the full recombination scan.
func Run(in Inputs) Result {
	effectiveLoci := effectiveLoci(in.Matrix, in.LocusThreshold)
	effectiveLociSet := make(map[string]struct{}, len(effectiveLoci))
	for _, l := range effectiveLoci {
		effectiveLociSet[l] = struct{}{}
	}

	effectiveSamples := effectiveSamples(in.Matrix, effectiveLoci, in.SampleThreshold)

	retained := retainedPairs(in.Matrix, effectiveSamples, effectiveLoci, in.HammingUpperBound)

	index := buildIndex(in.Matrix, effectiveSamples, effectiveLoci)

	events := scanCache(in.Cache, effectiveLociSet, index, retained, in.DensityThreshold)

	sort.Slice(events, func(i, j int) bool { return events[i].TotalDensity > events[j].TotalDensity })

	pairs := summarize(events, len(effectiveLoci))

	return Result{Events: events, Pairs: pairs}
}

func effectiveLoci(m *profile.Matrix, threshold float64) []string {
	n := len(m.Samples)
	var out []string
	for _, locus := range m.Loci {
		nonMissing := 0
		for _, s := range m.Samples {
			if !s.Calls[locus].IsMissing() {
				nonMissing++
			}
		}
		frac := 0.0
		if n > 0 {
			frac = float64(nonMissing) / float64(n)
		}
		if frac >= threshold {
			out = append(out, locus)
		}
	}
	return out
}

func effectiveSamples(m *profile.Matrix, loci []string, threshold float64) []profile.AllelicProfile {
	n := len(loci)
	var out []profile.AllelicProfile
	for _, s := range m.Samples {
		nonMissing := 0
		for _, l := range loci {
			if !s.Calls[l].IsMissing() {
				nonMissing++
			}
		}
		frac := 0.0
		if n > 0 {
			frac = float64(nonMissing) / float64(n)
		}
		if frac >= threshold {
			out = append(out, s)
		}
	}
	return out
}

// retainedPairs computes the Hamming distance matrix (per-locus
// different/same counts over the effective locus set) for all pairs of
// effective samples, parallelizing over the outer sample index per
// and retains pairs with distance <= hammingUpperBound.
func retainedPairs(m *profile.Matrix, samples []profile.AllelicProfile, loci []string, hammingUpperBound int) map[samplePair]struct{} {
	n := len(samples)
	retained := make(map[samplePair]struct{})
	if n < 2 {
		return retained
	}

	type pairResult struct {
		i, j int
		keep bool
	}

	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	rows := make(chan int)
	results := make(chan pairResult)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				for j := i + 1; j < n; j++ {
					d := 0
					for _, l := range loci {
						if !samples[i].Calls[l].Equal(samples[j].Calls[l]) {
							d++
						}
					}
					results <- pairResult{i: i, j: j, keep: d <= hammingUpperBound}
				}
			}
		}()
	}
	go func() {
		for i := 0; i < n; i++ {
			rows <- i
		}
		close(rows)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		if r.keep {
			retained[canonicalPair(samples[r.i].Sample, samples[r.j].Sample)] = struct{}{}
		}
	}
	return retained
}

// buildIndex maps (locus, fingerprint) to an arbitrary owning sample, used
// only to resolve which sample pair a cache entry is about.
func buildIndex(m *profile.Matrix, samples []profile.AllelicProfile, loci []string) map[string]map[string]string {
	index := make(map[string]map[string]string, len(loci))
	for _, l := range loci {
		index[l] = make(map[string]string)
	}
	for _, s := range samples {
		for _, l := range loci {
			fp := s.Calls[l]
			if fp.IsMissing() {
				continue
			}
			if _, ok := index[l][fp.String()]; !ok {
				index[l][fp.String()] = s.Sample
			}
		}
	}
	return index
}

func scanCache(c *cache.Cache, effectiveLoci map[string]struct{}, index map[string]map[string]string, retained map[samplePair]struct{}, densityThreshold float64) []Event {
	seen := make(map[cache.Key]struct{})
	var events []Event

	c.Each(func(k cache.Key, e cache.Entry) {
		if _, ok := effectiveLoci[k.Locus]; !ok {
			return
		}
		if k.Low == k.High {
			return
		}
		if e.Seq1Length == nil || e.Seq2Length == nil {
			return
		}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}

		byFp, ok := index[k.Locus]
		if !ok {
			return
		}
		sampleLow, ok1 := byFp[k.Low.String()]
		sampleHigh, ok2 := byFp[k.High.String()]
		if !ok1 || !ok2 {
			return
		}
		pair := canonicalPair(sampleLow, sampleHigh)
		if _, ok := retained[pair]; !ok {
			return
		}

		avgLength := float64(*e.Seq1Length+*e.Seq2Length) / 2
		if avgLength == 0 {
			return
		}
		totalDensity := float64(e.SNPs+e.IndelEvents) / avgLength * 100
		if totalDensity <= densityThreshold {
			return
		}

		events = append(events, Event{
			Locus:           k.Locus,
			FingerprintLow:  k.Low.String(),
			FingerprintHigh: k.High.String(),
			SampleLow:       pair.Low,
			SampleHigh:      pair.High,
			SNPs:            e.SNPs,
			IndelEvents:     e.IndelEvents,
			AvgLength:       avgLength,
			TotalDensity:    totalDensity,
		})
	})

	return events
}

func summarize(events []Event, totalEffectiveLoci int) []PairSummary {
	type acc struct {
		pair  samplePair
		loci  map[string]struct{}
	}
	byPair := make(map[samplePair]*acc)
	var order []samplePair
	for _, e := range events {
		p := samplePair{Low: e.SampleLow, High: e.SampleHigh}
		a, ok := byPair[p]
		if !ok {
			a = &acc{pair: p, loci: make(map[string]struct{})}
			byPair[p] = a
			order = append(order, p)
		}
		a.loci[e.Locus] = struct{}{}
	}

	summaries := make([]PairSummary, 0, len(order))
	for _, p := range order {
		a := byPair[p]
		count := len(a.loci)
		pct := 0.0
		if totalEffectiveLoci > 0 {
			pct = float64(count) / float64(totalEffectiveLoci) * 100
		}
		summaries = append(summaries, PairSummary{
			SampleLow:            p.Low,
			SampleHigh:           p.High,
			RecombiningLociCount: count,
			TotalEffectiveLoci:   totalEffectiveLoci,
			Percentage:           pct,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].RecombiningLociCount > summaries[j].RecombiningLociCount
	})
	return summaries
}
