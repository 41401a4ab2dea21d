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

// Package profile holds the sample x locus allelic matrix: loading,
// include/exclude filtering, quality thresholds and diversity statistics.
package profile

import (
	"regexp"
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/shenwei356/cgdist/fingerprint"
)

// AllelicProfile is one sample's locus -> fingerprint calls.
type AllelicProfile struct {
	Sample string
	Calls  map[string]fingerprint.Fingerprint
}

// Matrix is the ordered sample x locus allelic matrix. Loci is the
// canonical column order; every sample's Calls map, once filtering has
// run, ranges over exactly this locus list.
type Matrix struct {
	Samples []AllelicProfile
	Loci    []string
}

// Filter configures the four-way include/exclude selection applied
// identically to samples and to loci.
type Filter struct {
	IncludeRegex *regexp.Regexp
	IncludeSet   map[string]struct{}
	ExcludeRegex *regexp.Regexp
	ExcludeSet   map[string]struct{}
}

// keep reports whether name survives the four-way filter: an include
// regex/set narrows the universe (name must match at least one configured
// include rule when any is set), then an exclude regex/set removes
// matches. A nil/empty Filter keeps everything.
func (f Filter) keep(name string) bool {
	hasInclude := f.IncludeRegex != nil || f.IncludeSet != nil
	if hasInclude {
		included := false
		if f.IncludeRegex != nil && f.IncludeRegex.MatchString(name) {
			included = true
		}
		if !included && f.IncludeSet != nil {
			if _, ok := f.IncludeSet[name]; ok {
				included = true
			}
		}
		if !included {
			return false
		}
	}
	if f.ExcludeRegex != nil && f.ExcludeRegex.MatchString(name) {
		return false
	}
	if f.ExcludeSet != nil {
		if _, ok := f.ExcludeSet[name]; ok {
			return false
		}
	}
	return true
}

// QualityThresholds bounds the minimum fraction of non-missing calls a
// sample or locus must retain after include/exclude filtering.
type QualityThresholds struct {
	SampleThreshold float64 // fraction of surviving loci that must be non-missing
	LocusThreshold  float64 // fraction of surviving samples that must be non-missing
}

// ErrEmptyMatrix is returned when filtering leaves zero samples or zero loci.
var ErrEmptyMatrix = errors.New("profile: filtering left zero samples or zero loci")

// Apply runs the full filter pipeline: sample
// include/exclude, locus include/exclude, then the two quality
// thresholds, and returns a new Matrix restricted accordingly. The
// receiver is never mutated.
func (m *Matrix) Apply(sampleFilter, locusFilter Filter, q QualityThresholds) (*Matrix, error) {
	var keptSamples []AllelicProfile
	for _, s := range m.Samples {
		if sampleFilter.keep(s.Sample) {
			keptSamples = append(keptSamples, s)
		}
	}

	var keptLoci []string
	for _, l := range m.Loci {
		if locusFilter.keep(l) {
			keptLoci = append(keptLoci, l)
		}
	}

	restricted := make([]AllelicProfile, len(keptSamples))
	for i, s := range keptSamples {
		calls := make(map[string]fingerprint.Fingerprint, len(keptLoci))
		for _, l := range keptLoci {
			if fp, ok := s.Calls[l]; ok {
				calls[l] = fp
			} else {
				calls[l] = fingerprint.Missing
			}
		}
		restricted[i] = AllelicProfile{Sample: s.Sample, Calls: calls}
	}

	finalSamples, finalLoci := qualityFilter(restricted, keptLoci, q)

	if len(finalSamples) == 0 || len(finalLoci) == 0 {
		return nil, ErrEmptyMatrix
	}

	out := make([]AllelicProfile, len(finalSamples))
	for i, s := range finalSamples {
		calls := make(map[string]fingerprint.Fingerprint, len(finalLoci))
		for _, l := range finalLoci {
			calls[l] = s.Calls[l]
		}
		out[i] = AllelicProfile{Sample: s.Sample, Calls: calls}
	}

	return &Matrix{Samples: out, Loci: finalLoci}, nil
}

// qualityFilter drops low-completeness samples first (observed over the
// current locus set), then low-completeness loci (observed over the
// resulting sample set). Dropping a sample can lower a borderline locus's
// completeness below threshold and vice versa, so the two passes repeat
// until neither set shrinks any further.
func qualityFilter(samples []AllelicProfile, loci []string, q QualityThresholds) ([]AllelicProfile, []string) {
	if len(loci) == 0 || len(samples) == 0 {
		return nil, nil
	}

	for {
		var survivingSamples []AllelicProfile
		for _, s := range samples {
			nonMissing := 0
			for _, l := range loci {
				if !s.Calls[l].IsMissing() {
					nonMissing++
				}
			}
			frac := float64(nonMissing) / float64(len(loci))
			if frac >= q.SampleThreshold {
				survivingSamples = append(survivingSamples, s)
			}
		}
		if len(survivingSamples) == 0 {
			return nil, nil
		}

		keepLocus := make(map[string]bool, len(loci))
		for _, l := range loci {
			nonMissing := 0
			for _, s := range survivingSamples {
				if !s.Calls[l].IsMissing() {
					nonMissing++
				}
			}
			frac := float64(nonMissing) / float64(len(survivingSamples))
			keepLocus[l] = frac >= q.LocusThreshold
		}
		var survivingLoci []string
		for _, l := range loci {
			if keepLocus[l] {
				survivingLoci = append(survivingLoci, l)
			}
		}
		if len(survivingLoci) == 0 {
			return nil, nil
		}

		if len(survivingSamples) == len(samples) && len(survivingLoci) == len(loci) {
			return survivingSamples, survivingLoci
		}
		samples, loci = survivingSamples, survivingLoci
	}
}

// Overlap partitions samples into those present in the matrix and those
// absent. Lets a caller fail fast on a typo'd sample list instead of
// silently producing an empty row.
func (m *Matrix) Overlap(samples []string) (present, missing []string) {
	have := make(map[string]struct{}, len(m.Samples))
	for _, s := range m.Samples {
		have[s.Sample] = struct{}{}
	}
	for _, s := range samples {
		if _, ok := have[s]; ok {
			present = append(present, s)
		} else {
			missing = append(missing, s)
		}
	}
	return present, missing
}

// FilterPreview reports, for each of the four filter stages, how many
// samples/loci would be dropped — without mutating the matrix. Grounded
// on a pre-run validation summary.
type FilterPreview struct {
	SamplesBeforeIncludeExclude int
	SamplesAfterIncludeExclude  int
	LociBeforeIncludeExclude    int
	LociAfterIncludeExclude     int
	SamplesDroppedByQuality     int
	LociDroppedByQuality        int
}

// Preview computes a FilterPreview for the given filter configuration
// without altering the matrix.
func (m *Matrix) Preview(sampleFilter, locusFilter Filter, q QualityThresholds) FilterPreview {
	var p FilterPreview
	p.SamplesBeforeIncludeExclude = len(m.Samples)
	p.LociBeforeIncludeExclude = len(m.Loci)

	var keptSamples []AllelicProfile
	for _, s := range m.Samples {
		if sampleFilter.keep(s.Sample) {
			keptSamples = append(keptSamples, s)
		}
	}
	var keptLoci []string
	for _, l := range m.Loci {
		if locusFilter.keep(l) {
			keptLoci = append(keptLoci, l)
		}
	}
	p.SamplesAfterIncludeExclude = len(keptSamples)
	p.LociAfterIncludeExclude = len(keptLoci)

	restricted := make([]AllelicProfile, len(keptSamples))
	for i, s := range keptSamples {
		calls := make(map[string]fingerprint.Fingerprint, len(keptLoci))
		for _, l := range keptLoci {
			if fp, ok := s.Calls[l]; ok {
				calls[l] = fp
			} else {
				calls[l] = fingerprint.Missing
			}
		}
		restricted[i] = AllelicProfile{Sample: s.Sample, Calls: calls}
	}
	finalSamples, finalLoci := qualityFilter(restricted, keptLoci, q)
	p.SamplesDroppedByQuality = len(keptSamples) - len(finalSamples)
	p.LociDroppedByQuality = len(keptLoci) - len(finalLoci)
	return p
}

// DiversityCategory classifies a locus's diversity index.
type DiversityCategory string

const (
	Low      DiversityCategory = "Low"
	Moderate DiversityCategory = "Moderate"
	High     DiversityCategory = "High"
)

// Diversity summarizes allelic diversity across the matrix's loci.
type Diversity struct {
	AvgUniqueAlleles float64
	DiversityIndex   float64
	Category         DiversityCategory
	TotalUniquePairs int64
	PerLocusUnique   map[string]int
}

// ComputeDiversity scans each locus in parallel for its count of distinct
// non-missing fingerprints and derives the aggregate diversity metrics
// from the allelic matrix.
func (m *Matrix) ComputeDiversity() Diversity {
	n := len(m.Loci)
	unique := make([]int, n)

	workers := runtime.NumCPU()
	if workers > n && n > 0 {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	idxCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxCh {
				locus := m.Loci[i]
				seen := make(map[string]struct{})
				for _, s := range m.Samples {
					fp := s.Calls[locus]
					if fp.IsMissing() {
						continue
					}
					seen[fp.String()] = struct{}{}
				}
				unique[i] = len(seen)
			}
		}()
	}
	for i := 0; i < n; i++ {
		idxCh <- i
	}
	close(idxCh)
	wg.Wait()

	perLocus := make(map[string]int, n)
	var sumUnique int64
	var totalPairs int64
	for i, l := range m.Loci {
		perLocus[l] = unique[i]
		sumUnique += int64(unique[i])
		u := int64(unique[i])
		totalPairs += u * (u - 1) / 2
	}

	nSamples := len(m.Samples)
	var avg, index float64
	if n > 0 {
		avg = float64(sumUnique) / float64(n)
	}
	if nSamples > 0 {
		index = avg / float64(nSamples)
	}

	category := Low
	switch {
	case index >= 0.6:
		category = High
	case index >= 0.3:
		category = Moderate
	}

	return Diversity{
		AvgUniqueAlleles: avg,
		DiversityIndex:   index,
		Category:         category,
		TotalUniquePairs: totalPairs,
		PerLocusUnique:   perLocus,
	}
}

// UniquePairs enumerates, for every locus, the set of distinct unordered
// fingerprint pairs that occur across all samples at that locus — the
// pairs the distance assembler could ever need aligned. This is typically
// orders of magnitude smaller than samples-squared x loci.
func (m *Matrix) UniquePairs() map[string][][2]fingerprint.Fingerprint {
	out := make(map[string][][2]fingerprint.Fingerprint, len(m.Loci))
	for _, locus := range m.Loci {
		distinct := make(map[string]fingerprint.Fingerprint)
		for _, s := range m.Samples {
			fp := s.Calls[locus]
			if fp.IsMissing() {
				continue
			}
			distinct[fp.String()] = fp
		}
		keys := make([]string, 0, len(distinct))
		for k := range distinct {
			keys = append(keys, k)
		}
		var pairs [][2]fingerprint.Fingerprint
		for i := 0; i < len(keys); i++ {
			for j := i + 1; j < len(keys); j++ {
				a, b := distinct[keys[i]], distinct[keys[j]]
				low, high := fingerprint.Canonical(a, b)
				pairs = append(pairs, [2]fingerprint.Fingerprint{low, high})
			}
		}
		if len(pairs) > 0 {
			out[locus] = pairs
		}
	}
	return out
}
