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

// Package distance assembles the sample x sample genetic distance matrix
// from a profile matrix and a precomputed alignment engine: per-locus
// lookup with shared-loci gating and a configurable Hamming fallback,
// summed per sample pair, assembled in parallel over the upper triangle.
package distance

import (
	"runtime"
	"sync"

	"github.com/shenwei356/cgdist/align"
	"github.com/shenwei356/cgdist/distmode"
	"github.com/shenwei356/cgdist/profile"
)

// Assembler computes sample-pair distances from a matrix against an
// already-precomputed Engine.
type Assembler struct {
	Engine            *align.Engine
	Mode              distmode.Mode
	MinLoci           int
	NoHammingFallback bool
}

// Matrix is the assembled symmetric sample x sample distance matrix.
// Values[i][j] is nil when the pair's shared-loci count fell below
// MinLoci (rendered "NA" by output writers); Values[i][i] is always 0.
type Matrix struct {
	Samples []string
	Values  [][]*int
}

// Distance returns the distance between m.Samples[i] and m.Samples[j]
// (order-independent) and whether it is defined. A
// shared locus is one where both samples carry a non-missing
// fingerprint; below MinLoci shared loci, the pair's distance is
// undefined.
func (a *Assembler) Distance(m *profile.Matrix, i, j int) (int, bool) {
	if i == j {
		return 0, true
	}
	pi, pj := m.Samples[i], m.Samples[j]
	shared := 0
	sum := 0
	for _, locus := range m.Loci {
		f1 := pi.Calls[locus]
		f2 := pj.Calls[locus]
		if f1.IsMissing() || f2.IsMissing() {
			continue
		}
		shared++
		sum += a.Engine.Get(locus, f1, f2, a.Mode, a.NoHammingFallback)
	}
	if shared < a.MinLoci {
		return 0, false
	}
	return sum, true
}

// BuildMatrix assembles the full symmetric distance matrix, parallelizing
// over upper-triangle row indices. The
// Engine must already have every unique fingerprint pair the matrix can
// produce precomputed; BuildMatrix itself never writes to the cache.
func (a *Assembler) BuildMatrix(m *profile.Matrix) Matrix {
	n := len(m.Samples)
	samples := make([]string, n)
	for i, p := range m.Samples {
		samples[i] = p.Sample
	}

	values := make([][]*int, n)
	for i := range values {
		values[i] = make([]*int, n)
	}
	for i := 0; i < n; i++ {
		zero := 0
		values[i][i] = &zero
	}

	if n < 2 {
		return Matrix{Samples: samples, Values: values}
	}

	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	rows := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				for j := i + 1; j < n; j++ {
					d, ok := a.Distance(m, i, j)
					if !ok {
						continue
					}
					dist := d
					values[i][j] = &dist
					values[j][i] = &dist
				}
			}
		}()
	}
	for i := 0; i < n; i++ {
		rows <- i
	}
	close(rows)
	wg.Wait()

	return Matrix{Samples: samples, Values: values}
}

// Run is the convenience entry point for the full distance-matrix flow:
// collect the matrix's unique fingerprint pairs per locus, precompute
// any that are missing from the cache, then assemble the distance
// matrix.
func Run(e *align.Engine, m *profile.Matrix, mode distmode.Mode, minLoci int, noHammingFallback bool) Matrix {
	pairsByLocus := m.UniquePairs()
	var pairs []align.Pair
	for locus, ps := range pairsByLocus {
		for _, p := range ps {
			pairs = append(pairs, align.Pair{Locus: locus, F1: p[0], F2: p[1]})
		}
	}
	e.Precompute(pairs, mode)

	a := &Assembler{Engine: e, Mode: mode, MinLoci: minLoci, NoHammingFallback: noHammingFallback}
	return a.BuildMatrix(m)
}
