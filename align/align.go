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

// Package align implements global pairwise alignment with affine gap
// penalties (Gotoh's algorithm) and the cache-aware batch precomputation
// that drives it across the unique fingerprint pairs a distance run
// needs.
//
// The traceback/global-alignment shape is grounded on the linear-gap
// Needleman-Wunsch found in the example pack
// (bioflow-go/internal/alignment/needleman_wunsch.go); it is generalized
// here to three DP matrices so gap-open and gap-extend can differ, which
// the linear-gap reference does not support.
package align

import (
	"strings"

	"github.com/shenwei356/cgdist/scoring"
)

const negInf = -(1 << 30)

// Triple is the (snps, indel_events, indel_bases) statistic
// attaches to every aligned pair.
type Triple struct {
	SNPs        int
	IndelEvents int
	IndelBases  int
}

// Pairwise runs global alignment of a and b under cfg and returns the
// derived mutation triple. It does not themselves consult or update any
// cache; see Engine for the cache-aware entry point.
func Pairwise(a, b []byte, cfg scoring.Config) Triple {
	m, n := len(a), len(b)

	// Three Gotoh matrices: M (diagonal/match end), X (gap in b, i.e. a
	// consumed), Y (gap in a, i.e. b consumed).
	M := make([][]int, m+1)
	X := make([][]int, m+1)
	Y := make([][]int, m+1)
	for i := range M {
		M[i] = make([]int, n+1)
		X[i] = make([]int, n+1)
		Y[i] = make([]int, n+1)
	}

	gapOpenExtend := -(cfg.GapOpen + cfg.GapExtend)
	gapExtend := -cfg.GapExtend

	M[0][0] = 0
	X[0][0] = negInf
	Y[0][0] = negInf
	for i := 1; i <= m; i++ {
		M[i][0] = negInf
		X[i][0] = gapOpenExtend + (i-1)*gapExtend
		Y[i][0] = negInf
	}
	for j := 1; j <= n; j++ {
		M[0][j] = negInf
		X[0][j] = negInf
		Y[0][j] = gapOpenExtend + (j-1)*gapExtend
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			score := cfg.MismatchPenalty
			if a[i-1] == b[j-1] {
				score = cfg.MatchScore
			}
			M[i][j] = max3(M[i-1][j-1], X[i-1][j-1], Y[i-1][j-1]) + score
			X[i][j] = max2(M[i-1][j]+gapOpenExtend, X[i-1][j]+gapExtend)
			Y[i][j] = max2(M[i][j-1]+gapOpenExtend, Y[i][j-1]+gapExtend)
		}
	}

	a1, a2 := traceback(a, b, M, X, Y, gapOpenExtend, gapExtend, cfg)
	return tripleFromAlignment(a1, a2)
}

func traceback(a, b []byte, M, X, Y [][]int, gapOpenExtend, gapExtend int, cfg scoring.Config) (string, string) {
	m, n := len(a), len(b)
	var sb1, sb2 strings.Builder

	i, j := m, n
	// Pick the matrix with the best score at (m, n) to start traceback.
	state := bestState(M[i][j], X[i][j], Y[i][j])

	for i > 0 || j > 0 {
		switch {
		case i == 0:
			sb1.WriteByte('-')
			sb2.WriteByte(b[j-1])
			j--
		case j == 0:
			sb1.WriteByte(a[i-1])
			sb2.WriteByte('-')
			i--
		default:
			switch state {
			case stateM:
				sb1.WriteByte(a[i-1])
				sb2.WriteByte(b[j-1])
				state = bestState(M[i-1][j-1], X[i-1][j-1], Y[i-1][j-1])
				i--
				j--
			case stateX:
				sb1.WriteByte(a[i-1])
				sb2.WriteByte('-')
				if X[i][j] == X[i-1][j]+gapExtend {
					state = stateX
				} else {
					state = stateM
				}
				i--
			default: // stateY
				sb1.WriteByte('-')
				sb2.WriteByte(b[j-1])
				if Y[i][j] == Y[i][j-1]+gapExtend {
					state = stateY
				} else {
					state = stateM
				}
				j--
			}
		}
	}

	return reverseString(sb1.String()), reverseString(sb2.String())
}

type tbState int

const (
	stateM tbState = iota
	stateX
	stateY
)

func bestState(m, x, y int) tbState {
	state := stateM
	best := m
	if x > best {
		best = x
		state = stateX
	}
	if y > best {
		state = stateY
	}
	return state
}

func max2(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func max3(a, b, c int) int {
	return max2(max2(a, b), c)
}

func reverseString(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// tripleFromAlignment derives (snps, indel_events, indel_bases) from a
// pair of equal-length aligned strings: snps counts mismatched non-gap
// columns, indel_bases counts total gap columns (either strand), and
// indel_events counts maximal runs of gap columns.
func tripleFromAlignment(a1, a2 string) Triple {
	var t Triple
	inGapRun := false
	for i := 0; i < len(a1); i++ {
		c1, c2 := a1[i], a2[i]
		isGap := c1 == '-' || c2 == '-'
		if isGap {
			t.IndelBases++
			if !inGapRun {
				t.IndelEvents++
				inGapRun = true
			}
			continue
		}
		inGapRun = false
		if c1 != c2 {
			t.SNPs++
		}
	}
	return t
}
