package distance

import (
	"testing"

	"github.com/shenwei356/cgdist/align"
	"github.com/shenwei356/cgdist/cache"
	"github.com/shenwei356/cgdist/distmode"
	"github.com/shenwei356/cgdist/fingerprint"
	"github.com/shenwei356/cgdist/profile"
	"github.com/shenwei356/cgdist/scoring"
)

func buildS1Matrix() *profile.Matrix {
	mk := func(sample string, a, b, c uint32) profile.AllelicProfile {
		return profile.AllelicProfile{
			Sample: sample,
			Calls: map[string]fingerprint.Fingerprint{
				"L1": fingerprint.NewInt(a),
				"L2": fingerprint.NewInt(b),
				"L3": fingerprint.NewInt(c),
			},
		}
	}
	return &profile.Matrix{
		Loci: []string{"L1", "L2", "L3"},
		Samples: []profile.AllelicProfile{
			mk("A", 1, 1, 1),
			mk("B", 1, 2, 1),
			mk("C", 1, 2, 2),
		},
	}
}

func TestDistanceMatrixHammingHasherFallback(t *testing.T) {
	m := buildS1Matrix()
	c := cache.New(scoring.DefaultDNA(), "hamming", distmode.SnpsOnly)
	e := align.NewEngine(scoring.DefaultDNA(), nil, "hamming", c)

	got := Run(e, m, distmode.SnpsOnly, 1, false)
	want := [][]int{{0, 1, 2}, {1, 0, 1}, {2, 1, 0}}

	for i := range want {
		for j := range want[i] {
			v := got.Values[i][j]
			if v == nil {
				t.Fatalf("unexpected undefined distance at (%d,%d)", i, j)
			}
			if *v != want[i][j] {
				t.Fatalf("distance(%s,%s)=%d, want %d", got.Samples[i], got.Samples[j], *v, want[i][j])
			}
		}
	}
}

func TestDistanceIdentityAndSymmetry(t *testing.T) {
	m := buildS1Matrix()
	c := cache.New(scoring.DefaultDNA(), "hamming", distmode.SnpsOnly)
	e := align.NewEngine(scoring.DefaultDNA(), nil, "hamming", c)
	got := Run(e, m, distmode.SnpsOnly, 1, false)

	for i := range got.Samples {
		if *got.Values[i][i] != 0 {
			t.Fatalf("distance(%s,%s) must be 0, got %d", got.Samples[i], got.Samples[i], *got.Values[i][i])
		}
		for j := range got.Samples {
			if (got.Values[i][j] == nil) != (got.Values[j][i] == nil) {
				t.Fatalf("matrix not symmetric in definedness at (%d,%d)", i, j)
			}
			if got.Values[i][j] != nil && *got.Values[i][j] != *got.Values[j][i] {
				t.Fatalf("matrix not symmetric at (%d,%d)", i, j)
			}
		}
	}
}

func TestDistanceNoHammingFallbackCollapsesToZero(t *testing.T) {
	m := buildS1Matrix()
	c := cache.New(scoring.DefaultDNA(), "hamming", distmode.SnpsOnly)
	e := align.NewEngine(scoring.DefaultDNA(), nil, "hamming", c)

	got := Run(e, m, distmode.SnpsOnly, 1, true)
	for i := range got.Samples {
		for j := range got.Samples {
			if i == j {
				continue
			}
			if *got.Values[i][j] != 0 {
				t.Fatalf("expected 0 with no_hamming_fallback=true at (%d,%d), got %d", i, j, *got.Values[i][j])
			}
		}
	}
}

func TestDistanceSharedLociGating(t *testing.T) {
	m := &profile.Matrix{
		Loci: []string{"L1"},
		Samples: []profile.AllelicProfile{
			{Sample: "A", Calls: map[string]fingerprint.Fingerprint{"L1": fingerprint.Missing}},
			{Sample: "B", Calls: map[string]fingerprint.Fingerprint{"L1": fingerprint.NewInt(1)}},
		},
	}
	c := cache.New(scoring.DefaultDNA(), "hamming", distmode.SnpsOnly)
	e := align.NewEngine(scoring.DefaultDNA(), nil, "hamming", c)

	a := &Assembler{Engine: e, Mode: distmode.SnpsOnly, MinLoci: 1, NoHammingFallback: false}
	_, ok := a.Distance(m, 0, 1)
	if ok {
		t.Fatal("expected undefined distance when shared loci fall below min_loci")
	}
}
