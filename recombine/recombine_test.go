package recombine

import (
	"testing"

	"github.com/shenwei356/cgdist/cache"
	"github.com/shenwei356/cgdist/distmode"
	"github.com/shenwei356/cgdist/fingerprint"
	"github.com/shenwei356/cgdist/profile"
	"github.com/shenwei356/cgdist/scoring"
)

func buildSinglePairFixture(t *testing.T) (*cache.Cache, *profile.Matrix) {
	t.Helper()
	f1, f2 := fingerprint.NewInt(11), fingerprint.NewInt(22)

	m := &profile.Matrix{
		Loci: []string{"L"},
		Samples: []profile.AllelicProfile{
			{Sample: "S1", Calls: map[string]fingerprint.Fingerprint{"L": f1}},
			{Sample: "S2", Calls: map[string]fingerprint.Fingerprint{"L": f2}},
		},
	}

	c := cache.New(scoring.DefaultDNA(), "crc32", distmode.SnpsOnly)
	c.Insert("L", f1, f2, 20, 0, 0)
	if !c.SetSequenceLengths("L", f1, f2, 100, 100) {
		t.Fatal("expected entry to exist for length enrichment")
	}
	return c, m
}

func TestRecombinationScanEmitsAboveThreshold(t *testing.T) {
	c, m := buildSinglePairFixture(t)
	res := Run(Inputs{
		Cache: c, Matrix: m,
		LocusThreshold: 0, SampleThreshold: 0,
		HammingUpperBound: 5, DensityThreshold: 3,
	})
	if len(res.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(res.Events))
	}
	e := res.Events[0]
	if e.TotalDensity != 20 {
		t.Fatalf("expected total_density=20, got %v", e.TotalDensity)
	}
	if len(res.Pairs) != 1 || res.Pairs[0].RecombiningLociCount != 1 {
		t.Fatalf("unexpected pair summary: %+v", res.Pairs)
	}
}

func TestRecombinationScanBelowThresholdOmitted(t *testing.T) {
	c, m := buildSinglePairFixture(t)
	res := Run(Inputs{
		Cache: c, Matrix: m,
		LocusThreshold: 0, SampleThreshold: 0,
		HammingUpperBound: 5, DensityThreshold: 30,
	})
	if len(res.Events) != 0 {
		t.Fatalf("expected no events above a 30%% threshold, got %d", len(res.Events))
	}
}

func TestRecombinationScanHammingScreenExcludesPair(t *testing.T) {
	c, m := buildSinglePairFixture(t)
	res := Run(Inputs{
		Cache: c, Matrix: m,
		LocusThreshold: 0, SampleThreshold: 0,
		HammingUpperBound: 0, DensityThreshold: 3, // the pair differs at 1 locus > H=0
	})
	if len(res.Events) != 0 {
		t.Fatalf("expected the Hamming screen to exclude the pair, got %d events", len(res.Events))
	}
}
