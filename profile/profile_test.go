package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shenwei356/cgdist/fingerprint"
)

func profileMatrix() *Matrix {
	mk := func(sample string, calls ...fingerprint.Fingerprint) AllelicProfile {
		m := map[string]fingerprint.Fingerprint{"L1": calls[0], "L2": calls[1], "L3": calls[2]}
		return AllelicProfile{Sample: sample, Calls: m}
	}
	return &Matrix{
		Loci: []string{"L1", "L2", "L3"},
		Samples: []AllelicProfile{
			mk("A", fingerprint.NewInt(1), fingerprint.NewInt(1), fingerprint.NewInt(1)),
			mk("B", fingerprint.NewInt(1), fingerprint.NewInt(2), fingerprint.NewInt(1)),
			mk("C", fingerprint.NewInt(1), fingerprint.NewInt(2), fingerprint.NewInt(2)),
		},
	}
}

func TestApplyNoopFilterKeepsEverything(t *testing.T) {
	m := profileMatrix()
	out, err := m.Apply(Filter{}, Filter{}, QualityThresholds{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Samples) != 3 || len(out.Loci) != 3 {
		t.Fatalf("expected matrix unchanged, got %d samples %d loci", len(out.Samples), len(out.Loci))
	}
}

func TestApplyIncludeSet(t *testing.T) {
	m := profileMatrix()
	out, err := m.Apply(Filter{IncludeSet: map[string]struct{}{"A": {}, "B": {}}}, Filter{}, QualityThresholds{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(out.Samples))
	}
}

func TestFilterIdempotence(t *testing.T) {
	m := profileMatrix()
	f1 := Filter{ExcludeSet: map[string]struct{}{"C": {}}}
	q := QualityThresholds{SampleThreshold: 0.5, LocusThreshold: 0.5}
	out1, err := m.Apply(f1, Filter{}, q)
	if err != nil {
		t.Fatal(err)
	}
	out2, err := out1.Apply(Filter{}, Filter{}, q)
	if err != nil {
		t.Fatal(err)
	}
	if len(out1.Samples) != len(out2.Samples) || len(out1.Loci) != len(out2.Loci) {
		t.Fatalf("expected idempotent filtering: %d/%d vs %d/%d",
			len(out1.Samples), len(out1.Loci), len(out2.Samples), len(out2.Loci))
	}
}

func TestQualityFilterDropsSamplesBeforeLoci(t *testing.T) {
	// A{L1,L2}, B{L1 only}, C{neither}. At 0.5/0.5, C must be dropped
	// first; only then does L2 survive at 1/2 = 0.5 over {A,B}.
	m := &Matrix{
		Loci: []string{"L1", "L2"},
		Samples: []AllelicProfile{
			{Sample: "A", Calls: map[string]fingerprint.Fingerprint{"L1": fingerprint.NewInt(1), "L2": fingerprint.NewInt(1)}},
			{Sample: "B", Calls: map[string]fingerprint.Fingerprint{"L1": fingerprint.NewInt(1), "L2": fingerprint.Missing}},
			{Sample: "C", Calls: map[string]fingerprint.Fingerprint{"L1": fingerprint.Missing, "L2": fingerprint.Missing}},
		},
	}
	q := QualityThresholds{SampleThreshold: 0.5, LocusThreshold: 0.5}
	out, err := m.Apply(Filter{}, Filter{}, q)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Samples) != 2 || len(out.Loci) != 2 {
		t.Fatalf("expected {A,B}x{L1,L2}, got %d samples x %d loci", len(out.Samples), len(out.Loci))
	}
}

func TestQualityFilterIsAFixedPoint(t *testing.T) {
	// A{L1,L2,L3}, B{L2,L3}, C{L2,L3}, D{L1 only}. At 0.5/0.5 over all
	// four samples L1 would pass at 2/4 = 0.5, but samples are filtered
	// first: D (1/3) is dropped, and L1 then falls to 1/3 over {A,B,C}
	// and is dropped too. Filtering the result again must change nothing.
	mk := func(sample string, l1, l2, l3 bool) AllelicProfile {
		pick := func(present bool, v uint32) fingerprint.Fingerprint {
			if present {
				return fingerprint.NewInt(v)
			}
			return fingerprint.Missing
		}
		return AllelicProfile{Sample: sample, Calls: map[string]fingerprint.Fingerprint{
			"L1": pick(l1, 1), "L2": pick(l2, 2), "L3": pick(l3, 3),
		}}
	}
	m := &Matrix{
		Loci: []string{"L1", "L2", "L3"},
		Samples: []AllelicProfile{
			mk("A", true, true, true),
			mk("B", false, true, true),
			mk("C", false, true, true),
			mk("D", true, false, false),
		},
	}
	q := QualityThresholds{SampleThreshold: 0.5, LocusThreshold: 0.5}

	out1, err := m.Apply(Filter{}, Filter{}, q)
	if err != nil {
		t.Fatal(err)
	}
	out2, err := out1.Apply(Filter{}, Filter{}, q)
	if err != nil {
		t.Fatal(err)
	}
	if len(out1.Samples) != len(out2.Samples) || len(out1.Loci) != len(out2.Loci) {
		t.Fatalf("filtering is not a fixed point: %d/%d vs %d/%d",
			len(out1.Samples), len(out1.Loci), len(out2.Samples), len(out2.Loci))
	}
	if len(out1.Samples) != 3 || len(out1.Loci) != 2 {
		t.Fatalf("expected {A,B,C}x{L2,L3}, got %d samples x %d loci", len(out1.Samples), len(out1.Loci))
	}
}

func TestEmptyMatrixIsError(t *testing.T) {
	m := profileMatrix()
	_, err := m.Apply(Filter{IncludeSet: map[string]struct{}{"nobody": {}}}, Filter{}, QualityThresholds{})
	if err != ErrEmptyMatrix {
		t.Fatalf("expected ErrEmptyMatrix, got %v", err)
	}
}

func TestDiversity(t *testing.T) {
	m := profileMatrix()
	d := m.ComputeDiversity()
	// L1: 1 unique, L2: 2 unique, L3: 2 unique -> avg = 5/3
	if d.PerLocusUnique["L1"] != 1 || d.PerLocusUnique["L2"] != 2 || d.PerLocusUnique["L3"] != 2 {
		t.Fatalf("unexpected per-locus unique counts: %+v", d.PerLocusUnique)
	}
}

func TestUniquePairs(t *testing.T) {
	m := profileMatrix()
	pairs := m.UniquePairs()
	if len(pairs["L1"]) != 0 {
		t.Fatalf("L1 has a single allele, expected 0 pairs, got %d", len(pairs["L1"]))
	}
	if len(pairs["L2"]) != 1 {
		t.Fatalf("L2 has two alleles, expected 1 pair, got %d", len(pairs["L2"]))
	}
}

func TestLoadTSV(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "profiles.tsv")
	content := "Sample\tL1\tL2\tL3\nA\t1\t1\t1\nB\t1\t2\t1\nC\t1\t2\t2\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	h, _ := fingerprint.Lookup("hamming")
	m, err := Load(p, LoadOptions{Separator: '\t', MissingMarker: "-", Hasher: h})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Samples) != 3 || len(m.Loci) != 3 {
		t.Fatalf("expected 3 samples x 3 loci, got %d x %d", len(m.Samples), len(m.Loci))
	}
}

func TestOverlap(t *testing.T) {
	m := profileMatrix()
	present, missing := m.Overlap([]string{"A", "Z"})
	if len(present) != 1 || present[0] != "A" {
		t.Fatalf("expected [A] present, got %v", present)
	}
	if len(missing) != 1 || missing[0] != "Z" {
		t.Fatalf("expected [Z] missing, got %v", missing)
	}
}
