package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shenwei356/cgdist/cache"
	"github.com/shenwei356/cgdist/distmode"
	"github.com/shenwei356/cgdist/fingerprint"
	"github.com/shenwei356/cgdist/scoring"
	"github.com/shenwei356/cgdist/seqdb"
)

func writeFasta(t *testing.T, dir, locus string, records map[string][]byte) string {
	t.Helper()
	path := filepath.Join(dir, locus+".fasta")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for id, seq := range records {
		if _, err := f.WriteString(">" + id + "\n" + string(seq) + "\n"); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestRunSetsLengthsAndLeavesCountsUnchanged(t *testing.T) {
	h, _ := fingerprint.Lookup("sequence")
	seq1, seq2 := []byte("ACGTACGT"), []byte("ACGTACGG")
	f1, f2 := h.HashSequence(seq1), h.HashSequence(seq2)

	c := cache.New(scoring.DefaultDNA(), "sequence", distmode.SnpsOnly)
	c.Insert("L1", f1, f2, 1, 0, 0)

	dir := t.TempDir()
	writeFasta(t, dir, "L1", map[string][]byte{"rec1": seq1, "rec2": seq2})
	sources, err := seqdb.DiscoverDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}
	db, err := seqdb.Load(sources, h, nil)
	if err != nil {
		t.Fatal(err)
	}

	res := Run(c, db)
	if res.EntriesTouched != 1 || res.EntriesSkipped != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	entry, ok := c.Get("L1", f1, f2)
	if !ok {
		t.Fatal("entry vanished after enrichment")
	}
	if entry.SNPs != 1 || entry.IndelEvents != 0 || entry.IndelBases != 0 {
		t.Fatalf("enrichment must not touch mutation counts, got %+v", entry)
	}
	if entry.Seq1Length == nil || entry.Seq2Length == nil {
		t.Fatal("expected both lengths to be populated")
	}
	if *entry.Seq1Length != 8 || *entry.Seq2Length != 8 {
		t.Fatalf("unexpected lengths: %d %d", *entry.Seq1Length, *entry.Seq2Length)
	}
}

func TestRunSkipsEntriesAbsentFromSchema(t *testing.T) {
	h, _ := fingerprint.Lookup("sequence")
	seq1, seq2 := []byte("ACGTACGT"), []byte("ACGTACGG")
	f1, f2 := h.HashSequence(seq1), h.HashSequence(seq2)

	c := cache.New(scoring.DefaultDNA(), "sequence", distmode.SnpsOnly)
	c.Insert("L1", f1, f2, 1, 0, 0)

	dir := t.TempDir()
	writeFasta(t, dir, "L1", map[string][]byte{"rec1": seq1}) // f2 missing from schema
	sources, err := seqdb.DiscoverDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}
	db, err := seqdb.Load(sources, h, nil)
	if err != nil {
		t.Fatal(err)
	}

	res := Run(c, db)
	if res.EntriesTouched != 0 || res.EntriesSkipped != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	entry, _ := c.Get("L1", f1, f2)
	if entry.Seq1Length != nil || entry.Seq2Length != nil {
		t.Fatal("partial enrichment must leave the entry's lengths unset")
	}
}
