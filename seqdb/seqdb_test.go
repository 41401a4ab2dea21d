package seqdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shenwei356/cgdist/fingerprint"
)

func writeFasta(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDiscoverDirectoryAndLoad(t *testing.T) {
	dir := t.TempDir()
	writeFasta(t, dir, "L1.fasta", ">r1\nACGT\n>r2\nACCT\n")

	sources, err := DiscoverDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 || sources[0].Locus != "L1" {
		t.Fatalf("expected one locus L1, got %+v", sources)
	}

	h, _ := fingerprint.Lookup("crc32")
	db, err := Load(sources, h, nil)
	if err != nil {
		t.Fatal(err)
	}
	fp := h.HashSequence([]byte("ACGT"))
	info, ok := db.Get("L1", fp)
	if !ok || string(info.Seq) != "ACGT" {
		t.Fatalf("expected ACGT sequence, got %+v ok=%v", info, ok)
	}
}

func TestIdenticalRecordsDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	// Two records with the same sequence share a fingerprint; that is not
	// a collision (only distinct sequences under one fingerprint are), so
	// the load succeeds and keeps a single record.
	writeFasta(t, dir, "L1.fasta", ">r1\nACGT\n>r2\nACGT\n")

	sources, _ := DiscoverDirectory(dir)
	h, _ := fingerprint.Lookup("crc32")
	db, err := Load(sources, h, nil)
	if err != nil {
		t.Fatalf("identical sequences under the same fingerprint must not collide: %v", err)
	}
	if len(db.byLocus["L1"]) != 1 {
		t.Fatalf("expected a single retained record, got %d", len(db.byLocus["L1"]))
	}
}

func TestSelectiveLoad(t *testing.T) {
	dir := t.TempDir()
	writeFasta(t, dir, "L1.fasta", ">r1\nACGT\n>r2\nACCT\n>r3\nTTTT\n")

	sources, _ := DiscoverDirectory(dir)
	h, _ := fingerprint.Lookup("crc32")
	want := h.HashSequence([]byte("ACCT"))
	required := map[LocusFingerprint]struct{}{
		{Locus: "L1", Fingerprint: want}: {},
	}
	db, err := Load(sources, h, required)
	if err != nil {
		t.Fatal(err)
	}
	if len(db.byLocus["L1"]) != 1 {
		t.Fatalf("expected exactly one retained record, got %d", len(db.byLocus["L1"]))
	}
	if _, ok := db.Get("L1", want); !ok {
		t.Fatalf("expected the required fingerprint to be retained")
	}
}
