package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shenwei356/cgdist/distmode"
	"github.com/shenwei356/cgdist/fingerprint"
	"github.com/shenwei356/cgdist/scoring"
)

func crc32H() fingerprint.Hasher {
	h, _ := fingerprint.Lookup("crc32")
	return h
}

func TestInsertCanonicalizes(t *testing.T) {
	c := New(scoring.DefaultDNA(), "crc32", distmode.SnpsOnly)
	a, b := fingerprint.NewInt(5), fingerprint.NewInt(2)
	c.Insert("L1", a, b, 3, 1, 2)

	e, ok := c.Get("L1", b, a) // reversed order must still find it
	if !ok {
		t.Fatalf("expected entry regardless of insertion order")
	}
	if e.SNPs != 3 || e.IndelEvents != 1 || e.IndelBases != 2 {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := New(scoring.DefaultDNA(), "crc32", distmode.SnpsOnly)
	c.Insert("L1", fingerprint.NewInt(1), fingerprint.NewInt(2), 4, 1, 3)
	c.Insert("L2", fingerprint.NewInt(10), fingerprint.NewInt(20), 0, 0, 0)

	dir := t.TempDir()
	path := filepath.Join(dir, "cache.bin")

	firstSave := c.Metadata.LastModified
	time.Sleep(time.Millisecond)
	if err := c.Save(path, distmode.SnpsAndIndelBases); err != nil {
		t.Fatal(err)
	}
	if c.IsDirty() {
		t.Fatalf("cache must be clean after save")
	}
	if !c.Metadata.LastModified.After(firstSave) {
		t.Fatalf("expected last_modified to strictly advance")
	}

	loaded, err := Load(path, scoring.DefaultDNA(), "crc32", crc32H(), false)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Metadata.FormatVersion != FormatVersion {
		t.Fatalf("expected format_version %d, got %d", FormatVersion, loaded.Metadata.FormatVersion)
	}
	if loaded.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", loaded.Len())
	}
	e, ok := loaded.Get("L1", fingerprint.NewInt(2), fingerprint.NewInt(1))
	if !ok || e.SNPs != 4 || e.IndelBases != 3 {
		t.Fatalf("unexpected round-tripped entry: %+v ok=%v", e, ok)
	}
}

func TestLoadRejectsConfigMismatch(t *testing.T) {
	c := New(scoring.Config{MatchScore: 2, MismatchPenalty: -1, GapOpen: 5, GapExtend: 2}, "crc32", distmode.SnpsOnly)
	c.Insert("L1", fingerprint.NewInt(1), fingerprint.NewInt(2), 1, 0, 0)
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.bin")
	if err := c.Save(path, distmode.SnpsOnly); err != nil {
		t.Fatal(err)
	}

	other := scoring.Config{MatchScore: 3, MismatchPenalty: -2, GapOpen: 8, GapExtend: 3}
	_, err := Load(path, other, "crc32", crc32H(), false)
	if errUnwrap(err) != ErrCacheCompat {
		t.Fatalf("expected ErrCacheCompat, got %v", err)
	}

	// force_recompute discards and returns a fresh cache instead of failing.
	fresh, err := Load(path, other, "crc32", crc32H(), true)
	if err != nil {
		t.Fatalf("force_recompute must not fail: %v", err)
	}
	if fresh.Len() != 0 {
		t.Fatalf("expected a fresh empty cache, got %d entries", fresh.Len())
	}
}

func TestLoadDistanceModeMismatchIsNotFatal(t *testing.T) {
	c := New(scoring.DefaultDNA(), "crc32", distmode.SnpsOnly)
	c.Insert("L1", fingerprint.NewInt(1), fingerprint.NewInt(2), 1, 0, 0)
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.bin")
	if err := c.Save(path, distmode.SnpsAndIndelBases); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path, scoring.DefaultDNA(), "crc32", crc32H(), false)
	if err != nil {
		t.Fatalf("distance_mode mismatch alone must not fail load: %v", err)
	}
	_ = loaded
}

func TestLegacyV1Fallback(t *testing.T) {
	cfg := scoring.DefaultDNA()
	data := map[Key]Entry{
		NewKey("L1", fingerprint.NewInt(1), fingerprint.NewInt(2)): {SNPs: 2, IndelEvents: 1, IndelBases: 1},
	}
	var buf bytes.Buffer
	if err := writeV1Legacy(&buf, cfg, "crc32", data); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.bin")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path, cfg, "crc32", crc32H(), false)
	if err != nil {
		t.Fatalf("expected legacy fallback to succeed: %v", err)
	}
	e, ok := c.Get("L1", fingerprint.NewInt(1), fingerprint.NewInt(2))
	if !ok || e.SNPs != 2 {
		t.Fatalf("unexpected legacy entry: %+v ok=%v", e, ok)
	}
}

func TestSummarize(t *testing.T) {
	c := New(scoring.DefaultDNA(), "crc32", distmode.SnpsOnly)
	c.Insert("L1", fingerprint.NewInt(1), fingerprint.NewInt(2), 2, 1, 1)
	c.Insert("L2", fingerprint.NewInt(1), fingerprint.NewInt(2), 0, 0, 0)
	s := c.Summarize()
	if s.TotalEntries != 2 || s.UniqueLoci != 2 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.TotalSNPs != 2 {
		t.Fatalf("expected total snps 2, got %d", s.TotalSNPs)
	}
}

func errUnwrap(err error) error {
	type causer interface{ Cause() error }
	for err != nil {
		if c, ok := err.(causer); ok {
			err = c.Cause()
			continue
		}
		type unwrapper interface{ Unwrap() error }
		if u, ok := err.(unwrapper); ok {
			next := u.Unwrap()
			if next == nil {
				break
			}
			err = next
			continue
		}
		break
	}
	return err
}
