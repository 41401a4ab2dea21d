package fingerprint

import "testing"

func TestMissingCollapse(t *testing.T) {
	f := NewInt(MissingCRC32)
	if !f.IsMissing() {
		t.Fatalf("expected 2^32-1 to collapse to missing")
	}
	if !NewString("").IsMissing() {
		t.Fatalf("expected empty string to collapse to missing")
	}
}

func TestEqual(t *testing.T) {
	a := NewInt(42)
	b := NewInt(42)
	c := NewInt(43)
	if !a.Equal(b) {
		t.Fatalf("expected %v == %v", a, b)
	}
	if a.Equal(c) {
		t.Fatalf("expected %v != %v", a, c)
	}
	if Missing.Equal(Missing) {
		t.Fatalf("missing must never equal missing")
	}
}

func TestCanonical(t *testing.T) {
	a, b := NewInt(5), NewInt(2)
	low, high := Canonical(a, b)
	if high.Less(low) {
		t.Fatalf("expected low <= high, got %v, %v", low, high)
	}
	low2, high2 := Canonical(b, a)
	if !low.Equal(low2) || !high.Equal(high2) {
		t.Fatalf("canonicalization must not depend on call order")
	}
}

func TestCRC32ParseAllele(t *testing.T) {
	h, ok := Lookup("crc32")
	if !ok {
		t.Fatalf("crc32 hasher must be registered")
	}
	f, err := h.ParseAllele("-", "-")
	if err != nil || !f.IsMissing() {
		t.Fatalf("expected missing, got %v, err=%v", f, err)
	}
	f, err = h.ParseAllele("NA", "-")
	if err != nil || !f.IsMissing() {
		t.Fatalf("expected missing for NA, got %v, err=%v", f, err)
	}
	f, err = h.ParseAllele("123", "-")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := f.Int()
	if !ok || v != 123 {
		t.Fatalf("expected 123, got %v", f)
	}
	if _, err = h.ParseAllele("not-a-number", "-"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err = h.ParseAllele("4294967295", "-"); err == nil {
		t.Fatalf("expected error for reserved missing integer")
	}
}

func TestSHA256ParseAllele(t *testing.T) {
	h, _ := Lookup("sha256")
	f1, _ := h.ParseAllele("ACGT", "-")
	f2 := h.HashSequence([]byte("ACGT"))
	if !f1.Equal(f2) {
		t.Fatalf("expected hashing a raw token to equal HashSequence")
	}
	digest := f2.String()
	f3, _ := h.ParseAllele(digest, "-")
	if !f3.Equal(f2) {
		t.Fatalf("expected a precomputed digest token to parse as itself")
	}
}
