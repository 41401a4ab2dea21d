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

// Package fingerprint implements the tagged allele fingerprint value and
// the pluggable hasher registry used to turn a raw profile cell or a FASTA
// record into one.
package fingerprint

import (
	"fmt"
)

// Kind discriminates the representation carried by a Fingerprint.
type Kind uint8

const (
	// KindMissing marks an absent allele call.
	KindMissing Kind = iota
	// KindInt carries a 32-bit integer fingerprint, e.g. a CRC32 allele number.
	KindInt
	// KindString carries an opaque string fingerprint, e.g. a hex digest.
	KindString
)

// MissingCRC32 is the reserved integer value CRC32-family hashers treat as
// equivalent to the missing marker.
const MissingCRC32 = uint32(0xFFFFFFFF)

// Fingerprint is a tagged allele identifier: either an integer, an opaque
// string, or the reserved missing marker. The zero value is Missing.
type Fingerprint struct {
	kind Kind
	i    uint32
	s    string
}

// Missing is the canonical missing-allele fingerprint.
var Missing = Fingerprint{kind: KindMissing}

// NewInt builds an integer fingerprint, collapsing the reserved CRC32
// all-ones value to Missing per the fingerprint invariant.
func NewInt(v uint32) Fingerprint {
	if v == MissingCRC32 {
		return Missing
	}
	return Fingerprint{kind: KindInt, i: v}
}

// NewString builds an opaque string fingerprint. An empty string is
// treated as Missing.
func NewString(s string) Fingerprint {
	if s == "" {
		return Missing
	}
	return Fingerprint{kind: KindString, s: s}
}

// IsMissing reports whether the fingerprint is the missing marker.
func (f Fingerprint) IsMissing() bool { return f.kind == KindMissing }

// Kind returns the fingerprint's representation tag.
func (f Fingerprint) Kind() Kind { return f.kind }

// Int returns the integer payload and true iff Kind() == KindInt.
func (f Fingerprint) Int() (uint32, bool) { return f.i, f.kind == KindInt }

// String renders the fingerprint for display and for serialization keys.
// Integer fingerprints render as decimal; string fingerprints render
// as-is; missing renders as "-".
func (f Fingerprint) String() string {
	switch f.kind {
	case KindInt:
		return fmt.Sprintf("%d", f.i)
	case KindString:
		return f.s
	default:
		return "-"
	}
}

// Equal reports whether two fingerprints denote the same allele. Missing
// never equals anything, including another missing fingerprint, since
// "no call" carries no identity information for same/different decisions.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if f.kind == KindMissing || other.kind == KindMissing {
		return false
	}
	if f.kind != other.kind {
		return false
	}
	if f.kind == KindInt {
		return f.i == other.i
	}
	return f.s == other.s
}

// Less defines the total order used to canonicalize fingerprint pairs for
// cache keys: Missing < Int < String, ties broken by payload.
func (f Fingerprint) Less(other Fingerprint) bool {
	if f.kind != other.kind {
		return f.kind < other.kind
	}
	switch f.kind {
	case KindInt:
		return f.i < other.i
	case KindString:
		return f.s < other.s
	default:
		return false
	}
}

// Canonical returns (low, high) such that low is not greater than high
// under Less, so that identical pairs (a, a) map to (a, a) and any pair
// (a, b) maps to the same canonical order regardless of call order.
func Canonical(a, b Fingerprint) (low, high Fingerprint) {
	if b.Less(a) {
		return b, a
	}
	return a, b
}
