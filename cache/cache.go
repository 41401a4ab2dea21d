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

// Package cache implements the persistent, parameter-versioned alignment
// cache: a keyed store of per-pair (snps, indel_events, indel_bases)
// statistics, LZ4-framed and JSON-encoded to disk (format_version 2),
// with read-only support for the legacy v1 binary format.
package cache

import (
	"sync"
	"time"

	"github.com/shenwei356/cgdist/distmode"
	"github.com/shenwei356/cgdist/fingerprint"
	"github.com/shenwei356/cgdist/scoring"
)

// FormatVersion is the current on-disk document version written by Save.
const FormatVersion = 2

// Key identifies a cached alignment: a locus and a canonicalized
// fingerprint pair (Low never greater than High under Fingerprint.Less).
type Key struct {
	Locus string
	Low   fingerprint.Fingerprint
	High  fingerprint.Fingerprint
}

// NewKey canonicalizes (f1, f2) into a Key.
func NewKey(locus string, f1, f2 fingerprint.Fingerprint) Key {
	low, high := fingerprint.Canonical(f1, f2)
	return Key{Locus: locus, Low: low, High: high}
}

// Entry is a cached per-pair alignment statistic. Seq1Length/Seq2Length
// are nil until enrichment populates them.
type Entry struct {
	SNPs         int
	IndelEvents  int
	IndelBases   int
	Seq1Length   *int
	Seq2Length   *int
	ComputedAt   time.Time
}

// Metadata describes the cache's bound parameters and aggregate stats.
type Metadata struct {
	Version         string
	Created         time.Time
	LastModified    time.Time
	AlignmentConfig scoring.Config
	HasherName      string
	DistanceMode    distmode.Mode
	UserNote        string
	TotalEntries    int
	UniqueLoci      int
	FormatVersion   int
}

// Cache is the in-memory map bound to Metadata. Mutation (Insert,
// enrichment) is expected to happen in a distinct bulk-ingest phase per
// its own distinct bulk-ingest phase; Cache itself only guards against accidental concurrent
// read/write with a mutex, it does not attempt lock-free scaling.
type Cache struct {
	mu       sync.RWMutex
	data     map[Key]Entry
	Metadata Metadata
	dirty    bool
}

// New creates an empty cache bound to the given alignment config, hasher
// name, and distance mode.
func New(cfg scoring.Config, hasherName string, mode distmode.Mode) *Cache {
	now := timeNow()
	return &Cache{
		data: make(map[Key]Entry),
		Metadata: Metadata{
			Version:         "1.0",
			Created:         now,
			LastModified:    now,
			AlignmentConfig: cfg,
			HasherName:      hasherName,
			DistanceMode:    mode,
			FormatVersion:   FormatVersion,
		},
	}
}

// timeNow is a seam so tests can observe strictly-advancing timestamps
// without depending on wall-clock resolution.
var timeNow = time.Now

// Get returns the cached triple for (locus, f1, f2), canonicalizing the
// pair first.
func (c *Cache) Get(locus string, f1, f2 fingerprint.Fingerprint) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.data[NewKey(locus, f1, f2)]
	return e, ok
}

// Contains reports whether (locus, f1, f2) has a cached entry.
func (c *Cache) Contains(locus string, f1, f2 fingerprint.Fingerprint) bool {
	_, ok := c.Get(locus, f1, f2)
	return ok
}

// Insert records a pair's alignment statistics, canonicalizing the pair
// first. Last-writer-wins is acceptable: (locus, fingerprint pair)
// determines the triple deterministically, so repeated inserts agree.
func (c *Cache) Insert(locus string, f1, f2 fingerprint.Fingerprint, snps, indelEvents, indelBases int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := NewKey(locus, f1, f2)
	if _, existed := c.data[key]; !existed {
		c.Metadata.TotalEntries++
	}
	c.data[key] = Entry{SNPs: snps, IndelEvents: indelEvents, IndelBases: indelBases, ComputedAt: timeNow()}
	c.dirty = true
}

// setEntry stores e under an already-canonical key, skipping NewKey, and
// marks the cache dirty. Enrichment uses SetSequenceLengths, not this.
func (c *Cache) setEntry(key Key, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = e
	c.dirty = true
}

// SetSequenceLengths records the sequence lengths observed for the low
// and high fingerprints of an existing entry, leaving every other field
// untouched (the additivity invariant: enrichment never alters existing counters). Reports false and
// does nothing if (locus, f1, f2) has no cached entry.
func (c *Cache) SetSequenceLengths(locus string, f1, f2 fingerprint.Fingerprint, len1, len2 int) bool {
	key := NewKey(locus, f1, f2)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok {
		return false
	}
	e.Seq1Length = &len1
	e.Seq2Length = &len2
	c.data[key] = e
	c.dirty = true
	return true
}

// Keys returns every key currently in the cache, read-only, for callers
// that need to iterate without the per-entry callback shape of Each.
func (c *Cache) Keys() []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]Key, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	return keys
}

// SetUserNote appends a note to the cache's metadata user note, used by
// enrichment to record that it ran.
func (c *Cache) SetUserNote(note string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Metadata.UserNote == "" {
		c.Metadata.UserNote = note
	} else {
		c.Metadata.UserNote = c.Metadata.UserNote + " " + note
	}
	c.Metadata.LastModified = timeNow()
	c.dirty = true
}

// Each calls fn once per cache entry in an unspecified order, read-only.
// Used by enrichment and the recombination scan's single streaming pass.
func (c *Cache) Each(fn func(Key, Entry)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, e := range c.data {
		fn(k, e)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// IsDirty reports whether the cache has unsaved mutations.
func (c *Cache) IsDirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

func uniqueLoci(data map[Key]Entry) int {
	seen := make(map[string]struct{})
	for k := range data {
		seen[k.Locus] = struct{}{}
	}
	return len(seen)
}

// Summary is a per-locus and aggregate accounting of a cache's contents,
// grounded on a cache inspector's summary view.
type Summary struct {
	TotalEntries    int
	UniqueLoci      int
	TotalSNPs       int64
	TotalIndelEvents int64
	TotalIndelBases int64
	PerLocusEntries map[string]int
}

// Summarize computes a Summary in a single read-only pass.
func (c *Cache) Summarize() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Summary{PerLocusEntries: make(map[string]int)}
	for k, e := range c.data {
		s.TotalEntries++
		s.PerLocusEntries[k.Locus]++
		s.TotalSNPs += int64(e.SNPs)
		s.TotalIndelEvents += int64(e.IndelEvents)
		s.TotalIndelBases += int64(e.IndelBases)
	}
	s.UniqueLoci = len(s.PerLocusEntries)
	return s
}
