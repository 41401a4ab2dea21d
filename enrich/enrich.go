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

// Package enrich adds per-sequence lengths to an existing alignment
// cache by re-hashing a schema's FASTA records.
package enrich

import (
	"github.com/shenwei356/cgdist/cache"
	"github.com/shenwei356/cgdist/seqdb"
)

// Note is the fixed annotation appended to a cache's user note after a
// successful enrichment run.
const Note = "[Enriched with sequence lengths]"

// Result summarizes what an enrichment pass touched.
type Result struct {
	EntriesTouched int
	EntriesSkipped int // fingerprint absent from the schema on at least one side
}

// Run walks c and looks up both fingerprints of every key in db (expected
// to have been loaded unrestricted, i.e. with a nil required set, so that
// seqdb.Load has re-hashed every schema record), setting
// Seq1Length/Seq2Length wherever both sides of a key's fingerprint pair
// are present in db. Entries whose fingerprints are absent from the
// schema are left unchanged (partial enrichment is expected and fine).
// Only the length fields are ever written; every other entry field, and
// any key with no match in db, is untouched.
func Run(c *cache.Cache, db *seqdb.Database) Result {
	var res Result
	for _, key := range c.Keys() {
		low, lowOK := db.Get(key.Locus, key.Low)
		high, highOK := db.Get(key.Locus, key.High)
		if !lowOK || !highOK {
			res.EntriesSkipped++
			continue
		}
		if c.SetSequenceLengths(key.Locus, key.Low, key.High, len(low.Seq), len(high.Seq)) {
			res.EntriesTouched++
		}
	}
	if res.EntriesTouched > 0 {
		c.SetUserNote(Note)
	}
	return res
}
