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

// Package seqdb loads the locus -> fingerprint -> nucleotide-sequence
// database backing the alignment engine, from either a directory of FASTA
// files (one per locus) or a tab-separated index file.
package seqdb

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/util/pathutil"

	"github.com/shenwei356/cgdist/fingerprint"
)

// SequenceInfo is an immutable loaded FASTA record.
type SequenceInfo struct {
	ID  string // original FASTA record identifier
	Seq []byte // nucleotide bytes, as read
}

// LocusFingerprint names a required (locus, fingerprint) pair for
// selective loading.
type LocusFingerprint struct {
	Locus       string
	Fingerprint fingerprint.Fingerprint
}

// Database is a read-only, two-level locus -> fingerprint -> SequenceInfo
// map. It is built once by Load and never mutated afterwards, so lookups
// from concurrent alignment workers need no locking.
type Database struct {
	byLocus map[string]map[string]SequenceInfo // keyed by fingerprint.String()
}

// Get looks up the sequence for a (locus, fingerprint) pair.
func (d *Database) Get(locus string, f fingerprint.Fingerprint) (SequenceInfo, bool) {
	m, ok := d.byLocus[locus]
	if !ok {
		return SequenceInfo{}, false
	}
	info, ok := m[f.String()]
	return info, ok
}

// ErrFingerprintCollision is returned when two distinct sequences at the
// same locus hash to the same fingerprint.
type ErrFingerprintCollision struct {
	Locus      string
	Fp         string
	RecordID1  string
	RecordID2  string
}

func (e *ErrFingerprintCollision) Error() string {
	return "seqdb: fingerprint collision at locus " + e.Locus + " (" + e.Fp + "): " +
		e.RecordID1 + " and " + e.RecordID2 + " hash the same but differ"
}

// Source describes where to load a locus's FASTA data from.
type Source struct {
	Locus string
	Path  string
}

// DiscoverDirectory lists locus FASTA sources from a directory, matching
// file stems against *.fasta/*.fa (optionally gzipped).
func DiscoverDirectory(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "seqdb: reading schema directory %s", dir)
	}
	var sources []Source
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		base := name
		for _, ext := range []string{".gz"} {
			base = strings.TrimSuffix(base, ext)
		}
		ext := filepath.Ext(base)
		if ext != ".fasta" && ext != ".fa" {
			continue
		}
		locus := strings.TrimSuffix(filepath.Base(base), ext)
		sources = append(sources, Source{Locus: locus, Path: filepath.Join(dir, name)})
	}
	return sources, nil
}

// DiscoverIndex parses a tab-separated index file: lines of
// "locus_name\tfasta_path", "#"-prefixed lines are comments, blank lines
// are ignored.
func DiscoverIndex(indexPath string) ([]Source, error) {
	f, err := os.Open(indexPath)
	if err != nil {
		return nil, errors.Wrapf(err, "seqdb: opening index file %s", indexPath)
	}
	defer f.Close()

	var sources []Source
	base := filepath.Dir(indexPath)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("seqdb: malformed index line %q, expected locus<TAB>path", line)
		}
		path := parts[1]
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		sources = append(sources, Source{Locus: parts[0], Path: path})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "seqdb: reading index file %s", indexPath)
	}
	return sources, nil
}

// Schema resolves a schema input (a directory or an index file) to its
// Source list.
func Schema(path string) ([]Source, error) {
	isDir, err := pathutil.DirExists(path)
	if err != nil {
		return nil, errors.Wrapf(err, "seqdb: checking schema path %s", path)
	}
	if isDir {
		return DiscoverDirectory(path)
	}
	exists, err := pathutil.Exists(path)
	if err != nil {
		return nil, errors.Wrapf(err, "seqdb: checking schema path %s", path)
	}
	if !exists {
		return nil, errors.Errorf("seqdb: schema path does not exist: %s", path)
	}
	return DiscoverIndex(path)
}

// Load builds a Database from sources, parallel across loci (a pool of up
// to runtime.NumCPU() workers, each locus read serially by one worker).
// When required is non-nil, only
// records whose (locus, fingerprint) is in required are retained
// (selective mode); otherwise every record is hashed and retained.
//
// h fingerprints each record's sequence to determine its key.
func Load(sources []Source, h fingerprint.Hasher, required map[LocusFingerprint]struct{}) (*Database, error) {
	type result struct {
		locus string
		m     map[string]SequenceInfo
		err   error
	}

	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	if workers > len(sources) && len(sources) > 0 {
		workers = len(sources)
	}

	jobs := make(chan Source)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range jobs {
				m, err := loadLocus(src, h, required)
				results <- result{locus: src.Locus, m: m, err: err}
			}
		}()
	}

	go func() {
		for _, src := range sources {
			jobs <- src
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	db := &Database{byLocus: make(map[string]map[string]SequenceInfo, len(sources))}
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		db.byLocus[r.locus] = r.m
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return db, nil
}

func wantLocus(locus string, required map[LocusFingerprint]struct{}) bool {
	if required == nil {
		return true
	}
	for lf := range required {
		if lf.Locus == locus {
			return true
		}
	}
	return false
}

func wanted(locus string, f fingerprint.Fingerprint, required map[LocusFingerprint]struct{}) bool {
	if required == nil {
		return true
	}
	_, ok := required[LocusFingerprint{Locus: locus, Fingerprint: f}]
	return ok
}

func loadLocus(src Source, h fingerprint.Hasher, required map[LocusFingerprint]struct{}) (map[string]SequenceInfo, error) {
	if !wantLocus(src.Locus, required) {
		return map[string]SequenceInfo{}, nil
	}

	reader, err := fastx.NewDefaultReader(src.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "seqdb: opening %s for locus %s", src.Path, src.Locus)
	}

	m := make(map[string]SequenceInfo)
	seen := make(map[string]string) // fingerprint.String() -> record ID, for collision reporting
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "seqdb: reading %s", src.Path)
		}

		seq := append([]byte(nil), record.Seq.Seq...)
		fp := h.HashSequence(seq)
		if !wanted(src.Locus, fp, required) {
			continue
		}

		key := fp.String()
		if prevID, ok := seen[key]; ok {
			if prev, ok2 := m[key]; ok2 && string(prev.Seq) != string(seq) {
				return nil, &ErrFingerprintCollision{
					Locus: src.Locus, Fp: key, RecordID1: prevID, RecordID2: string(record.ID),
				}
			}
			continue
		}
		seen[key] = string(record.ID)
		m[key] = SequenceInfo{ID: string(record.ID), Seq: seq}
	}
	return m, nil
}
