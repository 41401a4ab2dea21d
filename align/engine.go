package align

import (
	"runtime"
	"sync"

	"github.com/shenwei356/cgdist/cache"
	"github.com/shenwei356/cgdist/distmode"
	"github.com/shenwei356/cgdist/fingerprint"
	"github.com/shenwei356/cgdist/scoring"
	"github.com/shenwei356/cgdist/seqdb"
)

// Pair names a single (locus, f1, f2) comparison to precompute.
type Pair struct {
	Locus  string
	F1, F2 fingerprint.Fingerprint
}

// Engine is bound at construction to a scoring config, an optional
// sequence database (with nil, only distmode.Hamming precompute adds
// entries; other modes add none, as for a missing sequence), a hasher
// name (recorded for cache-compat checks upstream), and a live cache it
// reads from and inserts into.
type Engine struct {
	Config     scoring.Config
	DB         *seqdb.Database
	HasherName string
	Cache      *cache.Cache
}

// NewEngine builds an Engine bound to the given cache.
func NewEngine(cfg scoring.Config, db *seqdb.Database, hasherName string, c *cache.Cache) *Engine {
	return &Engine{Config: cfg, DB: db, HasherName: hasherName, Cache: c}
}

// Precompute partitions pairs into already-cached and missing, then
// computes only the missing ones in parallel and bulk-inserts them into
// the cache. This is a hard boundary: all cache writes
// happen here, before any concurrent read-only use (Get) begins.
func (e *Engine) Precompute(pairs []Pair, mode distmode.Mode) {
	var missing []Pair
	for _, p := range pairs {
		if !e.Cache.Contains(p.Locus, p.F1, p.F2) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return
	}

	type outcome struct {
		p      Pair
		triple Triple
		ok     bool
	}

	workers := runtime.NumCPU()
	if workers > len(missing) {
		workers = len(missing)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan Pair)
	results := make(chan outcome)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				t, ok := e.computePair(p, mode)
				results <- outcome{p: p, triple: t, ok: ok}
			}
		}()
	}
	go func() {
		for _, p := range missing {
			jobs <- p
		}
		close(jobs)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	// Serial bulk-ingest: exactly one goroutine ever calls Cache.Insert
	// here, matching the "fill cache in one parallel phase, then read-only"
	// discipline.
	for r := range results {
		if !r.ok {
			continue // MissingSequence: no entry added, assembler sees a cache miss
		}
		e.Cache.Insert(r.p.Locus, r.p.F1, r.p.F2, r.triple.SNPs, r.triple.IndelEvents, r.triple.IndelBases)
	}
}

func (e *Engine) computePair(p Pair, mode distmode.Mode) (Triple, bool) {
	if mode == distmode.Hamming {
		return Triple{SNPs: 1}, true
	}
	if e.DB == nil {
		return Triple{}, false
	}
	s1, ok1 := e.DB.Get(p.Locus, p.F1)
	s2, ok2 := e.DB.Get(p.Locus, p.F2)
	if !ok1 || !ok2 {
		return Triple{}, false
	}
	return Pairwise(s1.Seq, s2.Seq, e.Config), true
}

// Get returns the mode-appropriate projection of the cached triple for
// (locus, f1, f2). Identical fingerprints and any
// missing fingerprint always yield 0 without a cache lookup.
func (e *Engine) Get(locus string, f1, f2 fingerprint.Fingerprint, mode distmode.Mode, noHammingFallback bool) int {
	if f1 == f2 {
		return 0
	}
	if f1.IsMissing() || f2.IsMissing() {
		return 0
	}

	entry, ok := e.Cache.Get(locus, f1, f2)
	projection := 0
	if ok {
		switch mode {
		case distmode.SnpsOnly:
			projection = entry.SNPs
		case distmode.SnpsAndIndelEvents:
			projection = entry.SNPs + entry.IndelEvents
		case distmode.SnpsAndIndelBases:
			projection = entry.SNPs + entry.IndelBases
		case distmode.Hamming:
			projection = 1
		}
	}

	if !ok || projection == 0 {
		if !noHammingFallback && mode == distmode.SnpsOnly {
			return 1
		}
		return 0
	}
	return projection
}
