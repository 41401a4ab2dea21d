package fingerprint

import (
	"fmt"
	"sync"
)

// Hasher fingerprints nucleotide sequences and parses allele tokens from a
// profile cell. Implementations must be safe for concurrent use after
// registration; they hold no mutable state.
type Hasher interface {
	// Name is the lowercase registry key, e.g. "crc32".
	Name() string
	// Description is a short human-readable summary.
	Description() string
	// HashSequence fingerprints raw nucleotide bytes.
	HashSequence(seq []byte) Fingerprint
	// ParseAllele turns a profile cell into a fingerprint. missingMarker is
	// the configured missing-value token (default "-"); "-", "NA" and ""
	// are always treated as missing regardless of missingMarker.
	ParseAllele(token string, missingMarker string) (Fingerprint, error)
	// ValidateSequence reports whether seq is acceptable input for
	// HashSequence (e.g. rejects empty sequences).
	ValidateSequence(seq []byte) error
}

// ErrEmptySequence is returned by ValidateSequence for a zero-length input.
var ErrEmptySequence = fmt.Errorf("fingerprint: empty sequence")

// registry is the process-wide name -> Hasher map. It is populated at
// start-up (init of this package plus any caller registrations before the
// first lookup) and is read-only thereafter; an RWMutex lets lookups
// share a read lock while a registration takes the write lock.
var (
	registryMu sync.RWMutex
	registry   = map[string]Hasher{}
)

// Register adds (or replaces) a hasher under its lowercase name. Intended
// to be called during start-up, before any Lookup.
func Register(h Hasher) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[h.Name()] = h
}

// Lookup returns the hasher registered under name, or (nil, false).
func Lookup(name string) (Hasher, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	h, ok := registry[name]
	return h, ok
}

// Names returns the sorted list of registered hasher names.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	// simple insertion sort: the registry is always small (a handful of
	// built-ins plus whatever a caller adds), not worth pulling in sort
	// semantics beyond what's needed here.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

func isMissingToken(token, missingMarker string) bool {
	return token == "" || token == "-" || token == "NA" || token == missingMarker
}

func init() {
	Register(crc32Hasher{})
	Register(sha256Hasher{})
	Register(md5Hasher{})
	Register(sequenceHasher{})
	Register(hammingHasher{})
}
