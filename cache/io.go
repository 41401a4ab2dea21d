package cache

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"

	"github.com/shenwei356/cgdist/distmode"
	"github.com/shenwei356/cgdist/fingerprint"
	"github.com/shenwei356/cgdist/scoring"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrCacheCompat is returned when a loaded cache's bound alignment config
// or hasher disagrees with the caller's, and force-recompute was not
// requested.
var ErrCacheCompat = errors.New("cache: alignment config or hasher mismatch")

// ErrCacheCorruption wraps decompression/deserialization failures for
// both the v2 and the legacy v1 format.
var ErrCacheCorruption = errors.New("cache: corrupt or unreadable cache file")

type wireEntry struct {
	SNPs        int    `json:"snps"`
	IndelEvents int    `json:"indel_events"`
	IndelBases  int    `json:"indel_bases"`
	ComputedAt  string `json:"computed_at"`
	Seq1Length  *int   `json:"seq1_length,omitempty"`
	Seq2Length  *int   `json:"seq2_length,omitempty"`
}

type wireConfig struct {
	MatchScore      int    `json:"match_score"`
	MismatchPenalty int    `json:"mismatch_penalty"`
	GapOpen         int    `json:"gap_open"`
	GapExtend       int    `json:"gap_extend"`
	Description     string `json:"description,omitempty"`
}

type wireMetadata struct {
	Version         string     `json:"version"`
	Created         string     `json:"created"`
	LastModified    string     `json:"last_modified"`
	AlignmentConfig wireConfig `json:"alignment_config"`
	HasherType      string     `json:"hasher_type"`
	DistanceMode    string     `json:"distance_mode"`
	UserNote        string     `json:"user_note,omitempty"`
	TotalEntries    int        `json:"total_entries"`
	UniqueLoci      int        `json:"unique_loci"`
	FormatVersion   int        `json:"format_version"`
}

type wireDoc struct {
	Data     map[string]wireEntry `json:"data"`
	Metadata wireMetadata         `json:"metadata"`
}

const timeLayout = time.RFC3339

func encodeKey(k Key) (string, error) {
	lowStr, highStr := k.Low.String(), k.High.String()
	if strings.Contains(k.Locus, ":") || strings.Contains(lowStr, ":") || strings.Contains(highStr, ":") {
		return "", errors.Errorf("cache: locus/fingerprint must not contain ':': %q %q %q", k.Locus, lowStr, highStr)
	}
	return k.Locus + ":" + lowStr + ":" + highStr, nil
}

func decodeKey(s string, h fingerprint.Hasher) (Key, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Key{}, errors.Errorf("cache: malformed key %q", s)
	}
	low, err := decodeFingerprint(parts[1], h)
	if err != nil {
		return Key{}, err
	}
	high, err := decodeFingerprint(parts[2], h)
	if err != nil {
		return Key{}, err
	}
	return Key{Locus: parts[0], Low: low, High: high}, nil
}

// decodeFingerprint rebuilds a Fingerprint from its serialized string form.
// Integer-keyed hashers (crc32, hamming) round-trip through ParseAllele;
// string-keyed hashers (sha256, md5, sequence) store the digest/sequence
// verbatim, which is also a valid ParseAllele input.
func decodeFingerprint(s string, h fingerprint.Hasher) (fingerprint.Fingerprint, error) {
	return h.ParseAllele(s, "-")
}

// Save serializes the cache to path as an LZ4-framed, size-prepended v2
// document, writing atomically (temp file + rename). mode is recorded as
// the cache's distance mode; last_modified and the aggregate counters are
// refreshed. Save does not consult IsDirty: it always refreshes the
// metadata and writes the file (the caller decides whether to call Save
// at all based on IsDirty).
func (c *Cache) Save(path string, mode distmode.Mode) error {
	c.mu.Lock()
	c.Metadata.DistanceMode = mode
	c.Metadata.LastModified = timeNow()
	c.Metadata.TotalEntries = len(c.data)
	c.Metadata.UniqueLoci = uniqueLoci(c.data)
	c.Metadata.FormatVersion = FormatVersion

	doc := wireDoc{
		Data: make(map[string]wireEntry, len(c.data)),
		Metadata: wireMetadata{
			Version:      c.Metadata.Version,
			Created:      c.Metadata.Created.Format(timeLayout),
			LastModified: c.Metadata.LastModified.Format(timeLayout),
			AlignmentConfig: wireConfig{
				MatchScore:      c.Metadata.AlignmentConfig.MatchScore,
				MismatchPenalty: c.Metadata.AlignmentConfig.MismatchPenalty,
				GapOpen:         c.Metadata.AlignmentConfig.GapOpen,
				GapExtend:       c.Metadata.AlignmentConfig.GapExtend,
				Description:     c.Metadata.AlignmentConfig.Description,
			},
			HasherType:    c.Metadata.HasherName,
			DistanceMode:  string(c.Metadata.DistanceMode),
			UserNote:      c.Metadata.UserNote,
			TotalEntries:  c.Metadata.TotalEntries,
			UniqueLoci:    c.Metadata.UniqueLoci,
			FormatVersion: c.Metadata.FormatVersion,
		},
	}
	for k, e := range c.data {
		keyStr, err := encodeKey(k)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		doc.Data[keyStr] = wireEntry{
			SNPs: e.SNPs, IndelEvents: e.IndelEvents, IndelBases: e.IndelBases,
			ComputedAt: e.ComputedAt.Format(timeLayout),
			Seq1Length: e.Seq1Length, Seq2Length: e.Seq2Length,
		}
	}
	c.dirty = false
	c.mu.Unlock()

	payload, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "cache: encoding v2 document")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".cache-tmp-*")
	if err != nil {
		return errors.Wrapf(err, "cache: creating temp file in %s", dir)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	bw := bufio.NewWriter(tmp)
	if err := binary.Write(bw, binary.BigEndian, uint64(len(payload))); err != nil {
		tmp.Close()
		return errors.Wrap(err, "cache: writing size prefix")
	}
	lzw := lz4.NewWriter(bw)
	if _, err := lzw.Write(payload); err != nil {
		lzw.Close()
		tmp.Close()
		return errors.Wrap(err, "cache: lz4-compressing cache payload")
	}
	if err := lzw.Close(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "cache: closing lz4 writer")
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "cache: flushing cache file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "cache: closing temp cache file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "cache: renaming temp file to %s", path)
	}
	return nil
}

// Load reads a cache from path. It requires the hasher that will decode
// fingerprint strings back into Fingerprint values. It first tries the v2
// LZ4+JSON document; on parse failure it falls back to the legacy v1
// binary format. A v2 cache whose alignment_config or hasher_type
// disagrees with cfg/hasherName is rejected with ErrCacheCompat unless
// forceRecompute is set, in which case Load returns a fresh empty cache
// instead of failing. distance_mode disagreement is never fatal.
func Load(path string, cfg scoring.Config, hasherName string, h fingerprint.Hasher, forceRecompute bool) (*Cache, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cache: reading %s", path)
	}

	payload, err := decompressLZ4(raw)
	if err != nil {
		// A legacy v1 file is not LZ4-framed, so it fails here first.
		if c, v1err := parseV1Legacy(raw, h); v1err == nil {
			return checkCompat(c, cfg, hasherName, forceRecompute)
		}
		return nil, errors.Wrapf(ErrCacheCorruption, "%s: lz4 decompression failed: %v", path, err)
	}

	c, v2err := parseV2(payload, h)
	if v2err == nil {
		return checkCompat(c, cfg, hasherName, forceRecompute)
	}

	c, v1err := parseV1Legacy(raw, h)
	if v1err == nil {
		return checkCompat(c, cfg, hasherName, forceRecompute)
	}

	return nil, errors.Wrapf(ErrCacheCorruption, "%s: not a valid v2 (%v) or legacy v1 (%v) cache", path, v2err, v1err)
}

func checkCompat(c *Cache, cfg scoring.Config, hasherName string, forceRecompute bool) (*Cache, error) {
	compatible := c.Metadata.AlignmentConfig.Equal(cfg) && strings.EqualFold(c.Metadata.HasherName, hasherName)
	if compatible {
		return c, nil
	}
	if forceRecompute {
		return New(cfg, hasherName, c.Metadata.DistanceMode), nil
	}
	return nil, errors.Wrapf(ErrCacheCompat,
		"cache bound to hasher=%s config=%s, engine wants hasher=%s config=%s",
		c.Metadata.HasherName, c.Metadata.AlignmentConfig, hasherName, cfg)
}

func decompressLZ4(raw []byte) ([]byte, error) {
	if len(raw) < 8 {
		return nil, errors.New("file too short for a size-prefixed lz4 frame")
	}
	size := binary.BigEndian.Uint64(raw[:8])
	zr := lz4.NewReader(bytes.NewReader(raw[8:]))
	out, err := io.ReadAll(io.LimitReader(zr, int64(size)))
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) != size {
		return nil, errors.Errorf("decompressed %d bytes, size prefix says %d", len(out), size)
	}
	return out, nil
}

func parseV2(payload []byte, h fingerprint.Hasher) (*Cache, error) {
	var doc wireDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	if doc.Metadata.FormatVersion != FormatVersion {
		return nil, errors.Errorf("unexpected format_version %d", doc.Metadata.FormatVersion)
	}

	created, _ := time.Parse(timeLayout, doc.Metadata.Created)
	lastModified, _ := time.Parse(timeLayout, doc.Metadata.LastModified)

	c := &Cache{
		data: make(map[Key]Entry, len(doc.Data)),
		Metadata: Metadata{
			Version:      doc.Metadata.Version,
			Created:      created,
			LastModified: lastModified,
			AlignmentConfig: scoring.Config{
				MatchScore:      doc.Metadata.AlignmentConfig.MatchScore,
				MismatchPenalty: doc.Metadata.AlignmentConfig.MismatchPenalty,
				GapOpen:         doc.Metadata.AlignmentConfig.GapOpen,
				GapExtend:       doc.Metadata.AlignmentConfig.GapExtend,
				Description:     doc.Metadata.AlignmentConfig.Description,
			},
			HasherName:    doc.Metadata.HasherType,
			DistanceMode:  distmode.Mode(doc.Metadata.DistanceMode),
			UserNote:      doc.Metadata.UserNote,
			TotalEntries:  doc.Metadata.TotalEntries,
			UniqueLoci:    doc.Metadata.UniqueLoci,
			FormatVersion: doc.Metadata.FormatVersion,
		},
	}
	for keyStr, we := range doc.Data {
		key, err := decodeKey(keyStr, h)
		if err != nil {
			return nil, err
		}
		computedAt, _ := time.Parse(timeLayout, we.ComputedAt)
		c.data[key] = Entry{
			SNPs: we.SNPs, IndelEvents: we.IndelEvents, IndelBases: we.IndelBases,
			ComputedAt: computedAt, Seq1Length: we.Seq1Length, Seq2Length: we.Seq2Length,
		}
	}
	c.dirty = false
	return c, nil
}

// QuickCompatCheck reads up to 32 KiB of the (compressed) file and tries
// to cheaply rule out an obviously incompatible cache without full
// deserialization. It is an optimization only: a "compatible" verdict
// here is never the final word, only Load's full parse is authoritative
// (QuickCompatCheck is a hint only; Load's full parse is authoritative).
func QuickCompatCheck(path string, cfg scoring.Config, hasherName string) (maybeCompatible bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return false, errors.Wrapf(err, "cache: opening %s", path)
	}
	defer f.Close()

	const sniffBudget = 32 * 1024
	header := make([]byte, 8)
	if _, err := io.ReadFull(f, header); err != nil {
		return true, nil // too short to sniff, let full Load decide
	}

	zr := lz4.NewReader(io.LimitReader(f, sniffBudget))
	buf := make([]byte, sniffBudget)
	n, _ := io.ReadFull(zr, buf)
	snippet := string(buf[:n])
	if snippet == "" {
		return true, nil
	}

	if strings.Contains(snippet, `"hasher_type"`) {
		want := `"hasher_type":"` + hasherName + `"`
		if !strings.Contains(snippet, `"hasher_type":"`) || (!strings.Contains(snippet, want) && n == len(buf)) {
			// Only treat as a confident mismatch if we also found a
			// differently-named hasher_type value within the sniffed
			// region; otherwise the value may simply lie past our budget.
			if idx := strings.Index(snippet, `"hasher_type":"`); idx >= 0 {
				rest := snippet[idx+len(`"hasher_type":"`):]
				if end := strings.IndexByte(rest, '"'); end >= 0 && rest[:end] != hasherName {
					return false, nil
				}
			}
		}
	}
	if strings.Contains(snippet, `"match_score"`) {
		if idx := strings.Index(snippet, `"match_score":`); idx >= 0 {
			rest := snippet[idx+len(`"match_score":`):]
			if end := strings.IndexAny(rest, ",}"); end >= 0 {
				if v, err := strconv.Atoi(strings.TrimSpace(rest[:end])); err == nil && v != cfg.MatchScore {
					return false, nil
				}
			}
		}
	}
	return true, nil
}
