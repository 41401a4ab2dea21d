package cache

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/shenwei356/cgdist/distmode"
	"github.com/shenwei356/cgdist/fingerprint"
	"github.com/shenwei356/cgdist/scoring"
)

// legacyMagic identifies a v1 binary cache file, mirroring the fixed
// 8-byte magic-number header convention from a binary kmer
// format (file.go/serialization.go).
var legacyMagic = [8]byte{'c', 'g', 'd', 'c', 'a', 'c', 'h', '1'}

// parseV1Legacy decodes the read-only legacy format: an 8-byte magic,
// four big-endian int32 scoring numbers, a big-endian uint32 record
// count, then that many records of
// (locus string, fp-low, fp-high, snps, indel_events, indel_bases),
// each fingerprint itself length-prefixed-string-encoded (integer
// fingerprints are stored as their decimal string, as in the v2 key
// encoding, so a single decoder serves both representations).
func parseV1Legacy(raw []byte, h fingerprint.Hasher) (*Cache, error) {
	r := bytes.NewReader(raw)

	var magic [8]byte
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, err
	}
	if magic != legacyMagic {
		return nil, errors.New("not a legacy v1 cache (magic mismatch)")
	}

	var cfg [4]int32
	if err := binary.Read(r, binary.BigEndian, &cfg); err != nil {
		return nil, err
	}

	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}

	data := make(map[Key]Entry, n)
	for i := uint32(0); i < n; i++ {
		locus, err := readLPString(r)
		if err != nil {
			return nil, err
		}
		lowStr, err := readLPString(r)
		if err != nil {
			return nil, err
		}
		highStr, err := readLPString(r)
		if err != nil {
			return nil, err
		}
		low, err := decodeFingerprint(lowStr, h)
		if err != nil {
			return nil, err
		}
		high, err := decodeFingerprint(highStr, h)
		if err != nil {
			return nil, err
		}
		var counts [3]int32
		if err := binary.Read(r, binary.BigEndian, &counts); err != nil {
			return nil, err
		}
		data[Key{Locus: locus, Low: low, High: high}] = Entry{
			SNPs: int(counts[0]), IndelEvents: int(counts[1]), IndelBases: int(counts[2]),
		}
	}

	return &Cache{
		data: data,
		Metadata: Metadata{
			Version: "legacy-v1",
			AlignmentConfig: scoring.Config{
				MatchScore: int(cfg[0]), MismatchPenalty: int(cfg[1]),
				GapOpen: int(cfg[2]), GapExtend: int(cfg[3]),
			},
			// The v1 format never stored the hasher name on disk; the
			// caller already committed to h to decode the fingerprints
			// above, so that's the name checkCompat should see too.
			HasherName:    h.Name(),
			DistanceMode:  distmode.SnpsOnly,
			FormatVersion: 1,
			TotalEntries:  int(n),
			UniqueLoci:    uniqueLoci(data),
		},
	}, nil
}

func readLPString(r io.Reader) (string, error) {
	var l uint16
	if err := binary.Read(r, binary.BigEndian, &l); err != nil {
		return "", err
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeLPString(w io.Writer, s string) error {
	if len(s) > 0xFFFF {
		return errors.New("legacy cache: string too long")
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

// writeV1Legacy is unexported: the legacy format is read-only in
// production, this serializer exists solely so tests can
// fabricate legacy fixtures without depending on an external file.
func writeV1Legacy(w io.Writer, cfg scoring.Config, hasherName string, data map[Key]Entry) error {
	_ = hasherName // not present in the v1 wire format
	if err := binary.Write(w, binary.BigEndian, legacyMagic); err != nil {
		return err
	}
	cfgArr := [4]int32{int32(cfg.MatchScore), int32(cfg.MismatchPenalty), int32(cfg.GapOpen), int32(cfg.GapExtend)}
	if err := binary.Write(w, binary.BigEndian, cfgArr); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	for k, e := range data {
		if err := writeLPString(w, k.Locus); err != nil {
			return err
		}
		if err := writeLPString(w, k.Low.String()); err != nil {
			return err
		}
		if err := writeLPString(w, k.High.String()); err != nil {
			return err
		}
		counts := [3]int32{int32(e.SNPs), int32(e.IndelEvents), int32(e.IndelBases)}
		if err := binary.Write(w, binary.BigEndian, counts); err != nil {
			return err
		}
	}
	return nil
}
