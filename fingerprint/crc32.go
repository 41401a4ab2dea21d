package fingerprint

import (
	"hash/crc32"
	"strconv"

	"github.com/pkg/errors"
)

// crc32Hasher fingerprints sequences with the IEEE CRC-32 polynomial,
// matching the allele numbers emitted by upstream cgMLST allele callers.
type crc32Hasher struct{}

func (crc32Hasher) Name() string { return "crc32" }

func (crc32Hasher) Description() string {
	return "IEEE CRC-32 over raw sequence bytes; allele tokens are decimal CRC32 values"
}

func (crc32Hasher) HashSequence(seq []byte) Fingerprint {
	return NewInt(crc32.ChecksumIEEE(seq))
}

func (crc32Hasher) ParseAllele(token, missingMarker string) (Fingerprint, error) {
	if isMissingToken(token, missingMarker) {
		return Missing, nil
	}
	v, err := strconv.ParseUint(token, 10, 32)
	if err != nil {
		return Missing, errors.Wrapf(err, "crc32: allele token %q is not a decimal integer", token)
	}
	if uint32(v) == MissingCRC32 {
		return Missing, errors.Errorf("crc32: allele token %q is the reserved missing value 2^32-1", token)
	}
	return NewInt(uint32(v)), nil
}

func (crc32Hasher) ValidateSequence(seq []byte) error {
	if len(seq) == 0 {
		return ErrEmptySequence
	}
	return nil
}
