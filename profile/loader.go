package profile

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/breader"

	"github.com/shenwei356/cgdist/fingerprint"
)

// LoadNameList reads a one-name-per-line loci/sample list file: blank
// lines and "#"-prefixed lines are ignored.
func LoadNameList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "profile: opening name list %s", path)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "profile: reading name list %s", path)
	}
	return names, nil
}

// LoadOptions configures a profile table load.
type LoadOptions struct {
	Separator     rune // '\t' for TSV, ',' for CSV
	MissingMarker string
	Hasher        fingerprint.Hasher
}

type rawRow struct {
	cells []string
}

// Load reads a TSV/CSV profile table: header row "Sample<sep>locus1<sep>...",
// one data row per sample. Parsing is parallelized across line-reading via
// breader, but line numbers and hasher calls are resolved in the single
// consuming goroutine so error messages stay attributable to an exact
// source line (breader guarantees chunk.Data preserves file order).
func Load(path string, opt LoadOptions) (*Matrix, error) {
	sep := string(opt.Separator)

	parse := func(line string) (interface{}, bool, error) {
		if strings.TrimSpace(line) == "" {
			return rawRow{}, true, nil // kept so line numbers stay exact
		}
		return rawRow{cells: splitRow(line, opt.Separator)}, true, nil
	}

	reader, err := breader.NewBufferedReader(path, 4, 50, parse)
	if err != nil {
		return nil, errors.Wrapf(err, "profile: opening %s", path)
	}

	var header []string
	var samples []AllelicProfile
	lineNo := 0
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return nil, errors.Wrapf(chunk.Err, "profile: reading %s", path)
		}
		for _, d := range chunk.Data {
			lineNo++
			row := d.(rawRow)
			if row.cells == nil {
				continue
			}
			if header == nil {
				header = row.cells
				if len(header) < 2 || !strings.EqualFold(header[0], "Sample") {
					return nil, errors.Errorf("profile: %s line %d: expected header \"Sample%slocus...\"", path, lineNo, sep)
				}
				continue
			}
			if len(row.cells) != len(header) {
				return nil, errors.Errorf("profile: %s line %d: expected %d columns, got %d", path, lineNo, len(header), len(row.cells))
			}
			calls := make(map[string]fingerprint.Fingerprint, len(header)-1)
			for i := 1; i < len(header); i++ {
				locus := header[i]
				fp, err := opt.Hasher.ParseAllele(row.cells[i], opt.MissingMarker)
				if err != nil {
					return nil, errors.Wrapf(err, "profile: %s line %d locus %q", path, lineNo, locus)
				}
				calls[locus] = fp
			}
			samples = append(samples, AllelicProfile{Sample: row.cells[0], Calls: calls})
		}
	}

	if header == nil {
		return nil, errors.Errorf("profile: %s: empty file", path)
	}

	return &Matrix{Samples: samples, Loci: append([]string(nil), header[1:]...)}, nil
}

func splitRow(line string, sep rune) []string {
	parts := strings.Split(line, string(sep))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if sep == ',' && len(p) >= 2 && p[0] == '"' && p[len(p)-1] == '"' {
			p = p[1 : len(p)-1]
		}
		parts[i] = p
	}
	return parts
}

// ParseIncludeExcludeSet turns a one-name-per-line list (blank lines and
// "#"-prefixed comments ignored) into a membership set.
func ParseIncludeExcludeSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || strings.HasPrefix(n, "#") {
			continue
		}
		set[n] = struct{}{}
	}
	return set
}
