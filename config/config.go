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

// Package config loads a TOML run configuration for cgdist: hasher
// choice, alignment scoring, filter thresholds, distance mode, and
// cache path. CLI flags in cmd/cgdist override whatever a config file
// sets, the same precedence cobra's persistent flags give
// persistent flags over defaults.
package config

import (
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/shenwei356/cgdist/distmode"
	"github.com/shenwei356/cgdist/scoring"
)

// Scoring mirrors scoring.Config with TOML tags; Go's toml decoder needs
// its own struct since scoring.Config carries no struct tags (it is
// shared with packages that have no TOML dependency).
type Scoring struct {
	MatchScore      int `toml:"match_score"`
	MismatchPenalty int `toml:"mismatch_penalty"`
	GapOpen         int `toml:"gap_open"`
	GapExtend       int `toml:"gap_extend"`
}

// Filter mirrors profile.QualityThresholds plus the min-shared-loci gate
// used by the distance assembler.
type Filter struct {
	SampleThreshold float64 `toml:"sample_threshold"`
	LocusThreshold  float64 `toml:"locus_threshold"`
	MinSharedLoci   int     `toml:"min_shared_loci"`
}

// Recombination mirrors the recombine.Inputs thresholds.
type Recombination struct {
	LocusThreshold    float64 `toml:"locus_threshold"`
	SampleThreshold   float64 `toml:"sample_threshold"`
	HammingUpperBound int     `toml:"hamming_upper_bound"`
	DensityThreshold  float64 `toml:"density_threshold"`
}

// Config is the full run configuration, decoded from a TOML document.
type Config struct {
	Hasher            string        `toml:"hasher"`
	DistanceMode      string        `toml:"distance_mode"`
	NoHammingFallback bool          `toml:"no_hamming_fallback"`
	CachePath         string        `toml:"cache_path"`
	Scoring           Scoring       `toml:"scoring"`
	Filter            Filter        `toml:"filter"`
	Recombination     Recombination `toml:"recombination"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Hasher:       "crc32",
		DistanceMode: string(distmode.SnpsOnly),
		CachePath:    "~/.cgdist/cache.bin",
		Scoring: Scoring{
			MatchScore:      2,
			MismatchPenalty: -1,
			GapOpen:         5,
			GapExtend:       2,
		},
		Filter: Filter{
			SampleThreshold: 0,
			LocusThreshold:  0,
			MinSharedLoci:   1,
		},
		Recombination: Recombination{
			LocusThreshold:    0,
			SampleThreshold:   0,
			HammingUpperBound: 10,
			DensityThreshold:  3,
		},
	}
}

// Load decodes a TOML config file at path, starting from Default() so
// any field the file omits keeps its default value.
func Load(path string) (Config, error) {
	cfg := Default()
	expanded, err := homedir.Expand(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "config: expanding %s", path)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return cfg, errors.Wrapf(err, "config: reading %s", expanded)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: parsing %s", expanded)
	}
	return cfg, nil
}

// ResolveCachePath expands "~" in cfg.CachePath.
func (c Config) ResolveCachePath() (string, error) {
	expanded, err := homedir.Expand(c.CachePath)
	if err != nil {
		return "", errors.Wrapf(err, "config: expanding cache path %s", c.CachePath)
	}
	return expanded, nil
}

// ScoringConfig converts the TOML-facing Scoring into scoring.Config.
func (c Config) ScoringConfig() scoring.Config {
	return scoring.Config{
		MatchScore:      c.Scoring.MatchScore,
		MismatchPenalty: c.Scoring.MismatchPenalty,
		GapOpen:         c.Scoring.GapOpen,
		GapExtend:       c.Scoring.GapExtend,
	}
}

// Mode validates and converts DistanceMode to distmode.Mode.
func (c Config) Mode() (distmode.Mode, error) {
	m := distmode.Mode(c.DistanceMode)
	if !m.Valid() {
		return "", errors.Errorf("config: unknown distance_mode %q", c.DistanceMode)
	}
	return m, nil
}
