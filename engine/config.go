package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// hardMaxSumDFSeeds is the non-user-tunable safety ceiling on total
// postings read across seeds when max_sum_df_seeds is left at 0.
const hardMaxSumDFSeeds = 1_000_000

// minMaxQUniq9 is the floor MaxQUniq9 is clamped to, regardless of what a
// directory's index_config.json requests.
const minMaxQUniq9 = 128

// TopKHardMax bounds top_k regardless of caller request.
const TopKHardMax = 1000

// Config holds the query-time tunables recognized in a shard directory's
// index_config.json.
type Config struct {
	WMinDoc       int
	WMinQuery     int
	Alpha         float64
	W9            float64
	FetchPerK     int
	MaxCandsDoc   int
	MaxDFForSeed  int
	MaxQUniq9     int
	MaxSumDFSeeds uint64
}

// DefaultConfig returns the built-in defaults applied before
// index_config.json overrides.
func DefaultConfig() Config {
	return Config{
		WMinDoc:       8,
		WMinQuery:     9,
		Alpha:         0.60,
		W9:            0.90,
		FetchPerK:     64,
		MaxCandsDoc:   1000,
		MaxDFForSeed:  100,
		MaxQUniq9:     512,
		MaxSumDFSeeds: 0,
	}
}

type configWeights struct {
	Alpha *float64 `json:"alpha"`
	W9    *float64 `json:"w9"`
}

type configFile struct {
	WMinDoc       *int           `json:"w_min_doc"`
	WMinQuery     *int           `json:"w_min_query"`
	FetchPerKDoc  *int           `json:"fetch_per_k_doc"`
	MaxCandsDoc   *int           `json:"max_cands_doc"`
	MaxDFForSeed  *int           `json:"max_df_for_seed"`
	MaxQUniq9     *int           `json:"max_q_uniq9"`
	MaxSumDFSeeds *uint64        `json:"max_sum_df_seeds"`
	Weights       *configWeights `json:"weights"`
}

// LoadConfig reads dir's index_config.json, if present, applying its
// fields on top of DefaultConfig and clamping the result. A missing file
// yields the defaults; a malformed file also falls back to the defaults,
// matching the source's catch-and-return-default behavior rather than
// failing the whole shard load over a bad config file.
func LoadConfig(dir string) Config {
	cfg := DefaultConfig()

	b, err := os.ReadFile(filepath.Join(dir, "index_config.json"))
	if err != nil {
		return clampConfig(cfg)
	}

	var cf configFile
	if err := json.Unmarshal(b, &cf); err != nil {
		return clampConfig(cfg)
	}

	if cf.WMinDoc != nil {
		cfg.WMinDoc = *cf.WMinDoc
	}
	if cf.WMinQuery != nil {
		cfg.WMinQuery = *cf.WMinQuery
	}
	if cf.FetchPerKDoc != nil {
		cfg.FetchPerK = *cf.FetchPerKDoc
	}
	if cf.MaxCandsDoc != nil {
		cfg.MaxCandsDoc = *cf.MaxCandsDoc
	}
	if cf.MaxDFForSeed != nil {
		cfg.MaxDFForSeed = *cf.MaxDFForSeed
	}
	if cf.MaxQUniq9 != nil {
		cfg.MaxQUniq9 = *cf.MaxQUniq9
	}
	if cf.MaxSumDFSeeds != nil {
		cfg.MaxSumDFSeeds = *cf.MaxSumDFSeeds
	}
	if cf.Weights != nil {
		if cf.Weights.Alpha != nil {
			cfg.Alpha = *cf.Weights.Alpha
		}
		if cf.Weights.W9 != nil {
			cfg.W9 = *cf.Weights.W9
		}
	}

	return clampConfig(cfg)
}

func clampConfig(cfg Config) Config {
	if cfg.WMinDoc < 1 {
		cfg.WMinDoc = 1
	}
	if cfg.WMinQuery < 1 {
		cfg.WMinQuery = 1
	}
	if cfg.FetchPerK < 1 {
		cfg.FetchPerK = 1
	}
	if cfg.MaxCandsDoc < 1 {
		cfg.MaxCandsDoc = 1
	}
	if cfg.MaxDFForSeed < 1 {
		cfg.MaxDFForSeed = 1
	}
	if cfg.MaxQUniq9 < minMaxQUniq9 {
		cfg.MaxQUniq9 = minMaxQUniq9
	}
	cfg.Alpha = clamp01(cfg.Alpha)
	cfg.W9 = clamp01(cfg.W9)
	return cfg
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
