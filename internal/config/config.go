// Package config loads the brain's process-wide configuration: the brain
// root path and index tuning knobs, from environment variables and an
// optional TOML file, layered the way the teacher's LoadLocalConfigWithEnv
// layers config.yaml under BEADS_* environment overrides.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// fileName is the on-disk config file read from the brain root.
const fileName = ".brain.toml"

// Config is the subset of settings read once at process bootstrap. Per
// spec.md's "no global state by design" note, Config is a plain value
// threaded explicitly by callers, never a package-level singleton.
type Config struct {
	// Root is the brain's on-disk root directory, from BRAIN_ROOT.
	Root string
	// User identifies the actor for events written by interactive tools,
	// from BRAIN_USER.
	User string

	Index      IndexConfig      `toml:"index"`
	Decay      DecayConfig      `toml:"decay"`
	Enrichment EnrichmentConfig `toml:"enrichment"`
}

// IndexConfig holds the open-configuration knobs for the inverted index:
// extra stop-words and synonym entries layered on top of the built-in
// defaults (see SPEC_FULL.md open question #1).
type IndexConfig struct {
	ExtraStopwords []string            `toml:"extra_stopwords"`
	Synonyms       map[string][]string `toml:"synonyms"`
}

// DecayConfig overrides the decay monitor's defaults.
type DecayConfig struct {
	DecayRate float64 `toml:"decay_rate"`
	Floor     float64 `toml:"floor"`
}

// EnrichmentConfig overrides the orchestrator's defaults.
type EnrichmentConfig struct {
	MaxWorkers int `toml:"max_workers"`
	BatchSize  int `toml:"batch_size"`
	RateLimit  int `toml:"rate_limit"`
}

// Defaults returns a Config populated with the built-in defaults named in
// spec.md (decay rate 0.01, floor 0.3, 4 workers, batch 10, 60 req/min).
func Defaults() Config {
	return Config{
		Decay: DecayConfig{DecayRate: 0.01, Floor: 0.3},
		Enrichment: EnrichmentConfig{
			MaxWorkers: 4,
			BatchSize:  10,
			RateLimit:  60,
		},
	}
}

// Load reads the brain root from BRAIN_ROOT (falling back to the current
// working directory), layers <root>/.brain.toml over the built-in
// defaults, then applies BRAIN_* environment overrides via viper.
func Load() (Config, error) {
	cfg := Defaults()

	root := os.Getenv("BRAIN_ROOT")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return cfg, err
		}
		root = wd
	}
	cfg.Root = root
	cfg.User = os.Getenv("BRAIN_USER")

	path := filepath.Join(root, fileName)
	if data, err := os.ReadFile(path); err == nil { // #nosec G304 - path derived from BRAIN_ROOT
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, err
		}
	}

	v := viper.New()
	v.SetEnvPrefix("BRAIN")
	v.AutomaticEnv()
	if v.IsSet("DECAY_RATE") {
		cfg.Decay.DecayRate = v.GetFloat64("DECAY_RATE")
	}
	if v.IsSet("DECAY_FLOOR") {
		cfg.Decay.Floor = v.GetFloat64("DECAY_FLOOR")
	}
	if v.IsSet("MAX_WORKERS") {
		cfg.Enrichment.MaxWorkers = v.GetInt("MAX_WORKERS")
	}
	if v.IsSet("BATCH_SIZE") {
		cfg.Enrichment.BatchSize = v.GetInt("BATCH_SIZE")
	}
	if v.IsSet("RATE_LIMIT") {
		cfg.Enrichment.RateLimit = v.GetInt("RATE_LIMIT")
	}

	return cfg, nil
}
