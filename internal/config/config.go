// Package config loads the Intelligence Core's tunables from a YAML
// document: token budgets, per-kind deadlines, rate-limit buckets, and the
// prefetch budget.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tilecrawler/internal/reqkind"
)

// KindOverride lets a deployment retune one request kind without touching
// code.
type KindOverride struct {
	Temperature *float64 `yaml:"temperature,omitempty"`
	DeadlineMS  *int     `yaml:"deadline_ms,omitempty"`
}

// Config is the full set of Intelligence Core tunables.
type Config struct {
	Model             string                  `yaml:"model"`
	ContextTokenBudget int                    `yaml:"context_token_budget"`
	CacheCapacity      int                    `yaml:"cache_capacity"`
	GlobalRatePerMin   float64                `yaml:"global_rate_per_minute"`
	PrefetchBudget     int                    `yaml:"prefetch_budget"`
	NarrativeWindow    int                    `yaml:"narrative_window"`
	NarrativeBatch     int                    `yaml:"narrative_condense_batch"`
	SummaryTokenBudget int                    `yaml:"summary_token_budget"`
	KindOverrides      map[string]KindOverride `yaml:"kind_overrides"`
}

// Default returns a runnable zero-config configuration; every field has a
// documented, sane default so a deployment need not supply a file at all.
func Default() Config {
	return Config{
		Model:              "gpt-5-mini",
		ContextTokenBudget: 2000,
		CacheCapacity:      512,
		GlobalRatePerMin:   600,
		PrefetchBudget:     4,
		NarrativeWindow:    16,
		NarrativeBatch:     6,
		SummaryTokenBudget: 400,
	}
}

// Load reads and parses a YAML config file, falling back to Default for
// any field the file omits.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyOverrides mutates the shared reqkind.Table in place for any kind
// named in cfg.KindOverrides; names that are not a known kind are ignored.
// Nothing in cmd/tilecrawler calls it.
func (cfg Config) ApplyOverrides() {
	for name, override := range cfg.KindOverrides {
		kind := reqkind.Kind(name)
		entry, ok := reqkind.Table[kind]
		if !ok {
			continue
		}
		if override.Temperature != nil {
			entry.Temperature = *override.Temperature
		}
		if override.DeadlineMS != nil {
			entry.Deadline = time.Duration(*override.DeadlineMS) * time.Millisecond
		}
		reqkind.Table[kind] = entry
	}
}
