// Package config loads kwcluster run configuration and stopword
// overrides from YAML files.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig is the per-run configuration snapshot. Zero values fall
// back to the defaults below when loaded through LoadRunConfig.
type RunConfig struct {
	MinDemand        float64 `yaml:"minDemand"`
	EdgeThreshold    float64 `yaml:"edgeThreshold"`
	OverlapThreshold float64 `yaml:"overlapThreshold"`
	MinSharedHosts   int     `yaml:"minSharedHosts"`
	TopN             int     `yaml:"topN"`
	Algorithm        string  `yaml:"algorithm"`
	ForceRefetch     bool    `yaml:"forceRefetch"`
	Waves            int     `yaml:"waves"`
	Concurrency      int     `yaml:"concurrency"`
	Seed             int64   `yaml:"seed"`
	MaxRetainedRuns  int     `yaml:"maxRetainedRuns"`
	GSCLookbackDays  int     `yaml:"gscLookbackDays"`
}

// DefaultRunConfig returns the defaults used when no file overrides
// them.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		MinDemand:        10,
		EdgeThreshold:    0.55,
		OverlapThreshold: 0.3,
		MinSharedHosts:   3,
		TopN:             10,
		Algorithm:        "community",
		Waves:            3,
		Concurrency:      8,
		Seed:             1,
		MaxRetainedRuns:  50,
		GSCLookbackDays:  90,
	}
}

// LoadRunConfig reads a YAML run configuration, filling unset fields
// from DefaultRunConfig.
func LoadRunConfig(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, err
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *RunConfig) applyDefaults() {
	def := DefaultRunConfig()
	if c.MinDemand <= 0 {
		c.MinDemand = def.MinDemand
	}
	if c.EdgeThreshold <= 0 {
		c.EdgeThreshold = def.EdgeThreshold
	}
	if c.OverlapThreshold <= 0 {
		c.OverlapThreshold = def.OverlapThreshold
	}
	if c.MinSharedHosts <= 0 {
		c.MinSharedHosts = def.MinSharedHosts
	}
	if c.TopN <= 0 {
		c.TopN = def.TopN
	}
	if c.Algorithm == "" {
		c.Algorithm = def.Algorithm
	}
	if c.Waves <= 0 {
		c.Waves = def.Waves
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Seed == 0 {
		c.Seed = def.Seed
	}
	if c.MaxRetainedRuns <= 0 {
		c.MaxRetainedRuns = def.MaxRetainedRuns
	}
	if c.GSCLookbackDays <= 0 {
		c.GSCLookbackDays = def.GSCLookbackDays
	}
}

// Stoplist is the stopword override configuration.
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopword overrides from a YAML file.
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}
