package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tracestat/tracestat/analysis"
	"github.com/tracestat/tracestat/analysis/summary"
)

// Config represents the optional --config YAML file.
// All keys must be listed to satisfy KnownFields(true) strict parsing: typos must cause errors.
type Config struct {
	StatefulRPCTypes   []string  `yaml:"stateful_rpctypes"`
	Percentiles        []float64 `yaml:"percentiles"`
	Accuracy           float64   `yaml:"accuracy"`
	Shards             int       `yaml:"shards"`
	OutputDir          string    `yaml:"output_dir"`
	Header             *bool     `yaml:"header"`
	ChainWarnThreshold int       `yaml:"chain_warn_threshold"`
	Pushgateway        string    `yaml:"pushgateway"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	header := true
	return Config{
		Percentiles:        append([]float64(nil), summary.DefaultPercentiles...),
		Accuracy:           summary.DefaultAccuracy,
		OutputDir:          os.TempDir(),
		Header:             &header,
		ChainWarnThreshold: 10000,
	}
}

// LoadConfig parses a config file with strict field checking and layers it
// over DefaultConfig. Keys absent from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config YAML %s: %w", path, err)
	}
	return cfg, nil
}

// HasHeader reports whether input files start with a header row.
func (c Config) HasHeader() bool {
	return c.Header == nil || *c.Header
}

// AnalyzerOptions maps the config onto analyzer options for the given
// parallelism.
func (c Config) AnalyzerOptions(workers int) analysis.Options {
	return analysis.Options{
		StatefulRPCTypes:   c.StatefulRPCTypes,
		Percentiles:        c.Percentiles,
		Accuracy:           c.Accuracy,
		Workers:            workers,
		ChainWarnThreshold: c.ChainWarnThreshold,
	}
}

// Validate checks the fields that are not covered by analysis.Options.
func (c Config) Validate() error {
	if c.Shards < 0 {
		return fmt.Errorf("shards must be >= 0, got %d", c.Shards)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	return c.AnalyzerOptions(1).Validate()
}
