package analysis

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tracestat/tracestat/analysis/record"
	"github.com/tracestat/tracestat/analysis/summary"
)

// Histogram bin labels used in the report.
const (
	chainBinLabel = "sf_chain_size"
	countBinLabel = "count_bin"
)

// LabeledHistogram serializes histogram bins as a list of
// {<label>: value, count: n} mappings, ascending by value.
type LabeledHistogram struct {
	Label string
	Bins  []summary.Bin
}

// MarshalYAML implements yaml.Marshaler.
func (h LabeledHistogram) MarshalYAML() (interface{}, error) {
	out := make([]map[string]interface{}, 0, len(h.Bins))
	for _, b := range h.Bins {
		out = append(out, map[string]interface{}{
			h.Label: b.Value,
			"count": b.Count,
		})
	}
	return out, nil
}

// Report is the output document. Field order is the key order on disk.
type Report struct {
	SFChain            summary.Describe    `yaml:"sf_chain"`
	SFChainHist        LabeledHistogram    `yaml:"sf_chain_hist"`
	SFChainPercentiles map[float64]float64 `yaml:"sf_chain_percentiles"`

	CountMeta map[record.MetaType]int `yaml:"count_meta"`

	UniqueMetaPerTraceSF        summary.Describe    `yaml:"unique_meta_per_trace_sf"`
	UniqueMetaPerTraceSL        summary.Describe    `yaml:"unique_meta_per_trace_sl"`
	UniqueSFPerTraceHist        LabeledHistogram    `yaml:"unique_sf_per_trace_hist"`
	UniqueSFPerTracePercentiles map[float64]float64 `yaml:"unique_sf_per_trace_percentiles"`
	UniqueSLPerTraceHist        LabeledHistogram    `yaml:"unique_sl_per_trace_hist"`
	UniqueSLPerTracePercentiles map[float64]float64 `yaml:"unique_sl_per_trace_percentiles"`

	MetaPerTraceSF        summary.Describe    `yaml:"meta_per_trace_sf"`
	MetaPerTraceSL        summary.Describe    `yaml:"meta_per_trace_sl"`
	SFPerTraceHist        LabeledHistogram    `yaml:"sf_per_trace_hist"`
	SFPerTracePercentiles map[float64]float64 `yaml:"sf_per_trace_percentiles"`
	SLPerTraceHist        LabeledHistogram    `yaml:"sl_per_trace_hist"`
	SLPerTracePercentiles map[float64]float64 `yaml:"sl_per_trace_percentiles"`
}

// assembleReport places every metric summary under its report keys.
func assembleReport(s map[Metric]*summary.StatSummary, countMeta map[record.MetaType]int) *Report {
	hist := func(m Metric, label string) LabeledHistogram {
		return LabeledHistogram{Label: label, Bins: s[m].Histogram}
	}
	return &Report{
		SFChain:            s[SFChainSize].Describe,
		SFChainHist:        hist(SFChainSize, chainBinLabel),
		SFChainPercentiles: s[SFChainSize].Percentiles,

		CountMeta: countMeta,

		UniqueMetaPerTraceSF:        s[UniqueStatefulServices].Describe,
		UniqueMetaPerTraceSL:        s[UniqueStatelessServices].Describe,
		UniqueSFPerTraceHist:        hist(UniqueStatefulServices, countBinLabel),
		UniqueSFPerTracePercentiles: s[UniqueStatefulServices].Percentiles,
		UniqueSLPerTraceHist:        hist(UniqueStatelessServices, countBinLabel),
		UniqueSLPerTracePercentiles: s[UniqueStatelessServices].Percentiles,

		MetaPerTraceSF:        s[StatefulCalls].Describe,
		MetaPerTraceSL:        s[StatelessCalls].Describe,
		SFPerTraceHist:        hist(StatefulCalls, countBinLabel),
		SFPerTracePercentiles: s[StatefulCalls].Percentiles,
		SLPerTraceHist:        hist(StatelessCalls, countBinLabel),
		SLPerTracePercentiles: s[StatelessCalls].Percentiles,
	}
}

// Encode writes the report as YAML.
func (r *Report) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return enc.Close()
}

// WriteFile writes the report to path. The document is written to a
// temporary file in the same directory and renamed into place, so a failed
// run never leaves a truncated report behind.
func (r *Report) WriteFile(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := r.Encode(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing report file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// LoadReport reads a report previously written by WriteFile back into a
// generic document, keyed as on disk.
func LoadReport(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return doc, nil
}
