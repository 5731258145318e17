// Package summary provides the one statistics reducer shared by every metric:
// an exact describe summary and histogram plus approximate percentiles, built
// from partial accumulators that merge associatively.
package summary

import (
	"fmt"
	"math"
	"sort"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/DataDog/sketches-go/ddsketch/mapping"
	"github.com/DataDog/sketches-go/ddsketch/store"
	"gonum.org/v1/gonum/stat"
)

// DefaultPercentiles are the probabilities reported for every metric.
var DefaultPercentiles = []float64{0.20, 0.25, 0.30, 0.40, 0.50, 0.60, 0.75, 0.80, 0.90, 0.95, 0.99}

// DefaultAccuracy is the default inverse relative error of percentile estimates.
const DefaultAccuracy = 10000

// Describe is the count/mean/stddev/min/max summary of a column.
// StdDev is the sample standard deviation; it is NaN for fewer than two values.
type Describe struct {
	Count  int64
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// MarshalYAML emits the summary as a flat mapping. An empty column only
// reports its count.
func (d Describe) MarshalYAML() (interface{}, error) {
	if d.Count == 0 {
		return map[string]float64{"count": 0}, nil
	}
	return map[string]float64{
		"count":  float64(d.Count),
		"mean":   d.Mean,
		"stddev": d.StdDev,
		"min":    d.Min,
		"max":    d.Max,
	}, nil
}

// Bin is one histogram entry: a distinct value and how often it occurred.
type Bin struct {
	Value float64
	Count int64
}

// StatSummary is the finalized output for one metric column.
type StatSummary struct {
	Describe    Describe
	Histogram   []Bin               // ascending by Value
	Percentiles map[float64]float64 // probability → approximate quantile
}

// Accumulator collects one numeric column. Partial accumulators built over
// disjoint partitions can be merged in any order with the same result.
// Not safe for concurrent use.
type Accumulator struct {
	accuracy float64
	hist     map[float64]int64
	sketch   *ddsketch.DDSketch
}

// NewAccumulator creates an empty accumulator whose percentile estimates have
// relative error at most 1/accuracy. accuracy must be greater than 1.
func NewAccumulator(accuracy float64) (*Accumulator, error) {
	if !(accuracy > 1) || math.IsInf(accuracy, 1) {
		return nil, fmt.Errorf("percentile accuracy must be a finite number > 1, got %v", accuracy)
	}
	m, err := mapping.NewLogarithmicMapping(1 / accuracy)
	if err != nil {
		return nil, fmt.Errorf("creating sketch mapping: %w", err)
	}
	return &Accumulator{
		accuracy: accuracy,
		hist:     make(map[float64]int64),
		sketch:   ddsketch.NewDDSketchFromStoreProvider(m, store.BufferedPaginatedStoreConstructor),
	}, nil
}

// Add records one value. NaN stands for null and is skipped.
func (a *Accumulator) Add(v float64) error {
	return a.AddCount(v, 1)
}

// AddCount records value v n times. NaN values and n <= 0 are skipped.
// Values outside the sketch's indexable range (such as ±Inf) are rejected.
func (a *Accumulator) AddCount(v float64, n int64) error {
	if math.IsNaN(v) || n <= 0 {
		return nil
	}
	if err := a.sketch.AddWithCount(v, float64(n)); err != nil {
		return fmt.Errorf("adding %v to sketch: %w", v, err)
	}
	a.hist[v] += n
	return nil
}

// Count returns the number of non-null values recorded.
func (a *Accumulator) Count() int64 {
	var n int64
	for _, c := range a.hist {
		n += c
	}
	return n
}

// Merge folds other into a. Both accumulators must share the same accuracy.
// other is left unchanged.
func (a *Accumulator) Merge(other *Accumulator) error {
	if other == nil {
		return nil
	}
	if a.accuracy != other.accuracy {
		return fmt.Errorf("merging accumulators with different accuracy: %v vs %v", a.accuracy, other.accuracy)
	}
	for v, c := range other.hist {
		a.hist[v] += c
	}
	if err := a.sketch.MergeWith(other.sketch); err != nil {
		return fmt.Errorf("merging sketches: %w", err)
	}
	return nil
}

// Summarize finalizes the accumulator for the given percentile probabilities.
// Every probability must lie in [0, 1]. Percentiles are clamped to the exact
// [min, max] range. An empty accumulator yields a zero-count summary with no
// histogram and no percentiles.
func (a *Accumulator) Summarize(probs []float64) (*StatSummary, error) {
	for _, p := range probs {
		if p < 0 || p > 1 || math.IsNaN(p) {
			return nil, fmt.Errorf("percentile probability %v outside [0, 1]", p)
		}
	}

	s := &StatSummary{
		Histogram:   a.histogram(),
		Percentiles: make(map[float64]float64, len(probs)),
	}
	if len(s.Histogram) == 0 {
		return s, nil
	}

	values := make([]float64, len(s.Histogram))
	weights := make([]float64, len(s.Histogram))
	for i, b := range s.Histogram {
		values[i] = b.Value
		weights[i] = float64(b.Count)
		s.Describe.Count += b.Count
	}
	s.Describe.Mean, s.Describe.StdDev = stat.MeanStdDev(values, weights)
	s.Describe.Min = values[0]
	s.Describe.Max = values[len(values)-1]

	if len(probs) == 0 {
		return s, nil
	}
	quantiles, err := a.sketch.GetValuesAtQuantiles(probs)
	if err != nil {
		return nil, fmt.Errorf("estimating percentiles: %w", err)
	}
	for i, p := range probs {
		s.Percentiles[p] = clamp(quantiles[i], s.Describe.Min, s.Describe.Max)
	}
	return s, nil
}

func (a *Accumulator) histogram() []Bin {
	bins := make([]Bin, 0, len(a.hist))
	for v, c := range a.hist {
		bins = append(bins, Bin{Value: v, Count: c})
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].Value < bins[j].Value })
	return bins
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Of summarizes a plain slice of values in one call. NaN values are skipped.
func Of(values []float64, probs []float64, accuracy float64) (*StatSummary, error) {
	acc, err := NewAccumulator(accuracy)
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		if err := acc.Add(v); err != nil {
			return nil, err
		}
	}
	return acc.Summarize(probs)
}
