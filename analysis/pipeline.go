package analysis

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tracestat/tracestat/analysis/record"
	"github.com/tracestat/tracestat/analysis/summary"
	"github.com/tracestat/tracestat/analysis/telemetry"
)

// Metric names one derived numeric column fed to the summarizer.
type Metric int

const (
	SFChainSize             Metric = iota // stateful chain size, one row per stateful call
	UniqueStatefulServices                // distinct stateful services per trace
	UniqueStatelessServices               // distinct stateless services per trace
	StatefulCalls                         // stateful call records per trace
	StatelessCalls                        // stateless call records per trace
	numMetrics
)

var metricNames = [numMetrics]string{
	SFChainSize:             "sf_chain_size",
	UniqueStatefulServices:  "unique_sf_per_trace",
	UniqueStatelessServices: "unique_sl_per_trace",
	StatefulCalls:           "sf_per_trace",
	StatelessCalls:          "sl_per_trace",
}

func (m Metric) String() string {
	if m < 0 || m >= numMetrics {
		return fmt.Sprintf("Metric(%d)", int(m))
	}
	return metricNames[m]
}

// Options configures an Analyzer. Zero values take the documented defaults.
type Options struct {
	StatefulRPCTypes   []string  // default record.DefaultStatefulRPCTypes
	Percentiles        []float64 // default summary.DefaultPercentiles
	Accuracy           float64   // default summary.DefaultAccuracy
	Workers            int       // default runtime.GOMAXPROCS(0)
	ChainWarnThreshold int       // 0 disables the warning
}

func (o Options) withDefaults() Options {
	if len(o.StatefulRPCTypes) == 0 {
		o.StatefulRPCTypes = record.DefaultStatefulRPCTypes
	}
	if len(o.Percentiles) == 0 {
		o.Percentiles = summary.DefaultPercentiles
	}
	if o.Accuracy == 0 {
		o.Accuracy = summary.DefaultAccuracy
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// Validate reports the first invalid option. Zero values are checked after
// their defaults are applied.
func (o Options) Validate() error {
	o = o.withDefaults()
	if !(o.Accuracy > 1) {
		return fmt.Errorf("accuracy must be > 1, got %v", o.Accuracy)
	}
	for _, p := range o.Percentiles {
		if !(p > 0 && p < 1) {
			return fmt.Errorf("percentile %v outside (0, 1)", p)
		}
	}
	for _, t := range o.StatefulRPCTypes {
		if t == "" {
			return fmt.Errorf("empty stateful rpctype")
		}
	}
	if o.ChainWarnThreshold < 0 {
		return fmt.Errorf("chain warn threshold must be >= 0, got %d", o.ChainWarnThreshold)
	}
	return nil
}

// Analyzer runs the full statistics pipeline over sharded call records.
type Analyzer struct {
	opts       Options
	classifier *record.Classifier
	metrics    *telemetry.Metrics
	log        *logrus.Entry
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithMetrics records pipeline counters into m.
func WithMetrics(m *telemetry.Metrics) AnalyzerOption {
	return func(a *Analyzer) { a.metrics = m }
}

// WithLogger routes progress logging through entry.
func WithLogger(entry *logrus.Entry) AnalyzerOption {
	return func(a *Analyzer) { a.log = entry }
}

// NewAnalyzer validates opts and builds an Analyzer.
func NewAnalyzer(opts Options, options ...AnalyzerOption) (*Analyzer, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analyzer options: %w", err)
	}
	a := &Analyzer{
		opts:       opts,
		classifier: record.NewClassifier(opts.StatefulRPCTypes),
		log:        logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, o := range options {
		o(a)
	}
	return a, nil
}

// Options returns the effective options, defaults applied.
func (a *Analyzer) Options() Options { return a.opts }

// partial is the reduction of one shard. Every field merges associatively.
type partial struct {
	loaded   int
	unique   int
	stateful int
	traces   int
	services ServiceMetaSets
	columns  [numMetrics]*summary.Accumulator
}

func (a *Analyzer) newPartial() (*partial, error) {
	p := &partial{services: make(ServiceMetaSets)}
	for m := range p.columns {
		acc, err := summary.NewAccumulator(a.opts.Accuracy)
		if err != nil {
			return nil, err
		}
		p.columns[m] = acc
	}
	return p, nil
}

func (p *partial) merge(other *partial) error {
	p.loaded += other.loaded
	p.unique += other.unique
	p.stateful += other.stateful
	p.traces += other.traces
	p.services.Merge(other.services)
	for m := range p.columns {
		if err := p.columns[m].Merge(other.columns[m]); err != nil {
			return fmt.Errorf("merging %s: %w", Metric(m), err)
		}
	}
	return nil
}

// processShard deduplicates one shard and reduces it to a partial.
// Shards are keyed by traceid, so every trace is complete within its shard.
func (a *Analyzer) processShard(records []record.CallRecord) (*partial, error) {
	p, err := a.newPartial()
	if err != nil {
		return nil, err
	}
	unique := record.Dedup(records)
	p.loaded = len(records)
	p.unique = len(unique)

	for _, row := range ChainSizes(unique, a.classifier, a.opts.ChainWarnThreshold) {
		if err := p.columns[SFChainSize].Add(float64(row.Size)); err != nil {
			return nil, err
		}
	}

	for _, tc := range UniqueServicesPerTrace(unique, a.classifier) {
		if err := addCounts(p, UniqueStatefulServices, UniqueStatelessServices, tc); err != nil {
			return nil, err
		}
	}

	calls := CallsPerTrace(unique, a.classifier)
	p.traces = len(calls)
	for _, tc := range calls {
		if err := addCounts(p, StatefulCalls, StatelessCalls, tc); err != nil {
			return nil, err
		}
		p.stateful += tc.Stateful
	}

	p.services = ObserveServices(unique, a.classifier)
	return p, nil
}

func addCounts(p *partial, sf, sl Metric, tc TraceCounts) error {
	if err := p.columns[sf].Add(float64(tc.Stateful)); err != nil {
		return err
	}
	return p.columns[sl].Add(float64(tc.Stateless))
}

// Run reduces every shard in parallel, merges the partials once all shards
// have finished, and assembles the report. The first shard failure cancels
// the rest and no report is produced.
func (a *Analyzer) Run(ctx context.Context, shards *record.Shards) (*Report, error) {
	start := time.Now()
	partials := make([]*partial, shards.Len())

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i := 0; i < shards.Len(); i++ {
		i := i
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			p, err := a.processShard(shards.Shard(i))
			if err != nil {
				return fmt.Errorf("shard %d: %w", i, err)
			}
			partials[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	a.observeStage("reduce", start)

	total, err := a.newPartial()
	if err != nil {
		return nil, err
	}
	for _, p := range partials {
		if err := total.merge(p); err != nil {
			return nil, err
		}
	}

	a.log.Infof("Current count: %d (%d duplicates dropped from %d records)",
		total.unique, total.loaded-total.unique, total.loaded)
	a.log.Infof("Gathering services stats over %d traces ...", total.traces)

	start = time.Now()
	summaries := make(map[Metric]*summary.StatSummary, numMetrics)
	for m := Metric(0); m < numMetrics; m++ {
		s, err := total.columns[m].Summarize(a.opts.Percentiles)
		if err != nil {
			return nil, fmt.Errorf("summarizing %s: %w", m, err)
		}
		summaries[m] = s
		a.log.Debugf("%s: count=%d mean=%v", m, s.Describe.Count, s.Describe.Mean)
	}
	countMeta := CountByMetaType(total.services.Classify())
	a.observeStage("summarize", start)
	a.record(total, countMeta)

	return assembleReport(summaries, countMeta), nil
}

// AnalyzeRecords shards in-memory records by traceid and runs the pipeline.
func (a *Analyzer) AnalyzeRecords(ctx context.Context, records []record.CallRecord, shardCount int) (*Report, error) {
	shards := record.NewShards(shardCount)
	shards.Add(records...)
	return a.Run(ctx, shards)
}

func (a *Analyzer) observeStage(stage string, start time.Time) {
	if a.metrics != nil {
		a.metrics.ObserveStage(stage, start)
	}
}

func (a *Analyzer) record(total *partial, countMeta map[record.MetaType]int) {
	if a.metrics == nil {
		return
	}
	a.metrics.RecordsLoaded.Add(float64(total.loaded))
	a.metrics.DuplicateRecords.Add(float64(total.loaded - total.unique))
	a.metrics.StatefulCalls.Add(float64(total.stateful))
	a.metrics.Traces.Add(float64(total.traces))
	for _, m := range []record.MetaType{record.Stateful, record.Stateless} {
		a.metrics.Services.WithLabelValues(string(m)).Set(float64(countMeta[m]))
	}
}
