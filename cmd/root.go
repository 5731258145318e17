package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tracestat/tracestat/analysis"
	"github.com/tracestat/tracestat/analysis/record"
	"github.com/tracestat/tracestat/analysis/telemetry"
)

var (
	// CLI flags for the analyze command
	logLevel           string    // Log verbosity level
	configPath         string    // Optional YAML config file
	outputDir          string    // Directory receiving <app>.yml
	accuracy           float64   // Inverse relative error of percentile estimates
	shardCount         int       // Number of traceid shards (0 = 4 per worker)
	printReport        bool      // Also write the report to stdout
	pushgatewayURL     string    // Prometheus Pushgateway for run counters
	noHeader           bool      // Input CSV files have no header row
	statefulRPCTypes   []string  // rpctype tags treated as stateful
	percentiles        []float64 // Percentile probabilities to report
	chainWarnThreshold int       // Distinct stateful rpcids per trace before warning
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "tracestat",
	Short: "Structural statistics over microservice call traces",
}

// analyzeParams is everything one analysis run needs, resolved from
// positional arguments, the config file and flags.
type analyzeParams struct {
	App     string
	Input   string
	Workers int
	Config  Config
	RunID   string
}

// analyzeCmd computes the statistics document for a call-record dataset
var analyzeCmd = &cobra.Command{
	Use:   "analyze <engine-endpoint> <app-name> <input-path>",
	Short: "Compute chain and service statistics for a call-record dataset",
	Long: "Reads call records (CSV file, directory or ** glob), deduplicates them and writes " +
		"chain-size, service classification and per-trace statistics to <output-dir>/<app-name>.yml. " +
		"The engine endpoint sets parallelism: local, local[N] or local[*].",
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		params, err := resolveParams(cmd, args)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		startTime := time.Now()
		report, path, err := runAnalysis(ctx, params)
		if err != nil {
			logrus.Fatalf("Analysis failed: %v", err)
		}
		if printReport {
			if err := report.Encode(os.Stdout); err != nil {
				logrus.Fatalf("Printing report failed: %v", err)
			}
		}
		logrus.Infof("Stats exported to %s in %v", path, time.Since(startTime).Round(time.Millisecond))
	},
}

// resolveParams layers defaults, the config file and explicitly set flags.
// Flags only override config values when the user actually passed them.
func resolveParams(cmd *cobra.Command, args []string) (analyzeParams, error) {
	workers, err := ParseEndpoint(args[0])
	if err != nil {
		return analyzeParams{}, err
	}

	cfg := DefaultConfig()
	if configPath != "" {
		if cfg, err = LoadConfig(configPath); err != nil {
			return analyzeParams{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.OutputDir = outputDir
	}
	if flags.Changed("accuracy") {
		cfg.Accuracy = accuracy
	}
	if flags.Changed("shards") {
		cfg.Shards = shardCount
	}
	if flags.Changed("pushgateway") {
		cfg.Pushgateway = pushgatewayURL
	}
	if flags.Changed("no-header") {
		header := !noHeader
		cfg.Header = &header
	}
	if flags.Changed("stateful-rpctypes") {
		cfg.StatefulRPCTypes = statefulRPCTypes
	}
	if flags.Changed("percentiles") {
		cfg.Percentiles = percentiles
	}
	if flags.Changed("chain-warn-threshold") {
		cfg.ChainWarnThreshold = chainWarnThreshold
	}
	if err := cfg.Validate(); err != nil {
		return analyzeParams{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return analyzeParams{
		App:     args[1],
		Input:   args[2],
		Workers: workers,
		Config:  cfg,
		RunID:   uuid.NewString(),
	}, nil
}

// runAnalysis loads, analyzes and exports one dataset. It returns the report
// and the path it was written to. Nothing is written on failure.
func runAnalysis(ctx context.Context, p analyzeParams) (*analysis.Report, string, error) {
	log := logrus.WithFields(logrus.Fields{"app": p.App, "run_id": p.RunID})

	files, err := record.ResolveInputs(p.Input)
	if err != nil {
		return nil, "", fmt.Errorf("resolving input: %w", err)
	}

	shards := p.Config.Shards
	if shards == 0 {
		shards = 4 * p.Workers
	}
	log.Infof("Loading dataset: %d file(s), %d shard(s), %d worker(s)", len(files), shards, p.Workers)

	metrics := telemetry.New(p.App)
	loadStart := time.Now()
	data, err := record.LoadShards(ctx, files, shards, p.Workers, record.LoadOptions{Header: p.Config.HasHeader()})
	if err != nil {
		return nil, "", fmt.Errorf("loading dataset: %w", err)
	}
	metrics.ObserveStage("load", loadStart)
	log.Debugf("Loaded %d records in %v", data.Count(), time.Since(loadStart))

	analyzer, err := analysis.NewAnalyzer(p.Config.AnalyzerOptions(p.Workers),
		analysis.WithMetrics(metrics), analysis.WithLogger(log))
	if err != nil {
		return nil, "", err
	}
	report, err := analyzer.Run(ctx, data)
	if err != nil {
		return nil, "", err
	}

	if err := os.MkdirAll(p.Config.OutputDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(p.Config.OutputDir, p.App+".yml")
	log.Info("Exporting to YAML ...")
	if err := report.WriteFile(path); err != nil {
		return nil, "", err
	}

	if p.Config.Pushgateway != "" {
		if err := metrics.Push(ctx, p.Config.Pushgateway, p.App, p.RunID); err != nil {
			log.Warnf("Run metrics not pushed: %v", err)
		}
	}
	return report, path, nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	analyzeCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	analyzeCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	analyzeCmd.Flags().StringVar(&outputDir, "output-dir", os.TempDir(), "Directory receiving <app-name>.yml")
	analyzeCmd.Flags().Float64Var(&accuracy, "accuracy", 10000, "Percentile accuracy; relative error is 1/accuracy")
	analyzeCmd.Flags().IntVar(&shardCount, "shards", 0, "Number of traceid shards (0 = 4 per worker)")
	analyzeCmd.Flags().BoolVar(&printReport, "print", false, "Also write the report to stdout")
	analyzeCmd.Flags().StringVar(&pushgatewayURL, "pushgateway", "", "Prometheus Pushgateway URL for run metrics")
	analyzeCmd.Flags().BoolVar(&noHeader, "no-header", false, "Input CSV files have no header row")
	analyzeCmd.Flags().StringSliceVar(&statefulRPCTypes, "stateful-rpctypes", record.DefaultStatefulRPCTypes, "Comma-separated rpctype tags treated as stateful")
	analyzeCmd.Flags().Float64SliceVar(&percentiles, "percentiles", nil, "Comma-separated percentile probabilities (default 0.2,...,0.99)")
	analyzeCmd.Flags().IntVar(&chainWarnThreshold, "chain-warn-threshold", 10000, "Warn when a trace has more distinct stateful rpcids than this (0 = never)")

	// Attach `analyze` as a subcommand to `root`
	rootCmd.AddCommand(analyzeCmd)
}
