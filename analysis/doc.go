// Package analysis computes structural statistics over microservice call
// traces: how deeply stateful calls (cache, database, message queue) nest
// within a trace, and how stateful and stateless services are spread across
// traces and services.
//
// # Reading Guide
//
// Start with these files:
//   - chain.go: chain-size derivation for stateful calls
//   - classify.go: per-service meta-type resolution (decision table)
//   - pertrace.go: per-trace distinct-service and call-record counts
//   - pipeline.go: shard-parallel reduction and merge
//   - report.go: output document layout and YAML encoding
//
// # Architecture
//
// Sub-packages hold the leaves of the pipeline:
//   - analysis/record/: CallRecord model, CSV loading, traceid sharding, dedup
//   - analysis/summary/: the shared describe/histogram/percentile reducer
//   - analysis/telemetry/: Prometheus counters for one run
//
// Records are hash-sharded by traceid, so every trace-local computation runs
// inside one shard without coordination. Each shard is reduced to a partial
// whose fields (histograms, sketches, service sets, counters) merge
// associatively; partials are merged only after every shard has finished.
//
// # Known Limitations
//
// Chain size is a textual substring test on rpcids, not an ancestor test:
// "1.2" is counted inside "11.2". The heuristic is kept as is.
package analysis
