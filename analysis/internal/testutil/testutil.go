// Package testutil provides shared test infrastructure for the analysis
// packages: call-record fixtures and float assertions.
package testutil

import (
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/tracestat/tracestat/analysis/record"
)

// Call builds a CallRecord with a valid timestamp.
func Call(traceID string, ts int64, rpcid, rpctype, dm string) record.CallRecord {
	return record.CallRecord{
		TraceID:   traceID,
		Timestamp: sql.NullInt64{Int64: ts, Valid: true},
		RPCID:     rpcid,
		UM:        "um-" + traceID,
		RPCType:   rpctype,
		DM:        dm,
	}
}

// WriteCSV writes records as a raw 9-column CSV file under dir and returns its path.
func WriteCSV(t *testing.T, dir, name string, records []record.CallRecord) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating fixture dir: %v", err)
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	defer func() { _ = file.Close() }()
	if err := record.WriteCSV(file, records); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

// SampleDataset is a small dataset with duplicates, mixed meta types and
// nested stateful calls across three traces.
//
//	T1: 0 (http, svcA), 0.1 (db, mysql), 0.1.1 (mc, redis), 0.2 (rpc, svcB), duplicate of 0.1
//	T2: 0 (mq, kafka), 0.1 (mq, kafka), 0.2 (db, mysql)
//	T3: 0 (http, svcB), 0.1 (rpc, mysql)
func SampleDataset() []record.CallRecord {
	return []record.CallRecord{
		Call("T1", 100, "0", "http", "svcA"),
		Call("T1", 101, "0.1", "db", "mysql"),
		Call("T1", 102, "0.1.1", "mc", "redis"),
		Call("T1", 103, "0.2", "rpc", "svcB"),
		Call("T1", 101, "0.1", "db", "mysql"),
		Call("T2", 200, "0", "mq", "kafka"),
		Call("T2", 201, "0.1", "mq", "kafka"),
		Call("T2", 202, "0.2", "db", "mysql"),
		Call("T3", 300, "0", "http", "svcB"),
		Call("T3", 301, "0.1", "rpc", "mysql"),
	}
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
