package record

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

// flushSize is the number of records a reader buffers per shard before
// taking the shard lock.
const flushSize = 4096

// Shards holds records hash-partitioned by traceid. Every record of a trace
// lands in the same shard, so trace-local work never crosses shards.
type Shards struct {
	mu      []sync.Mutex
	buckets [][]CallRecord
}

// NewShards allocates n empty shards. n < 1 is treated as 1.
func NewShards(n int) *Shards {
	if n < 1 {
		n = 1
	}
	return &Shards{
		mu:      make([]sync.Mutex, n),
		buckets: make([][]CallRecord, n),
	}
}

// Len returns the number of shards.
func (s *Shards) Len() int { return len(s.buckets) }

// Shard returns the records routed to shard i.
// Callers must not mutate the returned slice.
func (s *Shards) Shard(i int) []CallRecord { return s.buckets[i] }

// Count returns the total number of records across all shards.
func (s *Shards) Count() int {
	total := 0
	for _, b := range s.buckets {
		total += len(b)
	}
	return total
}

// IndexOf returns the shard a traceid is routed to.
func (s *Shards) IndexOf(traceID string) int {
	return int(xxhash.Sum64String(traceID) % uint64(len(s.buckets)))
}

// Add routes records to their shards. Safe for concurrent use.
func (s *Shards) Add(records ...CallRecord) {
	for _, r := range records {
		i := s.IndexOf(r.TraceID)
		s.mu[i].Lock()
		s.buckets[i] = append(s.buckets[i], r)
		s.mu[i].Unlock()
	}
}

// shardWriter buffers records per shard for a single reader goroutine.
type shardWriter struct {
	shards *Shards
	buf    [][]CallRecord
}

func newShardWriter(s *Shards) *shardWriter {
	return &shardWriter{shards: s, buf: make([][]CallRecord, s.Len())}
}

func (w *shardWriter) add(r CallRecord) {
	i := w.shards.IndexOf(r.TraceID)
	w.buf[i] = append(w.buf[i], r)
	if len(w.buf[i]) >= flushSize {
		w.flushShard(i)
	}
}

func (w *shardWriter) flushShard(i int) {
	if len(w.buf[i]) == 0 {
		return
	}
	s := w.shards
	s.mu[i].Lock()
	s.buckets[i] = append(s.buckets[i], w.buf[i]...)
	s.mu[i].Unlock()
	w.buf[i] = w.buf[i][:0]
}

func (w *shardWriter) flush() {
	for i := range w.buf {
		w.flushShard(i)
	}
}

// LoadShards reads every file concurrently, at most workers at a time, and
// partitions the records into n shards. The first failing file cancels the
// remaining reads and its error is returned; no partial result is returned.
func LoadShards(ctx context.Context, files []string, n, workers int, opts LoadOptions) (*Shards, error) {
	shards := NewShards(n)
	if workers < 1 {
		workers = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range files {
		path := path
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			return loadInto(gCtx, path, opts, shards)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return shards, nil
}

// cancelCheckEvery bounds how many rows are parsed between context checks.
const cancelCheckEvery = 1 << 16

func loadInto(ctx context.Context, path string, opts LoadOptions, shards *Shards) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening call records: %w", err)
	}
	defer func() { _ = file.Close() }()

	w := newShardWriter(shards)
	rows := 0
	err = ReadCSV(file, path, opts, func(r CallRecord) error {
		rows++
		if rows%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}
		}
		w.add(r)
		return nil
	})
	if err != nil {
		return err
	}
	w.flush()
	return nil
}
