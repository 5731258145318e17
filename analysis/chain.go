package analysis

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tracestat/tracestat/analysis/record"
)

// ChainRow is the derived chain size of one stateful call.
type ChainRow struct {
	TraceID string
	RPCID   string
	Size    int
}

// traceChain holds the stateful rpcids of one trace, shallowest first, and
// memoizes the chain size of every rpcid already evaluated.
type traceChain struct {
	candidates []string
	sizes      map[string]int
	distinct   int
}

func newTraceChain(rpcids []string) *traceChain {
	candidates := make([]string, len(rpcids))
	copy(candidates, rpcids)
	// ancestor-first; order does not change the substring count
	sort.SliceStable(candidates, func(i, j int) bool {
		return record.RPCIDDepth(candidates[i]) < record.RPCIDDepth(candidates[j])
	})
	distinct := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		distinct[c] = struct{}{}
	}
	return &traceChain{
		candidates: candidates,
		sizes:      make(map[string]int, len(distinct)),
		distinct:   len(distinct),
	}
}

// size counts the candidates that occur as a substring of rpcid.
// "1.2" counts inside "11.2": the test is textual, not structural.
func (t *traceChain) size(rpcid string) int {
	if n, ok := t.sizes[rpcid]; ok {
		return n
	}
	n := 0
	for _, c := range t.candidates {
		if strings.Contains(rpcid, c) {
			n++
		}
	}
	t.sizes[rpcid] = n
	return n
}

// ChainSize returns the chain size of rpcid against the stateful rpcids of
// its trace. rpcid itself is expected to be one of them.
func ChainSize(rpcid string, traceRPCIDs []string) int {
	return newTraceChain(traceRPCIDs).size(rpcid)
}

// ChainSizes derives the chain size of every stateful record with a non-null
// rpcid. Candidates are collected per trace as a list, so duplicated rpcids
// count once per record. Rows come out in input order. Traces with no
// stateful records produce no rows.
//
// Cost is O(d·n) substring tests per trace for n stateful records and d
// distinct rpcids. Traces with more than warnThreshold distinct stateful
// rpcids are logged; warnThreshold <= 0 disables the warning.
func ChainSizes(records []record.CallRecord, c *record.Classifier, warnThreshold int) []ChainRow {
	byTrace := make(map[string][]string)
	for _, r := range records {
		if r.RPCID == "" || !c.IsStateful(r.RPCType) {
			continue
		}
		byTrace[r.TraceID] = append(byTrace[r.TraceID], r.RPCID)
	}
	if len(byTrace) == 0 {
		return nil
	}

	chains := make(map[string]*traceChain, len(byTrace))
	for traceID, rpcids := range byTrace {
		tc := newTraceChain(rpcids)
		if warnThreshold > 0 && tc.distinct > warnThreshold {
			logrus.Warnf("trace %q has %d distinct stateful rpcids; chain sizing is quadratic in this count", traceID, tc.distinct)
		}
		chains[traceID] = tc
	}

	rows := make([]ChainRow, 0, len(records))
	for _, r := range records {
		if r.RPCID == "" || !c.IsStateful(r.RPCType) {
			continue
		}
		rows = append(rows, ChainRow{
			TraceID: r.TraceID,
			RPCID:   r.RPCID,
			Size:    chains[r.TraceID].size(r.RPCID),
		})
	}
	return rows
}
