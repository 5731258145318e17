package analysis

import (
	"sort"

	"github.com/tracestat/tracestat/analysis/record"
)

// TraceCounts holds one trace's stateful and stateless tallies.
type TraceCounts struct {
	TraceID   string
	Stateful  int // sf_count
	Stateless int // sl_count
}

type serviceKey struct {
	meta record.MetaType
	dm   string
}

// UniqueServicesPerTrace counts, per trace, the distinct services (dm) reached
// by stateful and by stateless calls. A null dm is one more distinct value on
// its side. A service reached by both kinds of call counts once on each side.
func UniqueServicesPerTrace(records []record.CallRecord, c *record.Classifier) []TraceCounts {
	seen := make(map[string]map[serviceKey]struct{})
	for _, r := range records {
		services, ok := seen[r.TraceID]
		if !ok {
			services = make(map[serviceKey]struct{})
			seen[r.TraceID] = services
		}
		services[serviceKey{meta: c.MetaTypeOf(r), dm: r.DM}] = struct{}{}
	}

	out := make([]TraceCounts, 0, len(seen))
	for traceID, services := range seen {
		tc := TraceCounts{TraceID: traceID}
		for k := range services {
			if k.meta == record.Stateful {
				tc.Stateful++
			} else {
				tc.Stateless++
			}
		}
		out = append(out, tc)
	}
	sortByTrace(out)
	return out
}

// CallsPerTrace counts, per trace, the stateful and stateless call records.
// No distinctness is applied beyond record deduplication.
func CallsPerTrace(records []record.CallRecord, c *record.Classifier) []TraceCounts {
	byTrace := make(map[string]*TraceCounts)
	for _, r := range records {
		tc, ok := byTrace[r.TraceID]
		if !ok {
			tc = &TraceCounts{TraceID: r.TraceID}
			byTrace[r.TraceID] = tc
		}
		if c.MetaTypeOf(r) == record.Stateful {
			tc.Stateful++
		} else {
			tc.Stateless++
		}
	}

	out := make([]TraceCounts, 0, len(byTrace))
	for _, tc := range byTrace {
		out = append(out, *tc)
	}
	sortByTrace(out)
	return out
}

func sortByTrace(counts []TraceCounts) {
	sort.Slice(counts, func(i, j int) bool { return counts[i].TraceID < counts[j].TraceID })
}
