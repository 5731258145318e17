package analysis

import (
	"sort"

	"github.com/tracestat/tracestat/analysis/record"
)

// metaSet is the set of meta types observed for one service.
type metaSet struct {
	stateful  bool
	stateless bool
}

func (m metaSet) distinct() int {
	n := 0
	if m.stateful {
		n++
	}
	if m.stateless {
		n++
	}
	return n
}

type resolution int

const (
	keepObserved resolution = iota
	resolveStateful
	resolveStateless
)

type resolutionKey struct {
	multiple    bool // more than one distinct meta type observed
	anyStateful bool
}

// resolutionTable resolves a service's observed meta types to one class:
//
//	distinct  any sf  → class
//	1         -       → the observed one
//	>1        yes     → sf
//	>1        no      → sl
var resolutionTable = map[resolutionKey]resolution{
	{multiple: false, anyStateful: true}:  keepObserved,
	{multiple: false, anyStateful: false}: keepObserved,
	{multiple: true, anyStateful: true}:   resolveStateful,
	{multiple: true, anyStateful: false}:  resolveStateless,
}

// ResolveMetaType classifies a service from the meta types observed for it
// anywhere in the dataset. Duplicates in observed are ignored. The result is
// total: stateful wins on conflict, and an empty input resolves to stateless.
func ResolveMetaType(observed []record.MetaType) record.MetaType {
	distinct := make([]record.MetaType, 0, 2)
	seen := make(map[record.MetaType]bool, 2)
	anyStateful := false
	for _, m := range observed {
		if seen[m] {
			continue
		}
		seen[m] = true
		distinct = append(distinct, m)
		if m == record.Stateful {
			anyStateful = true
		}
	}
	if len(distinct) == 0 {
		return record.Stateless
	}

	switch resolutionTable[resolutionKey{multiple: len(distinct) > 1, anyStateful: anyStateful}] {
	case resolveStateful:
		return record.Stateful
	case resolveStateless:
		return record.Stateless
	default:
		return distinct[0]
	}
}

// ServiceMetaSets maps each service (dm) to the meta types observed for it.
// Sets from different partitions combine with Merge.
type ServiceMetaSets map[string]metaSet

// ObserveServices collects the distinct (dm, meta type) pairs of records.
// Records with a null dm are not services and are skipped.
func ObserveServices(records []record.CallRecord, c *record.Classifier) ServiceMetaSets {
	sets := make(ServiceMetaSets)
	for _, r := range records {
		if r.DM == "" {
			continue
		}
		sets.observe(r.DM, c.MetaTypeOf(r))
	}
	return sets
}

func (s ServiceMetaSets) observe(dm string, m record.MetaType) {
	set := s[dm]
	if m == record.Stateful {
		set.stateful = true
	} else {
		set.stateless = true
	}
	s[dm] = set
}

// Merge unions other into s.
func (s ServiceMetaSets) Merge(other ServiceMetaSets) {
	for dm, o := range other {
		set := s[dm]
		set.stateful = set.stateful || o.stateful
		set.stateless = set.stateless || o.stateless
		s[dm] = set
	}
}

// Observed returns the distinct meta types seen for dm, stateful first.
func (s ServiceMetaSets) Observed(dm string) []record.MetaType {
	set := s[dm]
	out := make([]record.MetaType, 0, set.distinct())
	if set.stateful {
		out = append(out, record.Stateful)
	}
	if set.stateless {
		out = append(out, record.Stateless)
	}
	return out
}

// Classify resolves every observed service to a single meta type.
func (s ServiceMetaSets) Classify() map[string]record.MetaType {
	out := make(map[string]record.MetaType, len(s))
	for dm := range s {
		out[dm] = ResolveMetaType(s.Observed(dm))
	}
	return out
}

// Services returns the observed service names, sorted.
func (s ServiceMetaSets) Services() []string {
	names := make([]string, 0, len(s))
	for dm := range s {
		names = append(names, dm)
	}
	sort.Strings(names)
	return names
}

// CountByMetaType counts services per resolved class. Classes with no
// services are absent from the result.
func CountByMetaType(classes map[string]record.MetaType) map[record.MetaType]int {
	counts := make(map[record.MetaType]int, 2)
	for _, m := range classes {
		counts[m]++
	}
	return counts
}
