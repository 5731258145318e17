// Package record models the call records consumed by the analyzer and the
// plumbing that gets them off disk: CSV loading, traceid sharding and
// deduplication. It has no dependencies on analysis/.
package record

import (
	"database/sql"
	"strings"
)

// MetaType classifies a call as stateful or stateless.
// The short labels are the serialized form used in reports.
type MetaType string

const (
	// Stateful marks cache, database and message-queue calls.
	Stateful MetaType = "sf"
	// Stateless marks every other call type.
	Stateless MetaType = "sl"
)

// DefaultStatefulRPCTypes lists the rpctype tags treated as stateful.
var DefaultStatefulRPCTypes = []string{
	"mc", // caches
	"db", // databases
	"mq", // message queues
}

// CallRecord is one remote invocation within a trace.
// Empty strings stand for null string columns.
type CallRecord struct {
	TraceID   string
	Timestamp sql.NullInt64
	RPCID     string
	UM        string
	RPCType   string
	DM        string
}

// RPCIDDepth returns the segment count of a hierarchical rpcid ("0.1.2" → 3).
// A null rpcid has depth 0.
func RPCIDDepth(rpcid string) int {
	if rpcid == "" {
		return 0
	}
	return strings.Count(rpcid, ".") + 1
}

// Classifier maps rpctype tags to meta types.
type Classifier struct {
	stateful map[string]bool
}

// NewClassifier builds a Classifier from the set of stateful rpctype tags.
// A nil or empty list falls back to DefaultStatefulRPCTypes.
func NewClassifier(statefulTypes []string) *Classifier {
	if len(statefulTypes) == 0 {
		statefulTypes = DefaultStatefulRPCTypes
	}
	c := &Classifier{stateful: make(map[string]bool, len(statefulTypes))}
	for _, t := range statefulTypes {
		c.stateful[t] = true
	}
	return c
}

// IsStateful reports whether rpctype is one of the stateful tags.
// A null rpctype is never stateful.
func (c *Classifier) IsStateful(rpctype string) bool {
	return c.stateful[rpctype]
}

// MetaTypeOf returns the meta type for a record.
func (c *Classifier) MetaTypeOf(r CallRecord) MetaType {
	if c.IsStateful(r.RPCType) {
		return Stateful
	}
	return Stateless
}
