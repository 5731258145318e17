package record

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedup_DropsExactDuplicatesOnly(t *testing.T) {
	a := CallRecord{TraceID: "T1", Timestamp: sql.NullInt64{Int64: 1, Valid: true}, RPCID: "0", RPCType: "db", DM: "x"}
	b := a
	b.Timestamp = sql.NullInt64{Int64: 2, Valid: true} // differs in one field
	c := a
	c.Timestamp = sql.NullInt64{} // null timestamp is a distinct value

	got := Dedup([]CallRecord{a, b, a, c, b, c})

	assert.Equal(t, []CallRecord{a, b, c}, got)
}

func TestDedup_Idempotent(t *testing.T) {
	in := []CallRecord{
		{TraceID: "T1", RPCID: "0"},
		{TraceID: "T1", RPCID: "0"},
		{TraceID: "T2", RPCID: "0.1"},
	}
	once := Dedup(in)
	twice := Dedup(once)

	assert.Len(t, once, 2)
	assert.Equal(t, once, twice)
}

func TestDedup_DoesNotModifyInput(t *testing.T) {
	in := []CallRecord{{TraceID: "T1"}, {TraceID: "T1"}}
	_ = Dedup(in)
	assert.Len(t, in, 2)
	assert.Equal(t, "T1", in[1].TraceID)
}

func TestDedup_Empty(t *testing.T) {
	assert.Empty(t, Dedup(nil))
}
