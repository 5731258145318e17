package record

import (
	"bytes"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `index,traceid,timestamp,rpcid,um,rpctype,dm,interface,rt
0,T1,1000,0,svcA,http,svcB,/api,12
1,T1,1001,0.1,svcB,db,mysql,query,3
2,T2,oops,0.1,,mc,,get,
`

func readAll(t *testing.T, input string, opts LoadOptions) []CallRecord {
	t.Helper()
	var out []CallRecord
	err := ReadCSV(strings.NewReader(input), "test.csv", opts, func(r CallRecord) error {
		out = append(out, r)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestReadCSV_KeepsCoreColumnsOnly(t *testing.T) {
	records := readAll(t, sampleCSV, LoadOptions{Header: true})
	require.Len(t, records, 3)

	want := CallRecord{
		TraceID:   "T1",
		Timestamp: sql.NullInt64{Int64: 1000, Valid: true},
		RPCID:     "0",
		UM:        "svcA",
		RPCType:   "http",
		DM:        "svcB",
	}
	assert.Equal(t, want, records[0])
	assert.Equal(t, "db", records[1].RPCType)
}

func TestReadCSV_MalformedFieldsBecomeNull(t *testing.T) {
	records := readAll(t, sampleCSV, LoadOptions{Header: true})
	r := records[2]

	// unparsable timestamp → null, empty strings → null
	assert.False(t, r.Timestamp.Valid)
	assert.Equal(t, "", r.UM)
	assert.Equal(t, "", r.DM)
	assert.Equal(t, "mc", r.RPCType)
}

func TestReadCSV_NoHeader_FirstRowIsData(t *testing.T) {
	input := "0,T9,5,0,a,db,b,i,1\n"
	records := readAll(t, input, LoadOptions{Header: false})
	require.Len(t, records, 1)
	assert.Equal(t, "T9", records[0].TraceID)
}

func TestReadCSV_EmptyInput_NoRecords(t *testing.T) {
	assert.Empty(t, readAll(t, "", LoadOptions{Header: true}))
}

func TestReadCSV_ShortRow_PaddedWithNulls(t *testing.T) {
	// GIVEN a row missing its dm, interface and rt columns
	input := "index,traceid,timestamp,rpcid,um,rpctype,dm,interface,rt\n0,T1,1,0,a,db\n"

	// WHEN read
	records := readAll(t, input, LoadOptions{Header: true})

	// THEN the row is kept and the missing columns are null
	require.Len(t, records, 1)
	want := CallRecord{
		TraceID:   "T1",
		Timestamp: sql.NullInt64{Int64: 1, Valid: true},
		RPCID:     "0",
		UM:        "a",
		RPCType:   "db",
	}
	assert.Equal(t, want, records[0])
}

func TestReadCSV_BareQuote_KeptLiterally(t *testing.T) {
	input := "0,T1,1,0.1,a\"b,db,svc,i,1\n1,T1,2,0.2,c,mc,svc,i,1\n"

	records := readAll(t, input, LoadOptions{Header: false})

	require.Len(t, records, 2)
	assert.Equal(t, `a"b`, records[0].UM)
	assert.Equal(t, "mc", records[1].RPCType)
}

func TestReadCSV_ReadFailure_ReturnsError(t *testing.T) {
	err := ReadCSV(iotest.ErrReader(errors.New("disk gone")), "broken.csv", LoadOptions{Header: false},
		func(CallRecord) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.csv")
}

func TestReadCSV_EmitError_StopsRead(t *testing.T) {
	stop := assert.AnError
	calls := 0
	err := ReadCSV(strings.NewReader(sampleCSV), "x", LoadOptions{Header: true}, func(CallRecord) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestWriteCSV_LoadFile_RoundTrip(t *testing.T) {
	// GIVEN records with a null timestamp
	records := []CallRecord{
		{TraceID: "T1", Timestamp: sql.NullInt64{Int64: 1708100000000000, Valid: true}, RPCID: "0.1", UM: "a", RPCType: "db", DM: "b"},
		{TraceID: "T2", RPCID: "0", UM: "c", RPCType: "http", DM: "d"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	path := filepath.Join(t.TempDir(), "calls.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	// WHEN loaded back
	loaded, err := LoadFile(path, LoadOptions{Header: true})

	// THEN every retained field survives, large timestamps included
	require.NoError(t, err)
	assert.Equal(t, records, loaded)
}

func TestLoadFile_Missing_ReturnsError(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv"), LoadOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
