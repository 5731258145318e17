package record

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

// CSV column layout of the raw call-graph dataset. Only the core columns are
// retained; index, interface and rt are dropped at parse time.
var Columns = []string{
	"index", "traceid", "timestamp", "rpcid", "um", "rpctype", "dm", "interface", "rt",
}

const (
	colTraceID = iota + 1
	colTimestamp
	colRPCID
	colUM
	colRPCType
	colDM
)

// LoadOptions controls CSV parsing.
type LoadOptions struct {
	// Header skips the first row of every file.
	Header bool
}

// ReadCSV streams records from r, calling emit for every row.
// Parsing is permissive: short rows are padded with nulls, stray quotes are
// kept literally and a row the CSV reader rejects becomes an all-null record.
// Only I/O errors and errors returned by emit stop the read; the latter are
// returned as is. name is used only to label errors.
func ReadCSV(r io.Reader, name string, opts LoadOptions, emit func(CallRecord) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	if opts.Header {
		if _, err := reader.Read(); err != nil && !isParseError(err) {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading CSV header of %s: %w", name, err)
		}
	}

	row := make([]string, len(Columns))
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		rec := CallRecord{}
		switch {
		case isParseError(err):
			logrus.Debugf("%s: malformed CSV row read as nulls: %v", name, err)
		case err != nil:
			return fmt.Errorf("reading CSV row of %s: %w", name, err)
		default:
			n := copy(row, fields)
			for i := n; i < len(row); i++ {
				row[i] = ""
			}
			rec = parseCallRecord(row)
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
}

func isParseError(err error) bool {
	var pe *csv.ParseError
	return errors.As(err, &pe)
}

// LoadFile reads every record of a single CSV file.
func LoadFile(path string, opts LoadOptions) ([]CallRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening call records: %w", err)
	}
	defer func() { _ = file.Close() }()

	var records []CallRecord
	err = ReadCSV(file, path, opts, func(r CallRecord) error {
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// parseCallRecord converts one CSV row. Fields that fail to parse become null.
func parseCallRecord(row []string) CallRecord {
	var ts sql.NullInt64
	if v, err := strconv.ParseInt(row[colTimestamp], 10, 64); err == nil {
		ts = sql.NullInt64{Int64: v, Valid: true}
	}
	return CallRecord{
		TraceID:   row[colTraceID],
		Timestamp: ts,
		RPCID:     row[colRPCID],
		UM:        row[colUM],
		RPCType:   row[colRPCType],
		DM:        row[colDM],
	}
}

// WriteCSV writes records in the raw 9-column layout, header included.
// Dropped columns are written empty.
func WriteCSV(w io.Writer, records []CallRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i, r := range records {
		ts := ""
		if r.Timestamp.Valid {
			ts = strconv.FormatInt(r.Timestamp.Int64, 10)
		}
		row := []string{strconv.Itoa(i), r.TraceID, ts, r.RPCID, r.UM, r.RPCType, r.DM, "", ""}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
