// Package runlog appends one CSV row per transfer attempt so failed records
// can be retried manually after a run.
package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qbcopy-dev/qbcopy/internal/model"
)

// Entry is one row in the run log.
type Entry struct {
	Timestamp  time.Time
	EntityType model.EntityType
	SourceID   string
	Name       string
	Status     model.TransferStatus
	TargetID   string
	Err        string
}

// Header is the CSV header for qbcopy-log.csv.
const Header = "timestamp,entity_type,source_id,name,status,target_id,error"

const (
	numFields = 7
	logFile   = "qbcopy-log.csv"

	colTimestamp  = 0
	colEntityType = 1
	colSourceID   = 2
	colName       = 3
	colStatus     = 4
	colTargetID   = 5
	colErr        = 6
)

// FromRecord stamps a TransferRecord into a log entry.
func FromRecord(rec model.TransferRecord, at time.Time) Entry {
	return Entry{
		Timestamp:  at,
		EntityType: rec.EntityType,
		SourceID:   rec.SourceID,
		Name:       rec.Name,
		Status:     rec.Status,
		TargetID:   rec.TargetID,
		Err:        rec.Err,
	}
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colEntityType] = string(e.EntityType)
	row[colSourceID] = e.SourceID
	row[colName] = e.Name
	row[colStatus] = string(e.Status)
	row[colTargetID] = e.TargetID
	row[colErr] = e.Err
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp:  ts,
		EntityType: model.EntityType(record[colEntityType]),
		SourceID:   record[colSourceID],
		Name:       record[colName],
		Status:     model.TransferStatus(record[colStatus]),
		TargetID:   record[colTargetID],
		Err:        record[colErr],
	}, nil
}

// Append writes entries to <dir>/qbcopy-log.csv, creating the file and
// header if needed.
func Append(dir string, entries []Entry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	path := filepath.Join(dir, logFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	return cw.Error()
}

// Read returns all entries from <dir>/qbcopy-log.csv.
// Returns an empty slice if the file does not exist.
func Read(dir string) ([]Entry, error) {
	path := filepath.Join(dir, logFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
