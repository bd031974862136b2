package event

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Stream operation names.
const (
	OpInsert = "INSERT"
	OpModify = "MODIFY"
	OpRemove = "REMOVE"
)

// ChangeRecord is one change-stream record in its JSON form.
type ChangeRecord struct {
	EventID   string       `json:"eventID,omitempty"`
	EventName string       `json:"eventName"`
	Change    StreamRecord `json:"dynamodb"`
}

// StreamRecord holds the images of a change record.
type StreamRecord struct {
	Keys           map[string]AttributeValue `json:"Keys,omitempty"`
	NewImage       map[string]AttributeValue `json:"NewImage,omitempty"`
	SequenceNumber string                    `json:"SequenceNumber,omitempty"`
}

// FromRecord normalizes the new image of rec.
// REMOVE records return ok == false: rows leaving the source table carry no
// information for the object table.
func FromRecord(rec ChangeRecord) (Normalized, bool, error) {
	if rec.EventName == OpRemove {
		return Normalized{}, false, nil
	}
	ev, err := Normalize(rec.Change.NewImage)
	if err != nil {
		if rec.EventID != "" {
			return Normalized{}, false, fmt.Errorf("record %s: %w", rec.EventID, err)
		}
		return Normalized{}, false, err
	}
	return ev, true, nil
}

// maxRecordSize bounds a single NDJSON line.
const maxRecordSize = 16 << 20

// DecodeRecords reads newline-delimited JSON change records. Blank lines are skipped.
func DecodeRecords(r io.Reader) ([]ChangeRecord, error) {
	var records []ChangeRecord
	err := ScanRecords(r, func(rec ChangeRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ScanRecords calls fn for every record in r, stopping at the first error.
func ScanRecords(r io.Reader, fn func(ChangeRecord) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)

	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}

		var rec ChangeRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decode record at line %d: %w", line, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	return nil
}
