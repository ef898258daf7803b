package models

import (
	"fmt"
	"strings"
)

// Record is one input row: a mapping of logical field names to values.
// Records are owned by the caller and never mutated by the engine.
type Record map[string]string

// Get returns the trimmed value for a logical field name, or "" when the
// field is absent.
func (r Record) Get(key string) string {
	return strings.TrimSpace(r[key])
}

// Has reports whether the record carries a non-empty value for the key.
func (r Record) Has(key string) bool {
	return r.Get(key) != ""
}

// Clone returns an independent copy so callers can hand records to the
// orchestrator without sharing the underlying map.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RecordSource supplies records to the orchestrator. The engine does not
// parse spreadsheets itself; implementations do.
type RecordSource interface {
	RecordAt(index int) (Record, bool)
	Count() int
}

// SliceRecordSource is an in-memory record source, used by the HTTP handler
// for inline payloads and by tests.
type SliceRecordSource struct {
	Records []Record
}

func (s *SliceRecordSource) RecordAt(index int) (Record, bool) {
	if index < 0 || index >= len(s.Records) {
		return nil, false
	}
	return s.Records[index], true
}

func (s *SliceRecordSource) Count() int {
	return len(s.Records)
}

// SplitPhone splits a hyphenated mobile number ("010-1234-5678") into its
// three segments. Target forms render the number as separate sub-fields, so
// malformed numbers are rejected before any DOM interaction happens.
func SplitPhone(number string) ([3]string, error) {
	var parts [3]string
	raw := strings.Split(strings.TrimSpace(number), "-")
	if len(raw) != 3 {
		return parts, fmt.Errorf("phone number %q is not in the 3-segment hyphenated form", number)
	}
	for i, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" {
			return parts, fmt.Errorf("phone number %q has an empty segment", number)
		}
		parts[i] = p
	}
	return parts, nil
}
