package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reserved record fields. Everything else in a record is whatever the
// uploaded spreadsheet contained.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// RecordTimeLayout is the timestamp format stamped onto records.
const RecordTimeLayout = time.RFC3339

// Record is one row of an endpoint's collection: an open map with a few
// reserved keys. The id is assigned by the server and immutable after
// creation.
type Record map[string]any

// ID returns the record's id, or "" if it has none.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// NewRecord builds a record from caller-supplied fields. The server owns
// id, createdAt and updatedAt; caller values for those keys are discarded.
func NewRecord(fields Record, now time.Time) Record {
	rec := make(Record, len(fields)+3)
	for k, v := range fields {
		rec[k] = v
	}
	ts := now.UTC().Format(RecordTimeLayout)
	rec[FieldID] = uuid.New().String()
	rec[FieldCreatedAt] = ts
	rec[FieldUpdatedAt] = ts
	return rec
}

// Merge shallow-merges patch over the record, preserving id and createdAt
// and stamping updatedAt. The original record is not modified.
func (r Record) Merge(patch Record, now time.Time) Record {
	merged := make(Record, len(r)+len(patch))
	for k, v := range r {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	merged[FieldID] = r[FieldID]
	if created, ok := r[FieldCreatedAt]; ok {
		merged[FieldCreatedAt] = created
	}
	merged[FieldUpdatedAt] = now.UTC().Format(RecordTimeLayout)
	return merged
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// StampRecords assigns ids and timestamps to any record in the collection
// that does not already carry an id. Used when a freshly converted
// spreadsheet is ingested.
func StampRecords(records []Record, now time.Time) []Record {
	ts := now.UTC().Format(RecordTimeLayout)
	out := make([]Record, len(records))
	for i, rec := range records {
		c := rec.Clone()
		if c.ID() == "" {
			c[FieldID] = uuid.New().String()
			c[FieldCreatedAt] = ts
			c[FieldUpdatedAt] = ts
		}
		out[i] = c
	}
	return out
}
