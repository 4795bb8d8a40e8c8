package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordOwnsReservedFields(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	rec := NewRecord(Record{
		"id":        "spoofed",
		"createdAt": "1999-01-01T00:00:00Z",
		"name":      "Sam",
	}, now)

	_, err := uuid.Parse(rec.ID())
	require.NoError(t, err)
	assert.NotEqual(t, "spoofed", rec.ID())
	assert.Equal(t, "2024-03-10T12:00:00Z", rec[FieldCreatedAt])
	assert.Equal(t, rec[FieldCreatedAt], rec[FieldUpdatedAt])
	assert.Equal(t, "Sam", rec["name"])
}

func TestMergePreservesIdentity(t *testing.T) {
	orig := Record{
		"id":        "r1",
		"createdAt": "2024-01-01T00:00:00Z",
		"updatedAt": "2024-01-01T00:00:00Z",
		"name":      "Jo",
		"city":      "Oslo",
	}
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	merged := orig.Merge(Record{"city": "Bergen", "id": "hijack"}, now)

	assert.Equal(t, "r1", merged.ID())
	assert.Equal(t, "2024-01-01T00:00:00Z", merged[FieldCreatedAt])
	assert.Equal(t, "2024-03-10T12:00:00Z", merged[FieldUpdatedAt])
	assert.Equal(t, "Jo", merged["name"])
	assert.Equal(t, "Bergen", merged["city"])

	// The original record is untouched.
	assert.Equal(t, "Oslo", orig["city"])
	assert.Equal(t, "2024-01-01T00:00:00Z", orig[FieldUpdatedAt])
}

func TestStampRecords(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	in := []Record{
		{"name": "Jo"},
		{"id": "keep-me", "name": "Sam"},
	}

	out := StampRecords(in, now)
	require.Len(t, out, 2)

	_, err := uuid.Parse(out[0].ID())
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10T12:00:00Z", out[0][FieldCreatedAt])

	// Rows that already carry an id keep it and get no new timestamps.
	assert.Equal(t, "keep-me", out[1].ID())
	assert.NotContains(t, out[1], FieldCreatedAt)

	// Inputs are not mutated.
	assert.NotContains(t, in[0], FieldID)
}
