package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicyLimit(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, 100, p.Limit("GET"))
	assert.Equal(t, 100, p.Limit("get"))
	assert.Equal(t, 20, p.Limit("POST"))
	assert.Equal(t, 20, p.Limit("PATCH"))
	assert.Equal(t, 20, p.Limit("DELETE"))
	assert.Equal(t, 20, p.Limit("PUT"))
}

func TestDayBucketBoundaries(t *testing.T) {
	// 23:59:59.999 and 00:00:00.000 next day land in different buckets.
	before := time.Date(2024, 3, 10, 23, 59, 59, 999_000_000, time.UTC)
	after := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), Day(before))
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), Day(after))
	assert.NotEqual(t, Day(before), Day(after))
}

func TestDayNormalizesZones(t *testing.T) {
	// 2024-03-10 20:00 EST is 2024-03-11 01:00 UTC.
	est := time.FixedZone("EST", -5*3600)
	local := time.Date(2024, 3, 10, 20, 0, 0, 0, est)

	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), Day(local))
}

func TestNextReset(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), NextReset(now))

	// Already at midnight: reset is the following midnight, not now.
	midnight := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), NextReset(midnight))
}
