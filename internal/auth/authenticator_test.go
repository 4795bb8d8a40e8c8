package auth

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sheetserve/sheetserve/internal/domain"
	"github.com/sheetserve/sheetserve/internal/quota"
	"github.com/sheetserve/sheetserve/internal/storage/memory"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newAuthenticator(t *testing.T, policy quota.Policy) (*Authenticator, *memory.Store) {
	t.Helper()
	store := memory.New()
	a := New(store, quota.NewStorageStore(store), policy, testLogger())
	a.now = func() time.Time {
		return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return a, store
}

func seedKey(t *testing.T, store *memory.Store, active bool) (secret string, id string) {
	t.Helper()
	key, hash, prefix, err := GenerateKey()
	require.NoError(t, err)
	id = uuid.New().String()
	require.NoError(t, store.CreateAPIKey(context.Background(), &domain.APIKey{
		ID:        id,
		UserID:    "user-1",
		Name:      "test key",
		KeyHash:   hash,
		KeyPrefix: prefix,
		IsActive:  active,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}))
	return key, id
}

func TestAuthenticatePublicProject(t *testing.T) {
	a, _ := newAuthenticator(t, quota.DefaultPolicy())

	d, err := a.Authenticate(context.Background(), "", false, "GET")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Nil(t, d.Key)
	assert.Nil(t, d.Quota)
}

func TestAuthenticateMissingKey(t *testing.T) {
	a, _ := newAuthenticator(t, quota.DefaultPolicy())

	d, err := a.Authenticate(context.Background(), "", true, "GET")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, http.StatusUnauthorized, d.Status)
	assert.Equal(t, "API key required for this protected endpoint", d.Reason)
}

func TestAuthenticateUnknownKey(t *testing.T) {
	a, _ := newAuthenticator(t, quota.DefaultPolicy())

	d, err := a.Authenticate(context.Background(), "ss_nonsense", true, "GET")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, http.StatusUnauthorized, d.Status)
	assert.Equal(t, "Invalid API key", d.Reason)
}

func TestAuthenticateInactiveKey(t *testing.T) {
	a, store := newAuthenticator(t, quota.DefaultPolicy())
	secret, _ := seedKey(t, store, false)

	d, err := a.Authenticate(context.Background(), secret, true, "GET")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, http.StatusUnauthorized, d.Status)
	assert.Equal(t, "Invalid API key", d.Reason)
}

func TestAuthenticateConsumesQuota(t *testing.T) {
	a, store := newAuthenticator(t, quota.DefaultPolicy())
	secret, _ := seedKey(t, store, true)

	d, err := a.Authenticate(context.Background(), secret, true, "GET")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	require.NotNil(t, d.Quota)
	assert.Equal(t, 100, d.Quota.Limit)
	assert.Equal(t, 1, d.Quota.Used)
	assert.Equal(t, 99, d.Quota.Remaining)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), d.Quota.Reset)
}

func TestAuthenticateEnforcesDailyLimit(t *testing.T) {
	policy := quota.DefaultPolicy()
	policy.Post = 3
	a, store := newAuthenticator(t, policy)
	secret, keyID := seedKey(t, store, true)
	ctx := context.Background()

	// Requests 1..3 pass, each consuming one unit.
	for i := 1; i <= 3; i++ {
		d, err := a.Authenticate(ctx, secret, true, "POST")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should pass", i)
		assert.Equal(t, i, d.Quota.Used)
	}

	// Request 4 is rejected and must NOT consume quota.
	d, err := a.Authenticate(ctx, secret, true, "POST")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, http.StatusTooManyRequests, d.Status)
	assert.Equal(t, "Rate limit exceeded. POST limit: 3/day", d.Reason)
	require.NotNil(t, d.Quota)
	assert.Equal(t, 0, d.Quota.Remaining)

	used, err := store.RateLimitCount(ctx, keyID, "POST", quota.Day(a.now()))
	require.NoError(t, err)
	assert.Equal(t, 3, used)
}

func TestAuthenticateBucketsPerMethod(t *testing.T) {
	policy := quota.Policy{Get: 1, Post: 1, Patch: 1, Delete: 1, DefaultOver: 1}
	a, store := newAuthenticator(t, policy)
	secret, _ := seedKey(t, store, true)
	ctx := context.Background()

	// Exhausting GET leaves POST untouched.
	d, err := a.Authenticate(ctx, secret, true, "GET")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = a.Authenticate(ctx, secret, true, "GET")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, d.Status)

	d, err = a.Authenticate(ctx, secret, true, "POST")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAuthenticateNewDayResetsBucket(t *testing.T) {
	policy := quota.Policy{Get: 1, Post: 1, Patch: 1, Delete: 1, DefaultOver: 1}
	a, store := newAuthenticator(t, policy)
	secret, _ := seedKey(t, store, true)
	ctx := context.Background()

	d, err := a.Authenticate(ctx, secret, true, "GET")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = a.Authenticate(ctx, secret, true, "GET")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, d.Status)

	// Cross UTC midnight: the limit applies to the fresh bucket.
	a.now = func() time.Time {
		return time.Date(2024, 3, 11, 0, 0, 1, 0, time.UTC)
	}
	d, err = a.Authenticate(ctx, secret, true, "GET")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Quota.Used)
}

func TestGenerateKeyShape(t *testing.T) {
	key, hash, prefix, err := GenerateKey()
	require.NoError(t, err)

	assert.Len(t, key, 3+64) // "ss_" + 32 bytes hex
	assert.True(t, len(key) > len(prefix))
	assert.Equal(t, key[:KeyPrefixLen], prefix)
	assert.Equal(t, HashKey(key), hash)
	assert.Len(t, hash, 64)

	// Two generations never collide.
	key2, _, _, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, key2)
}
