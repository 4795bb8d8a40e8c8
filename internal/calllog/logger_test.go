package calllog

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sheetserve/sheetserve/internal/domain"
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

func TestRecordAssignsIdentity(t *testing.T) {
	store := memory.New()
	l := New(store, testLogger())

	l.Record(domain.APICall{
		EndpointID: "ep-1",
		Method:     "GET",
		Path:       "/api/projects/p/endpoints/e",
		StatusCode: 200,
	})
	l.Flush()

	calls := dumpCalls(t, store)
	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].ID)
	assert.False(t, calls[0].CreatedAt.IsZero())
	assert.Equal(t, "ep-1", calls[0].EndpointID)
}

func TestRecordSurvivesStoreFailure(t *testing.T) {
	l := New(&failingStore{memory.New()}, testLogger())

	// Must not panic and must not block the caller.
	l.Record(domain.APICall{EndpointID: "ep-1", Method: "GET", StatusCode: 200})
	l.Flush()
}

func TestFlushWaitsForAllWrites(t *testing.T) {
	store := memory.New()
	l := New(store, testLogger())

	for i := 0; i < 25; i++ {
		l.Record(domain.APICall{EndpointID: "ep-1", Method: "POST", StatusCode: 201})
	}
	l.Flush()

	assert.Len(t, dumpCalls(t, store), 25)
}

// dumpCalls reads back every stored call regardless of ownership by seeding
// an owning project/endpoint pair.
func dumpCalls(t *testing.T, store *memory.Store) []*domain.APICall {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	_ = store.CreateProject(ctx, &domain.Project{ID: "proj-1", UserID: "u", Slug: "p", IsActive: true, CreatedAt: now})
	_ = store.CreateEndpoint(ctx, &domain.Endpoint{ID: "ep-1", ProjectID: "proj-1", Slug: "e", IsActive: true, CreatedAt: now})
	calls, err := store.ListAPICalls(ctx, "u", time.Time{})
	require.NoError(t, err)
	return calls
}

type failingStore struct {
	*memory.Store
}

func (f *failingStore) CreateAPICall(ctx context.Context, call *domain.APICall) error {
	return errors.New("disk on fire")
}
