// Package calllog records an audit entry for every data API request,
// best-effort. A failed write costs observational data, never request
// correctness.
package calllog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sheetserve/sheetserve/internal/domain"
	"github.com/sheetserve/sheetserve/internal/storage"
	"github.com/sirupsen/logrus"
)

// Logger writes API call audit records asynchronously.
type Logger struct {
	store storage.Storage
	log   *logrus.Logger
	wg    sync.WaitGroup
}

// New creates a call logger.
func New(store storage.Storage, log *logrus.Logger) *Logger {
	return &Logger{store: store, log: log}
}

// Record queues one audit entry. It never blocks on and never reports
// storage failures; the caller's response is already decided.
func (l *Logger) Record(call domain.APICall) {
	call.ID = uuid.New().String()
	call.CreatedAt = time.Now().UTC()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				l.log.WithField("panic", r).Debug("call log write panicked")
			}
		}()
		if err := l.store.CreateAPICall(context.Background(), &call); err != nil {
			l.log.WithError(err).Debug("failed to write call log entry")
		}
	}()
}

// Flush waits for queued writes to land. Used on shutdown and in tests.
func (l *Logger) Flush() {
	l.wg.Wait()
}
