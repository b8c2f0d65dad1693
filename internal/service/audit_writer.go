package service

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"authapi/internal/model"
	"authapi/internal/repository"
)

const (
	auditBufferSize    = 100
	auditBatchSize     = 10
	auditFlushInterval = time.Second
)

// Auditor records authentication events.
type Auditor interface {
	Record(ctx context.Context, event model.AuthEvent)
}

// AuditWriter persists auth events in batches from a background worker.
type AuditWriter struct {
	repo   repository.AuthEventRepository
	logger *log.Logger

	mu     sync.RWMutex
	closed bool
	events chan model.AuthEvent
	done   chan struct{}
}

// NewAuditWriter starts the background worker.
func NewAuditWriter(repo repository.AuthEventRepository, logger *log.Logger) *AuditWriter {
	w := &AuditWriter{
		repo:   repo,
		logger: logger,
		events: make(chan model.AuthEvent, auditBufferSize),
		done:   make(chan struct{}),
	}
	go w.worker()
	return w
}

// Record queues event. When the buffer is full it is written synchronously.
func (w *AuditWriter) Record(ctx context.Context, event model.AuthEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}

	select {
	case w.events <- event:
	default:
		if err := w.repo.Create(ctx, &event); err != nil {
			w.logger.Errorj(log.JSON{"event": "audit_write", "outcome": "failure", "error": err.Error()})
		}
	}
}

// Close stops accepting events and waits for queued ones to be flushed.
func (w *AuditWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.events)
	}
	w.mu.Unlock()
	<-w.done
	return nil
}

func (w *AuditWriter) worker() {
	defer close(w.done)

	batch := make([]model.AuthEvent, 0, auditBatchSize)
	ticker := time.NewTicker(auditFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.events:
			if !ok {
				w.flush(batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= auditBatchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			w.flush(batch)
			batch = batch[:0]
		}
	}
}

func (w *AuditWriter) flush(batch []model.AuthEvent) {
	if len(batch) == 0 {
		return
	}
	if err := w.repo.CreateBatch(context.Background(), batch); err != nil {
		w.logger.Errorj(log.JSON{"event": "audit_flush", "outcome": "failure", "count": len(batch), "error": err.Error()})
	}
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, model.AuthEvent) {}
