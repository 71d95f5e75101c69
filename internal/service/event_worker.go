package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/veritail/veritail/internal/metrics"
	"github.com/veritail/veritail/internal/models"
)

// Appender is the minimal interface for recording standalone ledger entries.
type Appender interface {
	Append(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error)
}

// EventJob is one security-relevant event to be appended to the ledger.
// Entity fields are nil for non-entity events.
type EventJob struct {
	Actor      *string
	Action     string
	EntityType *string
	EntityID   *string
	Detail     map[string]any
}

// EventWorker buffers non-entity ledger events and appends them via a single
// worker goroutine. Version-update entries never go through here; those are
// appended synchronously inside the update transaction.
type EventWorker struct {
	ledger Appender
	log    *logrus.Logger
	jobs   chan *EventJob
}

// NewEventWorker creates an EventWorker with the given queue capacity.
func NewEventWorker(ledger Appender, log *logrus.Logger, queueSize int) *EventWorker {
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &EventWorker{
		ledger: ledger,
		log:    log,
		jobs:   make(chan *EventJob, queueSize),
	}
}

// Enqueue adds an event job. Non-blocking; drops the job if the queue is full.
func (w *EventWorker) Enqueue(job *EventJob) {
	select {
	case w.jobs <- job:
		metrics.EventQueueDepth.Set(float64(len(w.jobs)))
	default:
		w.log.WithField("action", job.Action).Warn("event queue full, dropping entry")
	}
}

// Run processes event jobs until the context is cancelled, then drains
// remaining jobs.
func (w *EventWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case job := <-w.jobs:
			w.process(job)
		}
	}
}

func (w *EventWorker) drain() {
	for {
		select {
		case job := <-w.jobs:
			w.process(job)
		default:
			return
		}
	}
}

func (w *EventWorker) process(job *EventJob) {
	metrics.EventQueueDepth.Set(float64(len(w.jobs)))

	_, err := w.ledger.Append(context.Background(), &models.LedgerEntry{
		Actor:      job.Actor,
		Action:     job.Action,
		EntityType: job.EntityType,
		EntityID:   job.EntityID,
		Detail:     job.Detail,
	})
	if err != nil {
		w.log.WithError(err).WithField("action", job.Action).Warn("event append failed")
	}
}
