package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veritail/veritail/internal/models"
)

// VerifyScheduler runs full integrity checks on a fixed interval. Each
// completed run is itself recorded on the ledger through the event worker, so
// operators can see when the chain was last audited.
type VerifyScheduler struct {
	verifier *IntegrityVerifier
	events   *EventWorker
	log      *logrus.Logger
	interval time.Duration
}

// NewVerifyScheduler creates a VerifyScheduler. interval <= 0 disables it.
func NewVerifyScheduler(verifier *IntegrityVerifier, events *EventWorker, log *logrus.Logger, interval time.Duration) *VerifyScheduler {
	return &VerifyScheduler{verifier: verifier, events: events, log: log, interval: interval}
}

// Run ticks until the context is cancelled. A tick that lands while a manual
// verification is in flight is skipped, not queued.
func (s *VerifyScheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *VerifyScheduler) runOnce(ctx context.Context) {
	result, err := s.verifier.VerifyIntegrity(ctx)
	if err != nil {
		if !errors.Is(err, models.ErrVerificationRunning) {
			s.log.WithError(err).Warn("scheduled verification failed")
		}
		return
	}

	s.events.Enqueue(&EventJob{
		Action: models.ActionVerifyComplete,
		Detail: map[string]any{
			"valid":         result.Valid,
			"checked_count": result.CheckedCount,
			"errors":        len(result.Errors),
		},
	})
}
