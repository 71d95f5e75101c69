package service

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/veritail/veritail/internal/metrics"
	"github.com/veritail/veritail/internal/models"
)

// VersionPersister is the data-access interface VersionService depends on.
type VersionPersister interface {
	GetEntityVersion(ctx context.Context, entityType, entityID string) (*models.EntityVersion, error)
	UpdateEntityVersion(ctx context.Context, entityType, entityID string, data map[string]any, actorID *string) (*models.EntityVersion, *models.LedgerEntry, error)
	GetRecentChanges(ctx context.Context, opts models.ChangeQueryOpts) ([]models.EntityVersion, error)
}

// ChangeBroadcaster pushes committed version changes to live feed
// subscribers. Best-effort and post-commit; the poll path is authoritative.
type ChangeBroadcaster interface {
	BroadcastChange(eventType string, data json.RawMessage)
}

// VersionService wraps the version store with change broadcasting and
// logging. Handlers talk to this, not the store.
type VersionService struct {
	store VersionPersister
	feed  ChangeBroadcaster
	log   *logrus.Logger
}

// NewVersionService creates a VersionService. feed may be nil when no live
// feed is wired (tests, CLI tooling).
func NewVersionService(store VersionPersister, feed ChangeBroadcaster, log *logrus.Logger) *VersionService {
	return &VersionService{store: store, feed: feed, log: log}
}

// GetEntityVersion returns the tracked version for an entity, nil if never
// tracked (pass-through to store).
func (s *VersionService) GetEntityVersion(ctx context.Context, entityType, entityID string) (*models.EntityVersion, error) {
	return s.store.GetEntityVersion(ctx, entityType, entityID)
}

// UpdateEntityVersion commits a mutation through the store and, once durable,
// broadcasts the new version to feed subscribers.
func (s *VersionService) UpdateEntityVersion(
	ctx context.Context,
	entityType, entityID string,
	data map[string]any,
	actorID *string,
) (*models.EntityVersion, error) {
	version, entry, err := s.store.UpdateEntityVersion(ctx, entityType, entityID, data, actorID)
	if err != nil {
		return nil, err
	}

	metrics.VersionWrites.WithLabelValues(entry.Action).Inc()
	s.log.WithFields(logrus.Fields{
		"entity_type": entityType,
		"entity_id":   entityID,
		"version":     version.Version,
		"ledger_id":   entry.ID,
	}).Info("version committed")

	if s.feed != nil {
		if payload, err := json.Marshal(version); err == nil {
			s.feed.BroadcastChange("version_change", payload)
		} else {
			s.log.WithError(err).Warn("failed to marshal feed event")
		}
	}

	return version, nil
}

// GetRecentChanges is the catch-up read path (pass-through to store).
func (s *VersionService) GetRecentChanges(ctx context.Context, opts models.ChangeQueryOpts) ([]models.EntityVersion, error) {
	return s.store.GetRecentChanges(ctx, opts)
}
