package api

import (
	"context"

	"github.com/veritail/veritail/internal/models"
	"github.com/veritail/veritail/internal/service"
)

// VersionRepository defines the version operations used by EntityHandler and
// ChangesHandler.
type VersionRepository interface {
	GetEntityVersion(ctx context.Context, entityType, entityID string) (*models.EntityVersion, error)
	UpdateEntityVersion(ctx context.Context, entityType, entityID string, data map[string]any, actorID *string) (*models.EntityVersion, error)
	GetRecentChanges(ctx context.Context, opts models.ChangeQueryOpts) ([]models.EntityVersion, error)
}

// ConflictResolver defines the conflict operations used by EntityHandler.
type ConflictResolver interface {
	CheckConflict(ctx context.Context, in service.CheckConflictInput) (*models.ConflictRecord, error)
	MergeConflict(conflict *models.ConflictRecord, clientData map[string]any, strategy models.MergeStrategy, manualResolutions map[string]any) (*models.MergeResult, error)
}

// LedgerRepository defines ledger read operations used by LedgerHandler.
type LedgerRepository interface {
	Query(ctx context.Context, opts models.LedgerQueryOpts) ([]models.LedgerEntry, bool, error)
	GetLatestID(ctx context.Context) (int64, error)
}

// Verifier defines the integrity verification operations used by VerifyHandler.
type Verifier interface {
	VerifyIntegrity(ctx context.Context) (*service.VerificationResult, error)
	VerifyRange(ctx context.Context, startID, endID int64) (*service.VerificationResult, error)
	IsChecking() bool
	LastStatus() *service.LastCheck
}

// EventRecorder is the fire-and-forget hook for security-relevant ledger
// events.
type EventRecorder interface {
	Enqueue(job *service.EventJob)
}
