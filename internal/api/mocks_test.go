package api_test

import (
	"context"
	"sync"

	"github.com/veritail/veritail/internal/models"
	"github.com/veritail/veritail/internal/service"
)

// mockVersionRepo implements api.VersionRepository for testing.
type mockVersionRepo struct {
	getFn     func(ctx context.Context, entityType, entityID string) (*models.EntityVersion, error)
	updateFn  func(ctx context.Context, entityType, entityID string, data map[string]any, actorID *string) (*models.EntityVersion, error)
	changesFn func(ctx context.Context, opts models.ChangeQueryOpts) ([]models.EntityVersion, error)
}

func (m *mockVersionRepo) GetEntityVersion(ctx context.Context, entityType, entityID string) (*models.EntityVersion, error) {
	return m.getFn(ctx, entityType, entityID)
}

func (m *mockVersionRepo) UpdateEntityVersion(ctx context.Context, entityType, entityID string, data map[string]any, actorID *string) (*models.EntityVersion, error) {
	return m.updateFn(ctx, entityType, entityID, data, actorID)
}

func (m *mockVersionRepo) GetRecentChanges(ctx context.Context, opts models.ChangeQueryOpts) ([]models.EntityVersion, error) {
	return m.changesFn(ctx, opts)
}

// mockConflictResolver implements api.ConflictResolver for testing.
type mockConflictResolver struct {
	checkFn func(ctx context.Context, in service.CheckConflictInput) (*models.ConflictRecord, error)
	mergeFn func(conflict *models.ConflictRecord, clientData map[string]any, strategy models.MergeStrategy, manualResolutions map[string]any) (*models.MergeResult, error)
}

func (m *mockConflictResolver) CheckConflict(ctx context.Context, in service.CheckConflictInput) (*models.ConflictRecord, error) {
	return m.checkFn(ctx, in)
}

func (m *mockConflictResolver) MergeConflict(conflict *models.ConflictRecord, clientData map[string]any, strategy models.MergeStrategy, manualResolutions map[string]any) (*models.MergeResult, error) {
	return m.mergeFn(conflict, clientData, strategy, manualResolutions)
}

// mockLedgerRepo implements api.LedgerRepository for testing.
type mockLedgerRepo struct {
	queryFn  func(ctx context.Context, opts models.LedgerQueryOpts) ([]models.LedgerEntry, bool, error)
	latestFn func(ctx context.Context) (int64, error)
}

func (m *mockLedgerRepo) Query(ctx context.Context, opts models.LedgerQueryOpts) ([]models.LedgerEntry, bool, error) {
	return m.queryFn(ctx, opts)
}

func (m *mockLedgerRepo) GetLatestID(ctx context.Context) (int64, error) {
	return m.latestFn(ctx)
}

// mockVerifier implements api.Verifier for testing.
type mockVerifier struct {
	verifyFn func(ctx context.Context) (*service.VerificationResult, error)
	rangeFn  func(ctx context.Context, startID, endID int64) (*service.VerificationResult, error)
	checking bool
	last     *service.LastCheck
}

func (m *mockVerifier) VerifyIntegrity(ctx context.Context) (*service.VerificationResult, error) {
	return m.verifyFn(ctx)
}

func (m *mockVerifier) VerifyRange(ctx context.Context, startID, endID int64) (*service.VerificationResult, error) {
	return m.rangeFn(ctx, startID, endID)
}

func (m *mockVerifier) IsChecking() bool { return m.checking }

func (m *mockVerifier) LastStatus() *service.LastCheck { return m.last }

// mockEvents records enqueued event jobs.
type mockEvents struct {
	mu   sync.Mutex
	jobs []*service.EventJob
}

func (m *mockEvents) Enqueue(job *service.EventJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
}

func (m *mockEvents) getJobs() []*service.EventJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*service.EventJob, len(m.jobs))
	copy(out, m.jobs)
	return out
}
