package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/veritail/veritail/internal/models"
)

// mockVersionStore records calls and returns configured responses.
type mockVersionStore struct {
	mu    sync.Mutex
	calls []string

	getEntityVersion    func(ctx context.Context, entityType, entityID string) (*models.EntityVersion, error)
	updateEntityVersion func(ctx context.Context, entityType, entityID string, data map[string]any, actorID *string) (*models.EntityVersion, *models.LedgerEntry, error)
	getRecentChanges    func(ctx context.Context, opts models.ChangeQueryOpts) ([]models.EntityVersion, error)
}

func (m *mockVersionStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockVersionStore) GetEntityVersion(ctx context.Context, entityType, entityID string) (*models.EntityVersion, error) {
	m.record("GetEntityVersion")
	return m.getEntityVersion(ctx, entityType, entityID)
}

func (m *mockVersionStore) UpdateEntityVersion(ctx context.Context, entityType, entityID string, data map[string]any, actorID *string) (*models.EntityVersion, *models.LedgerEntry, error) {
	m.record("UpdateEntityVersion")
	return m.updateEntityVersion(ctx, entityType, entityID, data, actorID)
}

func (m *mockVersionStore) GetRecentChanges(ctx context.Context, opts models.ChangeQueryOpts) ([]models.EntityVersion, error) {
	m.record("GetRecentChanges")
	return m.getRecentChanges(ctx, opts)
}

// mockLedgerReader serves verification reads from configured closures.
type mockLedgerReader struct {
	mu    sync.Mutex
	calls []string

	getLatestID func(ctx context.Context) (int64, error)
	getRange    func(ctx context.Context, startID, endID int64) ([]models.LedgerEntry, error)
}

func (m *mockLedgerReader) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockLedgerReader) GetLatestID(ctx context.Context) (int64, error) {
	m.record("GetLatestID")
	return m.getLatestID(ctx)
}

func (m *mockLedgerReader) GetRange(ctx context.Context, startID, endID int64) ([]models.LedgerEntry, error) {
	m.record("GetRange")
	return m.getRange(ctx, startID, endID)
}

// mockAppender collects appended ledger entries.
type mockAppender struct {
	mu      sync.Mutex
	entries []*models.LedgerEntry

	appendFn func(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error)
}

func (m *mockAppender) Append(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	m.mu.Lock()
	m.entries = append(m.entries, entry)
	m.mu.Unlock()

	if m.appendFn != nil {
		return m.appendFn(ctx, entry)
	}
	return entry, nil
}

func (m *mockAppender) getEntries() []*models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.LedgerEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// mockBroadcaster collects feed broadcasts.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []string
	data   []json.RawMessage
}

func (m *mockBroadcaster) BroadcastChange(eventType string, data json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
	m.data = append(m.data, data)
}

func (m *mockBroadcaster) getEvents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	copy(out, m.events)
	return out
}
