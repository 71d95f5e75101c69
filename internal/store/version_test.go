package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/veritail/veritail/internal/models"
	"github.com/veritail/veritail/internal/store"
)

func TestUpdateEntityVersion_CreateThenUpdate(t *testing.T) {
	base := setupTestBase(t)
	vs := store.NewVersionStore(base)
	ctx := context.Background()

	actor := "alice"

	v1, e1, err := vs.UpdateEntityVersion(ctx, "record", "r1", map[string]any{"status": "pending"}, &actor)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if v1.Version != 1 {
		t.Errorf("first version = %d, want 1", v1.Version)
	}
	if e1.Action != models.ActionCreate {
		t.Errorf("first action = %q, want %q", e1.Action, models.ActionCreate)
	}
	if e1.PrevHash != models.GenesisHash {
		t.Errorf("first entry prev_hash = %q, want genesis", e1.PrevHash)
	}

	v2, e2, err := vs.UpdateEntityVersion(ctx, "record", "r1", map[string]any{"status": "closed"}, &actor)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if v2.Version != 2 {
		t.Errorf("second version = %d, want 2", v2.Version)
	}
	if e2.Action != models.ActionUpdate {
		t.Errorf("second action = %q, want %q", e2.Action, models.ActionUpdate)
	}
	if e2.PrevHash != e1.Hash {
		t.Errorf("second entry prev_hash = %q, want first entry hash %q", e2.PrevHash, e1.Hash)
	}
	if v2.Checksum == v1.Checksum {
		t.Error("checksum unchanged for different content")
	}

	got, err := vs.GetEntityVersion(ctx, "record", "r1")
	if err != nil {
		t.Fatalf("GetEntityVersion: %v", err)
	}
	if got == nil || got.Version != 2 {
		t.Fatalf("stored version = %+v, want version 2", got)
	}
	if got.UpdatedBy == nil || *got.UpdatedBy != "alice" {
		t.Errorf("updated_by = %v, want alice", got.UpdatedBy)
	}
}

func TestUpdateEntityVersion_IdenticalContentStillIncrements(t *testing.T) {
	base := setupTestBase(t)
	vs := store.NewVersionStore(base)
	ctx := context.Background()

	data := map[string]any{"status": "pending", "priority": 2}

	v1, _, err := vs.UpdateEntityVersion(ctx, "record", "r1", data, nil)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	v2, _, err := vs.UpdateEntityVersion(ctx, "record", "r1", data, nil)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}

	if v2.Version != v1.Version+1 {
		t.Errorf("version = %d, want %d", v2.Version, v1.Version+1)
	}
	if v2.Checksum != v1.Checksum {
		t.Errorf("checksum changed for identical content: %q vs %q", v1.Checksum, v2.Checksum)
	}
}

func TestUpdateEntityVersion_LedgerPairIsAtomic(t *testing.T) {
	base := setupTestBase(t)
	vs := store.NewVersionStore(base)
	ls := store.NewLedgerStore(base)
	ctx := context.Background()

	before, err := ls.GetLatestID(ctx)
	if err != nil {
		t.Fatalf("GetLatestID: %v", err)
	}

	v, entry, err := vs.UpdateEntityVersion(ctx, "record", "r1", map[string]any{"a": 1}, nil)
	if err != nil {
		t.Fatalf("UpdateEntityVersion: %v", err)
	}

	after, err := ls.GetLatestID(ctx)
	if err != nil {
		t.Fatalf("GetLatestID: %v", err)
	}
	if after != before+1 {
		t.Errorf("latest id = %d, want %d", after, before+1)
	}
	if entry.ID != after {
		t.Errorf("entry id = %d, want %d", entry.ID, after)
	}

	stored, err := ls.GetEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if num, ok := stored.Detail["version"].(json.Number); !ok || num.String() != "1" {
		t.Errorf("detail.version = %v, want 1", stored.Detail["version"])
	}
	if stored.Detail["checksum"] != v.Checksum {
		t.Errorf("detail.checksum = %v, want %q", stored.Detail["checksum"], v.Checksum)
	}
}

func TestGetEntityVersion_Untracked(t *testing.T) {
	base := setupTestBase(t)
	vs := store.NewVersionStore(base)

	got, err := vs.GetEntityVersion(context.Background(), "record", "never-written")
	if err != nil {
		t.Fatalf("GetEntityVersion: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for untracked entity", got)
	}
}

func TestGetCurrentData_RoundTrip(t *testing.T) {
	base := setupTestBase(t)
	vs := store.NewVersionStore(base)
	ctx := context.Background()

	if _, _, err := vs.UpdateEntityVersion(ctx, "record", "r1", map[string]any{"status": "pending", "score": 10}, nil); err != nil {
		t.Fatalf("UpdateEntityVersion: %v", err)
	}

	data, exists, err := vs.GetCurrentData(ctx, "record", "r1")
	if err != nil {
		t.Fatalf("GetCurrentData: %v", err)
	}
	if !exists {
		t.Fatal("exists = false after a write")
	}
	if data["status"] != "pending" {
		t.Errorf("status = %v, want pending", data["status"])
	}

	_, exists, err = vs.GetCurrentData(ctx, "record", "untracked")
	if err != nil {
		t.Fatalf("GetCurrentData untracked: %v", err)
	}
	if exists {
		t.Error("exists = true for untracked entity")
	}
}

func TestUpdateEntityVersion_DeleteClearsData(t *testing.T) {
	base := setupTestBase(t)
	vs := store.NewVersionStore(base)
	ctx := context.Background()

	if _, _, err := vs.UpdateEntityVersion(ctx, "record", "r1", map[string]any{"status": "pending"}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	v, entry, err := vs.UpdateEntityVersion(ctx, "record", "r1", nil, nil)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if entry.Action != models.ActionDelete {
		t.Errorf("action = %q, want %q", entry.Action, models.ActionDelete)
	}
	if v.Version != 2 {
		t.Errorf("version = %d, want 2", v.Version)
	}

	_, exists, err := vs.GetCurrentData(ctx, "record", "r1")
	if err != nil {
		t.Fatalf("GetCurrentData: %v", err)
	}
	if exists {
		t.Error("data still present after delete")
	}

	// The version row itself survives.
	got, err := vs.GetEntityVersion(ctx, "record", "r1")
	if err != nil {
		t.Fatalf("GetEntityVersion: %v", err)
	}
	if got == nil || got.Version != 2 {
		t.Errorf("version row = %+v, want version 2", got)
	}
}

func TestGetRecentChanges(t *testing.T) {
	base := setupTestBase(t)
	vs := store.NewVersionStore(base)
	ctx := context.Background()

	for _, w := range []struct {
		entityType, entityID string
	}{
		{"record", "r1"},
		{"attachment", "a1"},
		{"record", "r2"},
	} {
		if _, _, err := vs.UpdateEntityVersion(ctx, w.entityType, w.entityID, map[string]any{"n": w.entityID}, nil); err != nil {
			t.Fatalf("seeding %s/%s: %v", w.entityType, w.entityID, err)
		}
		time.Sleep(2 * time.Millisecond) // distinct updated_at ordering
	}

	all, err := vs.GetRecentChanges(ctx, models.ChangeQueryOpts{})
	if err != nil {
		t.Fatalf("GetRecentChanges: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("changes = %d, want 3", len(all))
	}
	if all[0].EntityID != "r1" || all[2].EntityID != "r2" {
		t.Errorf("order = %s..%s, want r1..r2 (ascending by updated_at)", all[0].EntityID, all[2].EntityID)
	}

	since := all[1].UpdatedAt
	recent, err := vs.GetRecentChanges(ctx, models.ChangeQueryOpts{Since: &since})
	if err != nil {
		t.Fatalf("GetRecentChanges since: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("changes since = %d, want 2", len(recent))
	}

	records, err := vs.GetRecentChanges(ctx, models.ChangeQueryOpts{EntityType: "record"})
	if err != nil {
		t.Fatalf("GetRecentChanges typed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("record changes = %d, want 2", len(records))
	}
	for _, c := range records {
		if c.EntityType != "record" {
			t.Errorf("entity_type = %q, want record", c.EntityType)
		}
	}
}
