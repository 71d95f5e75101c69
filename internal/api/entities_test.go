package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veritail/veritail/internal/api"
	"github.com/veritail/veritail/internal/middleware"
	"github.com/veritail/veritail/internal/models"
	"github.com/veritail/veritail/internal/service"
)

func entityRoutes(h *api.EntityHandler) *gin.Engine {
	r := newTestRouter()
	r.Use(middleware.Actor())
	r.GET("/entities/:type/:id/version", h.GetVersion)
	r.POST("/entities/:type/:id", h.Commit)
	r.DELETE("/entities/:type/:id", h.Delete)
	r.POST("/entities/:type/:id/check", h.Check)
	r.POST("/entities/:type/:id/merge", h.Merge)

	return r
}

func TestGetVersion_Found(t *testing.T) {
	t.Parallel()

	repo := &mockVersionRepo{
		getFn: func(_ context.Context, entityType, entityID string) (*models.EntityVersion, error) {
			return &models.EntityVersion{
				EntityType: entityType,
				EntityID:   entityID,
				Version:    3,
				Checksum:   "abc",
				UpdatedAt:  time.Now(),
			}, nil
		},
	}

	h := api.NewEntityHandler(repo, &mockConflictResolver{}, &mockEvents{}, testLogger())
	w := doRequest(entityRoutes(h), http.MethodGet, "/entities/record/r1/version", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var v models.EntityVersion
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if v.Version != 3 || v.EntityID != "r1" {
		t.Errorf("version = %+v, want r1 at version 3", v)
	}
}

func TestGetVersion_Untracked(t *testing.T) {
	t.Parallel()

	repo := &mockVersionRepo{
		getFn: func(_ context.Context, _, _ string) (*models.EntityVersion, error) {
			return nil, nil
		},
	}

	h := api.NewEntityHandler(repo, &mockConflictResolver{}, &mockEvents{}, testLogger())
	w := doRequest(entityRoutes(h), http.MethodGet, "/entities/record/missing/version", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCommit_NoBaseVersion(t *testing.T) {
	t.Parallel()

	checkCalled := false
	repo := &mockVersionRepo{
		updateFn: func(_ context.Context, entityType, entityID string, data map[string]any, actorID *string) (*models.EntityVersion, error) {
			return &models.EntityVersion{EntityType: entityType, EntityID: entityID, Version: 1}, nil
		},
	}
	resolver := &mockConflictResolver{
		checkFn: func(_ context.Context, _ service.CheckConflictInput) (*models.ConflictRecord, error) {
			checkCalled = true
			return nil, nil
		},
	}

	h := api.NewEntityHandler(repo, resolver, &mockEvents{}, testLogger())
	w := doRequest(entityRoutes(h), http.MethodPost, "/entities/record/r1",
		`{"data":{"status":"pending"},"actor_id":"alice"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if checkCalled {
		t.Error("conflict check ran without a base_version")
	}
}

func TestCommit_ActorHeaderFallback(t *testing.T) {
	t.Parallel()

	var gotActor *string
	repo := &mockVersionRepo{
		updateFn: func(_ context.Context, entityType, entityID string, data map[string]any, actorID *string) (*models.EntityVersion, error) {
			gotActor = actorID
			return &models.EntityVersion{EntityType: entityType, EntityID: entityID, Version: 1}, nil
		},
	}

	h := api.NewEntityHandler(repo, &mockConflictResolver{}, &mockEvents{}, testLogger())
	r := entityRoutes(h)

	send := func(body, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/entities/record/r1", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if header != "" {
			req.Header.Set(middleware.ActorHeader, header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("header fills missing body actor", func(t *testing.T) {
		if w := send(`{"data":{"status":"pending"}}`, "alice"); w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if gotActor == nil || *gotActor != "alice" {
			t.Errorf("actor = %v, want alice from X-Actor-ID", gotActor)
		}
	})

	t.Run("body actor wins over header", func(t *testing.T) {
		if w := send(`{"data":{"status":"pending"},"actor_id":"bob"}`, "alice"); w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if gotActor == nil || *gotActor != "bob" {
			t.Errorf("actor = %v, want bob from the body", gotActor)
		}
	})

	t.Run("neither set leaves actor nil", func(t *testing.T) {
		if w := send(`{"data":{"status":"pending"}}`, ""); w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if gotActor != nil {
			t.Errorf("actor = %q, want nil", *gotActor)
		}
	})
}

func TestCommit_MissingData(t *testing.T) {
	t.Parallel()

	h := api.NewEntityHandler(&mockVersionRepo{}, &mockConflictResolver{}, &mockEvents{}, testLogger())
	w := doRequest(entityRoutes(h), http.MethodPost, "/entities/record/r1", `{"actor_id":"alice"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCommit_ConflictRejected(t *testing.T) {
	t.Parallel()

	updateCalled := false
	repo := &mockVersionRepo{
		updateFn: func(_ context.Context, _, _ string, _ map[string]any, _ *string) (*models.EntityVersion, error) {
			updateCalled = true
			return nil, nil
		},
	}
	resolver := &mockConflictResolver{
		checkFn: func(_ context.Context, in service.CheckConflictInput) (*models.ConflictRecord, error) {
			return &models.ConflictRecord{
				EntityType:    in.EntityType,
				EntityID:      in.EntityID,
				LocalVersion:  in.ClientVersion,
				ServerVersion: 5,
				FieldConflicts: []models.FieldConflict{
					{Field: "status", LocalValue: "closed", ServerValue: "in_progress", OriginalValue: "pending"},
				},
			}, nil
		},
	}
	events := &mockEvents{}

	h := api.NewEntityHandler(repo, resolver, events, testLogger())
	w := doRequest(entityRoutes(h), http.MethodPost, "/entities/record/r1",
		`{"data":{"status":"closed"},"base_version":3,"original_data":{"status":"pending"}}`)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if updateCalled {
		t.Error("rejected commit still wrote")
	}

	var body struct {
		Conflict models.ConflictRecord `json:"conflict"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Conflict.ServerVersion != 5 || len(body.Conflict.FieldConflicts) != 1 {
		t.Errorf("conflict = %+v", body.Conflict)
	}

	jobs := events.getJobs()
	if len(jobs) != 1 || jobs[0].Action != models.ActionWriteRejected {
		t.Fatalf("events = %+v, want one write_rejected", jobs)
	}
}

func TestCommit_PersistenceUnavailable(t *testing.T) {
	t.Parallel()

	repo := &mockVersionRepo{
		updateFn: func(_ context.Context, _, _ string, _ map[string]any, _ *string) (*models.EntityVersion, error) {
			return nil, models.ErrPersistence
		},
	}

	h := api.NewEntityHandler(repo, &mockConflictResolver{}, &mockEvents{}, testLogger())
	w := doRequest(entityRoutes(h), http.MethodPost, "/entities/record/r1", `{"data":{"a":1}}`)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDelete_NoBody(t *testing.T) {
	t.Parallel()

	var gotData map[string]any = map[string]any{"sentinel": true}
	repo := &mockVersionRepo{
		updateFn: func(_ context.Context, _, _ string, data map[string]any, _ *string) (*models.EntityVersion, error) {
			gotData = data
			return &models.EntityVersion{Version: 2}, nil
		},
	}

	h := api.NewEntityHandler(repo, &mockConflictResolver{}, &mockEvents{}, testLogger())
	w := doRequest(entityRoutes(h), http.MethodDelete, "/entities/record/r1", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotData != nil {
		t.Errorf("delete passed data %v, want nil", gotData)
	}
}

func TestDelete_StaleBaseVersion(t *testing.T) {
	t.Parallel()

	repo := &mockVersionRepo{
		getFn: func(_ context.Context, _, _ string) (*models.EntityVersion, error) {
			return &models.EntityVersion{Version: 7}, nil
		},
		updateFn: func(_ context.Context, _, _ string, _ map[string]any, _ *string) (*models.EntityVersion, error) {
			t.Error("stale delete still wrote")
			return nil, nil
		},
	}
	events := &mockEvents{}

	h := api.NewEntityHandler(repo, &mockConflictResolver{}, events, testLogger())
	w := doRequest(entityRoutes(h), http.MethodDelete, "/entities/record/r1", `{"base_version":5}`)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if len(events.getJobs()) != 1 {
		t.Error("expected a write_rejected event")
	}
}

func TestCheck_NoConflict(t *testing.T) {
	t.Parallel()

	resolver := &mockConflictResolver{
		checkFn: func(_ context.Context, _ service.CheckConflictInput) (*models.ConflictRecord, error) {
			return nil, nil
		},
	}

	h := api.NewEntityHandler(&mockVersionRepo{}, resolver, &mockEvents{}, testLogger())
	w := doRequest(entityRoutes(h), http.MethodPost, "/entities/record/r1/check",
		`{"client_version":3,"client_data":{"status":"pending"}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Conflict *models.ConflictRecord `json:"conflict"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Conflict != nil {
		t.Errorf("conflict = %+v, want null", body.Conflict)
	}
}

func TestMerge_KeepServer(t *testing.T) {
	t.Parallel()

	resolver := &mockConflictResolver{
		mergeFn: func(_ *models.ConflictRecord, _ map[string]any, strategy models.MergeStrategy, _ map[string]any) (*models.MergeResult, error) {
			if strategy != models.StrategyKeepServer {
				t.Errorf("strategy = %v, want keep_server", strategy)
			}
			return &models.MergeResult{
				MergedData:        map[string]any{"status": "in_progress"},
				ConflictsResolved: 1,
				StrategyUsed:      strategy,
			}, nil
		},
	}

	h := api.NewEntityHandler(&mockVersionRepo{}, resolver, &mockEvents{}, testLogger())
	w := doRequest(entityRoutes(h), http.MethodPost, "/entities/record/r1/merge",
		`{"conflict":{"entity_type":"record","entity_id":"r1","field_conflicts":[]},"client_data":{"status":"closed"},"strategy":"keep_server"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result models.MergeResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if result.MergedData["status"] != "in_progress" {
		t.Errorf("merged status = %v, want in_progress", result.MergedData["status"])
	}
}

func TestMerge_UnknownStrategy(t *testing.T) {
	t.Parallel()

	h := api.NewEntityHandler(&mockVersionRepo{}, &mockConflictResolver{}, &mockEvents{}, testLogger())
	w := doRequest(entityRoutes(h), http.MethodPost, "/entities/record/r1/merge",
		`{"conflict":{"field_conflicts":[]},"client_data":{"status":"closed"},"strategy":"coin_flip"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMerge_IncompleteManualResolution(t *testing.T) {
	t.Parallel()

	resolver := &mockConflictResolver{
		mergeFn: func(_ *models.ConflictRecord, _ map[string]any, _ models.MergeStrategy, _ map[string]any) (*models.MergeResult, error) {
			return nil, models.ErrIncompleteResolution
		},
	}

	h := api.NewEntityHandler(&mockVersionRepo{}, resolver, &mockEvents{}, testLogger())
	w := doRequest(entityRoutes(h), http.MethodPost, "/entities/record/r1/merge",
		`{"conflict":{"field_conflicts":[]},"client_data":{"status":"closed"},"strategy":"manual"}`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}
