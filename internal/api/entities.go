// Package api provides HTTP handlers for the versioning core.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/veritail/veritail/internal/middleware"
	"github.com/veritail/veritail/internal/models"
	"github.com/veritail/veritail/internal/service"
)

// requestActor resolves the acting user for a write: an explicit body
// actor_id wins, then the X-Actor-ID header the SDK sets on every request.
func requestActor(c *gin.Context, bodyActor *string) *string {
	if bodyActor != nil && *bodyActor != "" {
		return bodyActor
	}

	if v, ok := c.Get(middleware.ActorKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return &s
		}
	}

	return nil
}

// EntityHandler serves version lookup, commit, conflict check, and merge
// endpoints for tracked entities.
type EntityHandler struct {
	versions  VersionRepository
	conflicts ConflictResolver
	events    EventRecorder
	log       *logrus.Logger
}

// NewEntityHandler creates an EntityHandler.
func NewEntityHandler(versions VersionRepository, conflicts ConflictResolver, events EventRecorder, log *logrus.Logger) *EntityHandler {
	return &EntityHandler{versions: versions, conflicts: conflicts, events: events, log: log}
}

// GetVersion handles GET /api/v1/entities/:type/:id/version.
func (h *EntityHandler) GetVersion(c *gin.Context) {
	entityType, entityID := c.Param("type"), c.Param("id")

	version, err := h.versions.GetEntityVersion(c.Request.Context(), entityType, entityID)
	if err != nil {
		h.log.WithError(err).Error("failed to read entity version")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to read entity version")
		return
	}

	if version == nil {
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "entity is not version-tracked")
		return
	}

	c.JSON(http.StatusOK, version)
}

// commitRequest is the payload for committing a mutation. BaseVersion and
// OriginalData are set by optimistic-UI callers; when present, a conflict
// check runs before anything is written.
type commitRequest struct {
	Data            map[string]any `json:"data" binding:"required"`
	ActorID         *string        `json:"actor_id"`
	BaseVersion     *int64         `json:"base_version"`
	OriginalData    map[string]any `json:"original_data"`
	ClientUpdatedAt *time.Time     `json:"client_updated_at"`
}

// Commit handles POST /api/v1/entities/:type/:id. A stale base yields 409
// with the ConflictRecord; the caller merges and retries.
func (h *EntityHandler) Commit(c *gin.Context) {
	entityType, entityID := c.Param("type"), c.Param("id")

	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid commit payload: "+err.Error())
		return
	}

	actor := requestActor(c, req.ActorID)

	if req.BaseVersion != nil {
		in := service.CheckConflictInput{
			EntityType:      entityType,
			EntityID:        entityID,
			ClientVersion:   *req.BaseVersion,
			ClientData:      req.Data,
			OriginalData:    req.OriginalData,
			ClientUpdatedBy: actor,
		}
		if req.ClientUpdatedAt != nil {
			in.ClientUpdatedAt = *req.ClientUpdatedAt
		}

		conflict, err := h.conflicts.CheckConflict(c.Request.Context(), in)
		if err != nil {
			h.respondCommitError(c, err, "conflict check failed")
			return
		}

		if conflict != nil {
			h.events.Enqueue(&service.EventJob{
				Actor:      actor,
				Action:     models.ActionWriteRejected,
				EntityType: &entityType,
				EntityID:   &entityID,
				Detail: map[string]any{
					"base_version":   *req.BaseVersion,
					"server_version": conflict.ServerVersion,
					"fields":         len(conflict.FieldConflicts),
				},
			})

			c.JSON(http.StatusConflict, gin.H{"conflict": conflict})
			return
		}
	}

	version, err := h.versions.UpdateEntityVersion(c.Request.Context(), entityType, entityID, req.Data, actor)
	if err != nil {
		h.respondCommitError(c, err, "commit failed")
		return
	}

	c.JSON(http.StatusOK, version)
}

// deleteRequest is the optional payload for a soft deletion.
type deleteRequest struct {
	ActorID     *string `json:"actor_id"`
	BaseVersion *int64  `json:"base_version"`
}

// Delete handles DELETE /api/v1/entities/:type/:id. Deletion is a tracked
// mutation: the version row stays, its data snapshot is cleared, and a
// delete entry lands in the ledger.
func (h *EntityHandler) Delete(c *gin.Context) {
	entityType, entityID := c.Param("type"), c.Param("id")

	var req deleteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid delete payload: "+err.Error())
			return
		}
	}

	actor := requestActor(c, req.ActorID)

	if req.BaseVersion != nil {
		current, err := h.versions.GetEntityVersion(c.Request.Context(), entityType, entityID)
		if err != nil {
			h.log.WithError(err).Error("failed to read entity version")
			respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to read entity version")
			return
		}

		if current != nil && current.Version != *req.BaseVersion {
			h.events.Enqueue(&service.EventJob{
				Actor:      actor,
				Action:     models.ActionWriteRejected,
				EntityType: &entityType,
				EntityID:   &entityID,
				Detail: map[string]any{
					"base_version":   *req.BaseVersion,
					"server_version": current.Version,
					"operation":      "delete",
				},
			})

			c.JSON(http.StatusConflict, gin.H{
				"base_version":   *req.BaseVersion,
				"server_version": current.Version,
			})
			return
		}
	}

	version, err := h.versions.UpdateEntityVersion(c.Request.Context(), entityType, entityID, nil, actor)
	if err != nil {
		h.respondCommitError(c, err, "delete failed")
		return
	}

	c.JSON(http.StatusOK, version)
}

// checkRequest is the payload for a standalone conflict check.
type checkRequest struct {
	ClientVersion   int64          `json:"client_version"`
	ClientData      map[string]any `json:"client_data" binding:"required"`
	OriginalData    map[string]any `json:"original_data"`
	ActorID         *string        `json:"actor_id"`
	ClientUpdatedAt *time.Time     `json:"client_updated_at"`
}

// Check handles POST /api/v1/entities/:type/:id/check. Returns the
// ConflictRecord, or a null conflict when the caller's base is current.
func (h *EntityHandler) Check(c *gin.Context) {
	entityType, entityID := c.Param("type"), c.Param("id")

	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid check payload: "+err.Error())
		return
	}

	in := service.CheckConflictInput{
		EntityType:      entityType,
		EntityID:        entityID,
		ClientVersion:   req.ClientVersion,
		ClientData:      req.ClientData,
		OriginalData:    req.OriginalData,
		ClientUpdatedBy: requestActor(c, req.ActorID),
	}
	if req.ClientUpdatedAt != nil {
		in.ClientUpdatedAt = *req.ClientUpdatedAt
	}

	conflict, err := h.conflicts.CheckConflict(c.Request.Context(), in)
	if err != nil {
		h.respondCommitError(c, err, "conflict check failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"conflict": conflict})
}

// mergeRequest is the payload for resolving a conflict. The conflict record
// is the one a prior check returned; nothing is persisted by the merge.
type mergeRequest struct {
	Conflict          *models.ConflictRecord `json:"conflict" binding:"required"`
	ClientData        map[string]any         `json:"client_data" binding:"required"`
	Strategy          string                 `json:"strategy" binding:"required"`
	ManualResolutions map[string]any         `json:"manual_resolutions"`
}

// Merge handles POST /api/v1/entities/:type/:id/merge. The caller commits the
// merged data afterwards via Commit.
func (h *EntityHandler) Merge(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid merge payload: "+err.Error())
		return
	}

	strategy, err := models.ParseMergeStrategy(req.Strategy)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	result, err := h.conflicts.MergeConflict(req.Conflict, req.ClientData, strategy, req.ManualResolutions)
	if err != nil {
		if errors.Is(err, models.ErrIncompleteResolution) {
			respondError(c, http.StatusUnprocessableEntity, ErrCodeIncompleteResolution, err.Error())
			return
		}

		h.log.WithError(err).Error("merge failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "merge failed")
		return
	}

	c.JSON(http.StatusOK, result)
}

// respondCommitError maps core sentinel errors onto HTTP responses.
func (h *EntityHandler) respondCommitError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, models.ErrEncoding):
		respondError(c, http.StatusBadRequest, ErrCodeEncoding, err.Error())
	case errors.Is(err, models.ErrPersistence):
		h.log.WithError(err).Error(logMsg)
		respondError(c, http.StatusServiceUnavailable, ErrCodePersistence, "mutation did not happen, retry")
	default:
		h.log.WithError(err).Error(logMsg)
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, logMsg)
	}
}
