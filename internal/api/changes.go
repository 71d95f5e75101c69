package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/veritail/veritail/internal/models"
)

// ChangesHandler serves the catch-up change feed.
type ChangesHandler struct {
	versions VersionRepository
	log      *logrus.Logger
}

// NewChangesHandler creates a ChangesHandler.
func NewChangesHandler(versions VersionRepository, log *logrus.Logger) *ChangesHandler {
	return &ChangesHandler{versions: versions, log: log}
}

// List handles GET /api/v1/changes.
func (h *ChangesHandler) List(c *gin.Context) {
	opts := models.ChangeQueryOpts{
		EntityType: c.Query("entity_type"),
		Limit:      parseInt(c.Query("limit"), models.DefaultChangeLimit),
	}

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid since format, use RFC3339")
			return
		}
		opts.Since = &t
	}

	changes, err := h.versions.GetRecentChanges(c.Request.Context(), opts)
	if err != nil {
		h.log.WithError(err).Error("failed to query recent changes")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to query recent changes")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": changes})
}
