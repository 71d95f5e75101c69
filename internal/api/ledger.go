package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/veritail/veritail/internal/models"
)

// LedgerHandler serves read-only ledger endpoints. There is deliberately no
// write surface here: entries are appended by the commit path and the event
// worker, never by callers directly.
type LedgerHandler struct {
	ledger LedgerRepository
	log    *logrus.Logger
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(ledger LedgerRepository, log *logrus.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, log: log}
}

// Query handles GET /api/v1/ledger.
func (h *LedgerHandler) Query(c *gin.Context) {
	opts := models.LedgerQueryOpts{
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Action:     c.Query("action"),
		Limit:      parseInt(c.Query("limit"), 50),
		Offset:     parseOffset(c.Query("offset")),
	}

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid since format, use RFC3339")
			return
		}
		opts.Since = &t
	}

	entries, hasMore, err := h.ledger.Query(c.Request.Context(), opts)
	if err != nil {
		h.log.WithError(err).Error("failed to query ledger")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to query ledger")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     entries,
		"has_more": hasMore,
	})
}

// Latest handles GET /api/v1/ledger/latest — the highest assigned entry id,
// used by operational callers to bound ranged verification.
func (h *LedgerHandler) Latest(c *gin.Context) {
	id, err := h.ledger.GetLatestID(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("failed to read latest ledger id")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to read latest ledger id")
		return
	}

	c.JSON(http.StatusOK, gin.H{"latest_id": id})
}
