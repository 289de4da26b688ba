package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/adherence-engine/internal/audit"
	"github.com/vcscsvcscs/adherence-engine/internal/middleware"
	"go.uber.org/zap"
)

// AuditTrail reads recorded changes of a user
type AuditTrail interface {
	List(ctx context.Context, userID string, limit int) ([]audit.Entry, error)
}

// AuditResponse lists audit entries, newest first
type AuditResponse struct {
	Entries []audit.Entry `json:"entries"`
}

// AuditHandler exposes the audit trail of dose corrections, bonus grants and reports
type AuditHandler struct {
	trail  AuditTrail
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(trail AuditTrail, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{trail: trail, logger: logger}
}

// GetAuditTrail returns the caller's most recent audit entries
func (h *AuditHandler) GetAuditTrail(c *gin.Context) {
	limit, err := parseInt(c, "limit", 50)
	if err != nil {
		respondError(c, h.logger, err, "list audit trail")
		return
	}

	entries, err := h.trail.List(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		respondError(c, h.logger, err, "list audit trail")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	c.JSON(http.StatusOK, AuditResponse{Entries: entries})
}
