package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/adherence-engine/internal/middleware"
	"github.com/vcscsvcscs/adherence-engine/internal/service"
	"go.uber.org/zap"
)

// ReportService archives adherence snapshots
type ReportService interface {
	Archive(ctx context.Context, userID string, days int, actor service.Actor) (*service.ArchivedReport, error)
	Fetch(ctx context.Context, userID, name string) ([]byte, error)
}

// ArchiveReportRequest is the optional body of POST /api/v1/reports/adherence
type ArchiveReportRequest struct {
	Days int `json:"days"`
}

// ReportHandler implements report archive endpoints. A nil service means blob storage
// is not configured and every call answers 503.
type ReportHandler struct {
	service ReportService
	logger  *zap.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(service ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger,
	}
}

func (h *ReportHandler) available(c *gin.Context) bool {
	if h.service != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Code:    CodeUnavailable,
		Message: "Report storage is not configured",
	})
	return false
}

// ArchiveReport stores an adherence snapshot and returns its name
func (h *ReportHandler) ArchiveReport(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var req ArchiveReportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, h.logger, err)
			return
		}
	}

	userID := middleware.UserID(c)
	report, err := h.service.Archive(c.Request.Context(), userID, req.Days, actorOf(c))
	if err != nil {
		respondError(c, h.logger, err, "archive report")
		return
	}

	h.logger.Info("report archived",
		zap.String("user_id", userID),
		zap.String("name", report.Name),
		zap.Int("size_bytes", report.SizeBytes),
	)
	c.JSON(http.StatusCreated, report)
}

// GetReport downloads an archived report
func (h *ReportHandler) GetReport(c *gin.Context) {
	if !h.available(c) {
		return
	}

	name := c.Param("name")
	data, err := h.service.Fetch(c.Request.Context(), middleware.UserID(c), name)
	if err != nil {
		respondError(c, h.logger, err, "fetch report")
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+name)
	c.Data(http.StatusOK, "application/json", data)
}
