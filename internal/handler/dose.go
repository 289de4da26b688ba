package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/adherence-engine/internal/middleware"
	"github.com/vcscsvcscs/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/adherence-engine/internal/service"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// DoseService is the dose logging surface used by DoseHandler
type DoseService interface {
	LogDose(ctx context.Context, req service.LogDoseRequest) (*service.LogResult, error)
	QuickMark(ctx context.Context, req service.QuickMarkRequest) (*service.LogResult, error)
	CorrectDose(ctx context.Context, userID, doseID string, req service.CorrectDoseRequest, actor service.Actor) (*service.LogResult, error)
	ListDoses(ctx context.Context, q repository.DoseQuery) ([]model.DoseRecord, error)
	DaySchedule(ctx context.Context, userID string, date time.Time) ([]service.DayEntry, error)
}

// LogDoseRequest is the body of POST /api/v1/doses
type LogDoseRequest struct {
	RegimenID     types.UUID `json:"regimen_id" binding:"required"`
	ScheduledTime time.Time  `json:"scheduled_time" binding:"required"`
	Status        string     `json:"status" binding:"required"`
	ActualTime    *time.Time `json:"actual_time,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

// QuickMarkRequest is the body of POST /api/v1/doses/quick
type QuickMarkRequest struct {
	RegimenID     types.UUID `json:"regimen_id" binding:"required"`
	ScheduledTime time.Time  `json:"scheduled_time" binding:"required"`
	Status        string     `json:"status" binding:"required"`
}

// CorrectDoseRequest is the body of PUT /api/v1/doses/:id
type CorrectDoseRequest struct {
	Status     string     `json:"status" binding:"required"`
	ActualTime *time.Time `json:"actual_time,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

// DoseListResponse wraps a dose query result
type DoseListResponse struct {
	Doses []model.DoseRecord `json:"doses"`
	Count int                `json:"count"`
}

// DayResponse is the schedule of one day
type DayResponse struct {
	Date  types.Date         `json:"date"`
	Doses []service.DayEntry `json:"doses"`
}

// DoseHandler implements dose API endpoints
type DoseHandler struct {
	service DoseService
	clock   func() time.Time
	logger  *zap.Logger
}

// NewDoseHandler creates a new DoseHandler
func NewDoseHandler(service DoseService, now func() time.Time, logger *zap.Logger) *DoseHandler {
	if now == nil {
		now = time.Now
	}
	return &DoseHandler{
		service: service,
		clock:   now,
		logger:  logger,
	}
}

// LogDose records an explicit dose outcome
func (h *DoseHandler) LogDose(c *gin.Context) {
	var req LogDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	userID := middleware.UserID(c)
	result, err := h.service.LogDose(c.Request.Context(), service.LogDoseRequest{
		UserID:        userID,
		RegimenID:     uuidToString(req.RegimenID),
		ScheduledTime: req.ScheduledTime,
		Status:        model.DoseStatus(req.Status),
		ActualTime:    req.ActualTime,
		Notes:         req.Notes,
		Source:        model.DoseSourceManual,
	})
	if err != nil {
		respondError(c, h.logger, err, "log dose")
		return
	}

	h.logger.Info("dose logged",
		zap.String("user_id", userID),
		zap.String("dose_id", result.Record.ID),
		zap.String("status", string(result.Record.Status)),
	)
	c.JSON(http.StatusCreated, result)
}

// QuickMark marks a dose as taken now, missed or skipped
func (h *DoseHandler) QuickMark(c *gin.Context) {
	var req QuickMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	result, err := h.service.QuickMark(c.Request.Context(), service.QuickMarkRequest{
		UserID:        middleware.UserID(c),
		RegimenID:     uuidToString(req.RegimenID),
		ScheduledTime: req.ScheduledTime,
		Status:        model.DoseStatus(req.Status),
	})
	if err != nil {
		respondError(c, h.logger, err, "mark dose")
		return
	}
	c.JSON(http.StatusCreated, result)
}

// CorrectDose replaces the outcome of an existing dose record
func (h *DoseHandler) CorrectDose(c *gin.Context) {
	var req CorrectDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	doseID := c.Param("id")
	result, err := h.service.CorrectDose(c.Request.Context(), middleware.UserID(c), doseID, service.CorrectDoseRequest{
		Status:     model.DoseStatus(req.Status),
		ActualTime: req.ActualTime,
		Notes:      req.Notes,
	}, actorOf(c))
	if err != nil {
		respondError(c, h.logger, err, "correct dose")
		return
	}

	h.logger.Info("dose corrected",
		zap.String("dose_id", doseID),
		zap.String("status", string(result.Record.Status)),
	)
	c.JSON(http.StatusOK, result)
}

// ListDoses returns dose records filtered by date range, regimen and status.
// The to date is inclusive.
func (h *DoseHandler) ListDoses(c *gin.Context) {
	q := repository.DoseQuery{
		UserID:    middleware.UserID(c),
		RegimenID: c.Query("regimen_id"),
		Status:    model.DoseStatus(c.Query("status")),
	}

	from, err := parseDate(c, "from")
	if err != nil {
		respondError(c, h.logger, err, "list doses")
		return
	}
	to, err := parseDate(c, "to")
	if err != nil {
		respondError(c, h.logger, err, "list doses")
		return
	}
	if from != nil {
		q.From = dateToTime(*from)
	}
	if to != nil {
		q.To = dateToTime(*to).AddDate(0, 0, 1)
	}

	if q.Limit, err = parseInt(c, "limit", 0); err != nil {
		respondError(c, h.logger, err, "list doses")
		return
	}

	doses, err := h.service.ListDoses(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.logger, err, "list doses")
		return
	}
	if doses == nil {
		doses = []model.DoseRecord{}
	}
	c.JSON(http.StatusOK, DoseListResponse{Doses: doses, Count: len(doses)})
}

// DaySchedule returns every scheduled dose of a day with its logged or pending state
func (h *DoseHandler) DaySchedule(c *gin.Context) {
	date, err := parseDate(c, "date")
	if err != nil {
		respondError(c, h.logger, err, "load day schedule")
		return
	}
	if date == nil {
		date = &types.Date{Time: h.clock()}
	}

	entries, err := h.service.DaySchedule(c.Request.Context(), middleware.UserID(c), dateToTime(*date))
	if err != nil {
		respondError(c, h.logger, err, "load day schedule")
		return
	}
	if entries == nil {
		entries = []service.DayEntry{}
	}
	c.JSON(http.StatusOK, DayResponse{Date: *date, Doses: entries})
}
