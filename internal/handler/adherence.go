package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/adherence-engine/internal/achievement"
	"github.com/vcscsvcscs/adherence-engine/internal/adherence"
	"github.com/vcscsvcscs/adherence-engine/internal/middleware"
	"github.com/vcscsvcscs/adherence-engine/internal/service"
	"go.uber.org/zap"
)

// AdherenceService derives statistics from dose history
type AdherenceService interface {
	Stats(ctx context.Context, userID string, days int) (adherence.Stats, error)
	Calendar(ctx context.Context, userID string, days int) ([]adherence.CalendarDay, error)
	Trends(ctx context.Context, userID string, days int) (service.TrendReport, error)
	Streaks(ctx context.Context, userID string) (adherence.StreakState, error)
	Achievements(ctx context.Context, userID string) ([]achievement.Achievement, error)
}

// CalendarResponse wraps the per-day adherence levels
type CalendarResponse struct {
	Days []adherence.CalendarDay `json:"days"`
}

// AchievementsResponse lists every achievement with its progress
type AchievementsResponse struct {
	Achievements []achievement.Achievement `json:"achievements"`
	Unlocked     int                       `json:"unlocked"`
}

// AdherenceHandler implements adherence statistics endpoints
type AdherenceHandler struct {
	service AdherenceService
	logger  *zap.Logger
}

// NewAdherenceHandler creates a new AdherenceHandler
func NewAdherenceHandler(service AdherenceService, logger *zap.Logger) *AdherenceHandler {
	return &AdherenceHandler{
		service: service,
		logger:  logger,
	}
}

// GetStats returns rates and lateness over the last days (default 30)
func (h *AdherenceHandler) GetStats(c *gin.Context) {
	days, err := parseInt(c, "days", 0)
	if err != nil {
		respondError(c, h.logger, err, "compute adherence stats")
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), middleware.UserID(c), days)
	if err != nil {
		respondError(c, h.logger, err, "compute adherence stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetStreaks returns the current and best streak
func (h *AdherenceHandler) GetStreaks(c *gin.Context) {
	state, err := h.service.Streaks(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err, "compute streaks")
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetCalendar returns one adherence level per day
func (h *AdherenceHandler) GetCalendar(c *gin.Context) {
	days, err := parseInt(c, "days", 0)
	if err != nil {
		respondError(c, h.logger, err, "build adherence calendar")
		return
	}

	cal, err := h.service.Calendar(c.Request.Context(), middleware.UserID(c), days)
	if err != nil {
		respondError(c, h.logger, err, "build adherence calendar")
		return
	}
	if cal == nil {
		cal = []adherence.CalendarDay{}
	}
	c.JSON(http.StatusOK, CalendarResponse{Days: cal})
}

// GetTrends returns the hourly and weekday adherence trends
func (h *AdherenceHandler) GetTrends(c *gin.Context) {
	days, err := parseInt(c, "days", 0)
	if err != nil {
		respondError(c, h.logger, err, "compute trends")
		return
	}

	report, err := h.service.Trends(c.Request.Context(), middleware.UserID(c), days)
	if err != nil {
		respondError(c, h.logger, err, "compute trends")
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetAchievements returns every achievement with progress toward its target
func (h *AdherenceHandler) GetAchievements(c *gin.Context) {
	all, err := h.service.Achievements(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err, "evaluate achievements")
		return
	}
	c.JSON(http.StatusOK, AchievementsResponse{
		Achievements: all,
		Unlocked:     len(achievement.Unlocked(all)),
	})
}
