package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/adherence-engine/internal/middleware"
	"github.com/vcscsvcscs/adherence-engine/internal/service"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// RewardsService reports points and grants bonuses
type RewardsService interface {
	Summary(ctx context.Context, userID string) (*service.RewardsSummary, error)
	DailyCheckIn(ctx context.Context, userID string, actor service.Actor) (*model.BonusEntry, error)
}

// RewardsHandler implements points and check-in endpoints
type RewardsHandler struct {
	service RewardsService
	logger  *zap.Logger
}

// NewRewardsHandler creates a new RewardsHandler
func NewRewardsHandler(service RewardsService, logger *zap.Logger) *RewardsHandler {
	return &RewardsHandler{
		service: service,
		logger:  logger,
	}
}

// GetSummary returns the points total derived from dose records and the bonus ledger
func (h *RewardsHandler) GetSummary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err, "load rewards")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// CheckIn claims the daily check-in bonus
func (h *RewardsHandler) CheckIn(c *gin.Context) {
	entry, err := h.service.DailyCheckIn(c.Request.Context(), middleware.UserID(c), actorOf(c))
	if err != nil {
		respondError(c, h.logger, err, "claim check-in bonus")
		return
	}
	c.JSON(http.StatusCreated, entry)
}
