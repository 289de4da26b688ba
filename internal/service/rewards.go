package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vcscsvcscs/adherence-engine/internal/adherence"
	"github.com/vcscsvcscs/adherence-engine/internal/audit"
	"github.com/vcscsvcscs/adherence-engine/internal/clock"
	"github.com/vcscsvcscs/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// DefaultCheckInPoints is granted once per day by DailyCheckIn
const DefaultCheckInPoints = 5

// RewardsSummary is derived from dose records and the bonus ledger on every read
type RewardsSummary struct {
	UserID        string             `json:"user_id"`
	DosePoints    int                `json:"dose_points"`
	BonusPoints   int                `json:"bonus_points"`
	LedgerPoints  int                `json:"ledger_points"`
	TotalPoints   int                `json:"total_points"`
	DosesLogged   int                `json:"doses_logged"`
	CurrentStreak int                `json:"current_streak"`
	Recent        []model.BonusEntry `json:"recent_bonuses"`
}

// RewardsService reports points and grants check-in bonuses
type RewardsService struct {
	doses         DoseStore
	ledger        LedgerStore
	prefs         PreferenceStore
	audit         audit.Recorder
	clock         clock.Clock
	checkInPoints int
	logger        *zap.Logger
}

// NewRewardsService creates a new RewardsService
func NewRewardsService(
	doses DoseStore,
	ledger LedgerStore,
	prefs PreferenceStore,
	auditor audit.Recorder,
	clk clock.Clock,
	checkInPoints int,
	logger *zap.Logger,
) *RewardsService {
	if clk == nil {
		clk = clock.NewReal()
	}
	if checkInPoints <= 0 {
		checkInPoints = DefaultCheckInPoints
	}
	return &RewardsService{
		doses:         doses,
		ledger:        ledger,
		prefs:         prefs,
		audit:         auditor,
		clock:         clk,
		checkInPoints: checkInPoints,
		logger:        logger,
	}
}

// Summary sums dose rewards and ledger grants. Nothing is cached.
func (s *RewardsService) Summary(ctx context.Context, userID string) (*RewardsSummary, error) {
	if userID == "" {
		return nil, invalid("user_id", "is required")
	}

	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	totals, err := s.doses.Totals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum dose points: %w", err)
	}

	ledgerPoints, err := s.ledger.Sum(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum bonus ledger: %w", err)
	}

	recent, err := s.ledger.ListByUser(ctx, userID, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to list bonus ledger: %w", err)
	}

	now := s.clock.Now()
	loc := prefs.Location()
	history, err := s.doses.Query(ctx, repository.DoseQuery{
		UserID: userID,
		From:   model.DateIn(now, loc).AddDate(0, 0, -streakHistoryDays),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load dose history: %w", err)
	}

	return &RewardsSummary{
		UserID:        userID,
		DosePoints:    totals.Points,
		BonusPoints:   totals.BonusPoints,
		LedgerPoints:  ledgerPoints,
		TotalPoints:   totals.Points + totals.BonusPoints + ledgerPoints,
		DosesLogged:   totals.Doses,
		CurrentStreak: adherence.CurrentStreakOf(history, now, loc),
		Recent:        recent,
	}, nil
}

// DailyCheckIn grants the check-in bonus once per calendar day in the user's timezone
func (s *RewardsService) DailyCheckIn(ctx context.Context, userID string, actor Actor) (*model.BonusEntry, error) {
	if userID == "" {
		return nil, invalid("user_id", "is required")
	}

	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	entry := &model.BonusEntry{
		UserID:    userID,
		Kind:      model.BonusKindDailyCheckIn,
		Points:    s.checkInPoints,
		Reason:    "Daily check-in",
		GrantDate: model.DateIn(s.clock.Now(), prefs.Location()),
	}

	if err := s.ledger.Grant(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrAlreadyGranted) {
			return nil, ErrAlreadyCheckedIn
		}
		return nil, fmt.Errorf("failed to grant check-in bonus: %w", err)
	}

	s.logger.Info("daily check-in granted",
		zap.String("user_id", userID),
		zap.Int("points", entry.Points),
	)

	if s.audit != nil {
		err := s.audit.Log(ctx, audit.Entry{
			UserID:        userID,
			OperationType: audit.OperationCreate,
			ResourceType:  audit.ResourceBonus,
			ResourceID:    entry.ID,
			IPAddress:     actor.IPAddress,
			UserAgent:     actor.UserAgent,
		})
		if err != nil {
			s.logger.Warn("failed to audit check-in", zap.Error(err), zap.String("user_id", userID))
		}
	}

	return entry, nil
}
