package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vcscsvcscs/adherence-engine/internal/achievement"
	"github.com/vcscsvcscs/adherence-engine/internal/adherence"
	"github.com/vcscsvcscs/adherence-engine/internal/clock"
	"github.com/vcscsvcscs/adherence-engine/internal/dose"
	"github.com/vcscsvcscs/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

const (
	DefaultStatsDays = 30
	MaxStatsDays     = 365
)

// TrendReport groups the hourly and weekday trends with their extremes
type TrendReport struct {
	Hourly       adherence.Trend   `json:"hourly"`
	Weekday      adherence.Trend   `json:"weekday"`
	BestHour     *adherence.Bucket `json:"best_hour,omitempty"`
	WorstHour    *adherence.Bucket `json:"worst_hour,omitempty"`
	BestWeekday  *adherence.Bucket `json:"best_weekday,omitempty"`
	WorstWeekday *adherence.Bucket `json:"worst_weekday,omitempty"`
}

// Snapshot is the full adherence picture of a user, used by archived reports
type Snapshot struct {
	UserID       string                    `json:"user_id"`
	GeneratedAt  time.Time                 `json:"generated_at"`
	Timezone     string                    `json:"timezone"`
	Stats        adherence.Stats           `json:"stats"`
	Streaks      adherence.StreakState     `json:"streaks"`
	Calendar     []adherence.CalendarDay   `json:"calendar"`
	Trends       TrendReport               `json:"trends"`
	Achievements []achievement.Achievement `json:"achievements"`
}

// AdherenceService reads dose history and derives statistics on every call
type AdherenceService struct {
	doses  DoseStore
	prefs  PreferenceStore
	clock  clock.Clock
	logger *zap.Logger
}

// NewAdherenceService creates a new AdherenceService
func NewAdherenceService(doses DoseStore, prefs PreferenceStore, clk clock.Clock, logger *zap.Logger) *AdherenceService {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &AdherenceService{
		doses:  doses,
		prefs:  prefs,
		clock:  clk,
		logger: logger,
	}
}

func normalizeDays(days int) (int, error) {
	if days == 0 {
		return DefaultStatsDays, nil
	}
	if days < 1 || days > MaxStatsDays {
		return 0, invalid("days", fmt.Sprintf("must be between 1 and %d", MaxStatsDays))
	}
	return days, nil
}

func (s *AdherenceService) location(ctx context.Context, userID string) (*time.Location, error) {
	if userID == "" {
		return nil, invalid("user_id", "is required")
	}
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return prefs.Location(), nil
}

func (s *AdherenceService) window(ctx context.Context, userID string, days int) (adherence.Window, []model.DoseRecord, error) {
	days, err := normalizeDays(days)
	if err != nil {
		return adherence.Window{}, nil, err
	}
	loc, err := s.location(ctx, userID)
	if err != nil {
		return adherence.Window{}, nil, err
	}

	w := adherence.NewWindow(s.clock.Now(), days, loc)
	from, to := w.Bounds()
	records, err := s.doses.Query(ctx, repository.DoseQuery{UserID: userID, From: from, To: to})
	if err != nil {
		s.logger.Error("failed to load doses for adherence", zap.Error(err), zap.String("user_id", userID))
		return adherence.Window{}, nil, fmt.Errorf("failed to load doses: %w", err)
	}
	return w, records, nil
}

func (s *AdherenceService) history(ctx context.Context, userID string) ([]model.DoseRecord, *time.Location, error) {
	loc, err := s.location(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	records, err := s.doses.Query(ctx, repository.DoseQuery{UserID: userID, To: s.clock.Now().AddDate(0, 0, 1)})
	if err != nil {
		s.logger.Error("failed to load dose history", zap.Error(err), zap.String("user_id", userID))
		return nil, nil, fmt.Errorf("failed to load dose history: %w", err)
	}
	return records, loc, nil
}

// Stats aggregates the last days calendar days, ending today
func (s *AdherenceService) Stats(ctx context.Context, userID string, days int) (adherence.Stats, error) {
	w, records, err := s.window(ctx, userID, days)
	if err != nil {
		return adherence.Stats{}, err
	}
	return adherence.Aggregate(records, w), nil
}

// Calendar returns one heatmap cell per day of the window
func (s *AdherenceService) Calendar(ctx context.Context, userID string, days int) ([]adherence.CalendarDay, error) {
	w, records, err := s.window(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	return adherence.Calendar(records, w), nil
}

// Trends computes the hourly and weekday adherence of the window
func (s *AdherenceService) Trends(ctx context.Context, userID string, days int) (TrendReport, error) {
	w, records, err := s.window(ctx, userID, days)
	if err != nil {
		return TrendReport{}, err
	}
	return trends(records, w.Location), nil
}

func trends(records []model.DoseRecord, loc *time.Location) TrendReport {
	report := TrendReport{
		Hourly:  adherence.HourlyTrend(records, loc),
		Weekday: adherence.WeekdayTrend(records, loc),
	}
	if b, ok := report.Hourly.Best(); ok {
		report.BestHour = &b
	}
	if b, ok := report.Hourly.Worst(); ok {
		report.WorstHour = &b
	}
	if b, ok := report.Weekday.Best(); ok {
		report.BestWeekday = &b
	}
	if b, ok := report.Weekday.Worst(); ok {
		report.WorstWeekday = &b
	}
	return report
}

// Streaks computes the current and best streak over the whole history
func (s *AdherenceService) Streaks(ctx context.Context, userID string) (adherence.StreakState, error) {
	records, loc, err := s.history(ctx, userID)
	if err != nil {
		return adherence.StreakState{}, err
	}
	return adherence.Streaks(records, s.clock.Now(), loc), nil
}

// Achievements evaluates every achievement against the history
func (s *AdherenceService) Achievements(ctx context.Context, userID string) ([]achievement.Achievement, error) {
	records, loc, err := s.history(ctx, userID)
	if err != nil {
		return nil, err
	}
	return achievement.Evaluate(achievementInput(records, s.clock.Now(), loc)), nil
}

func achievementInput(records []model.DoseRecord, now time.Time, loc *time.Location) achievement.Input {
	in := achievement.Input{
		CurrentStreak: adherence.CurrentStreakOf(records, now, loc),
	}
	for _, r := range records {
		if r.Status != model.DoseStatusTaken {
			continue
		}
		in.TakenCount++
		if dose.IsOnTime(r) {
			in.OnTimeCount++
		}
	}

	weekly := adherence.Aggregate(records, adherence.NewWindow(now, 7, loc))
	monthly := adherence.Aggregate(records, adherence.NewWindow(now, 30, loc))
	in.WeeklyRate, in.WeeklyTotal = weekly.TakenRate, weekly.Total
	in.MonthlyRate, in.MonthlyTotal = monthly.TakenRate, monthly.Total
	return in
}

// Snapshot builds every view of the window in one read
func (s *AdherenceService) Snapshot(ctx context.Context, userID string, days int) (*Snapshot, error) {
	days, err := normalizeDays(days)
	if err != nil {
		return nil, err
	}
	records, loc, err := s.history(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	w := adherence.NewWindow(now, days, loc)

	var inWindow []model.DoseRecord
	for _, r := range records {
		if w.Contains(r.ScheduledTime) {
			inWindow = append(inWindow, r)
		}
	}

	return &Snapshot{
		UserID:       userID,
		GeneratedAt:  now,
		Timezone:     loc.String(),
		Stats:        adherence.Aggregate(records, w),
		Streaks:      adherence.Streaks(records, now, loc),
		Calendar:     adherence.Calendar(records, w),
		Trends:       trends(inWindow, loc),
		Achievements: achievement.Evaluate(achievementInput(records, now, loc)),
	}, nil
}
