package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vcscsvcscs/adherence-engine/internal/adherence"
	"github.com/vcscsvcscs/adherence-engine/internal/audit"
	"github.com/vcscsvcscs/adherence-engine/internal/clock"
	"github.com/vcscsvcscs/adherence-engine/internal/dose"
	"github.com/vcscsvcscs/adherence-engine/internal/metrics"
	"github.com/vcscsvcscs/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// streakHistoryDays bounds the history read to compute the streak a dose is logged on
const streakHistoryDays = adherence.MaxStreakLookback + 1

// LogDoseRequest is an explicit dose log
type LogDoseRequest struct {
	UserID        string
	RegimenID     string
	ScheduledTime time.Time
	Status        model.DoseStatus
	ActualTime    *time.Time
	Notes         *string
	Source        model.DoseSource
}

// QuickMarkRequest marks a dose with the current time
type QuickMarkRequest struct {
	UserID        string
	RegimenID     string
	ScheduledTime time.Time
	Status        model.DoseStatus
}

// CorrectDoseRequest replaces the outcome of a logged dose
type CorrectDoseRequest struct {
	Status     model.DoseStatus
	ActualTime *time.Time
	Notes      *string
}

// Actor identifies who made a change, for the audit trail
type Actor struct {
	IPAddress string
	UserAgent string
}

// LogResult is the stored record plus user-facing feedback
type LogResult struct {
	Record  model.DoseRecord `json:"record"`
	Warning bool             `json:"warning"`
	Message string           `json:"message"`
}

// DayEntry is one dose slot of a day view with its regimen details
type DayEntry struct {
	model.DoseSlot
	MedicationName string           `json:"medication_name"`
	Dosage         model.Dosage     `json:"dosage"`
	Status         model.DoseStatus `json:"status"`
}

// DoseService logs and corrects dose records
type DoseService struct {
	doses    DoseStore
	regimens RegimenStore
	prefs    PreferenceStore
	audit    audit.Recorder
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewDoseService creates a new DoseService. audit may be nil.
func NewDoseService(
	doses DoseStore,
	regimens RegimenStore,
	prefs PreferenceStore,
	auditor audit.Recorder,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *DoseService {
	if clk == nil {
		clk = clock.NewReal()
	}
	if m == nil {
		m = metrics.New()
	}
	return &DoseService{
		doses:    doses,
		regimens: regimens,
		prefs:    prefs,
		audit:    auditor,
		clock:    clk,
		metrics:  m,
		logger:   logger,
	}
}

// LogDose finalizes and stores a dose. A dose already logged for the same
// (user, regimen, scheduled time) returns dose.ErrDuplicateDose.
func (s *DoseService) LogDose(ctx context.Context, req LogDoseRequest) (*LogResult, error) {
	if req.UserID == "" {
		return nil, invalid("user_id", "is required")
	}
	if req.RegimenID == "" {
		return nil, invalid("regimen_id", "is required")
	}
	if req.ScheduledTime.IsZero() {
		return nil, invalid("scheduled_time", "is required")
	}
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q cannot be logged", dose.ErrInvalidTransition, req.Status)
	}
	if req.Source == "" {
		req.Source = model.DoseSourceManual
	}

	reg, err := s.regimens.FindByID(ctx, req.UserID, req.RegimenID)
	if err != nil {
		return nil, err
	}

	prefs, err := s.prefs.Get(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	now := s.clock.Now()
	scheduled := req.ScheduledTime.Truncate(time.Minute).UTC()
	actual := req.ActualTime
	if req.Status == model.DoseStatusTaken && actual == nil {
		actual = &now
	}

	key := model.DoseKey{UserID: req.UserID, RegimenID: reg.ID, ScheduledTime: scheduled}
	existing, err := s.doses.Find(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing dose: %w", err)
	}
	if existing != nil {
		s.metrics.DuplicateDoses.Inc()
		return nil, dose.ErrDuplicateDose
	}

	prior, err := s.priorStreak(ctx, req.UserID, scheduled, prefs.Location())
	if err != nil {
		return nil, err
	}

	outcome, err := dose.Finalize(dose.FinalizeInput{
		ScheduledTime:  scheduled,
		Status:         req.Status,
		ActualTime:     actual,
		PriorStreak:    prior,
		MaxLateMinutes: prefs.LateWindow(),
	})
	if err != nil {
		return nil, err
	}

	rec := model.DoseRecord{
		UserID:        req.UserID,
		RegimenID:     reg.ID,
		ScheduledTime: scheduled,
		Dosage:        reg.Dosage,
		Source:        req.Source,
		Notes:         req.Notes,
	}
	outcome.Apply(&rec)

	if err := s.doses.Insert(ctx, &rec); err != nil {
		if errors.Is(err, dose.ErrDuplicateDose) {
			s.metrics.DuplicateDoses.Inc()
			return nil, err
		}
		return nil, fmt.Errorf("failed to log dose: %w", err)
	}

	s.metrics.DosesLogged.WithLabelValues(string(rec.Status), string(rec.Source)).Inc()
	s.logger.Info("dose logged",
		zap.String("dose_id", rec.ID),
		zap.String("user_id", rec.UserID),
		zap.String("regimen_id", rec.RegimenID),
		zap.String("status", string(rec.Status)),
		zap.Int("minutes_late", rec.MinutesLate),
		zap.Int("points", rec.Rewards.Total()),
	)

	return &LogResult{
		Record:  rec,
		Warning: outcome.Warning,
		Message: feedback(rec, outcome.Warning),
	}, nil
}

// QuickMark logs a dose as taken now, missed or skipped
func (s *DoseService) QuickMark(ctx context.Context, req QuickMarkRequest) (*LogResult, error) {
	switch req.Status {
	case model.DoseStatusTaken, model.DoseStatusMissed, model.DoseStatusSkipped:
	default:
		return nil, fmt.Errorf("%w: quick mark does not accept %q", dose.ErrInvalidTransition, req.Status)
	}

	var actual *time.Time
	if req.Status == model.DoseStatusTaken {
		now := s.clock.Now()
		actual = &now
	}

	return s.LogDose(ctx, LogDoseRequest{
		UserID:        req.UserID,
		RegimenID:     req.RegimenID,
		ScheduledTime: req.ScheduledTime,
		Status:        req.Status,
		ActualTime:    actual,
		Source:        model.DoseSourceQuick,
	})
}

// CorrectDose recomputes a logged dose from a new status and actual time. The streak
// stored when the dose was first logged is kept.
func (s *DoseService) CorrectDose(ctx context.Context, userID, doseID string, req CorrectDoseRequest, actor Actor) (*LogResult, error) {
	rec, err := s.doses.FindByID(ctx, doseID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, repository.ErrNotFound
	}

	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	outcome, err := dose.Finalize(dose.FinalizeInput{
		ScheduledTime:  rec.ScheduledTime,
		Status:         req.Status,
		ActualTime:     req.ActualTime,
		PriorStreak:    rec.Rewards.Streak,
		MaxLateMinutes: prefs.LateWindow(),
	})
	if err != nil {
		return nil, err
	}

	before := *rec
	outcome.Apply(rec)
	if req.Notes != nil {
		rec.Notes = req.Notes
	}

	if err := s.doses.Update(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to correct dose: %w", err)
	}

	s.logger.Info("dose corrected",
		zap.String("dose_id", rec.ID),
		zap.String("user_id", userID),
		zap.String("from_status", string(before.Status)),
		zap.String("to_status", string(rec.Status)),
	)

	if s.audit != nil {
		err := s.audit.Log(ctx, audit.Entry{
			UserID:        userID,
			OperationType: audit.OperationUpdate,
			ResourceType:  audit.ResourceDoseRecord,
			ResourceID:    rec.ID,
			IPAddress:     actor.IPAddress,
			UserAgent:     actor.UserAgent,
			AdditionalData: map[string]any{
				"from_status": before.Status,
				"to_status":   rec.Status,
				"from_points": before.Rewards.Total(),
				"to_points":   rec.Rewards.Total(),
			},
		})
		if err != nil {
			s.logger.Warn("failed to audit dose correction", zap.Error(err), zap.String("dose_id", rec.ID))
		}
	}

	return &LogResult{
		Record:  *rec,
		Warning: outcome.Warning,
		Message: feedback(*rec, outcome.Warning),
	}, nil
}

// AutoMiss records an unlogged dose as missed with zero points. It returns false when the
// dose was logged in the meantime.
func (s *DoseService) AutoMiss(ctx context.Context, prefs model.UserPreferences, reg model.Regimen, at time.Time) (bool, error) {
	zero := 0
	outcome, err := dose.Finalize(dose.FinalizeInput{
		ScheduledTime:  at,
		Status:         model.DoseStatusMissed,
		MaxLateMinutes: prefs.LateWindow(),
		PointsOverride: &zero,
	})
	if err != nil {
		return false, err
	}

	rec := model.DoseRecord{
		UserID:        prefs.UserID,
		RegimenID:     reg.ID,
		ScheduledTime: at.UTC(),
		Dosage:        reg.Dosage,
		Source:        model.DoseSourceScheduler,
	}
	outcome.Apply(&rec)

	if err := s.doses.Insert(ctx, &rec); err != nil {
		if errors.Is(err, dose.ErrDuplicateDose) {
			return false, nil
		}
		return false, fmt.Errorf("failed to record missed dose: %w", err)
	}

	s.metrics.DosesLogged.WithLabelValues(string(rec.Status), string(rec.Source)).Inc()
	return true, nil
}

// ListDoses returns the dose history of a user
func (s *DoseService) ListDoses(ctx context.Context, q repository.DoseQuery) ([]model.DoseRecord, error) {
	if q.UserID == "" {
		return nil, invalid("user_id", "is required")
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, invalid("to", "must not be before from")
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", q.Status))
	}
	return s.doses.Query(ctx, q)
}

// DaySchedule joins the scheduled instants of date with the logged records. Instants with
// no record are returned as pending.
func (s *DoseService) DaySchedule(ctx context.Context, userID string, date time.Time) ([]DayEntry, error) {
	if userID == "" {
		return nil, invalid("user_id", "is required")
	}

	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	loc := prefs.Location()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)

	regimens, err := s.regimens.ListActive(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list regimens: %w", err)
	}

	records, err := s.doses.Query(ctx, repository.DoseQuery{
		UserID: userID,
		From:   day,
		To:     day.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load doses: %w", err)
	}

	var entries []DayEntry
	for _, reg := range regimens {
		slots, err := dose.Slots(reg, day, records)
		if err != nil {
			s.logger.Warn("skipping regimen with invalid schedule",
				zap.String("regimen_id", reg.ID),
				zap.Error(err),
			)
			continue
		}
		for _, slot := range slots {
			entries = append(entries, DayEntry{
				DoseSlot:       slot,
				MedicationName: reg.MedicationName,
				Dosage:         reg.Dosage,
				Status:         slot.Status(),
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ScheduledTime.Before(entries[j].ScheduledTime)
	})
	return entries, nil
}

// priorStreak is the current streak on the day before scheduled, read from history
func (s *DoseService) priorStreak(ctx context.Context, userID string, scheduled time.Time, loc *time.Location) (int, error) {
	day := model.DateIn(scheduled, loc)
	history, err := s.doses.Query(ctx, repository.DoseQuery{
		UserID: userID,
		From:   day.AddDate(0, 0, -streakHistoryDays),
		To:     day,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to load dose history: %w", err)
	}
	// the scheduled day has no records in history, so the walk starts at the day before
	return adherence.CurrentStreakOf(history, day, loc), nil
}

func feedback(rec model.DoseRecord, warning bool) string {
	switch rec.Status {
	case model.DoseStatusTaken:
		switch {
		case !rec.WithinWindow:
			return fmt.Sprintf("Dose taken %d minutes late, outside the allowed window", rec.MinutesLate)
		case warning:
			return fmt.Sprintf("Dose taken %d minutes late", rec.MinutesLate)
		case rec.Rewards.ReasonForBonus != "":
			return fmt.Sprintf("Dose taken. %s: +%d points", rec.Rewards.ReasonForBonus, rec.Rewards.Total())
		default:
			return fmt.Sprintf("Dose taken: +%d points", rec.Rewards.Total())
		}
	case model.DoseStatusMissed:
		return "Dose marked as missed"
	case model.DoseStatusSkipped:
		return "Dose skipped"
	default:
		return "Dose delayed"
	}
}
