package dose

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/vcscsvcscs/adherence-engine/internal/schedule"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
)

var (
	// ErrInvalidTransition is returned when a dose cannot be finalized with the given input
	ErrInvalidTransition = errors.New("invalid dose transition")
	// ErrDuplicateDose is returned by stores when a record already exists for the dose key
	ErrDuplicateDose = errors.New("dose already logged")
)

const (
	// DefaultMaxLateMinutes bounds the "within window" tier when no limit is configured
	DefaultMaxLateMinutes = 240
	// LateThresholdMinutes separates on-time from late doses in statistics
	LateThresholdMinutes = 30
	// PerfectTimingMinutes is the tolerance that earns the timing bonus and counts toward
	// the perfect_timing achievement
	PerfectTimingMinutes = 15

	weekStreakDays  = 7
	monthStreakDays = 30
)

const (
	ReasonPerfectTiming = "Perfect timing"
	ReasonWeekStreak    = "7-day streak bonus"
	ReasonMonthStreak   = "30-day streak bonus"
)

// FinalizeInput is everything needed to turn a logged status into a persisted outcome
type FinalizeInput struct {
	ScheduledTime  time.Time
	Status         model.DoseStatus
	ActualTime     *time.Time
	PriorStreak    int
	MaxLateMinutes int
	// PointsOverride caps the base points. It can lower them, never raise them or go below 0.
	PointsOverride *int
}

// Outcome is the computed part of a dose record
type Outcome struct {
	Status       model.DoseStatus
	ActualTime   *time.Time
	MinutesLate  int
	TakenLate    bool
	WithinWindow bool
	Warning      bool
	Rewards      model.Rewards
}

// Apply copies the outcome onto rec
func (o Outcome) Apply(rec *model.DoseRecord) {
	rec.Status = o.Status
	rec.ActualTime = o.ActualTime
	rec.MinutesLate = o.MinutesLate
	rec.TakenLate = o.TakenLate
	rec.WithinWindow = o.WithinWindow
	rec.Rewards = o.Rewards
}

type tier struct {
	maxMinutes int
	points     int
	bonus      int
	reason     string
	warning    bool
}

// Finalize computes lateness and rewards for a dose. It performs no I/O.
func Finalize(in FinalizeInput) (Outcome, error) {
	if in.ScheduledTime.IsZero() || !in.Status.Valid() {
		return Outcome{}, ErrInvalidTransition
	}

	maxLate := in.MaxLateMinutes
	if maxLate <= 0 {
		maxLate = DefaultMaxLateMinutes
	}

	out := Outcome{
		Status:       in.Status,
		ActualTime:   in.ActualTime,
		WithinWindow: true,
		Rewards:      model.Rewards{Streak: in.PriorStreak},
	}

	if in.Status != model.DoseStatusTaken {
		return out, nil
	}

	if in.ActualTime == nil {
		return Outcome{}, ErrInvalidTransition
	}

	diff := MinutesBetween(in.ScheduledTime, *in.ActualTime)
	out.MinutesLate = max(0, diff)
	out.TakenLate = diff > LateThresholdMinutes

	t := pickTier(diff, maxLate)
	out.Rewards.Points = t.points
	out.Rewards.BonusPoints = t.bonus
	out.Rewards.ReasonForBonus = t.reason
	out.Warning = t.warning
	out.WithinWindow = diff <= maxLate

	if in.PriorStreak >= weekStreakDays {
		out.Rewards.BonusPoints += 10
		out.Rewards.ReasonForBonus = ReasonWeekStreak
	}
	if in.PriorStreak >= monthStreakDays {
		out.Rewards.BonusPoints += 25
		out.Rewards.ReasonForBonus = ReasonMonthStreak
	}

	if in.PointsOverride != nil {
		out.Rewards.Points = min(out.Rewards.Points, max(0, *in.PointsOverride))
	}

	return out, nil
}

func pickTier(diff, maxLate int) tier {
	tiers := []tier{
		{maxMinutes: PerfectTimingMinutes, points: 15, bonus: 5, reason: ReasonPerfectTiming},
		{maxMinutes: LateThresholdMinutes, points: 12},
		{maxMinutes: 60, points: 8, warning: true},
		{maxMinutes: maxLate, points: 3, warning: true},
	}
	for _, t := range tiers {
		if diff <= t.maxMinutes {
			return t
		}
	}
	return tier{points: 1, warning: true}
}

// MinutesBetween returns the whole minutes from scheduled to actual, rounded toward zero.
// The result is negative for early doses.
func MinutesBetween(scheduled, actual time.Time) int {
	return int(math.Trunc(actual.Sub(scheduled).Minutes()))
}

// IsOnTime reports whether a taken record falls within the perfect timing tolerance
func IsOnTime(rec model.DoseRecord) bool {
	if rec.Status != model.DoseStatusTaken || rec.ActualTime == nil {
		return false
	}
	return MinutesBetween(rec.ScheduledTime, *rec.ActualTime) <= PerfectTimingMinutes
}

// Slots joins the instants of reg on date with the records logged for them. Records whose
// scheduled time is not part of the expansion (custom schedule edits, manual entries) are
// kept as logged slots so nothing disappears from the day view.
func Slots(reg model.Regimen, date time.Time, records []model.DoseRecord) ([]model.DoseSlot, error) {
	instants, err := schedule.ExpandActive(reg, date)
	if err != nil {
		return nil, err
	}

	byTime := make(map[int64]model.DoseRecord)
	for _, r := range records {
		if r.RegimenID != reg.ID {
			continue
		}
		byTime[r.ScheduledTime.Unix()] = r
	}

	slots := make([]model.DoseSlot, 0, len(instants))
	for _, at := range instants {
		if rec, ok := byTime[at.Unix()]; ok {
			slots = append(slots, model.Logged(rec))
			delete(byTime, at.Unix())
			continue
		}
		slots = append(slots, model.Scheduled(reg.ID, at))
	}

	day := model.DateOf(date)
	for _, rec := range byTime {
		if model.DateIn(rec.ScheduledTime, date.Location()).Equal(day) {
			slots = append(slots, model.Logged(rec))
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].ScheduledTime.Before(slots[j].ScheduledTime)
	})
	return slots, nil
}
