package adherence

import (
	"time"

	"github.com/vcscsvcscs/adherence-engine/pkg/model"
)

// MaxStreakLookback caps how far back the current streak walk goes
const MaxStreakLookback = 365

// StreakState summarises consecutive perfect days
type StreakState struct {
	CurrentStreak    int `json:"current_streak"`
	BestStreak       int `json:"best_streak"`
	TotalPerfectDays int `json:"total_perfect_days"`
}

// Streaks computes streak counters as of the calendar day of asOf in loc.
//
// The current streak walks backward from today. Today only counts once it has records;
// an empty today is skipped so a streak is not broken before the first dose of the day.
func Streaks(records []model.DoseRecord, asOf time.Time, loc *time.Location) StreakState {
	if loc == nil {
		loc = time.UTC
	}
	byDate := bucketDays(records, loc)

	var state StreakState
	for _, d := range byDate {
		if d.Perfect() {
			state.TotalPerfectDays++
		}
	}

	state.CurrentStreak = CurrentStreak(byDate, model.DateIn(asOf, loc))
	state.BestStreak = bestStreak(byDate)
	return state
}

// CurrentStreakOf is a convenience wrapper for callers that only need the current streak
func CurrentStreakOf(records []model.DoseRecord, asOf time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	return CurrentStreak(bucketDays(records, loc), model.DateIn(asOf, loc))
}

// CurrentStreak walks back from today over the day buckets
func CurrentStreak(byDate map[time.Time]*Day, today time.Time) int {
	day := today
	if _, ok := byDate[day]; !ok {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for i := 0; i < MaxStreakLookback; i++ {
		d, ok := byDate[day]
		if !ok || !d.Perfect() {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

func bestStreak(byDate map[time.Time]*Day) int {
	if len(byDate) == 0 {
		return 0
	}

	var first, last time.Time
	for date := range byDate {
		if first.IsZero() || date.Before(first) {
			first = date
		}
		if last.IsZero() || date.After(last) {
			last = date
		}
	}

	best, run := 0, 0
	for date := first; !date.After(last); date = date.AddDate(0, 0, 1) {
		d, ok := byDate[date]
		if !ok || !d.Perfect() {
			run = 0
			continue
		}
		run++
		if run > best {
			best = run
		}
	}
	return best
}
