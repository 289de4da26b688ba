package adherence

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
)

var day1 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func record(day int, hour int, status model.DoseStatus, late bool) model.DoseRecord {
	return model.DoseRecord{
		UserID:        "user-1",
		RegimenID:     "reg-1",
		ScheduledTime: day1.AddDate(0, 0, day-1).Add(time.Duration(hour) * time.Hour),
		Status:        status,
		TakenLate:     late,
	}
}

func TestAggregate_EmptyWindowHasZeroRates(t *testing.T) {
	stats := Aggregate(nil, NewWindow(day1, 7, time.UTC))

	assert.Equal(t, 0, stats.Total)
	for _, rate := range []float64{stats.TakenRate, stats.TakenOnTimeRate, stats.TakenLateRate, stats.MissedRate, stats.SkippedRate, stats.DelayedRate} {
		assert.Equal(t, 0.0, rate)
		assert.False(t, math.IsNaN(rate))
	}
}

func TestAggregate_CountsAndRates(t *testing.T) {
	records := []model.DoseRecord{
		record(1, 8, model.DoseStatusTaken, false),
		record(1, 20, model.DoseStatusTaken, true),
		record(2, 8, model.DoseStatusMissed, false),
		record(2, 20, model.DoseStatusSkipped, false),
		record(3, 8, model.DoseStatusDelayed, false),
		record(3, 20, model.DoseStatusTaken, false),
		record(10, 8, model.DoseStatusTaken, false), // outside window
	}

	stats := Aggregate(records, Window{Start: day1, End: day1.AddDate(0, 0, 2), Location: time.UTC})

	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 3, stats.Taken)
	assert.Equal(t, 2, stats.TakenOnTime)
	assert.Equal(t, 1, stats.TakenLate)
	assert.Equal(t, 1, stats.Missed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Delayed)
	assert.Equal(t, 50.0, stats.TakenRate)
	assert.Equal(t, 33.33, stats.TakenOnTimeRate)
	assert.Equal(t, 16.67, stats.TakenLateRate)
}

func TestStreaks_Scenario(t *testing.T) {
	// perfect days 1,2,3, missed day 4, perfect 5,6
	var records []model.DoseRecord
	for _, d := range []int{1, 2, 3, 5, 6} {
		records = append(records, record(d, 8, model.DoseStatusTaken, false))
	}
	records = append(records, record(4, 8, model.DoseStatusMissed, false))

	state := Streaks(records, day1.AddDate(0, 0, 5).Add(12*time.Hour), time.UTC)

	assert.Equal(t, 2, state.CurrentStreak)
	assert.Equal(t, 3, state.BestStreak)
	assert.Equal(t, 5, state.TotalPerfectDays)
}

func TestStreaks_EmptyTodayIsSkipped(t *testing.T) {
	records := []model.DoseRecord{
		record(1, 8, model.DoseStatusTaken, false),
		record(2, 8, model.DoseStatusSkipped, false),
	}

	state := Streaks(records, day1.AddDate(0, 0, 2), time.UTC)

	assert.Equal(t, 2, state.CurrentStreak)
}

func TestStreaks_MissedTodayResets(t *testing.T) {
	records := []model.DoseRecord{
		record(1, 8, model.DoseStatusTaken, false),
		record(2, 8, model.DoseStatusTaken, false),
		record(2, 20, model.DoseStatusMissed, false),
	}

	state := Streaks(records, day1.AddDate(0, 0, 1), time.UTC)

	assert.Equal(t, 0, state.CurrentStreak)
	assert.Equal(t, 1, state.BestStreak)
}

func TestStreaks_GapBreaksBest(t *testing.T) {
	records := []model.DoseRecord{
		record(1, 8, model.DoseStatusTaken, false),
		record(2, 8, model.DoseStatusTaken, false),
		record(4, 8, model.DoseStatusTaken, false),
	}

	state := Streaks(records, day1.AddDate(0, 0, 3), time.UTC)

	assert.Equal(t, 1, state.CurrentStreak)
	assert.Equal(t, 2, state.BestStreak)
}

func TestCalendar_EveryDateHasACell(t *testing.T) {
	records := []model.DoseRecord{
		record(1, 8, model.DoseStatusTaken, false),
		record(1, 20, model.DoseStatusTaken, false),
		record(2, 8, model.DoseStatusTaken, false),
		record(2, 20, model.DoseStatusMissed, false),
	}

	cells := Calendar(records, Window{Start: day1, End: day1.AddDate(0, 0, 2), Location: time.UTC})

	require.Len(t, cells, 3)
	assert.Equal(t, 4, cells[0].Level)
	assert.True(t, cells[0].Perfect)
	assert.Equal(t, 2, cells[1].Level)
	assert.False(t, cells[1].Perfect)
	assert.Equal(t, 0, cells[2].Level)
	assert.Equal(t, 0, cells[2].Total)
}

func TestTrend_BestTiesGoToLowestKey(t *testing.T) {
	records := []model.DoseRecord{
		record(1, 8, model.DoseStatusTaken, false),
		record(1, 20, model.DoseStatusTaken, false),
		record(2, 14, model.DoseStatusMissed, false),
	}

	best, ok := HourlyTrend(records, time.UTC).Best()

	require.True(t, ok)
	assert.Equal(t, 8, best.Key)
	assert.Equal(t, 100.0, best.TakenRate)

	worst, ok := HourlyTrend(records, time.UTC).Worst()
	require.True(t, ok)
	assert.Equal(t, 14, worst.Key)
}

func TestTrend_WeekdaySundayIsOne(t *testing.T) {
	sunday := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	records := []model.DoseRecord{{ScheduledTime: sunday, Status: model.DoseStatusTaken}}

	trend := WeekdayTrend(records, time.UTC)

	require.Len(t, trend, 7)
	assert.Equal(t, 1, trend[0].Key)
	assert.Equal(t, "Sunday", trend[0].Label)
	assert.Equal(t, 1, trend[0].Total)

	_, ok := WeekdayTrend(nil, time.UTC).Best()
	assert.False(t, ok)
}

// Property: on-time and late rates partition the taken rate
func TestProperty_OnTimeAndLatePartitionTaken(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	statuses := []model.DoseStatus{model.DoseStatusTaken, model.DoseStatusMissed, model.DoseStatusSkipped, model.DoseStatusDelayed}

	properties.Property("onTimeRate + lateRate == takenRate", prop.ForAll(
		func(kinds []int, lateness []bool) bool {
			var records []model.DoseRecord
			for i, k := range kinds {
				late := i < len(lateness) && lateness[i]
				records = append(records, record(1+i%5, 8, statuses[k], late))
			}

			stats := Aggregate(records, NewWindow(day1.AddDate(0, 0, 4), 5, time.UTC))

			if stats.TakenOnTime+stats.TakenLate != stats.Taken {
				return false
			}
			return math.Abs(stats.TakenOnTimeRate+stats.TakenLateRate-stats.TakenRate) <= 0.011
		},
		gen.SliceOf(gen.IntRange(0, len(statuses)-1)),
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("two windows over the same data are independent", prop.ForAll(
		func(n int) bool {
			var records []model.DoseRecord
			for i := 0; i < n; i++ {
				records = append(records, record(1+i%10, 8, statuses[i%len(statuses)], i%3 == 0))
			}
			w := NewWindow(day1.AddDate(0, 0, 9), 7, time.UTC)

			first := Aggregate(records, w)
			_ = Aggregate(records, NewWindow(day1.AddDate(0, 0, 9), 3, time.UTC))
			second := Aggregate(records, w)
			return first == second
		},
		gen.IntRange(0, 60),
	))

	properties.TestingRun(t)
}
