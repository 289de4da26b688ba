package achievement

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func find(t *testing.T, all []Achievement, id string) Achievement {
	t.Helper()
	for _, a := range all {
		if a.ID == id {
			return a
		}
	}
	require.Failf(t, "achievement not found", "id %s", id)
	return Achievement{}
}

func TestEvaluate_PerfectTimingUnlocksOnTenth(t *testing.T) {
	nine := find(t, Evaluate(Input{TakenCount: 9, OnTimeCount: 9}), "perfect_timing")
	assert.False(t, nine.Unlocked)
	assert.Equal(t, 9.0, nine.Progress)

	ten := find(t, Evaluate(Input{TakenCount: 10, OnTimeCount: 10}), "perfect_timing")
	assert.True(t, ten.Unlocked)
	assert.Equal(t, 10.0, ten.Target)
}

func TestEvaluate_Streaks(t *testing.T) {
	all := Evaluate(Input{TakenCount: 40, CurrentStreak: 8})

	assert.True(t, find(t, all, "first_dose").Unlocked)
	assert.True(t, find(t, all, "week_streak").Unlocked)
	month := find(t, all, "month_streak")
	assert.False(t, month.Unlocked)
	assert.Equal(t, 8.0, month.Progress)
	assert.False(t, find(t, all, "dose_century").Unlocked)
}

func TestEvaluate_ConsistencyNeedsData(t *testing.T) {
	noData := Evaluate(Input{WeeklyRate: 100, MonthlyRate: 100})
	assert.False(t, find(t, noData, "weekly_consistency").Unlocked)
	assert.False(t, find(t, noData, "monthly_consistency").Unlocked)

	withData := Evaluate(Input{WeeklyRate: 92.5, WeeklyTotal: 14, MonthlyRate: 94.99, MonthlyTotal: 60})
	assert.True(t, find(t, withData, "weekly_consistency").Unlocked)
	assert.False(t, find(t, withData, "monthly_consistency").Unlocked)
	assert.Len(t, Unlocked(withData), 1)
}

// Property: evaluation is a pure function of its input
func TestProperty_EvaluateIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("evaluate(in) == evaluate(in)", prop.ForAll(
		func(taken, onTime, streak int) bool {
			in := Input{TakenCount: taken, OnTimeCount: onTime, CurrentStreak: streak}
			a, b := Evaluate(in), Evaluate(in)
			if len(a) != len(b) {
				return false
			}
			for i := range a {
				if a[i] != b[i] {
					return false
				}
				if a[i].Progress > a[i].Target {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 200),
		gen.IntRange(0, 200),
		gen.IntRange(0, 400),
	))

	properties.TestingRun(t)
}
