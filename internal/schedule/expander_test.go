package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
)

func regimen(freq model.Frequency) model.Regimen {
	return model.Regimen{
		ID:        "reg-1",
		UserID:    "user-1",
		Frequency: freq,
		StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
}

func hm(date time.Time, h, m int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, date.Location())
}

func TestExpand_FixedFrequencies(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		freq     model.Frequency
		expected []time.Time
	}{
		{"once daily", model.FrequencyOnceDaily, []time.Time{hm(day, 8, 0)}},
		{"twice daily", model.FrequencyTwiceDaily, []time.Time{hm(day, 8, 0), hm(day, 20, 0)}},
		{"three times daily", model.FrequencyThreeTimesDaily, []time.Time{hm(day, 8, 0), hm(day, 14, 0), hm(day, 20, 0)}},
		{"four times daily", model.FrequencyFourTimesDaily, []time.Time{hm(day, 8, 0), hm(day, 12, 0), hm(day, 16, 0), hm(day, 20, 0)}},
		{"as needed", model.FrequencyAsNeeded, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(regimen(tt.freq), day)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExpand_CustomIsSorted(t *testing.T) {
	reg := regimen(model.FrequencyCustom)
	reg.CustomSchedule = []model.ScheduleEntry{
		{Time: "21:30", Label: "night"},
		{Time: "07:15", Label: "morning"},
		{Time: "13:00"},
	}
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	got, err := Expand(reg, day)

	require.NoError(t, err)
	assert.Equal(t, []time.Time{hm(day, 7, 15), hm(day, 13, 0), hm(day, 21, 30)}, got)
}

func TestExpand_CustomInvalid(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	empty := regimen(model.FrequencyCustom)
	_, err := Expand(empty, day)
	assert.True(t, errors.Is(err, ErrInvalidSchedule))

	bad := regimen(model.FrequencyCustom)
	bad.CustomSchedule = []model.ScheduleEntry{{Time: "25:99"}}
	_, err = Expand(bad, day)
	assert.True(t, errors.Is(err, ErrInvalidSchedule))
}

func TestExpand_EveryOtherDayAlternates(t *testing.T) {
	reg := regimen(model.FrequencyEveryOtherDay)

	for i := 0; i < 10; i++ {
		day := reg.StartDate.AddDate(0, 0, i)
		got, err := Expand(reg, day)
		require.NoError(t, err)
		if i%2 == 0 {
			assert.Len(t, got, 1, "day %d", i)
		} else {
			assert.Empty(t, got, "day %d", i)
		}
	}
}

func TestExpand_WeeklyBeforeStartIsEmpty(t *testing.T) {
	reg := regimen(model.FrequencyWeekly)

	got, err := Expand(reg, reg.StartDate.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Expand(reg, reg.StartDate.AddDate(0, 0, 14))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestExpandActive_RespectsDateRangeAndFlag(t *testing.T) {
	reg := regimen(model.FrequencyOnceDaily)
	end := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	reg.EndDate = &end

	got, err := ExpandActive(reg, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = ExpandActive(reg, time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, got)

	reg.IsActive = false
	got, err = ExpandActive(reg, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExpand_UsesDateLocation(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	reg := regimen(model.FrequencyOnceDaily)
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)

	got, err := Expand(reg, day)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC), got[0].UTC())
}

func TestWindow_CrossesMidnight(t *testing.T) {
	reg := regimen(model.FrequencyTwiceDaily)
	from := time.Date(2025, 3, 10, 19, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

	got, err := Window(reg, from, to, time.UTC)

	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC),
	}, got)
}

// Property: expanding the same regimen and day twice gives equal results
func TestProperty_ExpandIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	freqs := []model.Frequency{
		model.FrequencyOnceDaily, model.FrequencyTwiceDaily, model.FrequencyThreeTimesDaily,
		model.FrequencyFourTimesDaily, model.FrequencyEveryOtherDay, model.FrequencyWeekly,
		model.FrequencyAsNeeded,
	}

	properties.Property("expand(r, d) == expand(r, d)", prop.ForAll(
		func(freqIdx int, offset int) bool {
			reg := regimen(freqs[freqIdx])
			day := reg.StartDate.AddDate(0, 0, offset)

			first, err1 := Expand(reg, day)
			second, err2 := Expand(reg, day)
			if err1 != nil || err2 != nil {
				return false
			}
			if len(first) != len(second) {
				return false
			}
			for i := range first {
				if !first[i].Equal(second[i]) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, len(freqs)-1),
		gen.IntRange(-30, 400),
	))

	properties.TestingRun(t)
}

// Property: every_other_day and weekly are non-empty exactly on start + k*period
func TestProperty_CycleFollowsModulo(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("cycle regimens fire on the modulo day", prop.ForAll(
		func(weeklyFreq bool, offset int) bool {
			freq, period := model.FrequencyEveryOtherDay, 2
			if weeklyFreq {
				freq, period = model.FrequencyWeekly, 7
			}
			reg := regimen(freq)

			got, err := Expand(reg, reg.StartDate.AddDate(0, 0, offset))
			if err != nil {
				return false
			}
			return (len(got) == 1) == (offset%period == 0)
		},
		gen.Bool(),
		gen.IntRange(0, 365),
	))

	properties.TestingRun(t)
}
