package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vcscsvcscs/adherence-engine/pkg/model"
)

// ErrInvalidSchedule is returned for a custom regimen whose schedule is empty or unparsable
var ErrInvalidSchedule = errors.New("invalid custom schedule")

type clockTime struct {
	hour   int
	minute int
}

var (
	morning       = []clockTime{{8, 0}}
	twiceDaily    = []clockTime{{8, 0}, {20, 0}}
	threeDaily    = []clockTime{{8, 0}, {14, 0}, {20, 0}}
	fourDaily     = []clockTime{{8, 0}, {12, 0}, {16, 0}, {20, 0}}
	everyOtherDay = 2
	weekly        = 7
)

// Expand returns the scheduled instants of reg on the calendar day of date, built in
// date's location and sorted ascending. It does not consult IsActive, StartDate or
// EndDate except for the day modulo of every_other_day and weekly regimens.
func Expand(reg model.Regimen, date time.Time) ([]time.Time, error) {
	var slots []clockTime

	switch reg.Frequency {
	case model.FrequencyOnceDaily:
		slots = morning
	case model.FrequencyTwiceDaily:
		slots = twiceDaily
	case model.FrequencyThreeTimesDaily:
		slots = threeDaily
	case model.FrequencyFourTimesDaily:
		slots = fourDaily
	case model.FrequencyEveryOtherDay:
		if !onCycle(reg.StartDate, date, everyOtherDay) {
			return nil, nil
		}
		slots = morning
	case model.FrequencyWeekly:
		if !onCycle(reg.StartDate, date, weekly) {
			return nil, nil
		}
		slots = morning
	case model.FrequencyCustom:
		parsed, err := parseCustom(reg.CustomSchedule)
		if err != nil {
			return nil, err
		}
		slots = parsed
	case model.FrequencyAsNeeded:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown frequency %q: %w", reg.Frequency, ErrInvalidSchedule)
	}

	return instants(date, slots), nil
}

// ExpandActive is Expand restricted to days on which the regimen is active
func ExpandActive(reg model.Regimen, date time.Time) ([]time.Time, error) {
	if !reg.ActiveOn(date) {
		return nil, nil
	}
	return Expand(reg, date)
}

// Window returns every active instant of reg within [from, to], evaluated on the calendar
// days of loc. Instants are sorted ascending.
func Window(reg model.Regimen, from, to time.Time, loc *time.Location) ([]time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if to.Before(from) {
		return nil, nil
	}

	var result []time.Time
	last := model.DateIn(to, loc)
	for day := model.DateIn(from, loc); !day.After(last); day = day.AddDate(0, 0, 1) {
		times, err := ExpandActive(reg, day)
		if err != nil {
			return nil, err
		}
		for _, t := range times {
			if t.Before(from) || t.After(to) {
				continue
			}
			result = append(result, t)
		}
	}
	return result, nil
}

// DaysBetween returns the whole calendar-day difference b - a, each taken in its own location
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func onCycle(start, date time.Time, period int) bool {
	diff := DaysBetween(start.In(date.Location()), date)
	if diff < 0 {
		return false
	}
	return diff%period == 0
}

func parseCustom(entries []model.ScheduleEntry) ([]clockTime, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("custom schedule has no entries: %w", ErrInvalidSchedule)
	}

	slots := make([]clockTime, 0, len(entries))
	for _, e := range entries {
		t, err := time.Parse("15:04", e.Time)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schedule time %q: %w", e.Time, ErrInvalidSchedule)
		}
		slots = append(slots, clockTime{hour: t.Hour(), minute: t.Minute()})
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].hour != slots[j].hour {
			return slots[i].hour < slots[j].hour
		}
		return slots[i].minute < slots[j].minute
	})
	return slots, nil
}

func instants(date time.Time, slots []clockTime) []time.Time {
	y, m, d := date.Date()
	out := make([]time.Time, 0, len(slots))
	for _, s := range slots {
		out = append(out, time.Date(y, m, d, s.hour, s.minute, 0, 0, date.Location()))
	}
	return out
}
