package adherence

import (
	"math"
	"sort"
	"time"

	"github.com/vcscsvcscs/adherence-engine/pkg/model"
)

// Window is an inclusive range of calendar dates observed in Location
type Window struct {
	Start    time.Time
	End      time.Time
	Location *time.Location
}

// NewWindow returns the window of the given number of days ending on the calendar day of asOf
func NewWindow(asOf time.Time, days int, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	if days < 1 {
		days = 1
	}
	end := model.DateIn(asOf, loc)
	return Window{Start: end.AddDate(0, 0, -(days - 1)), End: end, Location: loc}
}

func (w Window) loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// Contains reports whether the calendar day of t falls inside the window
func (w Window) Contains(t time.Time) bool {
	loc := w.loc()
	day := model.DateIn(t, loc)
	return !day.Before(model.DateIn(w.Start, loc)) && !day.After(model.DateIn(w.End, loc))
}

// Bounds returns the instants [from, to) covering the window, suitable for store queries
func (w Window) Bounds() (time.Time, time.Time) {
	loc := w.loc()
	return model.DateIn(w.Start, loc), model.DateIn(w.End, loc).AddDate(0, 0, 1)
}

// Days returns the number of calendar days in the window
func (w Window) Days() int {
	loc := w.loc()
	start, end := model.DateIn(w.Start, loc), model.DateIn(w.End, loc)
	if end.Before(start) {
		return 0
	}
	n := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

// Stats is the adherence summary of a window
type Stats struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	Total       int `json:"total"`
	Taken       int `json:"taken"`
	TakenOnTime int `json:"taken_on_time"`
	TakenLate   int `json:"taken_late"`
	Missed      int `json:"missed"`
	Skipped     int `json:"skipped"`
	Delayed     int `json:"delayed"`

	TakenRate       float64 `json:"taken_rate"`
	TakenOnTimeRate float64 `json:"taken_on_time_rate"`
	TakenLateRate   float64 `json:"taken_late_rate"`
	MissedRate      float64 `json:"missed_rate"`
	SkippedRate     float64 `json:"skipped_rate"`
	DelayedRate     float64 `json:"delayed_rate"`
}

type counts struct {
	total, taken, onTime, late, missed, skipped, delayed int
}

func (c *counts) add(r model.DoseRecord) {
	c.total++
	switch r.Status {
	case model.DoseStatusTaken:
		c.taken++
		if r.TakenLate {
			c.late++
		} else {
			c.onTime++
		}
	case model.DoseStatusMissed:
		c.missed++
	case model.DoseStatusSkipped:
		c.skipped++
	case model.DoseStatusDelayed:
		c.delayed++
	}
}

// Aggregate counts the records scheduled inside w and derives percentage rates.
// An empty window yields zero rates.
func Aggregate(records []model.DoseRecord, w Window) Stats {
	var c counts
	for _, r := range records {
		if w.Contains(r.ScheduledTime) {
			c.add(r)
		}
	}

	loc := w.loc()
	return Stats{
		WindowStart:     model.DateIn(w.Start, loc),
		WindowEnd:       model.DateIn(w.End, loc),
		Total:           c.total,
		Taken:           c.taken,
		TakenOnTime:     c.onTime,
		TakenLate:       c.late,
		Missed:          c.missed,
		Skipped:         c.skipped,
		Delayed:         c.delayed,
		TakenRate:       Rate(c.taken, c.total),
		TakenOnTimeRate: Rate(c.onTime, c.total),
		TakenLateRate:   Rate(c.late, c.total),
		MissedRate:      Rate(c.missed, c.total),
		SkippedRate:     Rate(c.skipped, c.total),
		DelayedRate:     Rate(c.delayed, c.total),
	}
}

// Rate returns count/total as a percentage rounded to two decimals, or 0 when total is 0
func Rate(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*10000) / 100
}

// Day is the per-calendar-date bucket of dose records
type Day struct {
	Date    time.Time `json:"date"`
	Total   int       `json:"total"`
	Taken   int       `json:"taken"`
	Missed  int       `json:"missed"`
	Skipped int       `json:"skipped"`
	Delayed int       `json:"delayed"`
}

// Perfect reports whether the day has at least one dose and none missed
func (d Day) Perfect() bool {
	return d.Total > 0 && d.Missed == 0
}

// Days buckets records by the calendar date of their scheduled time in loc, ascending
func Days(records []model.DoseRecord, loc *time.Location) []Day {
	byDate := bucketDays(records, loc)
	days := make([]Day, 0, len(byDate))
	for _, d := range byDate {
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}

func bucketDays(records []model.DoseRecord, loc *time.Location) map[time.Time]*Day {
	if loc == nil {
		loc = time.UTC
	}
	byDate := make(map[time.Time]*Day)
	for _, r := range records {
		date := model.DateIn(r.ScheduledTime, loc)
		d, ok := byDate[date]
		if !ok {
			d = &Day{Date: date}
			byDate[date] = d
		}
		d.Total++
		switch r.Status {
		case model.DoseStatusTaken:
			d.Taken++
		case model.DoseStatusMissed:
			d.Missed++
		case model.DoseStatusSkipped:
			d.Skipped++
		case model.DoseStatusDelayed:
			d.Delayed++
		}
	}
	return byDate
}

// CalendarDay is one heatmap cell
type CalendarDay struct {
	Date      time.Time `json:"date"`
	Total     int       `json:"total"`
	Taken     int       `json:"taken"`
	TakenRate float64   `json:"taken_rate"`
	Level     int       `json:"level"`
	Perfect   bool      `json:"perfect"`
}

// Calendar returns a cell for every date in w. Level is 0 for days without taken doses,
// then 1 (<50%), 2 (<75%), 3 (<100%) and 4 (all taken).
func Calendar(records []model.DoseRecord, w Window) []CalendarDay {
	loc := w.loc()
	byDate := bucketDays(records, loc)

	start, end := model.DateIn(w.Start, loc), model.DateIn(w.End, loc)
	var cells []CalendarDay
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		cell := CalendarDay{Date: date}
		if d, ok := byDate[date]; ok {
			cell.Total = d.Total
			cell.Taken = d.Taken
			cell.TakenRate = Rate(d.Taken, d.Total)
			cell.Level = level(cell.TakenRate)
			cell.Perfect = d.Perfect()
		}
		cells = append(cells, cell)
	}
	return cells
}

func level(rate float64) int {
	switch {
	case rate <= 0:
		return 0
	case rate < 50:
		return 1
	case rate < 75:
		return 2
	case rate < 100:
		return 3
	default:
		return 4
	}
}
