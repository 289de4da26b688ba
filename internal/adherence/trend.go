package adherence

import (
	"time"

	"github.com/vcscsvcscs/adherence-engine/pkg/model"
)

// Bucket is the adherence of one hour-of-day or weekday
type Bucket struct {
	Key       int     `json:"key"`
	Label     string  `json:"label"`
	Total     int     `json:"total"`
	Taken     int     `json:"taken"`
	Missed    int     `json:"missed"`
	TakenRate float64 `json:"taken_rate"`
}

// Trend is an ordered set of buckets keyed ascending
type Trend []Bucket

// Best returns the bucket with the highest taken rate. Ties go to the lowest key and
// buckets without doses never win. ok is false when no bucket has data.
func (t Trend) Best() (Bucket, bool) {
	var best Bucket
	found := false
	for _, b := range t {
		if b.Total == 0 {
			continue
		}
		if !found || b.TakenRate > best.TakenRate {
			best = b
			found = true
		}
	}
	return best, found
}

// Worst returns the bucket with the lowest taken rate among buckets with data
func (t Trend) Worst() (Bucket, bool) {
	var worst Bucket
	found := false
	for _, b := range t {
		if b.Total == 0 {
			continue
		}
		if !found || b.TakenRate < worst.TakenRate {
			worst = b
			found = true
		}
	}
	return worst, found
}

// HourlyTrend groups records by the hour (0-23) of their scheduled time in loc
func HourlyTrend(records []model.DoseRecord, loc *time.Location) Trend {
	if loc == nil {
		loc = time.UTC
	}
	trend := make(Trend, 24)
	for h := range trend {
		trend[h] = Bucket{Key: h, Label: time.Date(2000, 1, 1, h, 0, 0, 0, time.UTC).Format("15:04")}
	}
	for _, r := range records {
		h := r.ScheduledTime.In(loc).Hour()
		count(&trend[h], r)
	}
	return finish(trend)
}

// WeekdayTrend groups records by weekday of their scheduled time in loc, 1-7 with Sunday = 1
func WeekdayTrend(records []model.DoseRecord, loc *time.Location) Trend {
	if loc == nil {
		loc = time.UTC
	}
	trend := make(Trend, 7)
	for i := range trend {
		trend[i] = Bucket{Key: i + 1, Label: time.Weekday(i).String()}
	}
	for _, r := range records {
		wd := int(r.ScheduledTime.In(loc).Weekday())
		count(&trend[wd], r)
	}
	return finish(trend)
}

func count(b *Bucket, r model.DoseRecord) {
	b.Total++
	switch r.Status {
	case model.DoseStatusTaken:
		b.Taken++
	case model.DoseStatusMissed:
		b.Missed++
	}
}

func finish(t Trend) Trend {
	for i := range t {
		t[i].TakenRate = Rate(t[i].Taken, t[i].Total)
	}
	return t
}
