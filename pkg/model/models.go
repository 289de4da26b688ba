package model

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Frequency is how often a regimen schedules a dose
type Frequency string

const (
	FrequencyOnceDaily       Frequency = "once_daily"
	FrequencyTwiceDaily      Frequency = "twice_daily"
	FrequencyThreeTimesDaily Frequency = "three_times_daily"
	FrequencyFourTimesDaily  Frequency = "four_times_daily"
	FrequencyEveryOtherDay   Frequency = "every_other_day"
	FrequencyWeekly          Frequency = "weekly"
	FrequencyAsNeeded        Frequency = "as_needed"
	FrequencyCustom          Frequency = "custom"
)

// Valid reports whether f is one of the known frequencies
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnceDaily, FrequencyTwiceDaily, FrequencyThreeTimesDaily, FrequencyFourTimesDaily,
		FrequencyEveryOtherDay, FrequencyWeekly, FrequencyAsNeeded, FrequencyCustom:
		return true
	}
	return false
}

// ScheduleEntry is a time-of-day ("HH:MM") slot of a custom schedule
type ScheduleEntry struct {
	Time  string `json:"time"`
	Label string `json:"label,omitempty"`
}

// Dosage is the amount taken per dose
type Dosage struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

func (d Dosage) String() string {
	amount := strconv.FormatFloat(d.Amount, 'f', -1, 64)
	if d.Unit == "" {
		return amount
	}
	return fmt.Sprintf("%s %s", amount, d.Unit)
}

// Regimen is a medication schedule owned by a user. Regimens are created and edited
// elsewhere; this service only reads them.
type Regimen struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	MedicationID   string          `json:"medication_id"`
	MedicationName string          `json:"medication_name"`
	Dosage         Dosage          `json:"dosage"`
	Frequency      Frequency       `json:"frequency"`
	CustomSchedule []ScheduleEntry `json:"custom_schedule,omitempty"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        *time.Time      `json:"end_date,omitempty"`
	IsActive       bool            `json:"is_active"`
}

// ActiveOn reports whether the regimen schedules doses on the calendar day of date.
// StartDate and EndDate are compared as calendar days in date's location.
func (r Regimen) ActiveOn(date time.Time) bool {
	if !r.IsActive {
		return false
	}
	day := DateOf(date)
	if day.Before(DateIn(r.StartDate, date.Location())) {
		return false
	}
	if r.EndDate != nil && day.After(DateIn(*r.EndDate, date.Location())) {
		return false
	}
	return true
}

// DoseStatus is the logged outcome of a scheduled dose
type DoseStatus string

const (
	DoseStatusPending DoseStatus = "pending"
	DoseStatusTaken   DoseStatus = "taken"
	DoseStatusMissed  DoseStatus = "missed"
	DoseStatusSkipped DoseStatus = "skipped"
	DoseStatusDelayed DoseStatus = "delayed"
)

// Valid reports whether s can be persisted. Pending only exists as a computed view.
func (s DoseStatus) Valid() bool {
	switch s {
	case DoseStatusTaken, DoseStatusMissed, DoseStatusSkipped, DoseStatusDelayed:
		return true
	}
	return false
}

// DoseSource records which path created a dose record
type DoseSource string

const (
	DoseSourceManual    DoseSource = "manual"
	DoseSourceQuick     DoseSource = "quick"
	DoseSourceScheduler DoseSource = "scheduler"
)

// DoseKey identifies a dose occurrence. At most one DoseRecord exists per key.
type DoseKey struct {
	UserID        string
	RegimenID     string
	ScheduledTime time.Time
}

func (k DoseKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.UserID, k.RegimenID, k.ScheduledTime.Unix())
}

// Rewards are the points attached to a dose when it is finalized
type Rewards struct {
	Points         int    `json:"points"`
	BonusPoints    int    `json:"bonus_points"`
	Streak         int    `json:"streak"`
	ReasonForBonus string `json:"reason_for_bonus,omitempty"`
}

// Total returns points plus bonus points
func (r Rewards) Total() int {
	return r.Points + r.BonusPoints
}

// DoseRecord is a logged dose
type DoseRecord struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	RegimenID     string     `json:"regimen_id"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	ActualTime    *time.Time `json:"actual_time,omitempty"`
	Status        DoseStatus `json:"status"`
	Dosage        Dosage     `json:"dosage"`
	MinutesLate   int        `json:"minutes_late"`
	TakenLate     bool       `json:"taken_late"`
	WithinWindow  bool       `json:"within_window"`
	Rewards       Rewards    `json:"rewards"`
	Source        DoseSource `json:"source"`
	Notes         *string    `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Key returns the identity triple of the record
func (d DoseRecord) Key() DoseKey {
	return DoseKey{UserID: d.UserID, RegimenID: d.RegimenID, ScheduledTime: d.ScheduledTime}
}

// DoseSlot is one scheduled instant of a day joined with its record, if any.
// A slot without a record is pending.
type DoseSlot struct {
	RegimenID     string      `json:"regimen_id"`
	ScheduledTime time.Time   `json:"scheduled_time"`
	Record        *DoseRecord `json:"record,omitempty"`
}

// Scheduled builds a slot with no logged record
func Scheduled(regimenID string, at time.Time) DoseSlot {
	return DoseSlot{RegimenID: regimenID, ScheduledTime: at}
}

// Logged builds a slot backed by a record
func Logged(rec DoseRecord) DoseSlot {
	return DoseSlot{RegimenID: rec.RegimenID, ScheduledTime: rec.ScheduledTime, Record: &rec}
}

// IsLogged reports whether the slot has a record
func (s DoseSlot) IsLogged() bool {
	return s.Record != nil
}

// Status returns the record status, or pending for unlogged slots
func (s DoseSlot) Status() DoseStatus {
	if s.Record == nil {
		return DoseStatusPending
	}
	return s.Record.Status
}

// Channel is a notification transport
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

const (
	DefaultLookaheadMinutes  = 30
	MinLookaheadMinutes      = 15
	MaxLookaheadMinutes      = 60
	DefaultLateWindowMinutes = 240
)

// UserPreferences holds per-user notification settings
type UserPreferences struct {
	UserID               string `json:"user_id"`
	Email                string `json:"email,omitempty"`
	TelegramChatID       int64  `json:"telegram_chat_id,omitempty"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	EmailEnabled         bool   `json:"email_enabled"`
	PushEnabled          bool   `json:"push_enabled"`
	AutoMissEnabled      bool   `json:"auto_miss_enabled"`
	LookaheadMinutes     int    `json:"lookahead_minutes"`
	LateWindowMinutes    int    `json:"late_window_minutes"`
	Timezone             string `json:"timezone"`
}

// locations caches resolved zones by name; unknown names map to UTC
var locations sync.Map

// Location resolves the user's timezone, falling back to UTC. Each zone is loaded once
// per process.
func (p UserPreferences) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	if loc, ok := locations.Load(p.Timezone); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		loc = time.UTC
	}
	actual, _ := locations.LoadOrStore(p.Timezone, loc)
	return actual.(*time.Location)
}

// Lookahead returns the upcoming-reminder horizon, clamped to 15..60 minutes
func (p UserPreferences) Lookahead() time.Duration {
	minutes := p.LookaheadMinutes
	if minutes <= 0 {
		minutes = DefaultLookaheadMinutes
	}
	if minutes < MinLookaheadMinutes {
		minutes = MinLookaheadMinutes
	}
	if minutes > MaxLookaheadMinutes {
		minutes = MaxLookaheadMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// LateWindow returns the lateness after which a taken dose is outside the window
func (p UserPreferences) LateWindow() int {
	if p.LateWindowMinutes <= 0 {
		return DefaultLateWindowMinutes
	}
	return p.LateWindowMinutes
}

// Channels lists the enabled transports
func (p UserPreferences) Channels() []Channel {
	if !p.NotificationsEnabled {
		return nil
	}
	var channels []Channel
	if p.EmailEnabled && p.Email != "" {
		channels = append(channels, ChannelEmail)
	}
	if p.PushEnabled && p.TelegramChatID != 0 {
		channels = append(channels, ChannelPush)
	}
	return channels
}

// Recipient returns the delivery addresses of the user
func (p UserPreferences) Recipient() Recipient {
	return Recipient{UserID: p.UserID, Email: p.Email, TelegramChatID: p.TelegramChatID}
}

// Recipient is who a notification is delivered to
type Recipient struct {
	UserID         string
	Email          string
	TelegramChatID int64
}

// BonusKind classifies a manually granted bonus
type BonusKind string

const (
	BonusKindDailyCheckIn BonusKind = "daily_check_in"
)

// BonusEntry is a ledger row for points granted outside dose finalization
type BonusEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      BonusKind `json:"kind"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	GrantDate time.Time `json:"grant_date"`
	CreatedAt time.Time `json:"created_at"`
}

// DateOf truncates t to midnight of its calendar day in t's location
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DateIn returns midnight of t's calendar day as observed in loc
func DateIn(t time.Time, loc *time.Location) time.Time {
	return DateOf(t.In(loc))
}
