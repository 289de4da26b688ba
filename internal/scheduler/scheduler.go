package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/vcscsvcscs/adherence-engine/internal/clock"
	"github.com/vcscsvcscs/adherence-engine/internal/metrics"
	"github.com/vcscsvcscs/adherence-engine/internal/notify"
	"github.com/vcscsvcscs/adherence-engine/internal/schedule"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PreferenceProvider lists users the sweeps act on
type PreferenceProvider interface {
	ListNotifiable(ctx context.Context) ([]model.UserPreferences, error)
	ListAutoMiss(ctx context.Context) ([]model.UserPreferences, error)
}

// RegimenProvider lists the regimens of a user active at asOf
type RegimenProvider interface {
	ListActive(ctx context.Context, userID string, asOf time.Time) ([]model.Regimen, error)
}

// DoseFinder looks up a logged dose. A nil record with a nil error means none exists.
type DoseFinder interface {
	Find(ctx context.Context, key model.DoseKey) (*model.DoseRecord, error)
}

// MissRecorder writes a missed record for an unlogged dose. It reports false when the dose
// was logged concurrently.
type MissRecorder interface {
	AutoMiss(ctx context.Context, prefs model.UserPreferences, reg model.Regimen, at time.Time) (bool, error)
}

// SweepKind names a scheduler job
type SweepKind string

const (
	SweepUpcoming SweepKind = "upcoming"
	SweepOverdue  SweepKind = "overdue"
	SweepAutoMiss SweepKind = "automiss"
)

// Phase is the state of a sweep job
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseDispatching
)

func (p Phase) String() string {
	switch p {
	case PhaseScanning:
		return "scanning"
	case PhaseDispatching:
		return "dispatching"
	default:
		return "idle"
	}
}

// Config controls sweep cadence and windows
type Config struct {
	UpcomingInterval time.Duration
	OverdueInterval  time.Duration
	Lookback         time.Duration
	Grace            time.Duration
	MarkerTTL        time.Duration
	Workers          int
	AutoMissEnabled  bool
}

func (c Config) withDefaults() Config {
	if c.UpcomingInterval <= 0 {
		c.UpcomingInterval = 5 * time.Minute
	}
	if c.OverdueInterval <= 0 {
		c.OverdueInterval = 15 * time.Minute
	}
	if c.Lookback <= 0 {
		c.Lookback = 12 * time.Hour
	}
	if c.Grace < 0 {
		c.Grace = 0
	}
	if c.MarkerTTL <= 0 {
		c.MarkerTTL = 24 * time.Hour
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

// Deps are the collaborators of the scheduler. Misser is required only for auto-miss.
type Deps struct {
	Preferences PreferenceProvider
	Regimens    RegimenProvider
	Doses       DoseFinder
	Notifier    notify.Notifier
	Marker      Marker
	Misser      MissRecorder
	Metrics     *metrics.Metrics
}

// SweepReport summarises one sweep
type SweepReport struct {
	Kind       SweepKind     `json:"kind"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Users      int           `json:"users"`
	Candidates int           `json:"candidates"`
	Silenced   int           `json:"silenced"`
	Suppressed int           `json:"suppressed"`
	Dispatched int           `json:"dispatched"`
	Failed     int           `json:"failed"`
	AutoMissed int           `json:"auto_missed"`
	Skipped    bool          `json:"skipped"`

	errs *multierror.Error
}

// Err returns every failure of the sweep, or nil
func (r *SweepReport) Err() error {
	return r.errs.ErrorOrNil()
}

// Errors lists the failure messages of the sweep
func (r *SweepReport) Errors() []string {
	if r.errs == nil {
		return nil
	}
	out := make([]string, 0, len(r.errs.Errors))
	for _, err := range r.errs.Errors {
		out = append(out, err.Error())
	}
	return out
}

func (r *SweepReport) addErr(err error) {
	r.errs = multierror.Append(r.errs, err)
}

// Scheduler runs the reminder and auto-miss sweeps
type Scheduler struct {
	cfg     Config
	deps    Deps
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger

	phases map[SweepKind]*atomic.Int32
}

func New(cfg Config, deps Deps, clk clock.Clock, logger *zap.Logger) *Scheduler {
	if clk == nil {
		clk = clock.NewReal()
	}
	if deps.Marker == nil {
		deps.Marker = NewMemoryMarker(clk)
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Scheduler{
		cfg:     cfg.withDefaults(),
		deps:    deps,
		clock:   clk,
		metrics: m,
		logger:  logger,
		phases: map[SweepKind]*atomic.Int32{
			SweepUpcoming: new(atomic.Int32),
			SweepOverdue:  new(atomic.Int32),
			SweepAutoMiss: new(atomic.Int32),
		},
	}
}

// Phase reports what a sweep job is doing right now
func (s *Scheduler) Phase(kind SweepKind) Phase {
	p, ok := s.phases[kind]
	if !ok {
		return PhaseIdle
	}
	return Phase(p.Load())
}

func (s *Scheduler) setPhase(kind SweepKind, p Phase) {
	s.phases[kind].Store(int32(p))
}

// Run drives both tickers until ctx is cancelled. It returns after any in-flight sweep
// has finished the users it already started.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("reminder scheduler started",
		zap.Duration("upcoming_interval", s.cfg.UpcomingInterval),
		zap.Duration("overdue_interval", s.cfg.OverdueInterval),
		zap.Bool("automiss_enabled", s.cfg.AutoMissEnabled),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.loop(ctx, s.cfg.UpcomingInterval, func(ctx context.Context) {
			s.RunUpcoming(ctx)
		})
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, s.cfg.OverdueInterval, func(ctx context.Context) {
			s.RunOverdue(ctx)
			if s.cfg.AutoMissEnabled {
				s.RunAutoMiss(ctx)
			}
		})
	}()
	wg.Wait()

	s.logger.Info("reminder scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			tick(ctx)
		}
	}
}

// RunUpcoming reminds users of doses due within their lookahead
func (s *Scheduler) RunUpcoming(ctx context.Context) *SweepReport {
	return s.sweep(ctx, SweepUpcoming, s.deps.Preferences.ListNotifiable, s.remindUser)
}

// RunOverdue reminds users of past doses that are still unlogged
func (s *Scheduler) RunOverdue(ctx context.Context) *SweepReport {
	return s.sweep(ctx, SweepOverdue, s.deps.Preferences.ListNotifiable, s.remindUser)
}

// RunAutoMiss records unlogged doses older than the user's late window as missed
func (s *Scheduler) RunAutoMiss(ctx context.Context) *SweepReport {
	if s.deps.Misser == nil {
		return &SweepReport{Kind: SweepAutoMiss, StartedAt: s.clock.Now(), Skipped: true}
	}
	return s.sweep(ctx, SweepAutoMiss, s.deps.Preferences.ListAutoMiss, s.autoMissUser)
}

type userFunc func(ctx context.Context, kind SweepKind, prefs model.UserPreferences, now time.Time, report *SweepReport)

func (s *Scheduler) sweep(
	ctx context.Context,
	kind SweepKind,
	listUsers func(context.Context) ([]model.UserPreferences, error),
	process userFunc,
) *SweepReport {
	now := s.clock.Now()
	report := &SweepReport{Kind: kind, StartedAt: now}
	started := time.Now()

	s.setPhase(kind, PhaseScanning)
	defer s.setPhase(kind, PhaseIdle)
	defer func() {
		report.Duration = time.Since(started)
		s.metrics.SweepsTotal.WithLabelValues(string(kind)).Inc()
		s.metrics.SweepDuration.WithLabelValues(string(kind)).Observe(report.Duration.Seconds())
	}()

	users, err := listUsers(ctx)
	if err != nil {
		s.logger.Error("sweep skipped: failed to list users",
			zap.String("sweep", string(kind)),
			zap.Error(err),
		)
		s.metrics.SweepFailures.WithLabelValues(string(kind)).Inc()
		report.Skipped = true
		report.addErr(fmt.Errorf("failed to list users: %w", err))
		return report
	}

	s.setPhase(kind, PhaseDispatching)

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(s.cfg.Workers)

	for _, prefs := range users {
		if ctx.Err() != nil {
			s.logger.Info("sweep stopping before remaining users",
				zap.String("sweep", string(kind)),
			)
			break
		}
		g.Go(func() error {
			// a started user always finishes its dose list
			userCtx := context.WithoutCancel(ctx)
			local := &SweepReport{Kind: kind}
			process(userCtx, kind, prefs, now, local)

			mu.Lock()
			report.merge(local)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if report.Dispatched > 0 || report.Failed > 0 || report.AutoMissed > 0 {
		s.logger.Info("sweep completed",
			zap.String("sweep", string(kind)),
			zap.Int("users", report.Users),
			zap.Int("candidates", report.Candidates),
			zap.Int("dispatched", report.Dispatched),
			zap.Int("failed", report.Failed),
			zap.Int("auto_missed", report.AutoMissed),
		)
	}
	return report
}

func (r *SweepReport) merge(o *SweepReport) {
	r.Users++
	r.Candidates += o.Candidates
	r.Silenced += o.Silenced
	r.Suppressed += o.Suppressed
	r.Dispatched += o.Dispatched
	r.Failed += o.Failed
	r.AutoMissed += o.AutoMissed
	if o.errs != nil {
		r.errs = multierror.Append(r.errs, o.errs.Errors...)
	}
}

func (s *Scheduler) window(kind SweepKind, prefs model.UserPreferences, now time.Time) (time.Time, time.Time) {
	switch kind {
	case SweepUpcoming:
		return now, now.Add(prefs.Lookahead())
	case SweepOverdue:
		return now.Add(-s.cfg.Lookback), now.Add(-s.cfg.Grace)
	default:
		return now.Add(-s.cfg.Lookback), now.Add(-time.Duration(prefs.LateWindow()) * time.Minute)
	}
}

// inWindow applies the open ends: upcoming is (from, to], the others are [from, to)
func inWindow(kind SweepKind, at, from, to time.Time) bool {
	if kind == SweepUpcoming {
		return at.After(from) && !at.After(to)
	}
	return !at.Before(from) && at.Before(to)
}

// candidates expands the user's regimens over the sweep window and drops logged instants
func (s *Scheduler) candidates(ctx context.Context, kind SweepKind, prefs model.UserPreferences, now time.Time, report *SweepReport) []candidate {
	regimens, err := s.deps.Regimens.ListActive(ctx, prefs.UserID, now)
	if err != nil {
		s.logger.Error("failed to list regimens",
			zap.String("user_id", prefs.UserID),
			zap.String("sweep", string(kind)),
			zap.Error(err),
		)
		report.addErr(fmt.Errorf("user %s: failed to list regimens: %w", prefs.UserID, err))
		return nil
	}

	from, to := s.window(kind, prefs, now)
	if !from.Before(to) {
		return nil
	}
	loc := prefs.Location()

	var out []candidate
	for _, reg := range regimens {
		instants, err := schedule.Window(reg, from, to, loc)
		if err != nil {
			s.logger.Warn("failed to expand regimen",
				zap.String("user_id", prefs.UserID),
				zap.String("regimen_id", reg.ID),
				zap.Error(err),
			)
			report.addErr(fmt.Errorf("regimen %s: %w", reg.ID, err))
			continue
		}

		for _, at := range instants {
			if !inWindow(kind, at, from, to) {
				continue
			}
			key := model.DoseKey{UserID: prefs.UserID, RegimenID: reg.ID, ScheduledTime: at}
			rec, err := s.deps.Doses.Find(ctx, key)
			if err != nil {
				s.logger.Error("failed to probe dose record",
					zap.String("user_id", prefs.UserID),
					zap.String("regimen_id", reg.ID),
					zap.Time("scheduled_time", at),
					zap.Error(err),
				)
				report.addErr(fmt.Errorf("dose %s: %w", key, err))
				continue
			}
			if rec != nil {
				report.Silenced++
				continue
			}
			report.Candidates++
			s.metrics.Candidates.WithLabelValues(string(kind)).Inc()
			out = append(out, candidate{regimen: reg, at: at, key: key})
		}
	}
	return out
}

type candidate struct {
	regimen model.Regimen
	at      time.Time
	key     model.DoseKey
}

func (s *Scheduler) remindUser(ctx context.Context, kind SweepKind, prefs model.UserPreferences, now time.Time, report *SweepReport) {
	channels := prefs.Channels()
	if len(channels) == 0 {
		return
	}

	for _, c := range s.candidates(ctx, kind, prefs, now, report) {
		claimed, err := s.deps.Marker.Claim(ctx, string(kind)+":"+c.key.String(), s.cfg.MarkerTTL)
		if err != nil {
			s.logger.Error("failed to claim dispatch marker",
				zap.String("user_id", prefs.UserID),
				zap.String("regimen_id", c.regimen.ID),
				zap.Error(err),
			)
			report.addErr(err)
			continue
		}
		if !claimed {
			report.Suppressed++
			continue
		}

		payload := notify.Payload{
			Kind:           notify.Kind(kind),
			UserID:         prefs.UserID,
			RegimenID:      c.regimen.ID,
			MedicationName: c.regimen.MedicationName,
			Dosage:         c.regimen.Dosage,
			ScheduledTime:  c.at,
		}
		if kind == SweepOverdue {
			late := int(now.Sub(c.at).Minutes())
			payload.MinutesLate = &late
		}

		for _, ch := range channels {
			if err := s.deps.Notifier.Send(ctx, prefs.Recipient(), ch, payload); err != nil {
				s.logger.Warn("reminder delivery failed",
					zap.String("user_id", prefs.UserID),
					zap.String("regimen_id", c.regimen.ID),
					zap.String("channel", string(ch)),
					zap.Error(err),
				)
				s.metrics.Dispatches.WithLabelValues(string(kind), string(ch), "failed").Inc()
				report.Failed++
				report.addErr(err)
				continue
			}
			s.metrics.Dispatches.WithLabelValues(string(kind), string(ch), "sent").Inc()
			report.Dispatched++
		}
	}
}

func (s *Scheduler) autoMissUser(ctx context.Context, kind SweepKind, prefs model.UserPreferences, now time.Time, report *SweepReport) {
	for _, c := range s.candidates(ctx, kind, prefs, now, report) {
		inserted, err := s.deps.Misser.AutoMiss(ctx, prefs, c.regimen, c.at)
		if err != nil {
			s.logger.Error("failed to record missed dose",
				zap.String("user_id", prefs.UserID),
				zap.String("regimen_id", c.regimen.ID),
				zap.Time("scheduled_time", c.at),
				zap.Error(err),
			)
			report.addErr(err)
			continue
		}
		if inserted {
			report.AutoMissed++
			s.metrics.AutoMissed.Inc()
		}
	}
}
