package handler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vcscsvcscs/adherence-engine/internal/achievement"
	"github.com/vcscsvcscs/adherence-engine/internal/adherence"
	"github.com/vcscsvcscs/adherence-engine/internal/audit"
	"github.com/vcscsvcscs/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/adherence-engine/internal/scheduler"
	"github.com/vcscsvcscs/adherence-engine/internal/service"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
)

type MockDoseService struct {
	mock.Mock
}

func (m *MockDoseService) LogDose(ctx context.Context, req service.LogDoseRequest) (*service.LogResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*service.LogResult)
	return res, args.Error(1)
}

func (m *MockDoseService) QuickMark(ctx context.Context, req service.QuickMarkRequest) (*service.LogResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*service.LogResult)
	return res, args.Error(1)
}

func (m *MockDoseService) CorrectDose(ctx context.Context, userID, doseID string, req service.CorrectDoseRequest, actor service.Actor) (*service.LogResult, error) {
	args := m.Called(ctx, userID, doseID, req, actor)
	res, _ := args.Get(0).(*service.LogResult)
	return res, args.Error(1)
}

func (m *MockDoseService) ListDoses(ctx context.Context, q repository.DoseQuery) ([]model.DoseRecord, error) {
	args := m.Called(ctx, q)
	records, _ := args.Get(0).([]model.DoseRecord)
	return records, args.Error(1)
}

func (m *MockDoseService) DaySchedule(ctx context.Context, userID string, date time.Time) ([]service.DayEntry, error) {
	args := m.Called(ctx, userID, date)
	entries, _ := args.Get(0).([]service.DayEntry)
	return entries, args.Error(1)
}

type MockAdherenceService struct {
	mock.Mock
}

func (m *MockAdherenceService) Stats(ctx context.Context, userID string, days int) (adherence.Stats, error) {
	args := m.Called(ctx, userID, days)
	return args.Get(0).(adherence.Stats), args.Error(1)
}

func (m *MockAdherenceService) Calendar(ctx context.Context, userID string, days int) ([]adherence.CalendarDay, error) {
	args := m.Called(ctx, userID, days)
	cal, _ := args.Get(0).([]adherence.CalendarDay)
	return cal, args.Error(1)
}

func (m *MockAdherenceService) Trends(ctx context.Context, userID string, days int) (service.TrendReport, error) {
	args := m.Called(ctx, userID, days)
	return args.Get(0).(service.TrendReport), args.Error(1)
}

func (m *MockAdherenceService) Streaks(ctx context.Context, userID string) (adherence.StreakState, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(adherence.StreakState), args.Error(1)
}

func (m *MockAdherenceService) Achievements(ctx context.Context, userID string) ([]achievement.Achievement, error) {
	args := m.Called(ctx, userID)
	all, _ := args.Get(0).([]achievement.Achievement)
	return all, args.Error(1)
}

type MockRewardsService struct {
	mock.Mock
}

func (m *MockRewardsService) Summary(ctx context.Context, userID string) (*service.RewardsSummary, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*service.RewardsSummary)
	return s, args.Error(1)
}

func (m *MockRewardsService) DailyCheckIn(ctx context.Context, userID string, actor service.Actor) (*model.BonusEntry, error) {
	args := m.Called(ctx, userID, actor)
	e, _ := args.Get(0).(*model.BonusEntry)
	return e, args.Error(1)
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) Archive(ctx context.Context, userID string, days int, actor service.Actor) (*service.ArchivedReport, error) {
	args := m.Called(ctx, userID, days, actor)
	r, _ := args.Get(0).(*service.ArchivedReport)
	return r, args.Error(1)
}

func (m *MockReportService) Fetch(ctx context.Context, userID, name string) ([]byte, error) {
	args := m.Called(ctx, userID, name)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type MockSweepRunner struct {
	mock.Mock
}

func (m *MockSweepRunner) RunUpcoming(ctx context.Context) *scheduler.SweepReport {
	return m.Called(ctx).Get(0).(*scheduler.SweepReport)
}

func (m *MockSweepRunner) RunOverdue(ctx context.Context) *scheduler.SweepReport {
	return m.Called(ctx).Get(0).(*scheduler.SweepReport)
}

func (m *MockSweepRunner) RunAutoMiss(ctx context.Context) *scheduler.SweepReport {
	return m.Called(ctx).Get(0).(*scheduler.SweepReport)
}

func (m *MockSweepRunner) Phase(kind scheduler.SweepKind) scheduler.Phase {
	return m.Called(kind).Get(0).(scheduler.Phase)
}

type MockAuditTrail struct {
	mock.Mock
}

func (m *MockAuditTrail) List(ctx context.Context, userID string, limit int) ([]audit.Entry, error) {
	args := m.Called(ctx, userID, limit)
	entries, _ := args.Get(0).([]audit.Entry)
	return entries, args.Error(1)
}

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var (
	_ DoseService      = (*service.DoseService)(nil)
	_ AdherenceService = (*service.AdherenceService)(nil)
	_ RewardsService   = (*service.RewardsService)(nil)
	_ ReportService    = (*service.ReportService)(nil)
	_ SweepRunner      = (*scheduler.Scheduler)(nil)
	_ AuditTrail       = (*audit.Logger)(nil)
)
