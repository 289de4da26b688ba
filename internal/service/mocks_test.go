package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vcscsvcscs/adherence-engine/internal/audit"
	"github.com/vcscsvcscs/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
)

type MockDoseStore struct {
	mock.Mock
}

func (m *MockDoseStore) Find(ctx context.Context, key model.DoseKey) (*model.DoseRecord, error) {
	args := m.Called(ctx, key)
	rec, _ := args.Get(0).(*model.DoseRecord)
	return rec, args.Error(1)
}

func (m *MockDoseStore) FindByID(ctx context.Context, id string) (*model.DoseRecord, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*model.DoseRecord)
	return rec, args.Error(1)
}

func (m *MockDoseStore) Insert(ctx context.Context, rec *model.DoseRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockDoseStore) Update(ctx context.Context, rec *model.DoseRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockDoseStore) Query(ctx context.Context, q repository.DoseQuery) ([]model.DoseRecord, error) {
	args := m.Called(ctx, q)
	records, _ := args.Get(0).([]model.DoseRecord)
	return records, args.Error(1)
}

func (m *MockDoseStore) Totals(ctx context.Context, userID string) (repository.PointTotals, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(repository.PointTotals), args.Error(1)
}

type MockRegimenStore struct {
	mock.Mock
}

func (m *MockRegimenStore) ListActive(ctx context.Context, userID string, asOf time.Time) ([]model.Regimen, error) {
	args := m.Called(ctx, userID, asOf)
	regimens, _ := args.Get(0).([]model.Regimen)
	return regimens, args.Error(1)
}

func (m *MockRegimenStore) FindByID(ctx context.Context, userID, regimenID string) (*model.Regimen, error) {
	args := m.Called(ctx, userID, regimenID)
	reg, _ := args.Get(0).(*model.Regimen)
	return reg, args.Error(1)
}

type MockPreferenceStore struct {
	mock.Mock
}

func (m *MockPreferenceStore) Get(ctx context.Context, userID string) (model.UserPreferences, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.UserPreferences), args.Error(1)
}

type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) Grant(ctx context.Context, entry *model.BonusEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerStore) ListByUser(ctx context.Context, userID string, limit int) ([]model.BonusEntry, error) {
	args := m.Called(ctx, userID, limit)
	entries, _ := args.Get(0).([]model.BonusEntry)
	return entries, args.Error(1)
}

func (m *MockLedgerStore) Sum(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type MockAuditRecorder struct {
	mock.Mock
}

func (m *MockAuditRecorder) Log(ctx context.Context, entry audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func utcPrefs(userID string) model.UserPreferences {
	return model.UserPreferences{
		UserID:            userID,
		LookaheadMinutes:  model.DefaultLookaheadMinutes,
		LateWindowMinutes: model.DefaultLateWindowMinutes,
		Timezone:          "UTC",
	}
}

func testRegimen(userID string) *model.Regimen {
	return &model.Regimen{
		ID:             "reg-1",
		UserID:         userID,
		MedicationName: "Metformin",
		Dosage:         model.Dosage{Amount: 500, Unit: "mg"},
		Frequency:      model.FrequencyTwiceDaily,
		StartDate:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:       true,
	}
}

func takenAt(userID string, scheduled time.Time, minutesLate int, late bool) model.DoseRecord {
	actual := scheduled.Add(time.Duration(minutesLate) * time.Minute)
	return model.DoseRecord{
		UserID:        userID,
		RegimenID:     "reg-1",
		ScheduledTime: scheduled,
		ActualTime:    &actual,
		Status:        model.DoseStatusTaken,
		MinutesLate:   minutesLate,
		TakenLate:     late,
		WithinWindow:  true,
	}
}

func withStatus(userID string, scheduled time.Time, status model.DoseStatus) model.DoseRecord {
	return model.DoseRecord{UserID: userID, RegimenID: "reg-1", ScheduledTime: scheduled, Status: status}
}
