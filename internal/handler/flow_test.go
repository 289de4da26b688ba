package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vcscsvcscs/adherence-engine/internal/adherence"
	"github.com/vcscsvcscs/adherence-engine/internal/audit"
	"github.com/vcscsvcscs/adherence-engine/internal/azure"
	"github.com/vcscsvcscs/adherence-engine/internal/clock"
	"github.com/vcscsvcscs/adherence-engine/internal/database"
	"github.com/vcscsvcscs/adherence-engine/internal/metrics"
	"github.com/vcscsvcscs/adherence-engine/internal/notify"
	"github.com/vcscsvcscs/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/adherence-engine/internal/scheduler"
	"github.com/vcscsvcscs/adherence-engine/internal/service"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

func setupFlowDatabase(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("adherence_flow"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(connString, zap.NewNop()))

	pool, err := database.Connect(ctx, connString, 4)
	require.NoError(t, err)

	return pool, func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
}

func seedDailyRegimen(t *testing.T, pool *pgxpool.Pool, userID string) string {
	t.Helper()
	ctx := context.Background()

	medicationID := uuid.New().String()
	regimenID := uuid.New().String()

	_, err := pool.Exec(ctx,
		`INSERT INTO medications (id, user_id, name) VALUES ($1, $2, 'Lisinopril')`,
		medicationID, userID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO regimens (id, user_id, medication_id, dosage_amount, dosage_unit,
			frequency, custom_schedule, start_date, is_active)
		VALUES ($1, $2, $3, 10, 'mg', $4, '[]'::jsonb, $5, true)`,
		regimenID, userID, medicationID, model.FrequencyOnceDaily, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	return regimenID
}

// TestDoseFlowIntegration drives the API against PostgreSQL: log a dose, read it back
// through the day view and statistics, claim a check-in and archive a report.
func TestDoseFlowIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	pool, cleanup := setupFlowDatabase(t)
	defer cleanup()

	logger := zap.NewNop()
	clk := clock.NewFake(fixedNow)
	m := metrics.New()
	auditLogger := audit.NewLogger(pool, logger)

	doseRepo := repository.NewDoseRepository(pool, nil, logger)
	regimenRepo := repository.NewRegimenRepository(pool, logger)
	prefRepo := repository.NewPreferenceRepository(pool, logger)
	ledgerRepo := repository.NewLedgerRepository(pool, logger)

	doseService := service.NewDoseService(doseRepo, regimenRepo, prefRepo, auditLogger, clk, m, logger)
	adherenceService := service.NewAdherenceService(doseRepo, prefRepo, clk, logger)
	rewardsService := service.NewRewardsService(doseRepo, ledgerRepo, prefRepo, auditLogger, clk, 5, logger)
	reportService := service.NewReportService(adherenceService, azure.NewMockBlobStorageClient(logger), auditLogger, clk, logger)

	sched := scheduler.New(scheduler.Config{}, scheduler.Deps{
		Preferences: prefRepo,
		Regimens:    regimenRepo,
		Doses:       doseRepo,
		Notifier:    notify.NewDispatcher(nil, logger),
		Marker:      scheduler.NewMemoryMarker(clk),
		Misser:      doseService,
		Metrics:     m,
	}, clk, logger)

	doc, err := LoadOpenAPI(context.Background())
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	a := &testAPI{router: gin.New()}
	RegisterRoutes(a.router, Handlers{
		Dose:      NewDoseHandler(doseService, clk.Now, logger),
		Adherence: NewAdherenceHandler(adherenceService, logger),
		Rewards:   NewRewardsHandler(rewardsService, logger),
		Report:    NewReportHandler(reportService, logger),
		Scheduler: NewSchedulerHandler(sched, logger),
		System:    NewSystemHandler(pool, m.Handler(), doc, logger),
		Audit:     NewAuditHandler(auditLogger, logger),
	})

	userID := "flow-" + uuid.New().String()
	regimenID := seedDailyRegimen(t, pool, userID)

	t.Log("Step 1: logging a dose ten minutes late")
	body := fmt.Sprintf(`{"regimen_id":%q,"scheduled_time":"2025-03-10T08:00:00Z","status":"taken","actual_time":"2025-03-10T08:10:00Z"}`, regimenID)
	w := a.do(http.MethodPost, "/api/v1/doses", body, userID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var logged service.LogResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logged))
	assert.Equal(t, 15, logged.Record.Rewards.Points)
	assert.GreaterOrEqual(t, logged.Record.Rewards.BonusPoints, 5)
	assert.False(t, logged.Record.TakenLate)
	assert.Equal(t, model.DoseSourceManual, logged.Record.Source)

	t.Log("Step 2: logging the same dose again")
	w = a.do(http.MethodPost, "/api/v1/doses", body, userID)
	assert.Equal(t, http.StatusConflict, w.Code)

	t.Log("Step 3: reading the day view")
	w = a.do(http.MethodGet, "/api/v1/doses/day?date=2025-03-10", "", userID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var day struct {
		Doses []struct {
			RegimenID string           `json:"regimen_id"`
			Status    model.DoseStatus `json:"status"`
		} `json:"doses"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &day))
	require.Len(t, day.Doses, 1)
	assert.Equal(t, regimenID, day.Doses[0].RegimenID)
	assert.Equal(t, model.DoseStatusTaken, day.Doses[0].Status)

	t.Log("Step 4: reading statistics")
	w = a.do(http.MethodGet, "/api/v1/adherence/stats?days=7", "", userID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stats adherence.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Taken)

	t.Log("Step 5: daily check-in is granted once")
	w = a.do(http.MethodPost, "/api/v1/rewards/checkin", "", userID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = a.do(http.MethodPost, "/api/v1/rewards/checkin", "", userID)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(http.MethodGet, "/api/v1/rewards", "", userID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var summary service.RewardsSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, logged.Record.Rewards.Total()+5, summary.TotalPoints)

	w = a.do(http.MethodGet, "/api/v1/audit", "", userID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var trail AuditResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trail))
	require.NotEmpty(t, trail.Entries)
	assert.Equal(t, audit.ResourceBonus, trail.Entries[0].ResourceType)

	t.Log("Step 6: archiving and downloading a report")
	w = a.do(http.MethodPost, "/api/v1/reports/adherence", `{"days":7}`, userID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var archived service.ArchivedReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &archived))

	w = a.do(http.MethodGet, "/api/v1/reports/adherence/"+archived.Name, "", userID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var snapshot service.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Equal(t, userID, snapshot.UserID)
	assert.Equal(t, 1, snapshot.Stats.Taken)

	t.Log("Step 7: a manual sweep with no notifiable users dispatches nothing")
	w = a.do(http.MethodPost, "/api/v1/scheduler/run?kind=upcoming", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var run RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	require.Len(t, run.Sweeps, 1)
	assert.Equal(t, 0, run.Sweeps[0].Dispatched)

	t.Log("Step 8: health check")
	w = a.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
