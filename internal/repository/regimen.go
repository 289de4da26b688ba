package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

const regimenColumns = `
	r.id, r.user_id, r.medication_id, m.name, r.dosage_amount, r.dosage_unit,
	r.frequency, r.custom_schedule, r.start_date, r.end_date, r.is_active`

// RegimenRepository reads medication regimens. Regimens are maintained by another service.
type RegimenRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewRegimenRepository creates a new RegimenRepository
func NewRegimenRepository(db *pgxpool.Pool, logger *zap.Logger) *RegimenRepository {
	return &RegimenRepository{
		db:     db,
		logger: logger,
	}
}

// ListActive returns the active regimens of a user whose date range touches the day
// before, of or after asOf. Callers narrow to exact days with Regimen.ActiveOn, which
// lets sweep windows spanning midnight in any timezone see every relevant regimen.
func (r *RegimenRepository) ListActive(ctx context.Context, userID string, asOf time.Time) ([]model.Regimen, error) {
	query := `SELECT ` + regimenColumns + `
		FROM regimens r
		JOIN medications m ON m.id = r.medication_id
		WHERE r.user_id = $1
		  AND r.is_active
		  AND r.start_date <= $2::date
		  AND (r.end_date IS NULL OR r.end_date >= $3::date)
		ORDER BY m.name, r.id
	`

	day := model.DateIn(asOf, time.UTC)
	rows, err := r.db.Query(ctx, query, userID, day.AddDate(0, 0, 1), day.AddDate(0, 0, -1))
	if err != nil {
		r.logger.Error("failed to list regimens", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to list regimens: %w", err)
	}
	defer rows.Close()

	var regimens []model.Regimen
	for rows.Next() {
		reg, err := scanRegimen(rows)
		if err != nil {
			r.logger.Error("failed to scan regimen", zap.Error(err))
			continue
		}
		regimens = append(regimens, reg)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating regimens", zap.Error(err))
		return nil, fmt.Errorf("error iterating regimens: %w", err)
	}

	return regimens, nil
}

// FindByID retrieves a regimen owned by userID
func (r *RegimenRepository) FindByID(ctx context.Context, userID, regimenID string) (*model.Regimen, error) {
	if _, err := uuid.Parse(regimenID); err != nil {
		return nil, ErrNotFound
	}

	query := `SELECT ` + regimenColumns + `
		FROM regimens r
		JOIN medications m ON m.id = r.medication_id
		WHERE r.id = $1 AND r.user_id = $2
	`

	reg, err := scanRegimen(r.db.QueryRow(ctx, query, regimenID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to find regimen", zap.Error(err), zap.String("regimen_id", regimenID))
		return nil, fmt.Errorf("failed to find regimen: %w", err)
	}

	return &reg, nil
}

func scanRegimen(row pgx.Row) (model.Regimen, error) {
	var reg model.Regimen
	err := row.Scan(
		&reg.ID,
		&reg.UserID,
		&reg.MedicationID,
		&reg.MedicationName,
		&reg.Dosage.Amount,
		&reg.Dosage.Unit,
		&reg.Frequency,
		&reg.CustomSchedule,
		&reg.StartDate,
		&reg.EndDate,
		&reg.IsActive,
	)
	return reg, err
}
