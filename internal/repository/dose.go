package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/adherence-engine/internal/dose"
	"github.com/vcscsvcscs/adherence-engine/internal/security"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

const doseIdentityConstraint = "dose_records_identity"

const doseColumns = `
	id, user_id, regimen_id, scheduled_time, actual_time, status,
	dosage_amount, dosage_unit, minutes_late, taken_late, within_window,
	points, bonus_points, streak, reason_for_bonus, source, notes,
	created_at, updated_at`

// DoseQuery filters dose history. From is inclusive, To exclusive; zero values are open ends.
type DoseQuery struct {
	UserID    string
	RegimenID string
	Status    model.DoseStatus
	From      time.Time
	To        time.Time
	Limit     int
}

// PointTotals sums the rewards written on dose records of a user
type PointTotals struct {
	Points      int `json:"points"`
	BonusPoints int `json:"bonus_points"`
	Doses       int `json:"doses"`
}

// DoseRepository stores dose records keyed by (user, regimen, scheduled time)
type DoseRepository struct {
	db     *pgxpool.Pool
	sealer security.Sealer
	logger *zap.Logger
}

// NewDoseRepository creates a new DoseRepository. A nil sealer stores notes in plain text.
func NewDoseRepository(db *pgxpool.Pool, sealer security.Sealer, logger *zap.Logger) *DoseRepository {
	if sealer == nil {
		sealer = security.NoopSealer{}
	}
	return &DoseRepository{
		db:     db,
		sealer: sealer,
		logger: logger,
	}
}

// Insert writes a new record. A record with the same identity triple yields
// dose.ErrDuplicateDose and leaves the stored record untouched.
func (r *DoseRepository) Insert(ctx context.Context, rec *model.DoseRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	notes, err := r.sealNotes(rec.Notes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO dose_records (` + doseColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		rec.ID,
		rec.UserID,
		rec.RegimenID,
		rec.ScheduledTime,
		rec.ActualTime,
		rec.Status,
		rec.Dosage.Amount,
		rec.Dosage.Unit,
		rec.MinutesLate,
		rec.TakenLate,
		rec.WithinWindow,
		rec.Rewards.Points,
		rec.Rewards.BonusPoints,
		rec.Rewards.Streak,
		rec.Rewards.ReasonForBonus,
		rec.Source,
		notes,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err, doseIdentityConstraint) {
			return dose.ErrDuplicateDose
		}
		r.logger.Error("failed to insert dose record",
			zap.Error(err),
			zap.String("user_id", rec.UserID),
			zap.String("regimen_id", rec.RegimenID),
			zap.Time("scheduled_time", rec.ScheduledTime),
		)
		return fmt.Errorf("failed to insert dose record: %w", err)
	}

	return nil
}

// Update overwrites the mutable fields of an existing record. The identity triple is fixed.
func (r *DoseRepository) Update(ctx context.Context, rec *model.DoseRecord) error {
	notes, err := r.sealNotes(rec.Notes)
	if err != nil {
		return err
	}

	query := `
		UPDATE dose_records SET
			actual_time = $2, status = $3, dosage_amount = $4, dosage_unit = $5,
			minutes_late = $6, taken_late = $7, within_window = $8,
			points = $9, bonus_points = $10, streak = $11, reason_for_bonus = $12,
			source = $13, notes = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.db.QueryRow(ctx, query,
		rec.ID,
		rec.ActualTime,
		rec.Status,
		rec.Dosage.Amount,
		rec.Dosage.Unit,
		rec.MinutesLate,
		rec.TakenLate,
		rec.WithinWindow,
		rec.Rewards.Points,
		rec.Rewards.BonusPoints,
		rec.Rewards.Streak,
		rec.Rewards.ReasonForBonus,
		rec.Source,
		notes,
	).Scan(&rec.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		r.logger.Error("failed to update dose record", zap.Error(err), zap.String("dose_id", rec.ID))
		return fmt.Errorf("failed to update dose record: %w", err)
	}

	return nil
}

// Find returns the record for key, or nil when none was logged
func (r *DoseRepository) Find(ctx context.Context, key model.DoseKey) (*model.DoseRecord, error) {
	query := `SELECT ` + doseColumns + `
		FROM dose_records
		WHERE user_id = $1 AND regimen_id = $2 AND scheduled_time = $3
	`

	rec, err := r.scanDose(r.db.QueryRow(ctx, query, key.UserID, key.RegimenID, key.ScheduledTime))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("failed to find dose record", zap.Error(err), zap.String("key", key.String()))
		return nil, fmt.Errorf("failed to find dose record: %w", err)
	}

	return &rec, nil
}

// FindByID retrieves a record by its ID
func (r *DoseRepository) FindByID(ctx context.Context, id string) (*model.DoseRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := `SELECT ` + doseColumns + `
		FROM dose_records
		WHERE id = $1
	`

	rec, err := r.scanDose(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to find dose record", zap.Error(err), zap.String("dose_id", id))
		return nil, fmt.Errorf("failed to find dose record: %w", err)
	}

	return &rec, nil
}

// Query lists the records of a user matching q, ordered by scheduled time
func (r *DoseRepository) Query(ctx context.Context, q DoseQuery) ([]model.DoseRecord, error) {
	conds := []string{"user_id = $1"}
	args := []any{q.UserID}

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if q.RegimenID != "" {
		add("regimen_id = $%d", q.RegimenID)
	}
	if q.Status != "" {
		add("status = $%d", q.Status)
	}
	if !q.From.IsZero() {
		add("scheduled_time >= $%d", q.From)
	}
	if !q.To.IsZero() {
		add("scheduled_time < $%d", q.To)
	}

	query := `SELECT ` + doseColumns + `
		FROM dose_records
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY scheduled_time ASC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query dose records", zap.Error(err), zap.String("user_id", q.UserID))
		return nil, fmt.Errorf("failed to query dose records: %w", err)
	}
	defer rows.Close()

	var records []model.DoseRecord
	for rows.Next() {
		rec, err := r.scanDose(rows)
		if err != nil {
			r.logger.Error("failed to scan dose record", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating dose records", zap.Error(err))
		return nil, fmt.Errorf("error iterating dose records: %w", err)
	}

	return records, nil
}

// Totals sums points and bonus points over all records of a user
func (r *DoseRepository) Totals(ctx context.Context, userID string) (PointTotals, error) {
	query := `
		SELECT COALESCE(SUM(points), 0), COALESCE(SUM(bonus_points), 0), COUNT(*)
		FROM dose_records
		WHERE user_id = $1
	`

	var t PointTotals
	if err := r.db.QueryRow(ctx, query, userID).Scan(&t.Points, &t.BonusPoints, &t.Doses); err != nil {
		r.logger.Error("failed to sum dose points", zap.Error(err), zap.String("user_id", userID))
		return PointTotals{}, fmt.Errorf("failed to sum dose points: %w", err)
	}
	return t, nil
}

func (r *DoseRepository) scanDose(row pgx.Row) (model.DoseRecord, error) {
	var (
		rec   model.DoseRecord
		notes *string
	)
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.RegimenID,
		&rec.ScheduledTime,
		&rec.ActualTime,
		&rec.Status,
		&rec.Dosage.Amount,
		&rec.Dosage.Unit,
		&rec.MinutesLate,
		&rec.TakenLate,
		&rec.WithinWindow,
		&rec.Rewards.Points,
		&rec.Rewards.BonusPoints,
		&rec.Rewards.Streak,
		&rec.Rewards.ReasonForBonus,
		&rec.Source,
		&notes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return model.DoseRecord{}, err
	}

	if notes != nil {
		opened, err := r.sealer.Open(*notes)
		if err != nil {
			r.logger.Warn("failed to open dose notes", zap.Error(err), zap.String("dose_id", rec.ID))
		} else {
			rec.Notes = &opened
		}
	}
	return rec, nil
}

func (r *DoseRepository) sealNotes(notes *string) (*string, error) {
	if notes == nil {
		return nil, nil
	}
	sealed, err := r.sealer.Seal(*notes)
	if err != nil {
		return nil, fmt.Errorf("failed to seal dose notes: %w", err)
	}
	return &sealed, nil
}
