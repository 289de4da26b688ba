package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

const ledgerOncePerDayConstraint = "bonus_ledger_once_per_day"

// LedgerRepository stores bonus points granted outside dose logging
type LedgerRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewLedgerRepository creates a new LedgerRepository
func NewLedgerRepository(db *pgxpool.Pool, logger *zap.Logger) *LedgerRepository {
	return &LedgerRepository{
		db:     db,
		logger: logger,
	}
}

// Grant writes a ledger entry. A second entry of the same kind on the same grant date
// returns ErrAlreadyGranted.
func (r *LedgerRepository) Grant(ctx context.Context, entry *model.BonusEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO bonus_ledger (id, user_id, kind, points, reason, grant_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Kind,
		entry.Points,
		entry.Reason,
		model.DateOf(entry.GrantDate),
	).Scan(&entry.CreatedAt)

	if err != nil {
		if isUniqueViolation(err, ledgerOncePerDayConstraint) {
			return ErrAlreadyGranted
		}
		r.logger.Error("failed to grant bonus",
			zap.Error(err),
			zap.String("user_id", entry.UserID),
			zap.String("kind", string(entry.Kind)),
		)
		return fmt.Errorf("failed to grant bonus: %w", err)
	}

	return nil
}

// ListByUser returns the ledger of a user, newest first
func (r *LedgerRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.BonusEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, user_id, kind, points, reason, grant_date, created_at
		FROM bonus_ledger
		WHERE user_id = $1
		ORDER BY grant_date DESC, created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		r.logger.Error("failed to list bonus ledger", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to list bonus ledger: %w", err)
	}
	defer rows.Close()

	var entries []model.BonusEntry
	for rows.Next() {
		var e model.BonusEntry
		err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Points, &e.Reason, &e.GrantDate, &e.CreatedAt)
		if err != nil {
			r.logger.Error("failed to scan bonus entry", zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bonus ledger: %w", err)
	}

	return entries, nil
}

// Sum returns the total ledger points of a user
func (r *LedgerRepository) Sum(ctx context.Context, userID string) (int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM bonus_ledger WHERE user_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		r.logger.Error("failed to sum bonus ledger", zap.Error(err), zap.String("user_id", userID))
		return 0, fmt.Errorf("failed to sum bonus ledger: %w", err)
	}
	return total, nil
}
