package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

const preferenceColumns = `
	user_id, email, telegram_chat_id, notifications_enabled, email_enabled,
	push_enabled, auto_miss_enabled, lookahead_minutes, late_window_minutes, timezone`

// PreferenceRepository reads notification preferences
type PreferenceRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPreferenceRepository creates a new PreferenceRepository
func NewPreferenceRepository(db *pgxpool.Pool, logger *zap.Logger) *PreferenceRepository {
	return &PreferenceRepository{
		db:     db,
		logger: logger,
	}
}

// DefaultPreferences are used for users without a stored row
func DefaultPreferences(userID string) model.UserPreferences {
	return model.UserPreferences{
		UserID:            userID,
		LookaheadMinutes:  model.DefaultLookaheadMinutes,
		LateWindowMinutes: model.DefaultLateWindowMinutes,
		Timezone:          "UTC",
	}
}

// Get returns the preferences of a user, or the defaults when none are stored
func (r *PreferenceRepository) Get(ctx context.Context, userID string) (model.UserPreferences, error) {
	query := `SELECT ` + preferenceColumns + ` FROM user_preferences WHERE user_id = $1`

	prefs, err := scanPreferences(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultPreferences(userID), nil
		}
		r.logger.Error("failed to get preferences", zap.Error(err), zap.String("user_id", userID))
		return model.UserPreferences{}, fmt.Errorf("failed to get preferences: %w", err)
	}
	return prefs, nil
}

// ListNotifiable returns users with notifications on and at least one usable channel
func (r *PreferenceRepository) ListNotifiable(ctx context.Context) ([]model.UserPreferences, error) {
	return r.list(ctx, `
		WHERE notifications_enabled
		  AND ((email_enabled AND email <> '') OR (push_enabled AND telegram_chat_id <> 0))`)
}

// ListAutoMiss returns users who opted into automatic missed-dose records
func (r *PreferenceRepository) ListAutoMiss(ctx context.Context) ([]model.UserPreferences, error) {
	return r.list(ctx, `WHERE auto_miss_enabled`)
}

func (r *PreferenceRepository) list(ctx context.Context, where string) ([]model.UserPreferences, error) {
	query := `SELECT ` + preferenceColumns + ` FROM user_preferences ` + where + ` ORDER BY user_id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("failed to list preferences", zap.Error(err))
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer rows.Close()

	var out []model.UserPreferences
	for rows.Next() {
		prefs, err := scanPreferences(rows)
		if err != nil {
			r.logger.Error("failed to scan preferences", zap.Error(err))
			continue
		}
		out = append(out, prefs)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating preferences", zap.Error(err))
		return nil, fmt.Errorf("error iterating preferences: %w", err)
	}

	return out, nil
}

// Upsert stores the preferences of a user
func (r *PreferenceRepository) Upsert(ctx context.Context, p model.UserPreferences) error {
	query := `
		INSERT INTO user_preferences (` + preferenceColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			telegram_chat_id = EXCLUDED.telegram_chat_id,
			notifications_enabled = EXCLUDED.notifications_enabled,
			email_enabled = EXCLUDED.email_enabled,
			push_enabled = EXCLUDED.push_enabled,
			auto_miss_enabled = EXCLUDED.auto_miss_enabled,
			lookahead_minutes = EXCLUDED.lookahead_minutes,
			late_window_minutes = EXCLUDED.late_window_minutes,
			timezone = EXCLUDED.timezone,
			updated_at = NOW()
	`

	_, err := r.db.Exec(ctx, query,
		p.UserID,
		p.Email,
		p.TelegramChatID,
		p.NotificationsEnabled,
		p.EmailEnabled,
		p.PushEnabled,
		p.AutoMissEnabled,
		p.LookaheadMinutes,
		p.LateWindowMinutes,
		p.Timezone,
	)
	if err != nil {
		r.logger.Error("failed to upsert preferences", zap.Error(err), zap.String("user_id", p.UserID))
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}
	return nil
}

func scanPreferences(row pgx.Row) (model.UserPreferences, error) {
	var p model.UserPreferences
	err := row.Scan(
		&p.UserID,
		&p.Email,
		&p.TelegramChatID,
		&p.NotificationsEnabled,
		&p.EmailEnabled,
		&p.PushEnabled,
		&p.AutoMissEnabled,
		&p.LookaheadMinutes,
		&p.LateWindowMinutes,
		&p.Timezone,
	)
	return p, err
}
