package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vcscsvcscs/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
)

// ErrAlreadyCheckedIn is returned for a second daily check-in on the same day
var ErrAlreadyCheckedIn = errors.New("already checked in today")

// ValidationError reports a rejected request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// DoseStore persists dose records
type DoseStore interface {
	Find(ctx context.Context, key model.DoseKey) (*model.DoseRecord, error)
	FindByID(ctx context.Context, id string) (*model.DoseRecord, error)
	Insert(ctx context.Context, rec *model.DoseRecord) error
	Update(ctx context.Context, rec *model.DoseRecord) error
	Query(ctx context.Context, q repository.DoseQuery) ([]model.DoseRecord, error)
	Totals(ctx context.Context, userID string) (repository.PointTotals, error)
}

// RegimenStore reads regimens
type RegimenStore interface {
	ListActive(ctx context.Context, userID string, asOf time.Time) ([]model.Regimen, error)
	FindByID(ctx context.Context, userID, regimenID string) (*model.Regimen, error)
}

// PreferenceStore reads user preferences
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (model.UserPreferences, error)
}

// LedgerStore persists bonus grants
type LedgerStore interface {
	Grant(ctx context.Context, entry *model.BonusEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.BonusEntry, error)
	Sum(ctx context.Context, userID string) (int, error)
}

var (
	_ DoseStore       = (*repository.DoseRepository)(nil)
	_ RegimenStore    = (*repository.RegimenRepository)(nil)
	_ PreferenceStore = (*repository.PreferenceRepository)(nil)
	_ LedgerStore     = (*repository.LedgerRepository)(nil)
)
