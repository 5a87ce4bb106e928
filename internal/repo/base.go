package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx rebinds the base to tx; a nil tx keeps the current connection.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// Guard narrows a conditional update beyond the row id.
type Guard struct {
	Column string
	Values any
}

// UpdateIf applies updates to the row with the given id only when every guard
// matches. Slice values become IN clauses. It returns the affected row count so
// callers can tell a lost race from success.
func (b Base) UpdateIf(ctx context.Context, model any, id uuid.UUID, updates map[string]any, guards ...Guard) (int64, error) {
	q := b.DB(ctx).Model(model).Where("id = ?", id)
	for _, g := range guards {
		q = q.Where(g.Column+" IN ?", g.Values)
	}
	res := q.Updates(updates)
	return res.RowsAffected, res.Error
}
