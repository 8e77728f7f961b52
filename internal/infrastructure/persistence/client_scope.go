package persistence

import (
	"context"
	"errors"

	"github.com/erp/allocation/internal/domain/shared"
	"gorm.io/gorm"
)

// ErrClientRequired is returned when a client-scoped query runs without a session
var ErrClientRequired = errors.New("client_id is required but no session is attached to the context")

// ClientScope restricts a query to the client of the session in ctx. Without a
// session the statement fails instead of reading across clients.
//
// Usage:
//
//	db.WithContext(ctx).Scopes(ClientScope(ctx)).First(&model, "id = ?", id)
func ClientScope(ctx context.Context) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		sc, ok := shared.SessionFromContext(ctx)
		if !ok {
			_ = db.AddError(ErrClientRequired)
			return db
		}
		return db.Where("client_id = ?", sc.ClientID)
	}
}
