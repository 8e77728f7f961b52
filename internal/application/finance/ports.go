// Package finance holds the application services that drive allocation sessions and order reconciliation.
package finance

import (
	"context"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/google/uuid"
)

// TransactionRunner runs fn against repositories bound to one database transaction.
// Returning an error from fn rolls back everything fn wrote.
type TransactionRunner interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context, repos finance.Repositories) error) error
}

// OrderLocker serializes reconciliations of the same order across processes
type OrderLocker interface {
	WithOrderLock(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) error) error
}

type noopLocker struct{}

func (noopLocker) WithOrderLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// inTransaction runs fn in a transaction and returns its result once committed
func inTransaction[T any](ctx context.Context, runner TransactionRunner, fn func(ctx context.Context, repos finance.Repositories) (T, error)) (T, error) {
	var result T
	err := runner.InTransaction(ctx, func(ctx context.Context, repos finance.Repositories) error {
		var err error
		result, err = fn(ctx, repos)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
