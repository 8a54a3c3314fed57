package repositories

import (
	"context"
	"errors"

	domain "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/domain"
)

// RepositoryError exposes backend-neutral classification of persistence failures.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
	IsIndexMissing() bool
}

// OrderQuery filters the orders collection for a single customer.
type OrderQuery struct {
	UserID string
	// NewestFirst asks the backend to sort by creation time. Backends may need an
	// index for this and report IsIndexMissing when it is absent.
	NewestFirst bool
	Limit       int
}

// OrderRepository persists placed orders.
type OrderRepository interface {
	// Create stores the order as one atomic document and returns its ID.
	Create(ctx context.Context, order domain.Order) (string, error)
	ListByUser(ctx context.Context, query OrderQuery) ([]domain.Order, error)
}

// CartRepository persists the lines of a browser session's cart.
type CartRepository interface {
	// LoadCart returns nil lines and no error when nothing has been stored yet.
	LoadCart(ctx context.Context, sessionID string) ([]domain.CartLine, error)
	SaveCart(ctx context.Context, sessionID string, lines []domain.CartLine) error
}

// IsNotFound reports whether err is a RepositoryError for a missing record.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsIndexMissing reports whether err is a RepositoryError for a missing query index.
func IsIndexMissing(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsIndexMissing()
}

// IsUnavailable reports whether err is a transient backend failure.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}
