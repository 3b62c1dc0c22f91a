package member

import (
	"context"
)

// Repository defines the operations for persisting and retrieving Member entities.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Member, error)
	ListAll(ctx context.Context) ([]*Member, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}
