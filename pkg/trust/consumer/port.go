package consumer

import (
	"context"

	"github.com/Abraxas-365/trustgate/pkg/kernel"
)

// Repository defines the contract for consumer persistence. Administrative
// CRUD lives outside the core; the broker only reads and seeds.
type Repository interface {
	FindByID(ctx context.Context, id kernel.ConsumerID) (*Consumer, error)
	FindByName(ctx context.Context, name string) (*Consumer, error)
	FindByAPIKeyHash(ctx context.Context, hash string) (*Consumer, error)
	Save(ctx context.Context, c Consumer) error
}
