package guild

import (
	"context"
)

// Repository defines the operations for persisting and retrieving Guild settings.
// The store is treated as the durability boundary: a mutation is not committed
// until SaveAll returns without error.
type Repository interface {
	LoadAll(ctx context.Context) ([]*Guild, error)
	SaveAll(ctx context.Context, guilds []*Guild) error
}
