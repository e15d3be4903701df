package customer

import "context"

// Repository reads the host platform's customer directory. Get only returns
// published customers of the tenant in ctx.
type Repository interface {
	Create(ctx context.Context, c *Customer) error
	Get(ctx context.Context, id string) (*Customer, error)
}
