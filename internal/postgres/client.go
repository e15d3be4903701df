package postgres

import (
	"context"

	"go.uber.org/fx"
)

// IClient is the transaction boundary used by services. Repositories resolve
// the active transaction from the context passed into fn.
type IClient interface {
	// WithTx wraps the given function in a transaction, nesting with savepoints
	WithTx(ctx context.Context, fn func(context.Context) error) error

	// Querier returns the current transaction if in one, or the pool
	Querier(ctx context.Context) Querier
}

var _ IClient = (*DB)(nil)

// Module provides the sqlx pool as both *DB and IClient
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			func(db *DB) IClient { return db },
		),
		fx.Invoke(func(lc fx.Lifecycle, db *DB) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					db.Close()
					return nil
				},
			})
		}),
	)
}
