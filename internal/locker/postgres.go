package locker

import (
	"context"
	"database/sql"
	"sync"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/postgres"
)

// execer is the part of an open transaction the locker needs
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PostgresLocker uses advisory locks keyed by hashtext(key).
//
// Lock called with a transaction in ctx takes pg_advisory_xact_lock on that
// transaction, so it costs no extra connection and postgres drops it at
// commit or rollback. Outside a transaction, and always for TryLock, a session
// lock pins a pooled connection until unlock. Session locks are capped at one
// less than postgres.max_open_conns so a transaction can always get a connection.
type PostgresLocker struct {
	db       *postgres.DB
	txFrom   func(ctx context.Context) (execer, bool)
	sessions chan struct{}
}

func NewPostgresLocker(db *postgres.DB, maxOpenConns int) *PostgresLocker {
	return &PostgresLocker{
		db:       db,
		txFrom:   txFromContext,
		sessions: sessionSlots(maxOpenConns),
	}
}

func txFromContext(ctx context.Context) (execer, bool) {
	tx, ok := postgres.GetTx(ctx)
	if !ok {
		return nil, false
	}
	return tx, true
}

// sessionSlots returns nil for an unbounded pool
func sessionSlots(maxOpenConns int) chan struct{} {
	if maxOpenConns <= 0 {
		return nil
	}
	return make(chan struct{}, max(1, maxOpenConns-1))
}

func (l *PostgresLocker) Lock(ctx context.Context, key string) (func(), error) {
	if tx, ok := l.txFrom(ctx); ok {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Failed to acquire lock %s", key).
				Mark(ierr.ErrDatabase)
		}
		// released by postgres when the transaction ends
		return func() {}, nil
	}

	conn, err := l.conn(ctx, key)
	if err != nil {
		return nil, err
	}

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock(hashtext($1))", key); err != nil {
		l.release(conn)
		return nil, ierr.WithError(err).
			WithHintf("Failed to acquire lock %s", key).
			Mark(ierr.ErrDatabase)
	}
	return l.unlockFunc(conn, key), nil
}

func (l *PostgresLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	conn, err := l.conn(ctx, key)
	if err != nil {
		return nil, false, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", key).Scan(&acquired); err != nil {
		l.release(conn)
		return nil, false, ierr.WithError(err).
			WithHintf("Failed to acquire lock %s", key).
			Mark(ierr.ErrDatabase)
	}
	if !acquired {
		l.release(conn)
		return nil, false, nil
	}
	return l.unlockFunc(conn, key), true, nil
}

// conn takes a session slot, then a dedicated connection
func (l *PostgresLocker) conn(ctx context.Context, key string) (*sql.Conn, error) {
	if err := l.acquireSlot(ctx); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Timed out waiting to acquire lock %s", key).
			Mark(ierr.ErrDatabase)
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		l.releaseSlot()
		return nil, ierr.WithError(err).
			WithHintf("No database connection available for lock %s", key).
			Mark(ierr.ErrDatabase)
	}
	return conn, nil
}

func (l *PostgresLocker) acquireSlot(ctx context.Context) error {
	if l.sessions == nil {
		return nil
	}
	select {
	case l.sessions <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *PostgresLocker) releaseSlot() {
	if l.sessions != nil {
		<-l.sessions
	}
}

func (l *PostgresLocker) release(conn *sql.Conn) {
	conn.Close()
	l.releaseSlot()
}

func (l *PostgresLocker) unlockFunc(conn *sql.Conn, key string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's context may already be cancelled
			_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(hashtext($1))", key)
			l.release(conn)
		})
	}
}
