package locker

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTx struct {
	queries []string
	args    [][]interface{}
	err     error
}

func (r *recordingTx) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	r.queries = append(r.queries, query)
	r.args = append(r.args, args)
	return nil, r.err
}

func newTxLocker(tx *recordingTx) *PostgresLocker {
	// db stays nil: any session lock attempt would panic
	return &PostgresLocker{
		txFrom:   func(context.Context) (execer, bool) { return tx, true },
		sessions: sessionSlots(2),
	}
}

func TestPostgresLockInsideTransaction(t *testing.T) {
	tx := &recordingTx{}
	l := newTxLocker(tx)

	unlock, err := l.Lock(context.Background(), "subscription:sub_1")
	require.NoError(t, err)
	unlock()
	unlock()

	require.Len(t, tx.queries, 1)
	assert.Equal(t, "SELECT pg_advisory_xact_lock(hashtext($1))", tx.queries[0])
	assert.Equal(t, []interface{}{"subscription:sub_1"}, tx.args[0])
	assert.Empty(t, l.sessions, "a transaction lock must not take a session slot")
}

func TestPostgresLockInsideTransactionError(t *testing.T) {
	tx := &recordingTx{err: errors.New("deadlock detected")}
	l := newTxLocker(tx)

	unlock, err := l.Lock(context.Background(), "subscription:sub_1")
	assert.Error(t, err)
	assert.Nil(t, unlock)
}

func TestSessionSlots(t *testing.T) {
	tests := []struct {
		name         string
		maxOpenConns int
		want         int
	}{
		{name: "unbounded pool", maxOpenConns: 0, want: -1},
		{name: "single connection", maxOpenConns: 1, want: 1},
		{name: "default pool", maxOpenConns: 10, want: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := sessionSlots(tt.maxOpenConns)
			if tt.want < 0 {
				assert.Nil(t, slots)
				return
			}
			assert.Equal(t, tt.want, cap(slots))
		})
	}
}

func TestSessionSlotWaitHonoursContext(t *testing.T) {
	l := &PostgresLocker{sessions: sessionSlots(1)}
	require.NoError(t, l.acquireSlot(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.acquireSlot(ctx), context.DeadlineExceeded)

	l.releaseSlot()
	assert.NoError(t, l.acquireSlot(context.Background()))
}
