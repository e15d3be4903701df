package locker

import (
	"context"
	"sync"

	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	"github.com/flexprice/recurring/internal/types"
)

// Locker serializes work on a key across goroutines and, for the postgres
// variant, across processes
type Locker interface {
	// Lock blocks until the key is held or ctx is done. Callers that also
	// write should lock inside their transaction, see PostgresLocker.
	Lock(ctx context.Context, key string) (unlock func(), err error)
	// TryLock returns acquired=false without waiting when the key is held elsewhere
	TryLock(ctx context.Context, key string) (unlock func(), acquired bool, err error)
}

// NewLocker picks the implementation configured under locker.type
func NewLocker(cfg *config.Configuration, db *postgres.DB, log *logger.Logger) Locker {
	if cfg.Locker.Type == types.LockerTypePostgres {
		log.Infow("using postgres advisory locks")
		return NewPostgresLocker(db, cfg.Postgres.MaxOpenConns)
	}
	return NewMemoryLocker()
}

// MemoryLocker holds one semaphore per key. Suitable for a single process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*entry)}
}

func (l *MemoryLocker) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	return e
}

// release drops the entry once nobody waits on it
func (l *MemoryLocker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *MemoryLocker) unlockFunc(key string, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	e := l.acquire(key)

	select {
	case e.sem <- struct{}{}:
		return l.unlockFunc(key, e), nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, ierr.WithError(ctx.Err()).
			WithHintf("Timed out waiting for lock %s", key).
			Mark(ierr.ErrSystem)
	}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	e := l.acquire(key)

	select {
	case e.sem <- struct{}{}:
		return l.unlockFunc(key, e), true, nil
	default:
		l.release(key, e)
		return nil, false, nil
	}
}
