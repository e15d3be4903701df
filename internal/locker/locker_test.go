package locker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerSerializes(t *testing.T) {
	l := NewMemoryLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "sub_1")
			require.NoError(t, err)
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.locks)
}

func TestMemoryLockerTryLock(t *testing.T) {
	l := NewMemoryLocker()

	unlock, ok, err := l.TryLock(context.Background(), "retry:sub_1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(context.Background(), "retry:sub_1")
	require.NoError(t, err)
	assert.False(t, ok)

	// other keys are independent
	other, ok, _ := l.TryLock(context.Background(), "retry:sub_2")
	assert.True(t, ok)
	other()

	unlock()
	unlock()

	again, ok, _ := l.TryLock(context.Background(), "retry:sub_1")
	assert.True(t, ok)
	again()
}

func TestMemoryLockerHonoursContext(t *testing.T) {
	l := NewMemoryLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.Error(t, err)
}
