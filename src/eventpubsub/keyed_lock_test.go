package eventpubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeplatform/trade-platform/src/eventmodels"
)

func TestKeyedLockExclusion(t *testing.T) {
	lock := NewKeyedLock()

	const workers = 16
	counter := 0

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()

			require.NoError(t, lock.Acquire(context.Background(), "user-1/AAPL"))
			defer lock.Release("user-1/AAPL")

			// unsynchronized on purpose: only the lock protects this
			value := counter
			time.Sleep(time.Millisecond)
			counter = value + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestKeyedLockTimeout(t *testing.T) {
	lock := NewKeyedLock()

	require.NoError(t, lock.Acquire(context.Background(), "user-1/AAPL"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := lock.Acquire(ctx, "user-1/AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, eventmodels.ErrLockTimeout)

	lock.Release("user-1/AAPL")

	// the key is free again after release
	require.NoError(t, lock.Acquire(context.Background(), "user-1/AAPL"))
	lock.Release("user-1/AAPL")
}

func TestKeyedLockIndependentKeys(t *testing.T) {
	lock := NewKeyedLock()

	require.NoError(t, lock.Acquire(context.Background(), "user-1/AAPL"))
	defer lock.Release("user-1/AAPL")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, lock.Acquire(ctx, "user-1/GOOG"))
	lock.Release("user-1/GOOG")

	require.NoError(t, lock.Acquire(ctx, "user-2/AAPL"))
	lock.Release("user-2/AAPL")
}
