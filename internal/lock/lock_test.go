package lock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalLocker_MutualExclusion(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "lock:deposit:abc")
			assert.NoError(t, err)
			counter++
			release(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, "lock:deposit:a")
	assert.NoError(t, err)

	// A held lock on one key must not block another key
	releaseB, err := locker.Acquire(ctx, "lock:deposit:b")
	assert.NoError(t, err)

	releaseA(ctx)
	releaseB(ctx)

	// Re-acquiring a released key succeeds
	release, err := locker.Acquire(ctx, "lock:deposit:a")
	assert.NoError(t, err)
	release(ctx)
}
