package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshCoordinatorSingleFlight(t *testing.T) {
	var calls atomic.Int32
	coordinator := newRefreshCoordinator(func(context.Context) RefreshResult {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)

		return RefreshResult{Status: true, AccessToken: "fresh-access", RefreshToken: "fresh-refresh"}
	})

	const waiters = 16

	results := make([]RefreshResult, waiters)

	var wg sync.WaitGroup
	for i := range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = coordinator.Refresh(t.Context())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, result := range results {
		assert.Equal(t, RefreshResult{Status: true, AccessToken: "fresh-access", RefreshToken: "fresh-refresh"}, result)
	}
}

func TestRefreshCoordinatorSequentialCallsRunSeparately(t *testing.T) {
	var calls atomic.Int32
	coordinator := newRefreshCoordinator(func(context.Context) RefreshResult {
		calls.Add(1)

		return RefreshResult{Status: true}
	})

	first := coordinator.Refresh(t.Context())
	second := coordinator.Refresh(t.Context())

	assert.True(t, first.Status)
	assert.True(t, second.Status)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRefreshCoordinatorCanceledWaiterDoesNotStopOperation(t *testing.T) {
	release := make(chan struct{})
	coordinator := newRefreshCoordinator(func(context.Context) RefreshResult {
		<-release

		return RefreshResult{Status: true, AccessToken: "fresh-access"}
	})

	firstDone := make(chan RefreshResult, 1)
	go func() {
		firstDone <- coordinator.Refresh(t.Context())
	}()

	// Wait for the operation slot to be occupied before joining it.
	require.Eventually(t, func() bool {
		coordinator.mu.Lock()
		defer coordinator.mu.Unlock()

		return coordinator.pending != nil
	}, time.Second, time.Millisecond)

	canceledCtx, cancel := context.WithCancel(t.Context())
	cancel()

	canceled := coordinator.Refresh(canceledCtx)
	assert.Equal(t, RefreshResult{}, canceled)

	close(release)

	select {
	case result := <-firstDone:
		assert.True(t, result.Status)
		assert.Equal(t, "fresh-access", result.AccessToken)
	case <-time.After(time.Second):
		t.Fatal("the surviving waiter never resolved")
	}
}
