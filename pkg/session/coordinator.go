package session

import (
	"context"
	"sync"
)

// RefreshResult is what every caller of a coordinated refresh receives.
// Status false means the session must be re-established.
type RefreshResult struct {
	Status       bool
	AccessToken  string
	RefreshToken string
}

type refreshOperation struct {
	done   chan struct{}
	result RefreshResult
}

// refreshCoordinator collapses concurrent refresh attempts into a single
// in-flight transport call. Without it, N concurrent token reads would each
// mint a competing refresh request, of which only one nonce/claim pair can
// be valid, and the losers would log the user out.
type refreshCoordinator struct {
	perform func(ctx context.Context) RefreshResult

	mu      sync.Mutex
	pending *refreshOperation
}

func newRefreshCoordinator(perform func(ctx context.Context) RefreshResult) *refreshCoordinator {
	return &refreshCoordinator{perform: perform}
}

// Refresh joins the pending operation if one exists, otherwise starts one.
// All concurrent callers resolve to the same result. A caller whose ctx is
// canceled stops waiting with a failed result; the operation itself keeps
// running for the remaining callers.
func (c *refreshCoordinator) Refresh(ctx context.Context) RefreshResult {
	c.mu.Lock()
	op := c.pending
	if op == nil {
		op = &refreshOperation{done: make(chan struct{})}
		c.pending = op

		// The operation must not die with the caller that started it,
		// so it runs on a context detached from cancellation.
		go c.run(context.WithoutCancel(ctx), op)
	}
	c.mu.Unlock()

	select {
	case <-op.done:
		return op.result
	case <-ctx.Done():
		return RefreshResult{}
	}
}

func (c *refreshCoordinator) run(ctx context.Context, op *refreshOperation) {
	// The slot is cleared before the result is released, even if perform
	// panics: a permanently occupied slot would wedge every future refresh.
	defer func() {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		close(op.done)
	}()

	op.result = c.perform(ctx)
}
