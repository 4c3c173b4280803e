// ABOUTME: Context-aware single-slot lock that serializes chat requests
// ABOUTME: Waiting callers give up when their context ends instead of blocking forever

package chat

import "context"

// requestLock is a mutex whose acquisition respects context cancellation.
type requestLock struct {
	sem chan struct{}
}

func newRequestLock() *requestLock {
	return &requestLock{sem: make(chan struct{}, 1)}
}

// lock acquires the slot, returning false if ctx ends first.
func (l *requestLock) lock(ctx context.Context) bool {
	select {
	case l.sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (l *requestLock) unlock() {
	select {
	case <-l.sem:
	default:
	}
}
