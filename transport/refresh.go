package transport

import "sync"

// refreshCoordinator collapses N concurrent refresh attempts into exactly
// one call. The first caller becomes the leader and runs the refresh; every
// caller that arrives while it is in flight parks on a waiter channel and
// receives the leader's outcome. All waiters therefore succeed together or
// fail with the identical error.
type refreshCoordinator struct {
	mu         sync.Mutex
	refreshing bool
	waiters    []chan error
}

func (rc *refreshCoordinator) do(refresh func() error) error {
	rc.mu.Lock()
	if rc.refreshing {
		ch := make(chan error, 1)
		rc.waiters = append(rc.waiters, ch)
		rc.mu.Unlock()
		return <-ch
	}
	rc.refreshing = true
	rc.mu.Unlock()

	err := refresh()

	rc.mu.Lock()
	rc.refreshing = false
	waiters := rc.waiters
	rc.waiters = nil
	rc.mu.Unlock()

	for _, ch := range waiters {
		ch <- err
	}
	return err
}
