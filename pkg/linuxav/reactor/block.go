//go:build linux

package reactor

import "context"

// Poller is a non-blocking operation. It returns ready=false after
// arranging for w to be woken when progress is possible.
type Poller[T any] func(w Waker) (v T, ready bool, err error)

// Block polls p until it is ready, fails, or ctx is done. Between polls
// it sleeps on a channel waker; there is no timeout of its own.
func Block[T any](ctx context.Context, p Poller[T]) (T, error) {
	w := NewChanWaker()
	for {
		v, ready, err := p(w)
		if err != nil || ready {
			return v, err
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-w:
		}
	}
}
