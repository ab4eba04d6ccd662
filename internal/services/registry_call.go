package services

import (
	"context"
	"errors"
	"time"
)

// withRegistryTimeout bounds a single registry lookup.
func withRegistryTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// isDegradable reports whether a registry failure should downgrade the calling
// check instead of failing the validation. A cancelled parent context is
// never degradable: the caller asked to stop.
func isDegradable(parent context.Context, err error) bool {
	if err == nil || parent.Err() != nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
