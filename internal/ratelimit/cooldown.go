package ratelimit

import (
	"context"
	"time"
)

// Store persists the last-action timestamp per client key. Implementations
// must be safe for concurrent use.
type Store interface {
	// Last returns the recorded timestamp for key, and whether one exists.
	Last(ctx context.Context, key string) (time.Time, bool, error)

	// Mark records t as the last action for key. Entries may be dropped
	// once ttl has passed; ttl is always at least the cooldown window.
	Mark(ctx context.Context, key string, t time.Time, ttl time.Duration) error
}

// Cooldown enforces a minimum interval between successive actions from the
// same client key: a single timestamp lookup and subtraction per check.
type Cooldown struct {
	store  Store
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewCooldown(store Store, window time.Duration, prefix string) *Cooldown {
	return &Cooldown{
		store:  store,
		window: window,
		prefix: prefix,
		now:    time.Now,
	}
}

// Window returns the configured cooldown duration.
func (c *Cooldown) Window() time.Duration {
	return c.window
}

// Remaining reports how long the key must still wait. Zero means clear.
func (c *Cooldown) Remaining(ctx context.Context, key string) (time.Duration, error) {
	last, ok, err := c.store.Last(ctx, c.prefix+key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	elapsed := c.now().Sub(last)
	if elapsed >= c.window {
		return 0, nil
	}
	return c.window - elapsed, nil
}

// Mark records the current timestamp against the key. Called only after the
// action is permitted.
func (c *Cooldown) Mark(ctx context.Context, key string) error {
	return c.store.Mark(ctx, c.prefix+key, c.now(), c.window)
}
