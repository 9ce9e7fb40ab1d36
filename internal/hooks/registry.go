package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 30 * time.Second

// Registry maps slots to their bound hook. It is populated once at startup
// and only read afterwards.
type Registry struct {
	hooks   map[Slot]Hook
	timeout time.Duration
}

// NewRegistry creates an empty Registry. A timeout of zero or less disables
// the per invocation deadline.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		hooks:   make(map[Slot]Hook),
		timeout: timeout,
	}
}

// Bind attaches h to slot, replacing any previous binding. A nil hook unbinds
// the slot.
func (r *Registry) Bind(slot Slot, h Hook) *Registry {
	if h == nil {
		delete(r.hooks, slot)
		return r
	}
	r.hooks[slot] = h
	return r
}

// Lookup returns the hook bound to slot.
func (r *Registry) Lookup(slot Slot) (Hook, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.hooks[slot]
	return h, ok
}

// Bound reports whether a hook is bound to slot.
func (r *Registry) Bound(slot Slot) bool {
	_, ok := r.Lookup(slot)
	return ok
}

type result struct {
	domain Domain
	err    error
}

// Run invokes the hook bound to slot. An unbound slot passes immediately.
// The hook works on a copy of d which is written back only when it succeeds,
// so a hook that outlives its deadline can never touch d. Panics are turned
// into errors. Any failure is returned as *Error.
func (r *Registry) Run(ctx context.Context, slot Slot, d *Domain) error {
	h, ok := r.Lookup(slot)
	if !ok {
		return nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	done := make(chan result, 1)
	go func(local Domain) {
		defer func() {
			if rvr := recover(); rvr != nil {
				slog.Error("Hook panicked", "slot", slot, "panic", rvr)
				done <- result{err: fmt.Errorf("hook panicked: %v", rvr)}
			}
		}()

		err := h.Run(ctx, slot, &local)
		done <- result{domain: local, err: err}
	}(*d)

	select {
	case res := <-done:
		if res.err != nil {
			return &Error{Slot: slot, Err: res.err}
		}
		*d = res.domain
		return nil
	case <-ctx.Done():
		return &Error{Slot: slot, Err: ctx.Err()}
	}
}
