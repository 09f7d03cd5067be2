// Package notify fans out lifecycle transition events to in-process
// observers. Delivery is fire-and-forget: a hook cannot fail or delay the
// transition that produced the event.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"beantrack/internal/model"
)

// Event describes one committed lifecycle transition. Name is the state the
// item entered.
type Event struct {
	Name       model.State
	UPC        int64
	Actor      string
	OccurredAt time.Time
}

// Hook receives transition events.
type Hook interface {
	Notify(ctx context.Context, event Event)
}

// HookFunc allows plain functions to satisfy Hook.
type HookFunc func(ctx context.Context, event Event)

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) {
	if fn == nil {
		return
	}
	fn(ctx, event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []Hook

// Emit forwards the event to all hooks. A panicking hook is contained so it
// cannot unwind into the caller.
func (h Hooks) Emit(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	for _, hook := range h {
		if hook == nil {
			continue
		}
		emit(ctx, hook, event)
	}
}

func emit(ctx context.Context, hook Hook, event Event) {
	defer func() { _ = recover() }()
	hook.Notify(ctx, event)
}

// ZapHook returns a hook that logs each event as a structured record.
func ZapHook(log *zap.Logger) Hook {
	if log == nil {
		log = zap.NewNop()
	}
	return HookFunc(func(_ context.Context, event Event) {
		log.Info("transition",
			zap.String("name", string(event.Name)),
			zap.Int64("upc", event.UPC),
			zap.String("actor", event.Actor),
			zap.Time("occurred_at", event.OccurredAt),
		)
	})
}
