package async

import (
	"context"

	"github.com/socialpulse-lab/socialpulse/pkg/utils/logging"
)

// Dispatch runs fn on its own goroutine, detached from the caller's
// context so a finished HTTP request does not cancel a sync in flight.
// The request logger carries over; panics are recovered and logged.
func Dispatch(ctx context.Context, fn func(ctx context.Context) error) {
	bg := logging.With(context.Background(), logging.From(ctx))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.From(bg).Error("background task panicked", "panic", r)
			}
		}()

		if err := fn(bg); err != nil {
			logging.From(bg).Error("background task failed", "error", err)
		}
	}()
}
