// Package notify forwards order lifecycle events to users. Delivery is
// fire-and-forget: the lifecycle never blocks on or fails because of a sink.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Event is a lifecycle notification payload.
type Event struct {
	OrderID string
	Kind    string
	UserID  string
	Payload map[string]string
}

// Sink receives lifecycle events. Implementations must not block the caller;
// failures are logged by the implementation, never propagated.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// LogSink writes events to the structured log. It stands in for a real
// delivery channel (email, in-app feed) which is out of scope here.
type LogSink struct {
	lg *zap.Logger
}

// NewLogSink returns a Sink that logs every event at info level.
func NewLogSink(lg *zap.Logger) *LogSink {
	return &LogSink{lg: lg}
}

func (s *LogSink) Emit(_ context.Context, ev Event) {
	s.lg.Info("order event",
		zap.String("order_id", ev.OrderID),
		zap.String("kind", ev.Kind),
		zap.String("user_id", ev.UserID),
		zap.Any("payload", ev.Payload),
	)
}

// Discard is a Sink that drops all events. Useful in tests.
type Discard struct{}

func (Discard) Emit(context.Context, Event) {}
