package notifications

import (
	"context"
	"fmt"
	"log/slog"
)

// Sink delivers a notification over one transport. Real email/SMS/call
// integrations live outside this module; the engine only routes.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, n Notification) error

func (f SinkFunc) Deliver(ctx context.Context, n Notification) error { return f(ctx, n) }

// Dispatcher routes a due notification to the sink registered for its
// channel. Unrouted channels fall back to the default sink.
type Dispatcher struct {
	sinks    map[Channel]Sink
	fallback Sink
	logger   *slog.Logger
}

func NewDispatcher(fallback Sink, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sinks:    make(map[Channel]Sink),
		fallback: fallback,
		logger:   logger,
	}
}

// Route registers a sink for a channel, replacing any previous one.
func (d *Dispatcher) Route(ch Channel, sink Sink) {
	d.sinks[ch] = sink
}

// Dispatch sends a single notification. Transport failures come back as
// errors for the caller to record; they never panic and never retry here.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	sink, ok := d.sinks[n.Channel]
	if !ok {
		sink = d.fallback
	}
	if sink == nil {
		return fmt.Errorf("no sink for channel %s", n.Channel)
	}
	if err := sink.Deliver(ctx, n); err != nil {
		return fmt.Errorf("deliver %s via %s: %w", n.ID, n.Channel, err)
	}
	return nil
}

// LogSink writes deliveries to the log. Stands in for real transports in
// development, mirroring how the system channel surfaces in-app toasts.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(_ context.Context, n Notification) error {
	s.logger.Info("Notification delivered",
		"id", n.ID, "channel", n.Channel, "priority", n.Priority,
		"patient_id", n.PatientID, "message", n.Message)
	return nil
}
