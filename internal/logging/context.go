package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldChannel is the standardized structured logging key for monitor channel numbers.
	FieldChannel = "channel"
	// FieldSource is the source log file summarized by a channel.
	FieldSource = "source"
	// FieldSnapshotPath is the snapshot file a record refers to.
	FieldSnapshotPath = "snapshot_path"
	// FieldEventType classifies a record for filtering (e.g. "snapshot_published").
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type channelKey struct{}

// WithChannel returns a context that carries the monitor channel number.
func WithChannel(ctx context.Context, channel int) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, channelKey{}, channel)
}

// ChannelFromContext returns the channel stored by WithChannel.
func ChannelFromContext(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	channel, ok := ctx.Value(channelKey{}).(int)
	return channel, ok
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if channel, ok := ChannelFromContext(ctx); ok {
		return []slog.Attr{slog.Int(FieldChannel, channel)}
	}
	return nil
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
