package log

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogAdapter writes bus events to an slog.Logger. Useful in development
// to watch protocol exchanges on the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter writing to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ExchangeID != "" {
		attrs = append(attrs, slog.String("exchange_id", event.ExchangeID))
	}
	if event.Address != 0 {
		attrs = append(attrs, slog.String("address", addrString(event.Address)))
	}
	if event.Module != "" {
		attrs = append(attrs, slog.String("module", event.Module))
	}
	if event.Command != "" {
		attrs = append(attrs, slog.String("command", event.Command))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("ready", event.Frame.Ready),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Retry != nil:
		attrs = append(attrs,
			slog.Int("attempt", event.Retry.Attempt),
			slog.Int("budget", event.Retry.Budget),
			slog.Duration("delay", event.Retry.Delay),
		)
	case event.State != nil:
		attrs = append(attrs,
			slog.String("entity", event.State.Entity),
			slog.String("new_state", event.State.NewState),
		)
		if event.State.OldState != "" {
			attrs = append(attrs, slog.String("old_state", event.State.OldState))
		}
		if event.State.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.State.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "bus", attrs...)
}

// addrString renders a bus address the way operators write them.
func addrString(addr uint16) string {
	return fmt.Sprintf("%#04x", addr)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
