package relay

import "log/slog"

var logger = slog.Default()

// SetDefaultLogger sets the logger used by relays without Config.Logger.
// slog.Default() is used by default.
func SetDefaultLogger(l *slog.Logger) {
	logger = l
}
