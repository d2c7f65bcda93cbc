package common

import "log/slog"

// LoggerMixin gives a component a replaceable logger. Every record the
// component writes carries a "component" attribute.
type LoggerMixin struct {
	Logger    *slog.Logger
	component string
}

// NewLoggerMixin creates a mixin logging through slog.Default.
func NewLoggerMixin(component string) LoggerMixin {
	return LoggerMixin{
		Logger:    slog.Default().With("component", component),
		component: component,
	}
}

// SetLogger replaces the logger. A nil logger is ignored.
func (l *LoggerMixin) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	if l.component != "" {
		logger = logger.With("component", l.component)
	}
	l.Logger = logger
}

// GetLogger returns the logger.
func (l *LoggerMixin) GetLogger() *slog.Logger {
	if l.Logger == nil {
		l.Logger = slog.Default()
	}
	return l.Logger
}
