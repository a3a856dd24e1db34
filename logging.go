package auth

import "github.com/go-logr/logr"

// LogrLogger adapts a logr.Logger to Logger. Debug maps to V(1).
type LogrLogger struct {
	log logr.Logger
}

// NewLogrLogger returns a Logger backed by l.
func NewLogrLogger(l logr.Logger) *LogrLogger {
	return &LogrLogger{log: l}
}

func (l *LogrLogger) Debug(msg string, args ...any) {
	l.log.V(1).Info(msg, args...)
}

func (l *LogrLogger) Info(msg string, args ...any) {
	l.log.Info(msg, args...)
}

func (l *LogrLogger) Warn(msg string, args ...any) {
	l.log.Info(msg, append([]any{"level", "warn"}, args...)...)
}

// Error pulls the first "error" value out of args and hands it to logr.
func (l *LogrLogger) Error(msg string, args ...any) {
	var err error
	rest := make([]any, 0, len(args))
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			if key, ok := args[i].(string); ok && key == "error" && err == nil {
				if e, ok := args[i+1].(error); ok {
					err = e
					continue
				}
			}
			rest = append(rest, args[i], args[i+1])
			continue
		}
		rest = append(rest, args[i])
	}
	l.log.Error(err, msg, rest...)
}

// WithName returns a named child logger.
func (l *LogrLogger) WithName(name string) *LogrLogger {
	return &LogrLogger{log: l.log.WithName(name)}
}
