package logging

// Logger is a minimal interface compatible with stdlib loggers.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Noop discards all log messages.
type Noop struct{}

func (Noop) Printf(string, ...interface{}) {}

// OrNoop returns l, or a Noop logger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return Noop{}
	}
	return l
}
