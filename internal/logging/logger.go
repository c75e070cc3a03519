// Package logging defines the structured logger contract used throughout
// the engine, mirroring the leveled, field-carrying interface the teacher
// codebase exposes from its mlog package.
package logging

// Logger is the common interface every component takes by constructor
// injection. No component reaches for a package-global logger.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)

	// WithFields returns a derived Logger that always includes the given
	// key/value pairs. Keys at even indices, values at odd indices.
	WithFields(fields ...any) Logger

	Sync() error
}

// Level represents the logging verbosity.
type Level int8

const (
	FatalLevel Level = iota
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

// ParseLevel converts a string level name ("debug", "info", ...) into a Level.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "fatal":
		return FatalLevel, true
	case "error":
		return ErrorLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "info":
		return InfoLevel, true
	case "debug":
		return DebugLevel, true
	default:
		return InfoLevel, false
	}
}
