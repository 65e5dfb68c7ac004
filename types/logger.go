package types

// Logger defines methods for structured logging.
//
// Every method takes a message followed by alternating key-value pairs, the
// calling convention shared by log/slog and zap.SugaredLogger. The allocator
// logs each rebalancing decision at Info, degenerate-but-survivable rounds at
// Warn and per-row transport detail at Debug.
type Logger interface {
	// Debug logs a message at DebugLevel.
	Debug(msg string, keysAndValues ...any)

	// Info logs a message at InfoLevel.
	Info(msg string, keysAndValues ...any)

	// Warn logs a message at WarnLevel.
	Warn(msg string, keysAndValues ...any)

	// Error logs a message at ErrorLevel.
	Error(msg string, keysAndValues ...any)

	// Fatal logs a message at FatalLevel and terminates the process.
	//
	// The allocator never calls Fatal itself; protocol violations are returned
	// as errors so the host can abort every rank in a controlled way.
	Fatal(msg string, keysAndValues ...any)
}
