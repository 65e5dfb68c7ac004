package logging

import (
	"fmt"
	"strings"
	"testing"

	"github.com/arloliu/rankalloc/types"
)

// TestLogger implements types.Logger using testing.TB for output.
// This ensures log messages appear in test output next to the failing assertion.
type TestLogger struct {
	tb     testing.TB
	prefix string
}

// Compile-time assertion that TestLogger implements Logger.
var _ types.Logger = (*TestLogger)(nil)

// NewTest creates a new test logger that writes to tb.
//
// Parameters:
//   - tb: The testing.TB instance to write logs to
//
// Returns:
//   - *TestLogger: A new logger instance that uses tb.Logf()
func NewTest(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

// ForRank returns a test logger prefixing every line with the rank.
func (l *TestLogger) ForRank(rank int) *TestLogger {
	return &TestLogger{tb: l.tb, prefix: fmt.Sprintf("[rank %d] ", rank)}
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *TestLogger) Debug(msg string, keysAndValues ...any) {
	l.tb.Logf("%sDEBUG: %s %s", l.prefix, msg, formatKeyValues(keysAndValues))
}

// Info logs an info-level message with optional key-value pairs.
func (l *TestLogger) Info(msg string, keysAndValues ...any) {
	l.tb.Logf("%sINFO: %s %s", l.prefix, msg, formatKeyValues(keysAndValues))
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *TestLogger) Warn(msg string, keysAndValues ...any) {
	l.tb.Logf("%sWARN: %s %s", l.prefix, msg, formatKeyValues(keysAndValues))
}

// Error logs an error-level message with optional key-value pairs.
func (l *TestLogger) Error(msg string, keysAndValues ...any) {
	l.tb.Logf("%sERROR: %s %s", l.prefix, msg, formatKeyValues(keysAndValues))
}

// Fatal logs a fatal-level message and fails the test.
func (l *TestLogger) Fatal(msg string, keysAndValues ...any) {
	l.tb.Fatalf("%sFATAL: %s %s", l.prefix, msg, formatKeyValues(keysAndValues))
}

func formatKeyValues(keysAndValues []any) string {
	if len(keysAndValues) == 0 {
		return ""
	}

	var sb strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&sb, "%v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&sb, "%v=<missing>", keysAndValues[i])
		}
	}

	return sb.String()
}
