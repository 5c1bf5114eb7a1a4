package logx

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger provides structured key/value logging for fieldclock components.
// Each component gets its own Logger carrying a fixed component field.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger creates a logger for a component at the given level
// (trace|debug|info|warn|error). Unknown levels fall back to info.
func NewLogger(level, component string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	base.SetLevel(parsed)

	return &Logger{entry: base.WithField("component", component)}
}

// WithComponent returns a logger that reuses the underlying output and level
// but tags entries with a different component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{entry: l.entry.Logger.WithField("component", component)}
}

// fields converts variadic key/value pairs into logrus fields. A trailing key
// without a value is recorded under "extra".
func fields(keysAndValues []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		f[key] = keysAndValues[i+1]
	}
	if len(keysAndValues)%2 == 1 {
		f["extra"] = keysAndValues[len(keysAndValues)-1]
	}
	return f
}

// Trace logs a message at trace level with optional key/value pairs.
func (l *Logger) Trace(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Trace(msg)
}

// Debug logs a message at debug level with optional key/value pairs.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Debug(msg)
}

// Info logs a message at info level with optional key/value pairs.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Info(msg)
}

// Warn logs a message at warn level with optional key/value pairs.
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Warn(msg)
}

// Error logs a message at error level with optional key/value pairs.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Error(msg)
}
