package logrus

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"imagesaver/domain/observability"
)

// Logger implements observability.Logger on top of logrus
type Logger struct {
	entry *logrus.Entry
}

// Options configures the underlying logrus instance
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	Output io.Writer
}

// NewLogger creates a logrus backed logger
func NewLogger(opts Options) (observability.Logger, error) {
	base := logrus.New()

	if opts.Output != nil {
		base.SetOutput(opts.Output)
	} else {
		base.SetOutput(os.Stdout)
	}

	level, err := logrus.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	base.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	case "", "text":
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	default:
		return nil, fmt.Errorf("unsupported log format %q", opts.Format)
	}

	return &Logger{entry: logrus.NewEntry(base)}, nil
}

// Debug logs debug messages
func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.with(fields).Debug(msg)
}

// Info logs informational messages
func (l *Logger) Info(msg string, fields ...interface{}) {
	l.with(fields).Info(msg)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.with(fields).Warn(msg)
}

// Error logs error messages
func (l *Logger) Error(msg string, fields ...interface{}) {
	l.with(fields).Error(msg)
}

// WithFields returns a new Logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) observability.Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// with converts alternating key/value pairs into logrus fields.
// A dangling key is logged under "extra".
func (l *Logger) with(fields []interface{}) *logrus.Entry {
	if len(fields) == 0 {
		return l.entry
	}

	data := make(logrus.Fields, len(fields)/2+1)
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			data["extra"] = fields[i]
			break
		}
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", fields[i])
		}
		value := fields[i+1]
		if err, isErr := value.(error); isErr && err != nil {
			value = err.Error()
		}
		data[key] = value
	}

	return l.entry.WithFields(data)
}
