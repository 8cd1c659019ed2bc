package utils

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
)

var Log = logrus.New()

func SetLogLevel(level string) error {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		return fmt.Errorf("bad log level %q (available: debug, info, warn, error, fatal)", level)
	}
	return nil
}

// SplitList turns "a, b,,c" into [a b c].
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RetryLogger adapts the package logger to retryablehttp's LeveledLogger so
// transport retries show up at debug level instead of on stderr.
type RetryLogger struct {
	L *logrus.Logger
}

func (r RetryLogger) Error(msg string, kv ...interface{}) { r.entry(kv).Error(msg) }
func (r RetryLogger) Info(msg string, kv ...interface{})  { r.entry(kv).Debug(msg) }
func (r RetryLogger) Debug(msg string, kv ...interface{}) { r.entry(kv).Debug(msg) }
func (r RetryLogger) Warn(msg string, kv ...interface{})  { r.entry(kv).Warn(msg) }

func (r RetryLogger) entry(kv []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	l := r.L
	if l == nil {
		l = Log
	}
	return l.WithFields(fields)
}

// SortedKeys returns the keys of a set in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
