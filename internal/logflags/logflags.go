// Package logflags configures the logging used across rvtrace's engines,
// adapted from delve's pkg/logflags: a named flag ("stack") gates the
// unwinders' step-by-step log, rather than a single global log level. All
// three engines share that one flag and one logger, so their per-step
// logs are turned on and off together.
package logflags

import (
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu          sync.Mutex
	stackLogger bool
	logger      = newLogger()
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.Formatter = &logrus.TextFormatter{FullTimestamp: false}
	l.SetLevel(logrus.WarnLevel)
	return l
}

// Configure parses a comma-separated list of logging flags (currently just
// "stack") the same way delve's --log-dest/--log flags compose, and reads
// RVTRACE_LOG_LEVEL ("debug", "trace", ...) from the environment.
func Configure(flags string) {
	mu.Lock()
	defer mu.Unlock()
	for _, f := range strings.Split(flags, ",") {
		if strings.TrimSpace(f) == "stack" {
			stackLogger = true
		}
	}
	if lvl := os.Getenv("RVTRACE_LOG_LEVEL"); lvl != "" {
		if parsed, err := logrus.ParseLevel(lvl); err == nil {
			logger.SetLevel(parsed)
		}
	}
	if stackLogger && logger.GetLevel() < logrus.DebugLevel {
		logger.SetLevel(logrus.DebugLevel)
	}
}

// Stack reports whether per-step unwinder logging is enabled.
func Stack() bool {
	mu.Lock()
	defer mu.Unlock()
	return stackLogger
}

// StackLogger returns the logger engines should use for per-step
// diagnostics. Safe to call even when Stack() is false: the returned
// logger simply won't emit anything below its configured level.
func StackLogger() *logrus.Entry {
	return logger.WithField("component", "unwind")
}
