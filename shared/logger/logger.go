package logger

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// Init configures the standard logrus logger.
func Init(level string, json bool) {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	if json {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// WithContext stores entry in ctx.
func WithContext(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

// FromContext returns the request scoped entry, or one on the standard logger.
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		switch v := ctx.Value(ctxKey{}).(type) {
		case *logrus.Entry:
			return v
		case *logrus.Logger:
			return logrus.NewEntry(v)
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
