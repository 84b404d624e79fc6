// Package log wraps logrus behind a small package-level API so callers never import
// logrus directly, matching the global-logger convenience-wrapper shape used throughout
// the campaign controller.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

var global = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Fields is a typed alias so callers don't need to import logrus for WithFields.
type Fields = logrus.Fields

// SetLevel parses and applies a level name (debug, info, warn, error); invalid names
// are ignored and leave the current level unchanged.
func SetLevel(level string) {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	global.SetLevel(lv)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return global.WithField(key, value)
}

func WithFields(fields Fields) *logrus.Entry {
	return global.WithFields(fields)
}

func Debug(args ...interface{}) { global.Debug(args...) }
func Debugf(format string, args ...interface{}) { global.Debugf(format, args...) }

func Info(args ...interface{}) { global.Info(args...) }
func Infof(format string, args ...interface{}) { global.Infof(format, args...) }

func Warn(args ...interface{}) { global.Warn(args...) }
func Warnf(format string, args ...interface{}) { global.Warnf(format, args...) }

func Error(args ...interface{}) { global.Error(args...) }
func Errorf(format string, args ...interface{}) { global.Errorf(format, args...) }

func Fatal(args ...interface{}) { global.Fatal(args...) }
func Fatalf(format string, args ...interface{}) { global.Fatalf(format, args...) }
