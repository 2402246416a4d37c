// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the logger shared by every package of the module. It is replaced by Configure.
var Log *Logger

func init() {
	Log = &Logger{logrus.New()}
}

// LogConfig describes where and how log lines are written.
type LogConfig struct {
	Level     string `mapstructure:"level"`
	Output    string `mapstructure:"output"`
	Format    string `mapstructure:"format"`
	NoColors  bool   `mapstructure:"no_colors"`
	Timestamp bool   `mapstructure:"full_timestamp"`
}

// Logger wraps logrus so each entry carries the package and file it was logged from.
type Logger struct {
	*logrus.Logger
}

// Configure builds a new Log from the given config. Output may be stdout, stderr, null or
// a file path.
func Configure(lc *LogConfig) error {
	l := logrus.New()

	if lc.Level != "" {
		level, err := logrus.ParseLevel(lc.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", lc.Level, err)
		}
		l.SetLevel(level)
	}

	out, err := openOutput(lc.Output)
	if err != nil {
		return err
	}
	l.SetOutput(out)

	switch strings.ToLower(lc.Format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{
			DisableColors: lc.NoColors,
			FullTimestamp: lc.Timestamp,
		})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", lc.Format)
	}

	Log = &Logger{l}
	return nil
}

func openOutput(target string) (io.Writer, error) {
	switch target {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "null":
		return io.Discard, nil
	}
	fp, err := os.OpenFile(target, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", target, err)
	}
	return fp, nil
}

func (l *Logger) commonFields() *logrus.Entry {
	_, file, _, ok := runtime.Caller(2)
	if !ok {
		return logrus.NewEntry(l.Logger)
	}
	return l.WithFields(logrus.Fields{
		"package":  path.Base(path.Dir(file)),
		"fileName": path.Base(file),
	})
}

// WithSession returns an entry tagged with the STOMP session id.
func (l *Logger) WithSession(sessionId string) *logrus.Entry {
	return l.commonFields().WithField("session", sessionId)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.commonFields().Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.commonFields().Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.commonFields().Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.commonFields().Errorf(format, args...)
}

func (l *Logger) Infoln(args ...interface{}) {
	l.commonFields().Infoln(args...)
}

func (l *Logger) Errorln(args ...interface{}) {
	l.commonFields().Errorln(args...)
}
