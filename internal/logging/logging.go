/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package logging

import (
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// DebugEnabledFunc is a function type that determines if debug logging is enabled
// We use a function because we want to check the setting at log time, not when the logger is created
type DebugEnabledFunc func() bool

// DebugCheckFormatter drops debug entries unless debugEnabled reports true at
// format time.
type DebugCheckFormatter struct {
	formatter    logrus.Formatter
	debugEnabled DebugEnabledFunc
}

// Format implements logrus.Formatter.Format
func (f *DebugCheckFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if entry.Level >= logrus.DebugLevel {
		if f.debugEnabled == nil || !f.debugEnabled() {
			return nil, nil
		}
	}
	return f.formatter.Format(entry)
}

// NewLogger creates a new logger with dynamic debug checking
func NewLogger(out io.Writer, debugEnabled DebugEnabledFunc) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	// Let every level through; the formatter does the filtering.
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&DebugCheckFormatter{
		formatter: &logrus.TextFormatter{
			DisableTimestamp: true,
			DisableColors:    true,
		},
		debugEnabled: debugEnabled,
	})
	return logger
}

// Discard returns a logger that writes nowhere.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// LoggerSetterGetter is an interface that can set and get a logger
type LoggerSetterGetter interface {
	// SetLogger replaces the logger
	SetLogger(newLogger logrus.FieldLogger)
	// Logger returns the current logger
	Logger() logrus.FieldLogger
}

// LogHolder stores a logger that may be swapped while other goroutines log.
type LogHolder struct {
	logger atomic.Pointer[logrus.FieldLogger]
}

// Logger returns the logger for the LogHolder. If unset, returns a discarding logger.
func (l *LogHolder) Logger() logrus.FieldLogger {
	if lg := l.logger.Load(); lg != nil {
		return *lg
	}
	return Discard()
}

// SetLogger sets the logger for the LogHolder. A nil logger discards.
func (l *LogHolder) SetLogger(newLogger logrus.FieldLogger) {
	if newLogger == nil {
		newLogger = Discard()
	}
	l.logger.Store(&newLogger)
}

var _ LoggerSetterGetter = &LogHolder{}
