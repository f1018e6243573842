// Copyright 2024 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log implements the diagnostics sink used by vgpu_unlock.
//
// Messages go to the systemd journal when it is reachable, to syslog
// otherwise, and to stderr as a last resort. Logging never fails the caller.
package log

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Level is the log level.
type Level uint32

// Levels are ordered by verbosity. A logger at a given level also emits every
// less verbose level.
const (
	// Warning indicates that output should always be emitted.
	Warning Level = iota

	// Info indicates that output should normally be emitted.
	Info

	// Debug indicates that output should not normally be emitted.
	Debug
)

func (l Level) String() string {
	switch l {
	case Warning:
		return "Warning"
	case Info:
		return "Info"
	case Debug:
		return "Debug"
	default:
		return fmt.Sprintf("Invalid level: %d", l)
	}
}

// Logger is a high-level logging interface.
type Logger interface {
	// Debugf logs a debug statement.
	Debugf(format string, v ...any)

	// Infof logs at an info level.
	Infof(format string, v ...any)

	// Warningf logs at a warning level.
	Warningf(format string, v ...any)

	// Errorf logs at an error level. Errors are emitted at every level.
	Errorf(format string, v ...any)

	// IsLogging returns true iff this level is being logged. This may be
	// used to short-circuit expensive operations for debugging calls.
	IsLogging(level Level) bool
}

// BasicLogger is the default implementation of Logger, backed by logrus.
type BasicLogger struct {
	level atomic.Uint32
	entry *logrus.Entry
}

// NewBasicLogger returns a BasicLogger writing through l. Every entry
// carries the pid of the calling process, since the hook runs inside
// several nvidia daemons at once.
func NewBasicLogger(l *logrus.Logger, level Level) *BasicLogger {
	b := &BasicLogger{
		entry: l.WithField("pid", unix.Getpid()),
	}
	b.SetLevel(level)
	return b
}

// SetLevel sets the logging level.
func (b *BasicLogger) SetLevel(level Level) {
	b.level.Store(uint32(level))
	switch level {
	case Debug:
		b.entry.Logger.SetLevel(logrus.DebugLevel)
	case Info:
		b.entry.Logger.SetLevel(logrus.InfoLevel)
	default:
		b.entry.Logger.SetLevel(logrus.WarnLevel)
	}
}

// Debugf implements Logger.Debugf.
func (b *BasicLogger) Debugf(format string, v ...any) {
	if b.IsLogging(Debug) {
		b.entry.Debugf(format, v...)
	}
}

// Infof implements Logger.Infof.
func (b *BasicLogger) Infof(format string, v ...any) {
	if b.IsLogging(Info) {
		b.entry.Infof(format, v...)
	}
}

// Warningf implements Logger.Warningf.
func (b *BasicLogger) Warningf(format string, v ...any) {
	b.entry.Warnf(format, v...)
}

// Errorf implements Logger.Errorf.
func (b *BasicLogger) Errorf(format string, v ...any) {
	b.entry.Errorf(format, v...)
}

// IsLogging implements Logger.IsLogging.
func (b *BasicLogger) IsLogging(level Level) bool {
	return Level(b.level.Load()) >= level
}

var target atomic.Pointer[Logger]

func init() {
	SetTarget(NewBasicLogger(NewStderr(), Info))
}

// Log retrieves the global logger.
func Log() Logger {
	return *target.Load()
}

// SetTarget sets the log target and returns the previous one.
func SetTarget(l Logger) Logger {
	old := target.Swap(&l)
	if old == nil {
		return nil
	}
	return *old
}

// Debugf logs to the global logger.
func Debugf(format string, v ...any) {
	Log().Debugf(format, v...)
}

// Infof logs to the global logger.
func Infof(format string, v ...any) {
	Log().Infof(format, v...)
}

// Warningf logs to the global logger.
func Warningf(format string, v ...any) {
	Log().Warningf(format, v...)
}

// Errorf logs to the global logger.
func Errorf(format string, v ...any) {
	Log().Errorf(format, v...)
}

// IsLogging returns whether the global logger is logging.
func IsLogging(level Level) bool {
	return Log().IsLogging(level)
}

// Environment variables consulted by FromEnv.
const (
	// EnvSink selects the sink: "journal", "syslog", "stderr" or empty for
	// the first one available.
	EnvSink = "VGPU_UNLOCK_LOG"

	// EnvDebug enables debug output when set to a non-empty value other
	// than "0".
	EnvDebug = "VGPU_UNLOCK_DEBUG"
)

// FromEnv builds a logger according to EnvSink and EnvDebug. Sinks that
// cannot be opened fall back to stderr.
func FromEnv() *BasicLogger {
	level := Info
	if v := os.Getenv(EnvDebug); v != "" && v != "0" {
		level = Debug
	}

	var (
		l   *logrus.Logger
		err error
	)
	switch sink := strings.ToLower(os.Getenv(EnvSink)); sink {
	case "journal":
		l, err = NewJournal()
	case "syslog":
		l, err = NewSyslog()
	case "stderr":
		l = NewStderr()
	case "":
		if l, err = NewJournal(); err != nil {
			l, err = NewSyslog()
		}
	default:
		err = fmt.Errorf("unknown log sink %q", sink)
	}
	if err != nil {
		l = NewStderr()
		l.Warnf("%v, logging to stderr", err)
	}
	return NewBasicLogger(l, level)
}
