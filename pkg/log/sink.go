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

package log

import (
	"fmt"
	"io"
	"log/syslog"
	"os"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/sirupsen/logrus"
	lSyslog "github.com/sirupsen/logrus/hooks/syslog"
)

// Identifier is the syslog identifier attached to every message.
const Identifier = "vgpu_unlock"

// NewStderr returns a logrus logger writing text lines to stderr.
func NewStderr() *logrus.Logger {
	return NewWriter(os.Stderr)
}

// NewWriter returns a logrus logger writing text lines to w.
func NewWriter(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
	})
	return l
}

// NewSyslog returns a logrus logger that only writes to the local syslog
// daemon.
func NewSyslog() (*logrus.Logger, error) {
	hook, err := lSyslog.NewSyslogHook("", "", syslog.LOG_INFO|syslog.LOG_DAEMON, Identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to syslog: %w", err)
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.Hooks.Add(hook)
	return l, nil
}

// NewJournal returns a logrus logger that only writes to the systemd
// journal.
func NewJournal() (*logrus.Logger, error) {
	if !journal.Enabled() {
		return nil, fmt.Errorf("systemd journal is not available")
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.Hooks.Add(journalHook{})
	return l, nil
}

// journalHook forwards logrus entries to the systemd journal.
type journalHook struct{}

// Levels implements logrus.Hook.Levels.
func (journalHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.Fire.
func (journalHook) Fire(e *logrus.Entry) error {
	vars := map[string]string{
		"SYSLOG_IDENTIFIER": Identifier,
	}
	for k, v := range e.Data {
		vars[journalField(k)] = fmt.Sprint(v)
	}
	return journal.Send(e.Message, journalPriority(e.Level), vars)
}

// journalField converts a logrus field name into a journal field name, which
// must consist of upper case letters, digits and underscores.
func journalField(k string) string {
	f := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, k)
	return "VGPU_UNLOCK_" + f
}

func journalPriority(l logrus.Level) journal.Priority {
	switch l {
	case logrus.PanicLevel:
		return journal.PriEmerg
	case logrus.FatalLevel:
		return journal.PriCrit
	case logrus.ErrorLevel:
		return journal.PriErr
	case logrus.WarnLevel:
		return journal.PriWarning
	case logrus.InfoLevel:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}
