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
	"sync"
)

// Recorder is a Logger that keeps every formatted message in memory. It is
// used to inspect log output in tests and by tools that report patches.
type Recorder struct {
	// Level is the most verbose level recorded.
	Level Level

	mu    sync.Mutex
	lines []string
}

func (r *Recorder) record(prefix, format string, v []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, prefix+fmt.Sprintf(format, v...))
}

// Debugf implements Logger.Debugf.
func (r *Recorder) Debugf(format string, v ...any) {
	if r.IsLogging(Debug) {
		r.record("D ", format, v)
	}
}

// Infof implements Logger.Infof.
func (r *Recorder) Infof(format string, v ...any) {
	if r.IsLogging(Info) {
		r.record("I ", format, v)
	}
}

// Warningf implements Logger.Warningf.
func (r *Recorder) Warningf(format string, v ...any) {
	r.record("W ", format, v)
}

// Errorf implements Logger.Errorf.
func (r *Recorder) Errorf(format string, v ...any) {
	r.record("E ", format, v)
}

// IsLogging implements Logger.IsLogging.
func (r *Recorder) IsLogging(level Level) bool {
	return r.Level >= level
}

// Lines returns the recorded messages, each prefixed with the first letter
// of its level and a space.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Reset discards the recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
}
