// Copyright 2025 PromptGate
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

package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects the stdlib log output for the duration of fn
func captureOutput(fn func()) string {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer log.SetOutput(nil)
	fn()
	return buf.String()
}

func parseEntry(t *testing.T, line string) LogEntry {
	t.Helper()
	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(line)), &entry),
		"log line is not valid JSON: %s", line)
	return entry
}

func TestNewDefaults(t *testing.T) {
	l := New("gateway")

	assert.Equal(t, "gateway", l.Component)
	assert.NotEmpty(t, l.InstanceID)
	assert.NotEmpty(t, l.Container)
}

func TestInfoProducesJSON(t *testing.T) {
	l := New("gateway")

	out := captureOutput(func() {
		l.Info("org-1", "req-123", "request forwarded", map[string]interface{}{
			"model": "gpt-4o",
		})
	})

	entry := parseEntry(t, out)
	assert.Equal(t, INFO, entry.Level)
	assert.Equal(t, "org-1", entry.OrgID)
	assert.Equal(t, "req-123", entry.RequestID)
	assert.Equal(t, "request forwarded", entry.Message)
	assert.Equal(t, "gpt-4o", entry.Fields["model"])
}

func TestLevels(t *testing.T) {
	l := New("audit")

	tests := []struct {
		name  string
		fn    func()
		level LogLevel
	}{
		{"debug", func() { l.Debug("", "", "d", nil) }, DEBUG},
		{"info", func() { l.Info("", "", "i", nil) }, INFO},
		{"warn", func() { l.Warn("", "", "w", nil) }, WARN},
		{"error", func() { l.Error("", "", "e", nil) }, ERROR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureOutput(tt.fn)
			entry := parseEntry(t, out)
			assert.Equal(t, tt.level, entry.Level)
		})
	}
}

func TestInfoWithDuration(t *testing.T) {
	l := New("gateway")

	out := captureOutput(func() {
		l.InfoWithDuration("org-1", "req-1", "upstream call", 42500*time.Microsecond, nil)
	})

	entry := parseEntry(t, out)
	assert.Equal(t, 42.5, entry.Fields["duration_ms"])
}

func TestErrorWithCode(t *testing.T) {
	l := New("gateway")

	out := captureOutput(func() {
		l.ErrorWithCode("org-1", "req-1", "upstream_error", "upstream failed", nil)
	})

	entry := parseEntry(t, out)
	assert.Equal(t, ERROR, entry.Level)
	assert.Equal(t, "upstream_error", entry.Fields["error_code"])
}
