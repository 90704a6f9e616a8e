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
	"encoding/json"
	"log"
	"os"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// Logger provides structured logging with per-request correlation
type Logger struct {
	Component  string
	InstanceID string
	Container  string
}

// LogEntry is a single structured log line. OrgID and RequestID tie the
// entry back to the tenant and the in-flight request that produced it.
type LogEntry struct {
	Timestamp  string                 `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Component  string                 `json:"component"`
	InstanceID string                 `json:"instance_id"`
	Container  string                 `json:"container"`
	OrgID      string                 `json:"org_id,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// New creates a new Logger for the specified component
func New(component string) *Logger {
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
	}
}

// Log creates a structured log entry and writes it to stdout
func (l *Logger) Log(level LogLevel, orgID, requestID, message string, fields map[string]interface{}) {
	entry := LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		Component:  l.Component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		OrgID:      orgID,
		RequestID:  requestID,
		Message:    message,
		Fields:     fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		log.Printf("ERROR: Failed to marshal log entry: %v", err)
		return
	}

	log.Println(string(jsonBytes))
}

// Info logs an informational message
func (l *Logger) Info(orgID, requestID, message string, fields map[string]interface{}) {
	l.Log(INFO, orgID, requestID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(orgID, requestID, message string, fields map[string]interface{}) {
	l.Log(ERROR, orgID, requestID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(orgID, requestID, message string, fields map[string]interface{}) {
	l.Log(WARN, orgID, requestID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(orgID, requestID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, orgID, requestID, message, fields)
}

// InfoWithDuration logs an info message with a duration_ms field
func (l *Logger) InfoWithDuration(orgID, requestID, message string, duration time.Duration, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = float64(duration.Microseconds()) / 1000
	l.Info(orgID, requestID, message, fields)
}

// ErrorWithCode logs an error tagged with a stable machine-readable code
// so log pipelines can alert on it.
func (l *Logger) ErrorWithCode(orgID, requestID, code, message string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["error_code"] = code
	l.Error(orgID, requestID, message, fields)
}
