// Copyright 2025 PromptGate
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptgate/platform/gateway/enforcement"
)

func testViolation() enforcement.Violation {
	return enforcement.Violation{
		ViolationType: "pii_detected",
		Violations:    []string{"PAN", "SSN"},
		OrgID:         "org-1",
		AppID:         "crm",
		UserID:        "u-9",
		Model:         "gpt-4o",
		RequestID:     "req-1",
		Timestamp:     time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		ActionTaken:   "blocked",
		Severity:      "critical",
	}
}

func TestWebhookSinkPostsAttachment(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	a := NewAlerter(Config{AlertWebhookURL: server.URL})
	require.True(t, a.WebhookEnabled())

	a.SendAlert(context.Background(), testViolation())

	require.NotNil(t, payload)
	attachments := payload["attachments"].([]interface{})
	require.Len(t, attachments, 1)
	attachment := attachments[0].(map[string]interface{})
	assert.Equal(t, severityColors["critical"], attachment["color"])
}

func TestWebhookFailureOnlyLogged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	a := NewAlerter(Config{AlertWebhookURL: server.URL})

	// Must return without panicking or surfacing the failure
	a.SendAlert(context.Background(), testViolation())
}

func TestEmailSinkRequiresFromAndTo(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		enabled bool
	}{
		{"all set", Config{SMTPHost: "smtp.example.com", AlertEmailFrom: "gw@example.com", AlertEmailTo: "sec@example.com"}, true},
		{"missing from", Config{SMTPHost: "smtp.example.com", AlertEmailTo: "sec@example.com"}, false},
		{"missing to", Config{SMTPHost: "smtp.example.com", AlertEmailFrom: "gw@example.com"}, false},
		{"missing host", Config{AlertEmailFrom: "gw@example.com", AlertEmailTo: "sec@example.com"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.enabled, NewAlerter(tt.cfg).emailEnabled())
		})
	}
}

func TestNoSinksConfiguredIsNoop(t *testing.T) {
	a := NewAlerter(Config{})
	assert.False(t, a.WebhookEnabled())
	a.SendAlert(context.Background(), testViolation())
}
