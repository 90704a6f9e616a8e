// Copyright 2025 PromptGate
// SPDX-License-Identifier: Apache-2.0

package enforcement

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockPIIViolation(t *testing.T) {
	b := BlockPIIViolation([]string{"PAN", "SSN"}, "req-1")

	assert.Equal(t, CodePIIDetected, b.Code)
	assert.Equal(t, "Request blocked: PAN, SSN detected in prompt", b.Message)
	assert.Equal(t, "policy_violation", b.ErrorType)
}

func TestBlockModelNotAllowed(t *testing.T) {
	b := BlockModelNotAllowed("gpt-3.5-turbo", "req-2")

	assert.Equal(t, CodeModelNotAllowed, b.Code)
	assert.Equal(t, []string{"MODEL_NOT_ALLOWED:gpt-3.5-turbo"}, b.Violations)
}

func TestBlockAppNotAllowed(t *testing.T) {
	b := BlockAppNotAllowed("rogue-app", "req-3")

	assert.Equal(t, CodeAppNotAllowed, b.Code)
	assert.Equal(t, []string{"APP_NOT_ALLOWED:rogue-app"}, b.Violations)
}

func TestWriteJSONEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	b := BlockPIIViolation([]string{"SSN"}, "req-9")

	require.NoError(t, b.WriteJSON(rec))

	assert.Equal(t, 403, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Error struct {
			Type       string   `json:"type"`
			Code       string   `json:"code"`
			Message    string   `json:"message"`
			Violations []string `json:"violations"`
			RequestID  string   `json:"request_id"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "policy_violation", body.Error.Type)
	assert.Equal(t, "pii_detected", body.Error.Code)
	assert.Equal(t, "req-9", body.Error.RequestID)
	assert.Equal(t, []string{"SSN"}, body.Error.Violations)
}
