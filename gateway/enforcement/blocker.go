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

package enforcement

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Block response error codes.
const (
	CodePIIDetected     = "pii_detected"
	CodeModelNotAllowed = "model_not_allowed"
	CodeAppNotAllowed   = "app_not_allowed"
)

// BlockResponse is the error envelope returned to the client when a
// request is rejected by policy.
type BlockResponse struct {
	ErrorType  string   `json:"type"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Violations []string `json:"violations"`
	RequestID  string   `json:"request_id,omitempty"`
}

// BlockPIIViolation builds the block response for detected PII.
func BlockPIIViolation(violations []string, requestID string) BlockResponse {
	return BlockResponse{
		ErrorType:  "policy_violation",
		Code:       CodePIIDetected,
		Message:    fmt.Sprintf("Request blocked: %s detected in prompt", strings.Join(violations, ", ")),
		Violations: violations,
		RequestID:  requestID,
	}
}

// BlockModelNotAllowed builds the block response for a disallowed model.
func BlockModelNotAllowed(model, requestID string) BlockResponse {
	return BlockResponse{
		ErrorType:  "policy_violation",
		Code:       CodeModelNotAllowed,
		Message:    fmt.Sprintf("Model '%s' is not allowed by policy", model),
		Violations: []string{"MODEL_NOT_ALLOWED:" + model},
		RequestID:  requestID,
	}
}

// BlockAppNotAllowed builds the block response for a disallowed app.
func BlockAppNotAllowed(appID, requestID string) BlockResponse {
	return BlockResponse{
		ErrorType:  "policy_violation",
		Code:       CodeAppNotAllowed,
		Message:    fmt.Sprintf("Application '%s' is not allowed by policy", appID),
		Violations: []string{"APP_NOT_ALLOWED:" + appID},
		RequestID:  requestID,
	}
}

// WriteJSON writes the block response as HTTP 403 with the standard
// {"error": {...}} envelope.
func (b BlockResponse) WriteJSON(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	return json.NewEncoder(w).Encode(map[string]interface{}{
		"error": b,
	})
}
