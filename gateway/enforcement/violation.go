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

import "time"

// Violation describes a policy enforcement event worth alerting on.
// It is handed to the alert sinks after the client response is written.
type Violation struct {
	ViolationType string    `json:"violation_type"`
	Violations    []string  `json:"violations"`
	OrgID         string    `json:"org_id"`
	AppID         string    `json:"app_id"`
	UserID        string    `json:"user_id"`
	Model         string    `json:"model"`
	RequestID     string    `json:"request_id"`
	Timestamp     time.Time `json:"timestamp"`
	ActionTaken   string    `json:"action_taken"`
	Severity      string    `json:"severity"`
}
