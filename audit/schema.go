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

package audit

import "fmt"

// schemaStatements creates the audit_logs table and its indexes. Every
// statement is idempotent so boot-time application is safe on replicas.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		org_id VARCHAR(255) NOT NULL,
		app_id VARCHAR(255) NOT NULL,
		user_id VARCHAR(255),
		model VARCHAR(255) NOT NULL,
		provider VARCHAR(100) NOT NULL,
		prompt_hash VARCHAR(64) NOT NULL,
		token_count_input INTEGER,
		token_count_output INTEGER,
		latency_ms INTEGER,
		risk_flags JSONB NOT NULL DEFAULT '[]'::jsonb,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_org_id ON audit_logs (org_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_app_id ON audit_logs (app_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_model ON audit_logs (model)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_provider ON audit_logs (provider)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_risk_flags ON audit_logs USING GIN (risk_flags)`,
}

// EnsureSchema applies the audit schema at boot.
func (s *Store) EnsureSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply audit schema: %w", err)
		}
	}
	return nil
}
