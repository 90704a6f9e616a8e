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

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// SeedDemoData inserts a spread of demo audit records so dashboards and
// reports have content on a fresh install. Inserts are idempotent per
// run but each run generates fresh ids.
func SeedDemoData(store *Store) error {
	apps := []string{"crm-assistant", "support-bot", "sales-copilot", "hr-helper"}
	models := []string{"gpt-4o", "gpt-4o-mini", "gpt-35-turbo"}
	orgs := []string{"acme-corp", "globex"}

	// Roughly 1 in 5 records carries a violation
	flagSets := [][]string{
		nil, nil, nil, nil,
		{"EMAIL"},
		nil, nil, nil, nil,
		{"PAN"},
		nil, nil, nil, nil,
		{"PHONE", "EMAIL"},
		nil, nil, nil, nil,
		{"SSN"},
	}
	actions := map[string]string{
		"EMAIL": "masked",
		"PHONE": "masked",
		"PAN":   "blocked",
		"SSN":   "blocked",
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now().UTC()

	for i := 0; i < 200; i++ {
		flags := flagSets[i%len(flagSets)]
		metadata := map[string]interface{}{"action": "allowed"}
		latency := 200 + rng.Intn(1800)
		tokensIn := 50 + rng.Intn(500)
		tokensOut := 20 + rng.Intn(300)

		record := LogRecord{
			ID:         uuid.New(),
			OrgID:      orgs[i%len(orgs)],
			AppID:      apps[i%len(apps)],
			Model:      models[i%len(models)],
			Provider:   "openai",
			PromptHash: demoHash(i),
			LatencyMs:  &latency,
			RiskFlags:  flags,
			CreatedAt:  now.Add(-time.Duration(rng.Intn(30*24)) * time.Hour),
		}

		if len(flags) > 0 {
			action := actions[flags[0]]
			metadata["action"] = action
			if action == "blocked" {
				zero := 0
				record.LatencyMs = &zero
				metadata["reason"] = "Critical PII detected: " + flags[0]
			}
		}
		if metadata["action"] != "blocked" {
			record.TokenCountInput = &tokensIn
			record.TokenCountOutput = &tokensOut
		}
		record.Metadata = metadata

		if err := store.Insert(record); err != nil {
			return fmt.Errorf("failed to seed record %d: %w", i, err)
		}
	}
	return nil
}

func demoHash(i int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("demo-prompt-%d", i)))
	return hex.EncodeToString(sum[:])
}
