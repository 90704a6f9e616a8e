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

// Package main is the entry point for the PromptGate gateway service.
//
// The gateway sits between client applications and generative-AI chat
// completion endpoints:
// - Scans prompts for PII before they leave the network
// - Blocks or masks requests per the configured policy
// - Forwards clean payloads verbatim to the upstream provider
// - Ships a hashed audit record for every request
//
// Usage:
//
//	./gateway
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	LLM_PROVIDER - "openai" or "azure" (default: openai)
//	OPENAI_API_KEY - upstream API key
//	POLICY_FILE - path to the policy YAML (default: policies/default.yaml)
//	AUDIT_STORE_URL - URL of the audit service (default: http://localhost:8081)
package main

import (
	"promptgate/platform/gateway"
)

func main() {
	gateway.Run()
}
