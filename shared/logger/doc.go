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

// Package logger provides structured JSON logging for PromptGate services.
//
// Every log line is a single JSON object written to stdout so that container
// runtimes and log shippers can ingest it without extra parsing. Entries
// carry the component name, the deployment instance, and - when available -
// the org id and request id of the request being served, which makes it
// possible to reconstruct the full lifecycle of a single proxied request
// across the gateway and audit services.
//
// Usage:
//
//	log := logger.New("gateway")
//	log.Info(orgID, requestID, "request forwarded", map[string]interface{}{
//		"model":    "gpt-4o",
//		"provider": "openai",
//	})
//
// The logger intentionally has no log levels configuration: DEBUG entries
// are always emitted and filtering is left to the log pipeline.
package logger
