// Copyright 2025 PromptGate
// SPDX-License-Identifier: Apache-2.0

// Package gateway implements the PromptGate enforcement service: an
// OpenAI-compatible chat completions proxy that scans prompts for PII,
// evaluates compliance policy, masks or blocks per the configured
// enforcement mode, forwards clean payloads upstream, and ships an
// audit record for every decision.
package gateway
