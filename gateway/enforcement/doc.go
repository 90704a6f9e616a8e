// Copyright 2025 PromptGate
// SPDX-License-Identifier: Apache-2.0

// Package enforcement carries out policy decisions on chat completion
// requests: masking detected PII in message content, building the block
// error envelope returned to clients, and describing violations for the
// alerting sinks.
package enforcement
