// Copyright 2025 PromptGate
// SPDX-License-Identifier: Apache-2.0

// Package providers contains the upstream chat-completion adapters.
// Each adapter forwards the already-enforced request payload verbatim
// and hands back the upstream response untouched, so clients see exactly
// what the provider returned.
package providers
