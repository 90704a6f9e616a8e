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

// Package policy implements the declarative compliance policy: the typed
// policy document with per-org overrides, the YAML loader with its
// default-policy fallback, and the evaluation engine that turns a PII scan
// plus request metadata into an ALLOW / BLOCK / MASK / WARN decision.
//
// Evaluation precedence is fixed: model rules, then app rules, then PII
// rules in block > mask > warn order. The engine supports hot reload via
// an atomic policy swap, so evaluation never takes a lock.
package policy
