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

// Package detection finds personally identifiable information in chat
// prompts before they leave the perimeter.
//
// The package has three layers:
//
//   - the pattern registry: compiled regex recognisers for each PII type,
//     with a severity and description (patterns.go). Compiled once at
//     startup, read-only afterwards.
//   - the Detector: runs the recognisers over one string and resolves
//     overlapping matches, keeping the higher-severity span (detector.go).
//   - the Scanner: applies the Detector to every message of a conversation
//     and aggregates totals, the highest severity seen, and the distinct
//     PII types found (scanner.go).
//
// All three are safe for concurrent use; nothing in this package mutates
// shared state after construction.
package detection
