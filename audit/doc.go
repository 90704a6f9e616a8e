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

// Package audit implements the append-only audit service: the Postgres
// store the gateway ships records to, plus the read side for compliance
// teams (filtered listing, statistics, violation summaries and trends,
// CSV export, and PDF reports).
//
// Records hold prompt hashes, never prompt contents. There is no update
// or delete path anywhere in this package.
package audit
