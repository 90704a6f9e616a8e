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

// Package main is the entry point for the PromptGate audit service.
//
// The audit service stores the gateway's append-only audit records in
// PostgreSQL and serves the read side for compliance teams: filtered
// listing, statistics, violation summaries and trends, CSV export, and
// PDF reports.
//
// Usage:
//
//	./audit [-seed]
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8081)
//	DATABASE_URL - PostgreSQL connection string
//	AUDIT_JWT_SECRET - enables bearer auth on the read side when set
//	AUDIT_SERVICE_TOKEN - shared token the gateway presents on writes
package main

import (
	"flag"

	"promptgate/platform/audit"
)

func main() {
	seed := flag.Bool("seed", false, "insert demo audit data after connecting")
	flag.Parse()

	audit.Run(*seed)
}
