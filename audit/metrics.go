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

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics
var (
	promLogWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "promptgate_audit_log_writes_total",
			Help: "Total number of audit log records written",
		},
	)
	promQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptgate_audit_query_duration_milliseconds",
			Help:    "Read endpoint duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"endpoint"},
	)
	promExports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptgate_audit_exports_total",
			Help: "Total number of export and report downloads, by format",
		},
		[]string{"format"},
	)
	promAuthFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "promptgate_audit_auth_failures_total",
			Help: "Total number of rejected authentication attempts",
		},
	)
)

func init() {
	// Register Prometheus metrics
	prometheus.MustRegister(promLogWrites)
	prometheus.MustRegister(promQueryDuration)
	prometheus.MustRegister(promExports)
	prometheus.MustRegister(promAuthFailures)
}
