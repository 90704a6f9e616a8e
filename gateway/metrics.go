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

package gateway

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptgate_gateway_requests_total",
			Help: "Total number of chat completion requests processed by the gateway",
		},
		[]string{"status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptgate_gateway_request_duration_milliseconds",
			Help:    "End-to-end request duration in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000, 120000},
		},
		[]string{"provider"},
	)
	promScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "promptgate_gateway_scan_duration_milliseconds",
			Help:    "PII scan duration in milliseconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 50},
		},
	)
	promBlockedRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "promptgate_gateway_blocked_requests_total",
			Help: "Total number of requests blocked by policy",
		},
	)
	promMaskedRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "promptgate_gateway_masked_requests_total",
			Help: "Total number of requests with PII masked before forwarding",
		},
	)
	promPIIDetections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptgate_gateway_pii_detections_total",
			Help: "Total number of PII detections by type",
		},
		[]string{"type"},
	)
	promRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "promptgate_gateway_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
	promAuditEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptgate_gateway_audit_records_total",
			Help: "Audit records shipped to the audit store, by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	// Register Prometheus metrics
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promScanDuration)
	prometheus.MustRegister(promBlockedRequests)
	prometheus.MustRegister(promMaskedRequests)
	prometheus.MustRegister(promPIIDetections)
	prometheus.MustRegister(promRateLimited)
	prometheus.MustRegister(promAuditEmitted)
}
