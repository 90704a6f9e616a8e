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

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"promptgate/platform/gateway/detection"
	"promptgate/platform/gateway/enforcement"
	"promptgate/platform/gateway/policy"
	"promptgate/platform/gateway/providers"
	"promptgate/platform/shared/logger"
)

// Gateway wires the enforcement pipeline together: scan, evaluate,
// mask or block, forward, audit, alert.
type Gateway struct {
	cfg      Config
	scanner  *detection.Scanner
	engine   *policy.Engine
	masker   *enforcement.Masker
	provider providers.Provider
	emitter  *AuditEmitter
	alerter  *Alerter
	limiter  *RateLimiter // nil when rate limiting is disabled
	log      *logger.Logger
}

// NewGateway builds the gateway pipeline from its parts. limiter and
// emitter may be nil (disabled); alerter must be non-nil.
func NewGateway(cfg Config, engine *policy.Engine, provider providers.Provider, emitter *AuditEmitter, alerter *Alerter, limiter *RateLimiter) *Gateway {
	return &Gateway{
		cfg:      cfg,
		scanner:  detection.NewScanner(detection.NewDetector()),
		engine:   engine,
		masker:   enforcement.NewMasker(),
		provider: provider,
		emitter:  emitter,
		alerter:  alerter,
		limiter:  limiter,
		log:      logger.New("gateway"),
	}
}

// HandleChatCompletions is the OpenAI-compatible proxy endpoint. It
// scans the prompt for PII, evaluates the policy, enforces the decision
// per the configured mode, forwards to the upstream provider, and ships
// an audit record for every non-4xx-validation outcome.
func (g *Gateway) HandleChatCompletions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)

	appKey := r.Header.Get("X-App-Key")
	userID := r.Header.Get("X-User-Id")
	orgID := r.Header.Get("X-Org-Id")

	if g.limiter != nil {
		limitKey := appKey
		if limitKey == "" {
			limitKey = "anonymous"
		}
		if allowed, retryAfter := g.limiter.Allow(r.Context(), limitKey); !allowed {
			promRateLimited.Inc()
			promRequestsTotal.WithLabelValues("rate_limited").Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		promRequestsTotal.WithLabelValues("bad_request").Inc()
		writeJSONError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	// The payload stays a raw map so unknown fields survive untouched
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		promRequestsTotal.WithLabelValues("bad_request").Inc()
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	if stream, ok := payload["stream"].(bool); ok && stream {
		promRequestsTotal.WithLabelValues("bad_request").Inc()
		writeJSONError(w, http.StatusBadRequest, "Streaming is not supported")
		return
	}

	rawMessages, messages, ok := extractMessages(payload)
	if !ok {
		promRequestsTotal.WithLabelValues("bad_request").Inc()
		writeJSONError(w, http.StatusBadRequest, "Request must contain a messages array")
		return
	}

	model, _ := payload["model"].(string)
	if model == "" {
		model = g.cfg.DefaultModel
	}
	payload["model"] = model

	// Scan and evaluate
	var scan detection.ScanResult
	if g.cfg.PIIDetectionEnabled {
		scanStart := time.Now()
		scan = g.scanner.Scan(messages)
		promScanDuration.Observe(float64(time.Since(scanStart).Microseconds()) / 1000)
	}

	riskFlags := scan.RiskFlags()
	if scan.HasPII() {
		for _, flag := range riskFlags {
			promPIIDetections.WithLabelValues(flag).Inc()
		}
		g.log.Info(orgID, requestID, "PII detected in prompt", map[string]interface{}{
			"pii_types": riskFlags,
		})
	}

	decision := g.engine.Evaluate(model, appKey, orgID, scan)

	actionTaken := "allowed"
	metadata := map[string]interface{}{}

	switch g.cfg.EnforcementMode {
	case ModeEnforce:
		if decision.ShouldBlock() {
			g.blockRequest(w, requestID, orgID, appKey, userID, model, messages, scan, decision)
			return
		}
		if decision.ShouldMask() {
			rawMessages = g.masker.MaskMessages(rawMessages, scan, decision.PIIToMask)
			actionTaken = "masked"
			promMaskedRequests.Inc()
			g.log.Info(orgID, requestID, "PII masked before forwarding", map[string]interface{}{
				"masked_types": decision.PIIToMask,
			})
		} else if decision.Action == policy.ActionWarn {
			// WARN forwards the request unchanged but the audit record
			// must carry the warned outcome
			actionTaken = "warned"
			g.log.Warn(orgID, requestID, "request forwarded with policy warnings", map[string]interface{}{
				"warnings": decision.Warnings,
			})
		}

	case ModeWarn:
		if decision.ShouldBlock() || len(decision.Warnings) > 0 {
			actionTaken = "warned"
			g.log.Warn(orgID, requestID, "policy violation (warn mode)", map[string]interface{}{
				"violations": decision.Violations,
				"warnings":   decision.Warnings,
			})
		}
		recordSuppressedDecision(metadata, decision)

	case ModeLogOnly:
		// Forward as-is; the decision is still recorded
		recordSuppressedDecision(metadata, decision)
	}

	payload["messages"] = rawMessages

	forwardBody, err := json.Marshal(payload)
	if err != nil {
		promRequestsTotal.WithLabelValues("error").Inc()
		writeJSONError(w, http.StatusInternalServerError, "Failed to encode upstream payload")
		return
	}

	// Forward to the provider
	upstreamStart := time.Now()
	resp, err := g.provider.ChatCompletion(r.Context(), forwardBody)
	latencyMs := int(time.Since(upstreamStart).Milliseconds())

	metadata["client_ip"] = clientIP(r)
	metadata["action"] = actionTaken
	if len(decision.Violations) > 0 {
		metadata["violations"] = decision.Violations
	}

	if err != nil {
		status := http.StatusBadGateway
		clientMsg := "Error connecting to AI provider"
		upstreamErr := "connect_error"
		if errors.Is(err, providers.ErrUpstreamTimeout) {
			status = http.StatusGatewayTimeout
			clientMsg = "Request to AI provider timed out"
			upstreamErr = "timeout"
		}
		metadata["upstream_error"] = upstreamErr

		g.emitAudit(AuditRecord{
			ID:         requestID,
			OrgID:      orDefault(orgID, "default"),
			AppID:      orDefault(appKey, "unknown"),
			UserID:     nullable(userID),
			Model:      model,
			Provider:   g.provider.Name(),
			PromptHash: HashPrompt(messages),
			LatencyMs:  latencyMs,
			RiskFlags:  riskFlags,
			Metadata:   metadata,
		})

		g.log.ErrorWithCode(orgID, requestID, upstreamErr, "upstream request failed", map[string]interface{}{
			"error": err.Error(),
		})
		promRequestsTotal.WithLabelValues("upstream_error").Inc()
		writeJSONError(w, status, clientMsg)
		return
	}

	// Token counts come from the upstream usage block when present
	tokensIn, tokensOut, upstreamID := parseUsage(resp.Body)
	if upstreamID != "" {
		metadata["request_id"] = upstreamID
	}
	if resp.StatusCode >= 400 {
		metadata["upstream_status"] = resp.StatusCode
	}

	g.emitAudit(AuditRecord{
		ID:               requestID,
		OrgID:            orDefault(orgID, "default"),
		AppID:            orDefault(appKey, "unknown"),
		UserID:           nullable(userID),
		Model:            model,
		Provider:         g.provider.Name(),
		PromptHash:       HashPrompt(messages),
		TokenCountInput:  tokensIn,
		TokenCountOutput: tokensOut,
		LatencyMs:        latencyMs,
		RiskFlags:        riskFlags,
		Metadata:         metadata,
	})

	if actionTaken == "masked" && g.alerter.WebhookEnabled() {
		violation := enforcement.Violation{
			ViolationType: "pii_masked",
			Violations:    riskFlags,
			OrgID:         orgID,
			AppID:         appKey,
			UserID:        userID,
			Model:         model,
			RequestID:     requestID,
			Timestamp:     time.Now().UTC(),
			ActionTaken:   "masked",
			Severity:      "medium",
		}
		go g.sendAlert(violation)
	}

	promRequestsTotal.WithLabelValues(statusLabel(resp.StatusCode)).Inc()
	promRequestDuration.WithLabelValues(g.provider.Name()).Observe(float64(time.Since(start).Milliseconds()))

	// Upstream body passes through verbatim, success or error
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// blockRequest handles the enforce-mode BLOCK branch: alert, audit, 403.
func (g *Gateway) blockRequest(w http.ResponseWriter, requestID, orgID, appKey, userID, model string, messages []detection.Message, scan detection.ScanResult, decision policy.Decision) {
	riskFlags := scan.RiskFlags()

	violationType := "policy_violation"
	if len(riskFlags) > 0 {
		violationType = "pii_detected"
	}
	severity := "high"
	if scan.CriticalFound() {
		severity = "critical"
	}

	go g.sendAlert(enforcement.Violation{
		ViolationType: violationType,
		Violations:    decision.Violations,
		OrgID:         orgID,
		AppID:         appKey,
		UserID:        userID,
		Model:         model,
		RequestID:     requestID,
		Timestamp:     time.Now().UTC(),
		ActionTaken:   "blocked",
		Severity:      severity,
	})

	g.emitAudit(AuditRecord{
		ID:         requestID,
		OrgID:      orDefault(orgID, "default"),
		AppID:      orDefault(appKey, "unknown"),
		UserID:     nullable(userID),
		Model:      model,
		Provider:   g.cfg.Provider,
		PromptHash: HashPrompt(messages),
		LatencyMs:  0,
		RiskFlags:  riskFlags,
		Metadata: map[string]interface{}{
			"action":     "blocked",
			"violations": decision.Violations,
			"reason":     decision.Reason,
		},
	})

	g.log.Warn(orgID, requestID, "request blocked by policy", map[string]interface{}{
		"violations": decision.Violations,
		"reason":     decision.Reason,
	})
	promBlockedRequests.Inc()
	promRequestsTotal.WithLabelValues("blocked").Inc()

	var block enforcement.BlockResponse
	switch {
	case len(decision.Violations) == 1 && strings.HasPrefix(decision.Violations[0], "MODEL_NOT_ALLOWED:"):
		block = enforcement.BlockModelNotAllowed(model, requestID)
	case len(decision.Violations) == 1 && strings.HasPrefix(decision.Violations[0], "APP_NOT_ALLOWED:"):
		block = enforcement.BlockAppNotAllowed(appKey, requestID)
	default:
		block = enforcement.BlockPIIViolation(decision.Violations, requestID)
	}
	if err := block.WriteJSON(w); err != nil {
		g.log.Error(orgID, requestID, "failed to write block response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// sendAlert runs the alerter with its own timeout, off the request path.
func (g *Gateway) sendAlert(v enforcement.Violation) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g.alerter.SendAlert(ctx, v)
}

// emitAudit hands the record to the emitter when one is configured.
func (g *Gateway) emitAudit(record AuditRecord) {
	if g.emitter != nil {
		g.emitter.Emit(record)
	}
}

// recordSuppressedDecision notes the decision a non-enforcing mode
// declined to carry out.
func recordSuppressedDecision(metadata map[string]interface{}, decision policy.Decision) {
	switch decision.Action {
	case policy.ActionBlock:
		metadata["decision"] = "blocked"
	case policy.ActionMask:
		metadata["decision"] = "masked"
	}
}

// extractMessages pulls the messages array out of the raw payload, both
// as raw maps (for forwarding with unknown fields intact) and as
// role/content pairs (for scanning).
func extractMessages(payload map[string]interface{}) ([]map[string]interface{}, []detection.Message, bool) {
	rawList, ok := payload["messages"].([]interface{})
	if !ok || len(rawList) == 0 {
		return nil, nil, false
	}

	rawMessages := make([]map[string]interface{}, 0, len(rawList))
	messages := make([]detection.Message, 0, len(rawList))
	for _, item := range rawList {
		msg, ok := item.(map[string]interface{})
		if !ok {
			return nil, nil, false
		}
		rawMessages = append(rawMessages, msg)

		m := detection.Message{}
		if role, ok := msg["role"].(string); ok {
			m.Role = role
		}
		if content, ok := msg["content"].(string); ok {
			m.Content = content
		}
		messages = append(messages, m)
	}
	return rawMessages, messages, true
}

// parseUsage extracts token counts and the upstream request id from a
// chat completion response body. Absent fields stay nil.
func parseUsage(body []byte) (tokensIn, tokensOut *int, upstreamID string) {
	var parsed struct {
		ID    string `json:"id"`
		Usage *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, nil, ""
	}
	if parsed.Usage != nil {
		tokensIn = &parsed.Usage.PromptTokens
		tokensOut = &parsed.Usage.CompletionTokens
	}
	return tokensIn, tokensOut, parsed.ID
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func statusLabel(status int) string {
	switch {
	case status < 400:
		return "success"
	case status < 500:
		return "upstream_client_error"
	default:
		return "upstream_server_error"
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
	}); err != nil {
		fmt.Printf("Error encoding error response: %v\n", err)
	}
}
