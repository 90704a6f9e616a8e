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
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"promptgate/platform/gateway/detection"
	"promptgate/platform/shared/logger"
)

// AuditRecord is the wire form of one audit log entry shipped to the
// audit service. The record id doubles as the gateway request id.
type AuditRecord struct {
	ID               string                 `json:"id"`
	OrgID            string                 `json:"org_id"`
	AppID            string                 `json:"app_id"`
	UserID           *string                `json:"user_id"`
	Model            string                 `json:"model"`
	Provider         string                 `json:"provider"`
	PromptHash       string                 `json:"prompt_hash"`
	TokenCountInput  *int                   `json:"token_count_input"`
	TokenCountOutput *int                   `json:"token_count_output"`
	LatencyMs        int                    `json:"latency_ms"`
	RiskFlags        []string               `json:"risk_flags"`
	Metadata         map[string]interface{} `json:"metadata"`

	retries int
}

// HashPrompt fingerprints a conversation: SHA-256 hex over the
// concatenation of "role:content" for every message, in order. Always
// computed over the original messages, before any masking.
func HashPrompt(messages []detection.Message) string {
	h := sha256.New()
	for _, m := range messages {
		h.Write([]byte(m.Role + ":" + m.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// AuditEmitter ships audit records to the audit service asynchronously
// through a bounded queue and a small worker pool. Records that cannot
// be delivered after retries land in a JSONL fallback file so nothing is
// silently lost. Emission never blocks or fails the request path.
type AuditEmitter struct {
	queue        chan AuditRecord
	workers      int
	wg           sync.WaitGroup
	client       *http.Client
	storeURL     string
	serviceToken string
	fallbackFile *os.File
	mu           sync.Mutex
	log          *logger.Logger
}

// NewAuditEmitter creates the emitter and starts its workers.
func NewAuditEmitter(storeURL, serviceToken, fallbackPath string, queueSize, workers int) (*AuditEmitter, error) {
	fallbackFile, err := os.OpenFile(
		fallbackPath,
		os.O_CREATE|os.O_APPEND|os.O_WRONLY,
		0600,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open fallback file: %w", err)
	}

	if queueSize <= 0 {
		queueSize = 1000
	}
	if workers <= 0 {
		workers = 2
	}

	ae := &AuditEmitter{
		queue:        make(chan AuditRecord, queueSize),
		workers:      workers,
		client:       &http.Client{Timeout: 5 * time.Second},
		storeURL:     storeURL,
		serviceToken: serviceToken,
		fallbackFile: fallbackFile,
		log:          logger.New("audit-emitter"),
	}

	for i := 0; i < workers; i++ {
		ae.wg.Add(1)
		go ae.worker(i)
	}

	ae.log.Info("", "", "audit emitter started", map[string]interface{}{
		"workers":    workers,
		"queue_size": queueSize,
		"fallback":   fallbackPath,
	})
	return ae, nil
}

// Emit queues a record for delivery. A full queue spills straight to the
// fallback file instead of blocking the request goroutine.
func (ae *AuditEmitter) Emit(record AuditRecord) {
	select {
	case ae.queue <- record:
	default:
		ae.mu.Lock()
		defer ae.mu.Unlock()
		if err := ae.writeToFallback(record); err != nil {
			ae.log.Error("", record.ID, "queue full and fallback write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		promAuditEmitted.WithLabelValues("fallback").Inc()
	}
}

// worker delivers queued records with retries and exponential backoff.
func (ae *AuditEmitter) worker(id int) {
	defer ae.wg.Done()

	for record := range ae.queue {
		var err error
		for retry := 0; retry < 3; retry++ {
			if err = ae.post(record); err == nil {
				promAuditEmitted.WithLabelValues("delivered").Inc()
				break
			}
			time.Sleep(time.Millisecond * time.Duration(100*(retry+1)))
			record.retries++
		}

		if err != nil {
			promAuditEmitted.WithLabelValues("failed").Inc()
			ae.log.Error("", record.ID, "audit delivery failed, writing fallback", map[string]interface{}{
				"worker": id,
				"error":  err.Error(),
			})
			ae.mu.Lock()
			if fallbackErr := ae.writeToFallback(record); fallbackErr != nil {
				ae.log.Error("", record.ID, "fallback write failed", map[string]interface{}{
					"error": fallbackErr.Error(),
				})
			}
			ae.mu.Unlock()
		}
	}
}

// post ships one record to the audit service.
func (ae *AuditEmitter) post(record AuditRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, ae.storeURL+"/api/v1/logs", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ae.serviceToken != "" {
		req.Header.Set("X-Service-Token", ae.serviceToken)
	}

	resp, err := ae.client.Do(req)
	if err != nil {
		return fmt.Errorf("audit store request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("audit store returned status %d", resp.StatusCode)
	}
	return nil
}

// writeToFallback appends the record as one JSONL line. Callers hold mu.
func (ae *AuditEmitter) writeToFallback(record AuditRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if _, err := fmt.Fprintf(ae.fallbackFile, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write to fallback: %w", err)
	}
	return ae.fallbackFile.Sync()
}

// Shutdown stops intake and waits for the workers to drain. If ctx
// expires first, the remaining records are flushed to the fallback file.
func (ae *AuditEmitter) Shutdown(ctx context.Context) error {
	close(ae.queue)

	done := make(chan struct{})
	go func() {
		ae.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return ae.fallbackFile.Close()
	case <-ctx.Done():
		ae.mu.Lock()
		for record := range ae.queue {
			if err := ae.writeToFallback(record); err != nil {
				ae.log.Error("", record.ID, "fallback write during shutdown failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
		ae.mu.Unlock()
		_ = ae.fallbackFile.Close()
		return ctx.Err()
	}
}

// Pending reports the number of records waiting in the queue.
func (ae *AuditEmitter) Pending() int {
	return len(ae.queue)
}
