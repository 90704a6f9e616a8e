// Copyright 2025 PromptGate
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptgate/platform/gateway/detection"
)

func TestHashPromptStableAndOrderSensitive(t *testing.T) {
	a := []detection.Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "hello"},
	}
	b := []detection.Message{
		{Role: "user", Content: "hello"},
		{Role: "system", Content: "be helpful"},
	}

	assert.Equal(t, HashPrompt(a), HashPrompt(a))
	assert.NotEqual(t, HashPrompt(a), HashPrompt(b))
	assert.Len(t, HashPrompt(a), 64)
}

func TestHashPromptIgnoresMasking(t *testing.T) {
	original := []detection.Message{{Role: "user", Content: "mail jane@acme.com"}}
	masked := []detection.Message{{Role: "user", Content: "mail [EMAIL_REDACTED]"}}

	assert.NotEqual(t, HashPrompt(original), HashPrompt(masked))
}

func TestEmitterDeliversRecords(t *testing.T) {
	var mu sync.Mutex
	var got []AuditRecord
	var gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var record AuditRecord
		require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
		mu.Lock()
		got = append(got, record)
		gotToken = r.Header.Get("X-Service-Token")
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	emitter, err := NewAuditEmitter(server.URL, "svc-token",
		filepath.Join(t.TempDir(), "fallback.jsonl"), 8, 2)
	require.NoError(t, err)

	emitter.Emit(AuditRecord{
		ID:        "11111111-1111-1111-1111-111111111111",
		OrgID:     "org-1",
		AppID:     "app-1",
		Model:     "gpt-4o",
		Provider:  "openai",
		RiskFlags: []string{"EMAIL"},
		Metadata:  map[string]interface{}{"action": "masked"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, emitter.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "org-1", got[0].OrgID)
	assert.Equal(t, "svc-token", gotToken)
}

func TestEmitterFallsBackWhenStoreUnreachable(t *testing.T) {
	fallbackPath := filepath.Join(t.TempDir(), "fallback.jsonl")

	// Nothing listens on this address
	emitter, err := NewAuditEmitter("http://127.0.0.1:1", "", fallbackPath, 8, 1)
	require.NoError(t, err)

	emitter.Emit(AuditRecord{ID: "rec-1", OrgID: "org-1", Model: "gpt-4o"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, emitter.Shutdown(ctx))

	f, err := os.Open(fallbackPath)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan(), "Fallback file should contain the record")

	var record AuditRecord
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
	assert.Equal(t, "rec-1", record.ID)
}

func TestEmitterShutdownDrains(t *testing.T) {
	var mu sync.Mutex
	count := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	emitter, err := NewAuditEmitter(server.URL, "",
		filepath.Join(t.TempDir(), "fallback.jsonl"), 32, 2)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		emitter.Emit(AuditRecord{ID: "rec", OrgID: "org-1"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, emitter.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, count)
}
