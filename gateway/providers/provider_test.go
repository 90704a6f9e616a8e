// Copyright 2025 PromptGate
// SPDX-License-Identifier: Apache-2.0

package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIForwardsPayloadVerbatim(t *testing.T) {
	payload := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"custom_field":42}`)
	upstreamBody := `{"id":"chatcmpl-1","choices":[{"message":{"role":"assistant","content":"hello"}}]}`

	var gotBody []byte
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(upstreamBody))
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := p.ChatCompletion(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, string(payload), string(gotBody), "upstream must receive the payload byte-for-byte")
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, upstreamBody, string(resp.Body), "upstream body must pass through verbatim")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOpenAIPassesThroughUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL})

	resp, err := p.ChatCompletion(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	// Upstream errors are not transport errors: status and body pass through
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	var parsed map[string]interface{}
	assert.NoError(t, json.Unmarshal(resp.Body, &parsed), "error body must stay valid JSON")
}

func TestOpenAITimeoutClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL, Timeout: 20 * time.Millisecond})

	_, err := p.ChatCompletion(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrUpstreamTimeout)
}

func TestOpenAIConnectErrorClassified(t *testing.T) {
	// Nothing listens here
	p, _ := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1"})

	_, err := p.ChatCompletion(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrUpstreamConnect)
}

func TestOpenAIRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{})
	assert.Error(t, err, "expected error for missing API key")
}

func TestAzureURLAndAuth(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("api-key")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	p, err := NewAzureProvider(AzureConfig{
		Endpoint:   server.URL,
		APIKey:     "azure-key",
		Deployment: "gpt-4o-prod",
	})
	require.NoError(t, err)

	_, err = p.ChatCompletion(context.Background(), []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, "/openai/deployments/gpt-4o-prod/chat/completions", gotPath)
	assert.Equal(t, "api-version="+DefaultAzureAPIVersion, gotQuery)
	assert.Equal(t, "azure-key", gotKey)
}

func TestAzureRequiresConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  AzureConfig
	}{
		{"missing endpoint", AzureConfig{APIKey: "k", Deployment: "d"}},
		{"missing api key", AzureConfig{Endpoint: "https://x", Deployment: "d"}},
		{"missing deployment", AzureConfig{Endpoint: "https://x", APIKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAzureProvider(tt.cfg)
			assert.Error(t, err, "expected config error")
		})
	}
}

func TestProviderNames(t *testing.T) {
	o, _ := NewOpenAIProvider(OpenAIConfig{APIKey: "k"})
	assert.Equal(t, "openai", o.Name())
	a, _ := NewAzureProvider(AzureConfig{Endpoint: "https://x", APIKey: "k", Deployment: "d"})
	assert.Equal(t, "azure-openai", a.Name())
}
