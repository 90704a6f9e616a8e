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

package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider forwards chat completions to the OpenAI API.
type OpenAIProvider struct {
	baseURL string
	apiKey  string
	client  HTTPClient
}

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	APIKey  string        // Required
	BaseURL string        // Optional: override for proxies and tests
	Timeout time.Duration // Optional: default 120s
}

// NewOpenAIProvider creates an OpenAI adapter.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openAI API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &OpenAIProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the adapter name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// ChatCompletion forwards the payload verbatim to /chat/completions and
// returns the upstream body and status code untouched.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, payload []byte) (*Response, error) {
	url := p.baseURL + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrUpstreamConnect, err)
	}

	return &Response{Body: body, StatusCode: resp.StatusCode}, nil
}

// SetHTTPClient sets a custom HTTP client for testing.
func (p *OpenAIProvider) SetHTTPClient(client HTTPClient) {
	p.client = client
}
