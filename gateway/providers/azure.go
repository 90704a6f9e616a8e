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

// DefaultAzureAPIVersion is the Azure OpenAI API version used when none
// is configured.
const DefaultAzureAPIVersion = "2024-08-01-preview"

// AzureProvider forwards chat completions to an Azure OpenAI deployment.
// The wire format matches OpenAI, so the payload still passes through
// verbatim; only the URL shape and auth header differ.
type AzureProvider struct {
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	client     HTTPClient
}

// AzureConfig configures the Azure OpenAI adapter.
type AzureConfig struct {
	Endpoint   string        // Required: https://{resource}.openai.azure.com
	APIKey     string        // Required
	Deployment string        // Required: Azure deployment name
	APIVersion string        // Optional: default 2024-08-01-preview
	Timeout    time.Duration // Optional: default 120s
}

// NewAzureProvider creates an Azure OpenAI adapter.
func NewAzureProvider(cfg AzureConfig) (*AzureProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure OpenAI endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("azure OpenAI API key is required")
	}
	if cfg.Deployment == "" {
		return nil, fmt.Errorf("azure OpenAI deployment name is required")
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAzureAPIVersion
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &AzureProvider{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		deployment: cfg.Deployment,
		apiVersion: apiVersion,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the adapter name.
func (p *AzureProvider) Name() string {
	return "azure-openai"
}

// ChatCompletion forwards the payload verbatim to the deployment's
// chat/completions endpoint.
func (p *AzureProvider) ChatCompletion(ctx context.Context, payload []byte) (*Response, error) {
	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, p.deployment, p.apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", p.apiKey)

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
func (p *AzureProvider) SetHTTPClient(client HTTPClient) {
	p.client = client
}
