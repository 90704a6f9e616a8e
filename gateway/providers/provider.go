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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout is the upstream completion timeout. Chat completions on
// large models routinely take over a minute.
const DefaultTimeout = 120 * time.Second

// Sentinel errors for upstream failures. The gateway maps these to 504
// and 502 respectively.
var (
	ErrUpstreamTimeout = errors.New("upstream request timed out")
	ErrUpstreamConnect = errors.New("upstream connection failed")
)

// HTTPClient is the subset of http.Client the adapters use (enables testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is a completed upstream call: the verbatim response body and
// the upstream's HTTP status code.
type Response struct {
	Body       json.RawMessage
	StatusCode int
}

// Provider forwards a chat completion payload to an upstream endpoint.
//
// Adapters forward the payload byte-for-byte (after any masking the
// caller already applied) and return the upstream body verbatim; they
// never reshape either side of the exchange.
type Provider interface {
	// ChatCompletion sends the payload and returns the upstream response.
	// Timeouts surface as ErrUpstreamTimeout, connection failures as
	// ErrUpstreamConnect (both wrapped with detail).
	ChatCompletion(ctx context.Context, payload []byte) (*Response, error)

	// Name identifies the adapter in logs and audit metadata.
	Name() string
}

// classifyTransportError maps a transport-level failure to one of the
// sentinel errors. context deadline expiry and http.Client timeouts both
// count as timeouts.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamConnect, err)
}
