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

package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanAggregation(t *testing.T) {
	scanner := NewScanner(nil)

	messages := []Message{
		{Role: "system", Content: "You are a helpful assistant"},
		{Role: "user", Content: "Email me at jane@acme.com"},
		{Role: "user", Content: "My SSN is 123-45-6789 and backup mail is bob@corp.io"},
	}

	result := scanner.Scan(messages)

	require.True(t, result.HasPII(), "expected PII in conversation")
	assert.Equal(t, 3, result.TotalDetections)
	assert.Equal(t, SeverityCritical, result.HighestSeverity)
	assert.Equal(t, []string{"EMAIL", "SSN"}, result.RiskFlags())

	// Invariant: total equals the sum across message scans
	sum := 0
	for _, scan := range result.MessageScans {
		sum += len(scan.Result.Detections)
	}
	assert.Equal(t, result.TotalDetections, sum)
}

func TestScanPreservesMessageOrder(t *testing.T) {
	scanner := NewScanner(nil)

	messages := []Message{
		{Role: "user", Content: "first jane@acme.com"},
		{Role: "assistant", Content: "clean reply"},
		{Role: "user", Content: "second 192.168.1.1"},
	}

	result := scanner.Scan(messages)

	require.Len(t, result.MessageScans, 3)
	for i, scan := range result.MessageScans {
		assert.Equal(t, i, scan.Index)
	}
	assert.True(t, result.MessageScans[0].HasPII())
	assert.False(t, result.MessageScans[1].HasPII())
	assert.True(t, result.MessageScans[2].HasPII())
}

func TestScanIdempotent(t *testing.T) {
	scanner := NewScanner(nil)

	messages := []Message{
		{Role: "user", Content: "PAN ABCPD1234E and mail jane@acme.com"},
		{Role: "user", Content: "nothing here"},
	}

	first := scanner.Scan(messages)
	second := scanner.Scan(messages)

	assert.Equal(t, first, second, "scanning the same conversation twice must be deterministic")
}

func TestScanEmptyConversation(t *testing.T) {
	scanner := NewScanner(nil)

	result := scanner.Scan(nil)

	assert.False(t, result.HasPII())
	assert.Equal(t, SeverityLow, result.HighestSeverity)
	assert.Equal(t, 0, result.TotalDetections)
}

func TestScanRoleFilter(t *testing.T) {
	scanner := NewScanner(nil, "user")

	messages := []Message{
		{Role: "system", Content: "system prompt with jane@acme.com"},
		{Role: "user", Content: "user prompt with 123-45-6789"},
	}

	result := scanner.Scan(messages)

	require.Len(t, result.MessageScans, 1)
	assert.Equal(t, "user", result.MessageScans[0].Role)
	assert.Equal(t, []string{"SSN"}, result.RiskFlags())
}

func TestQuickCheck(t *testing.T) {
	scanner := NewScanner(nil)

	tests := []struct {
		name     string
		messages []Message
		want     bool
	}{
		{
			name:     "clean conversation",
			messages: []Message{{Role: "user", Content: "Hello, world"}},
			want:     false,
		},
		{
			name: "pii in later message",
			messages: []Message{
				{Role: "user", Content: "Hello"},
				{Role: "user", Content: "my card is 4111-1111-1111-1111"},
			},
			want: true,
		},
		{
			name:     "empty",
			messages: nil,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scanner.QuickCheck(tt.messages))
		})
	}
}

func TestDetectionsByType(t *testing.T) {
	scanner := NewScanner(nil)

	messages := []Message{
		{Role: "user", Content: "a@b.io"},
		{Role: "user", Content: "c@d.io and 192.168.1.1"},
	}

	result := scanner.Scan(messages)

	assert.Len(t, result.DetectionsByType(PIITypeEmail), 2)
	assert.Len(t, result.DetectionsByType(PIITypeIPAddress), 1)
}
