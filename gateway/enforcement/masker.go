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

package enforcement

import (
	"promptgate/platform/gateway/detection"
)

// Masker rewrites detected PII spans with redaction placeholders:
//
//	"Contact john@email.com" -> "Contact [EMAIL_REDACTED]"
type Masker struct{}

// NewMasker creates a masker.
func NewMasker() *Masker {
	return &Masker{}
}

// MaskText replaces each detection's span in text with its placeholder.
// Replacements are applied from the highest start offset down so earlier
// byte offsets stay valid throughout the rewrite. When typesFilter is
// non-empty only detections of those types are rewritten.
func (m *Masker) MaskText(text string, detections []detection.Detection, typesFilter []string) string {
	if len(detections) == 0 {
		return text
	}

	filtered := detections
	if len(typesFilter) > 0 {
		filtered = nil
		for _, d := range detections {
			if containsString(typesFilter, string(d.Type)) {
				filtered = append(filtered, d)
			}
		}
	}
	if len(filtered) == 0 {
		return text
	}

	// Detections arrive sorted ascending by start; walk backwards.
	result := text
	for i := len(filtered) - 1; i >= 0; i-- {
		d := filtered[i]
		if d.Start < 0 || d.End > len(result) || d.Start > d.End {
			continue
		}
		result = result[:d.Start] + d.Masked + result[d.End:]
	}
	return result
}

// MaskMessages returns a new message slice with PII masked according to
// the scan result. Every message is copied; the input conversation is
// never mutated. Roles and any unknown per-message fields are preserved.
func (m *Masker) MaskMessages(messages []map[string]interface{}, scan detection.ScanResult, typesFilter []string) []map[string]interface{} {
	byIndex := make(map[int][]detection.Detection)
	for _, ms := range scan.MessageScans {
		if ms.HasPII() {
			byIndex[ms.Index] = ms.Result.Detections
		}
	}

	masked := make([]map[string]interface{}, 0, len(messages))
	for i, msg := range messages {
		clone := make(map[string]interface{}, len(msg))
		for k, v := range msg {
			clone[k] = v
		}
		if detections, ok := byIndex[i]; ok {
			if content, ok := clone["content"].(string); ok {
				clone["content"] = m.MaskText(content, detections, typesFilter)
			}
		}
		masked = append(masked, clone)
	}
	return masked
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
