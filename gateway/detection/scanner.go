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

import "sort"

// Message is the role/content pair extracted from a chat completion
// request. The gateway keeps the full raw message alongside; the scanner
// only needs these two fields.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessageScan is the detection result for a single message, keyed by the
// message's ordinal index in the conversation.
type MessageScan struct {
	Role   string          `json:"role"`
	Index  int             `json:"index"`
	Result DetectionResult `json:"result"`
}

// HasPII reports whether the message contained any PII.
func (m MessageScan) HasPII() bool {
	return m.Result.HasPII()
}

// ScanResult aggregates the per-message scans of one conversation.
//
// Invariants: TotalDetections equals the sum of detections across all
// message scans, and HighestSeverity is the maximum severity across them
// (LOW when nothing was found).
type ScanResult struct {
	MessageScans    []MessageScan `json:"message_scans"`
	TotalDetections int           `json:"total_detections"`
	HighestSeverity Severity      `json:"highest_severity"`
	PIITypesFound   []PIIType     `json:"pii_types_found"`
}

// HasPII reports whether any message contained PII.
func (r ScanResult) HasPII() bool {
	return r.TotalDetections > 0
}

// CriticalFound reports whether any detection was CRITICAL.
func (r ScanResult) CriticalFound() bool {
	return r.HighestSeverity == SeverityCritical
}

// RiskFlags returns the detected PII types as sorted strings, the form
// recorded on audit records.
func (r ScanResult) RiskFlags() []string {
	flags := make([]string, 0, len(r.PIITypesFound))
	for _, t := range r.PIITypesFound {
		flags = append(flags, string(t))
	}
	sort.Strings(flags)
	return flags
}

// DetectionsByType returns every detection of one type across all messages.
func (r ScanResult) DetectionsByType(t PIIType) []Detection {
	var out []Detection
	for _, scan := range r.MessageScans {
		for _, d := range scan.Result.Detections {
			if d.Type == t {
				out = append(out, d)
			}
		}
	}
	return out
}

// Scanner runs the detector over every message of a conversation.
type Scanner struct {
	detector  *Detector
	scanRoles map[string]bool // nil means scan all roles
}

// NewScanner creates a scanner. A nil detector falls back to the default
// detector over the canonical registry. When scanRoles is non-empty only
// messages with those roles are scanned.
func NewScanner(detector *Detector, scanRoles ...string) *Scanner {
	if detector == nil {
		detector = NewDetector()
	}
	s := &Scanner{detector: detector}
	if len(scanRoles) > 0 {
		s.scanRoles = make(map[string]bool, len(scanRoles))
		for _, role := range scanRoles {
			s.scanRoles[role] = true
		}
	}
	return s
}

// Scan runs detection over each message and aggregates the results.
// Message order is preserved by index; scanning the same conversation
// twice yields an equal result.
func (s *Scanner) Scan(messages []Message) ScanResult {
	var result ScanResult
	typesFound := make(map[PIIType]bool)
	highest := SeverityLow

	for index, msg := range messages {
		if s.scanRoles != nil && !s.scanRoles[msg.Role] {
			continue
		}

		detected := s.detector.Detect(msg.Content)
		result.MessageScans = append(result.MessageScans, MessageScan{
			Role:   msg.Role,
			Index:  index,
			Result: detected,
		})

		if detected.HasPII() {
			result.TotalDetections += len(detected.Detections)
			for _, t := range detected.Types() {
				typesFound[t] = true
			}
			if detected.HighestSeverity.Rank() > highest.Rank() {
				highest = detected.HighestSeverity
			}
		}
	}

	if result.TotalDetections > 0 {
		result.HighestSeverity = highest
	} else {
		result.HighestSeverity = SeverityLow
	}
	for t := range typesFound {
		result.PIITypesFound = append(result.PIITypesFound, t)
	}
	sort.Slice(result.PIITypesFound, func(i, j int) bool {
		return result.PIITypesFound[i] < result.PIITypesFound[j]
	})

	return result
}

// QuickCheck reports whether any message contains PII, short-circuiting on
// the first hit. Cheaper than Scan when only a boolean is needed.
func (s *Scanner) QuickCheck(messages []Message) bool {
	for _, msg := range messages {
		if s.scanRoles != nil && !s.scanRoles[msg.Role] {
			continue
		}
		if len(s.detector.DetectTypes(msg.Content)) > 0 {
			return true
		}
	}
	return false
}
