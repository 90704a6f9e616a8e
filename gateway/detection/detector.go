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
	"fmt"
	"sort"
)

// Detection is a single PII match in a scanned string. The byte range
// [Start, End) always lies within the scanned string. Value holds the
// matched text and is never serialized; only the span and type leave the
// process.
type Detection struct {
	Type     PIIType  `json:"pii_type"`
	Value    string   `json:"-"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Severity Severity `json:"severity"`
	Masked   string   `json:"masked_value"`
}

// DetectionResult holds all retained detections for one string, sorted
// ascending by Start with pairwise non-overlapping ranges.
type DetectionResult struct {
	Detections      []Detection `json:"detections"`
	HighestSeverity Severity    `json:"highest_severity"`
}

// HasPII reports whether anything was detected.
func (r DetectionResult) HasPII() bool {
	return len(r.Detections) > 0
}

// Types returns the distinct PII types present, sorted for determinism.
func (r DetectionResult) Types() []PIIType {
	seen := make(map[PIIType]bool)
	var types []PIIType
	for _, d := range r.Detections {
		if !seen[d.Type] {
			seen[d.Type] = true
			types = append(types, d.Type)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Detector scans text for PII using the registered recognisers.
type Detector struct {
	patterns []*Pattern
	disabled map[PIIType]bool
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithDisabledTypes skips the given PII types entirely during detection.
func WithDisabledTypes(types ...PIIType) DetectorOption {
	return func(d *Detector) {
		for _, t := range types {
			d.disabled[t] = true
		}
	}
}

// WithPatterns replaces the canonical pattern set, for tests and custom
// deployments.
func WithPatterns(patterns []*Pattern) DetectorOption {
	return func(d *Detector) {
		d.patterns = patterns
	}
}

// NewDetector creates a detector over the canonical pattern registry.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		patterns: Patterns(),
		disabled: make(map[PIIType]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect scans text with every enabled recogniser and returns the merged,
// non-overlapping detections sorted by start offset. When two matches
// overlap the higher severity wins; on a severity tie the earlier start
// survives. The merged list is not re-scanned after overlap collapse.
func (d *Detector) Detect(text string) DetectionResult {
	if text == "" {
		return DetectionResult{HighestSeverity: SeverityLow}
	}

	var detections []Detection
	for _, p := range d.patterns {
		if d.disabled[p.Type] {
			continue
		}
		for _, loc := range p.Regexp.FindAllStringIndex(text, -1) {
			detections = append(detections, Detection{
				Type:     p.Type,
				Value:    text[loc[0]:loc[1]],
				Start:    loc[0],
				End:      loc[1],
				Severity: p.Severity,
				Masked:   fmt.Sprintf("[%s_REDACTED]", p.Type),
			})
		}
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Start < detections[j].Start
	})
	detections = collapseOverlaps(detections)

	highest := SeverityLow
	for _, det := range detections {
		if det.Severity.Rank() > highest.Rank() {
			highest = det.Severity
		}
	}

	return DetectionResult{
		Detections:      detections,
		HighestSeverity: highest,
	}
}

// DetectTypes returns only the distinct PII types found in text.
func (d *Detector) DetectTypes(text string) []PIIType {
	return d.Detect(text).Types()
}

// collapseOverlaps removes overlapping detections from a start-sorted list,
// keeping the higher-severity match. Replacement happens only on a strictly
// higher rank, so severity ties keep the detection with the earlier start.
func collapseOverlaps(detections []Detection) []Detection {
	if len(detections) == 0 {
		return detections
	}

	result := make([]Detection, 0, len(detections))
	for _, det := range detections {
		overlapped := false
		for i, kept := range result {
			if rangesOverlap(det.Start, det.End, kept.Start, kept.End) {
				overlapped = true
				if det.Severity.Rank() > kept.Severity.Rank() {
					result[i] = det
				}
				break
			}
		}
		if !overlapped {
			result = append(result, det)
		}
	}
	return result
}

func rangesOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}
