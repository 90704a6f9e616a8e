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

import "regexp"

// PIIType identifies a category of personally identifiable information.
type PIIType string

const (
	PIITypeEmail       PIIType = "EMAIL"
	PIITypePhone       PIIType = "PHONE"
	PIITypePAN         PIIType = "PAN"     // India PAN card
	PIITypeAadhaar     PIIType = "AADHAAR" // India Aadhaar
	PIITypeCreditCard  PIIType = "CREDIT_CARD"
	PIITypeSSN         PIIType = "SSN" // US Social Security Number
	PIITypeIPAddress   PIIType = "IP_ADDRESS"
	PIITypePassport    PIIType = "PASSPORT"
	PIITypeDateOfBirth PIIType = "DATE_OF_BIRTH"
	PIITypeBankAccount PIIType = "BANK_ACCOUNT"
)

// Severity classifies how sensitive a PII type is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank returns the numeric ordering of a severity level. Unknown values
// rank below LOW so they never win an overlap comparison.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Pattern is a compiled PII recogniser with its metadata.
type Pattern struct {
	Type        PIIType
	Regexp      *regexp.Regexp
	Description string
	Severity    Severity
	Examples    []string
}

// The canonical recogniser set. Compiled once at process start; the slice
// and the patterns in it are read-only after init.
var piiPatterns = []*Pattern{
	{
		Type:        PIITypeEmail,
		Regexp:      regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		Description: "Email address",
		Severity:    SeverityMedium,
		Examples:    []string{"user@example.com", "john.doe@company.co.uk"},
	},
	{
		Type: PIITypePhone,
		// US formats with optional +1, India formats with optional +91,
		// plus the bare Indian mobile shape 98765 43210.
		Regexp:      regexp.MustCompile(`(?:\+?1[-.\s]?)?(?:\+?91[-.\s]?)?(?:\(\d{3}\)|\d{3})[-.\s]?\d{3}[-.\s]?\d{4}|\b\d{5}[-.\s]?\d{5}\b`),
		Description: "Phone number (US/India formats)",
		Severity:    SeverityMedium,
		Examples:    []string{"+1-555-123-4567", "+91 98765 43210", "(555) 123-4567"},
	},
	{
		Type: PIITypePAN,
		// 5 letters, 4 digits, 1 letter; the 4th letter encodes the holder
		// category and is constrained to the issued set.
		Regexp:      regexp.MustCompile(`(?i)\b[A-Z]{3}[ABCFGHLJPTK][A-Z]\d{4}[A-Z]\b`),
		Description: "India PAN Card number",
		Severity:    SeverityCritical,
		Examples:    []string{"ABCPD1234E", "BNZPM2501F"},
	},
	{
		Type:        PIITypeAadhaar,
		Regexp:      regexp.MustCompile(`\b\d{4}[-.\s]?\d{4}[-.\s]?\d{4}\b`),
		Description: "India Aadhaar number (12 digits)",
		Severity:    SeverityCritical,
		Examples:    []string{"1234 5678 9012", "123456789012"},
	},
	{
		Type: PIITypeCreditCard,
		// Visa, Mastercard, Amex, Discover prefixes with optional separators.
		Regexp: regexp.MustCompile(`\b(?:` +
			`4\d{3}[-.\s]?\d{4}[-.\s]?\d{4}[-.\s]?\d{4}` +
			`|5[1-5]\d{2}[-.\s]?\d{4}[-.\s]?\d{4}[-.\s]?\d{4}` +
			`|3[47]\d{2}[-.\s]?\d{6}[-.\s]?\d{5}` +
			`|6(?:011|5\d{2})[-.\s]?\d{4}[-.\s]?\d{4}[-.\s]?\d{4}` +
			`)\b`),
		Description: "Credit card number (Visa, Mastercard, Amex, Discover)",
		Severity:    SeverityCritical,
		Examples:    []string{"4111-1111-1111-1111", "5500 0000 0000 0004"},
	},
	{
		Type:        PIITypeSSN,
		Regexp:      regexp.MustCompile(`\b\d{3}[-.\s]?\d{2}[-.\s]?\d{4}\b`),
		Description: "US Social Security Number",
		Severity:    SeverityCritical,
		Examples:    []string{"123-45-6789", "123 45 6789"},
	},
	{
		Type:        PIITypeIPAddress,
		Regexp:      regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`),
		Description: "IPv4 address",
		Severity:    SeverityLow,
		Examples:    []string{"192.168.1.1", "10.0.0.1"},
	},
	{
		Type:        PIITypePassport,
		Regexp:      regexp.MustCompile(`(?i)\b[A-Z]{1,2}\d{6,8}\b`),
		Description: "Passport number",
		Severity:    SeverityHigh,
		Examples:    []string{"A12345678", "AB1234567"},
	},
	{
		Type:        PIITypeDateOfBirth,
		Regexp:      regexp.MustCompile(`\b(?:\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2})\b`),
		Description: "Date of birth",
		Severity:    SeverityMedium,
		Examples:    []string{"15/03/1990", "1990-03-15"},
	},
}

// Patterns returns the canonical recogniser set. Callers must not modify
// the returned slice or the patterns it holds.
func Patterns() []*Pattern {
	return piiPatterns
}

// PatternFor returns the recogniser for a PII type, or nil if the type has
// no registered pattern.
func PatternFor(t PIIType) *Pattern {
	for _, p := range piiPatterns {
		if p.Type == t {
			return p
		}
	}
	return nil
}

// SeverityFor returns the severity of a PII type from the pattern table.
// Types without a registered pattern (e.g. BANK_ACCOUNT) classify as MEDIUM.
// This is the single source of truth for severity classification; the audit
// read side reuses it rather than keeping its own list.
func SeverityFor(t PIIType) Severity {
	if p := PatternFor(t); p != nil {
		return p.Severity
	}
	return SeverityMedium
}
