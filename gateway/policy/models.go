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

package policy

import "sort"

// Action is the outcome of evaluating a request against the policy.
type Action string

const (
	ActionAllow Action = "ALLOW" // request proceeds unchanged
	ActionBlock Action = "BLOCK" // request is rejected
	ActionMask  Action = "MASK"  // PII is masked before forwarding
	ActionWarn  Action = "WARN"  // request proceeds, warning is logged
)

// Rules are the enforceable rules of one policy scope. A PII type should
// appear in at most one of BlockIf/MaskIf/WarnIf; when it appears in more
// than one, evaluation precedence (block > mask > warn) resolves the
// conflict.
type Rules struct {
	// PII types that block the request outright
	BlockIf []string `yaml:"block_if" json:"block_if"`

	// PII types that are masked before forwarding
	MaskIf []string `yaml:"mask_if" json:"mask_if"`

	// PII types that log a warning but allow the request
	WarnIf []string `yaml:"warn_if" json:"warn_if"`

	// Allowed AI models (empty = all allowed)
	AllowedModels []string `yaml:"allowed_models" json:"allowed_models"`

	// Blocked AI models
	BlockedModels []string `yaml:"blocked_models" json:"blocked_models"`

	// Allowed applications ("*" or empty = all allowed)
	AllowedApps []string `yaml:"allowed_apps" json:"allowed_apps"`

	// Blocked applications
	BlockedApps []string `yaml:"blocked_apps" json:"blocked_apps"`
}

// IsModelAllowed reports whether a model passes the model rules.
func (r Rules) IsModelAllowed(model string) bool {
	if contains(r.BlockedModels, model) {
		return false
	}
	if len(r.AllowedModels) == 0 {
		return true
	}
	return contains(r.AllowedModels, model)
}

// IsAppAllowed reports whether an application passes the app rules.
func (r Rules) IsAppAllowed(appID string) bool {
	if contains(r.BlockedApps, appID) {
		return false
	}
	if len(r.AllowedApps) == 0 || contains(r.AllowedApps, "*") {
		return true
	}
	return contains(r.AllowedApps, appID)
}

// BlockedPII returns the sorted intersection of the detected types with
// BlockIf.
func (r Rules) BlockedPII(piiTypes []string) []string {
	return sortedIntersection(piiTypes, r.BlockIf)
}

// MaskedPII returns the sorted intersection of the detected types with
// MaskIf.
func (r Rules) MaskedPII(piiTypes []string) []string {
	return sortedIntersection(piiTypes, r.MaskIf)
}

// WarnedPII returns the sorted intersection of the detected types with
// WarnIf.
func (r Rules) WarnedPII(piiTypes []string) []string {
	return sortedIntersection(piiTypes, r.WarnIf)
}

// Policy is a declarative compliance policy with optional per-org
// overrides. An override replaces the default rules entirely; it does not
// merge with them.
type Policy struct {
	Version      string           `yaml:"version" json:"version"`
	Name         string           `yaml:"name" json:"name"`
	Description  string           `yaml:"description" json:"description"`
	Rules        Rules            `yaml:"rules" json:"rules"`
	OrgOverrides map[string]Rules `yaml:"org_overrides" json:"org_overrides,omitempty"`
}

// RulesFor returns the effective rules for an organization: its override
// when one exists, else the policy defaults.
func (p *Policy) RulesFor(orgID string) Rules {
	if orgID != "" {
		if override, ok := p.OrgOverrides[orgID]; ok {
			return override
		}
	}
	return p.Rules
}

// Decision is the outcome of one policy evaluation. Exactly one Action is
// set; the auxiliary lists are populated only when relevant to it.
// Violation and warning lists are lexicographically sorted so repeated
// evaluations of the same request are byte-identical.
type Decision struct {
	Action     Action   `json:"action"`
	Reason     string   `json:"reason"`
	Violations []string `json:"violations,omitempty"`
	PIIToMask  []string `json:"pii_to_mask,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// ShouldBlock reports whether the request must be rejected.
func (d Decision) ShouldBlock() bool {
	return d.Action == ActionBlock
}

// ShouldMask reports whether PII must be rewritten before forwarding.
func (d Decision) ShouldMask() bool {
	return d.Action == ActionMask || len(d.PIIToMask) > 0
}

// ShouldAlert reports whether the decision warrants a violation alert.
func (d Decision) ShouldAlert() bool {
	return d.Action == ActionBlock || d.Action == ActionWarn
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func sortedIntersection(values, allowed []string) []string {
	var out []string
	for _, v := range values {
		if contains(allowed, v) {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
