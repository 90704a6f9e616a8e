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

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"promptgate/platform/gateway/detection"
	"promptgate/platform/shared/logger"
)

// Engine evaluates requests against the current policy.
//
// The policy lives behind an atomic pointer: Reload swaps it in one
// operation and each evaluation reads the pointer exactly once at the top,
// so in-flight evaluations see either the old or the new policy, never a
// mix. Readers hold no lock.
type Engine struct {
	policy     atomic.Pointer[Policy]
	policyFile string
	loader     *Loader
	log        *logger.Logger
}

// NewEngine creates an engine with the policy loaded from policyFile
// (built-in default when the path is empty or unreadable).
func NewEngine(policyFile string) *Engine {
	e := &Engine{
		policyFile: policyFile,
		loader:     NewLoader(),
		log:        logger.New("policy-engine"),
	}
	e.policy.Store(e.loader.LoadFile(policyFile))
	return e
}

// NewEngineFromPolicy creates an engine over an already-constructed
// policy. Reload still goes through the loader.
func NewEngineFromPolicy(p *Policy) *Engine {
	e := &Engine{
		loader: NewLoader(),
		log:    logger.New("policy-engine"),
	}
	e.policy.Store(p)
	return e
}

// Current returns the policy in effect. The returned policy is read-only.
func (e *Engine) Current() *Policy {
	return e.policy.Load()
}

// Reload re-reads the policy and swaps it atomically. A non-empty path
// overrides the engine's configured policy file for this reload.
func (e *Engine) Reload(path string) {
	if path == "" {
		path = e.policyFile
	}
	p := e.loader.LoadFile(path)
	e.policy.Store(p)
	e.log.Info("", "", "policy reloaded", map[string]interface{}{
		"name":    p.Name,
		"version": p.Version,
	})
}

// Evaluate decides what to do with a request. Checks short-circuit in
// order: model rules, app rules, then PII rules with block > mask > warn
// precedence. All violation and warning lists come out lexicographically
// sorted.
func (e *Engine) Evaluate(model, appID, orgID string, scan detection.ScanResult) Decision {
	rules := e.Current().RulesFor(orgID)

	if !rules.IsModelAllowed(model) {
		return Decision{
			Action:     ActionBlock,
			Reason:     fmt.Sprintf("Model '%s' is not allowed by policy", model),
			Violations: []string{"MODEL_NOT_ALLOWED:" + model},
		}
	}

	if appID != "" && !rules.IsAppAllowed(appID) {
		return Decision{
			Action:     ActionBlock,
			Reason:     fmt.Sprintf("Application '%s' is not allowed by policy", appID),
			Violations: []string{"APP_NOT_ALLOWED:" + appID},
		}
	}

	if !scan.HasPII() {
		return Decision{
			Action: ActionAllow,
			Reason: "No PII detected, request allowed",
		}
	}

	piiTypes := scan.RiskFlags()

	if blocked := rules.BlockedPII(piiTypes); len(blocked) > 0 {
		return Decision{
			Action:     ActionBlock,
			Reason:     fmt.Sprintf("Request blocked: %s detected in prompt", strings.Join(blocked, ", ")),
			Violations: blocked,
		}
	}

	masked := rules.MaskedPII(piiTypes)
	warned := rules.WarnedPII(piiTypes)

	if len(masked) > 0 {
		return Decision{
			Action:    ActionMask,
			Reason:    fmt.Sprintf("PII will be masked: %s", strings.Join(masked, ", ")),
			PIIToMask: masked,
			Warnings:  warned,
		}
	}

	if len(warned) > 0 {
		return Decision{
			Action:   ActionWarn,
			Reason:   fmt.Sprintf("Warning: %s detected but allowed", strings.Join(warned, ", ")),
			Warnings: warned,
		}
	}

	// PII present but in none of the rule sets
	warnings := append([]string(nil), piiTypes...)
	sort.Strings(warnings)
	return Decision{
		Action:   ActionAllow,
		Reason:   "PII detected but not in policy rules",
		Warnings: warnings,
	}
}

// Info describes the current policy for the inspection endpoint.
func (e *Engine) Info() map[string]interface{} {
	p := e.Current()
	overrides := make([]string, 0, len(p.OrgOverrides))
	for orgID := range p.OrgOverrides {
		overrides = append(overrides, orgID)
	}
	sort.Strings(overrides)

	return map[string]interface{}{
		"name":          p.Name,
		"version":       p.Version,
		"description":   p.Description,
		"rules":         p.Rules,
		"org_overrides": overrides,
	}
}
