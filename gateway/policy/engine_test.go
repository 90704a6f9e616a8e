// Copyright 2025 PromptGate
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptgate/platform/gateway/detection"
)

func scanWith(types ...detection.PIIType) detection.ScanResult {
	highest := detection.SeverityLow
	for _, t := range types {
		if s := detection.SeverityFor(t); s.Rank() > highest.Rank() {
			highest = s
		}
	}
	return detection.ScanResult{
		TotalDetections: len(types),
		HighestSeverity: highest,
		PIITypesFound:   types,
	}
}

func cleanScan() detection.ScanResult {
	return detection.ScanResult{HighestSeverity: detection.SeverityLow}
}

func TestEvaluateModelRules(t *testing.T) {
	engine := NewEngineFromPolicy(&Policy{
		Name: "test",
		Rules: Rules{
			AllowedModels: []string{"gpt-4o"},
			BlockedModels: []string{"gpt-4-banned"},
			AllowedApps:   []string{"*"},
		},
	})

	tests := []struct {
		name       string
		model      string
		wantAction Action
		violations []string
	}{
		{
			name:       "allowed model",
			model:      "gpt-4o",
			wantAction: ActionAllow,
		},
		{
			name:       "model not in allowlist",
			model:      "gpt-3.5-turbo",
			wantAction: ActionBlock,
			violations: []string{"MODEL_NOT_ALLOWED:gpt-3.5-turbo"},
		},
		{
			name:       "explicitly blocked model",
			model:      "gpt-4-banned",
			wantAction: ActionBlock,
			violations: []string{"MODEL_NOT_ALLOWED:gpt-4-banned"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := engine.Evaluate(tt.model, "app-1", "org-1", cleanScan())
			assert.Equal(t, tt.wantAction, decision.Action)
			assert.Equal(t, tt.violations, decision.Violations)
		})
	}
}

func TestEvaluateAppRules(t *testing.T) {
	engine := NewEngineFromPolicy(&Policy{
		Rules: Rules{
			AllowedApps: []string{"crm", "support"},
			BlockedApps: []string{"shadow-it"},
		},
	})

	tests := []struct {
		name       string
		appID      string
		wantAction Action
	}{
		{"allowed app", "crm", ActionAllow},
		{"unknown app", "rogue", ActionBlock},
		{"blocked app", "shadow-it", ActionBlock},
		// No app header provided - app rules are skipped
		{"empty app id", "", ActionAllow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := engine.Evaluate("gpt-4o", tt.appID, "org-1", cleanScan())
			assert.Equal(t, tt.wantAction, decision.Action)
			if tt.wantAction == ActionBlock {
				assert.Equal(t, []string{"APP_NOT_ALLOWED:" + tt.appID}, decision.Violations)
			}
		})
	}
}

func TestEvaluateWildcardApps(t *testing.T) {
	engine := NewEngineFromPolicy(&Policy{
		Rules: Rules{AllowedApps: []string{"*"}},
	})

	decision := engine.Evaluate("gpt-4o", "any-app", "org-1", cleanScan())
	assert.Equal(t, ActionAllow, decision.Action)
}

func TestEvaluatePIIPrecedence(t *testing.T) {
	engine := NewEngineFromPolicy(DefaultPolicy())

	tests := []struct {
		name       string
		scan       detection.ScanResult
		wantAction Action
		violations []string
		piiToMask  []string
		warnings   []string
	}{
		{
			name:       "no pii allows",
			scan:       cleanScan(),
			wantAction: ActionAllow,
		},
		{
			name:       "critical pii blocks",
			scan:       scanWith(detection.PIITypePAN),
			wantAction: ActionBlock,
			violations: []string{"PAN"},
		},
		{
			name:       "block wins over mask and warn",
			scan:       scanWith(detection.PIITypeEmail, detection.PIITypeSSN, detection.PIITypeIPAddress),
			wantAction: ActionBlock,
			violations: []string{"SSN"},
		},
		{
			name:       "mask with warnings",
			scan:       scanWith(detection.PIITypeEmail, detection.PIITypeIPAddress),
			wantAction: ActionMask,
			piiToMask:  []string{"EMAIL"},
			warnings:   []string{"IP_ADDRESS"},
		},
		{
			name:       "warn only",
			scan:       scanWith(detection.PIITypeIPAddress),
			wantAction: ActionWarn,
			warnings:   []string{"IP_ADDRESS"},
		},
		{
			name:       "pii outside all rule sets allows with warnings",
			scan:       scanWith(detection.PIITypePassport),
			wantAction: ActionAllow,
			warnings:   []string{"PASSPORT"},
		},
		{
			name:       "multiple blocked types sorted",
			scan:       scanWith(detection.PIITypeSSN, detection.PIITypeAadhaar, detection.PIITypeCreditCard),
			wantAction: ActionBlock,
			violations: []string{"AADHAAR", "CREDIT_CARD", "SSN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := engine.Evaluate("gpt-4o", "app-1", "org-1", tt.scan)
			assert.Equal(t, tt.wantAction, decision.Action)
			assert.Equal(t, tt.violations, decision.Violations)
			assert.Equal(t, tt.piiToMask, decision.PIIToMask)
			assert.Equal(t, tt.warnings, decision.Warnings)
		})
	}
}

func TestEvaluateOrgOverrideReplacesDefaults(t *testing.T) {
	engine := NewEngineFromPolicy(&Policy{
		Rules: Rules{
			BlockIf:     []string{"EMAIL"},
			AllowedApps: []string{"*"},
		},
		OrgOverrides: map[string]Rules{
			// Override has no block_if: EMAIL must NOT be blocked for this
			// org because overrides replace, they never merge.
			"org-lenient": {
				WarnIf:      []string{"EMAIL"},
				AllowedApps: []string{"*"},
			},
		},
	})

	scan := scanWith(detection.PIITypeEmail)

	defaultDecision := engine.Evaluate("gpt-4o", "app-1", "org-other", scan)
	assert.Equal(t, ActionBlock, defaultDecision.Action)

	overrideDecision := engine.Evaluate("gpt-4o", "app-1", "org-lenient", scan)
	assert.Equal(t, ActionWarn, overrideDecision.Action)
	assert.Equal(t, []string{"EMAIL"}, overrideDecision.Warnings)
}

func TestEvaluateDeterministic(t *testing.T) {
	engine := NewEngineFromPolicy(DefaultPolicy())
	scan := scanWith(detection.PIITypeSSN, detection.PIITypeAadhaar, detection.PIITypeEmail)

	first := engine.Evaluate("gpt-4o", "app-1", "org-1", scan)
	for i := 0; i < 10; i++ {
		again := engine.Evaluate("gpt-4o", "app-1", "org-1", scan)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Evaluation %d differs: %+v vs %+v", i, first, again)
		}
	}
}

func TestReloadSwapsPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")

	strict := `
version: "2.0"
name: Strict
rules:
  block_if: [EMAIL]
`
	require.NoError(t, os.WriteFile(path, []byte(strict), 0o600))

	engine := NewEngine(path)
	assert.Equal(t, "Strict", engine.Current().Name)

	lenient := `
version: "2.1"
name: Lenient
rules:
  warn_if: [EMAIL]
`
	require.NoError(t, os.WriteFile(path, []byte(lenient), 0o600))
	engine.Reload("")

	assert.Equal(t, "Lenient", engine.Current().Name)
	decision := engine.Evaluate("gpt-4o", "", "", scanWith(detection.PIITypeEmail))
	assert.Equal(t, ActionWarn, decision.Action)
}

func TestInfoListsOverrides(t *testing.T) {
	engine := NewEngineFromPolicy(&Policy{
		Name:    "p",
		Version: "1.0",
		OrgOverrides: map[string]Rules{
			"org-b": {},
			"org-a": {},
		},
	})

	info := engine.Info()
	assert.Equal(t, "p", info["name"])
	assert.Equal(t, []string{"org-a", "org-b"}, info["org_overrides"])
}
