// Copyright 2025 PromptGate
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileMissingFallsBack(t *testing.T) {
	loader := NewLoader()

	p := loader.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Equal(t, "Default Compliance Policy", p.Name)
	assert.ElementsMatch(t, []string{"AADHAAR", "PAN", "CREDIT_CARD", "SSN"}, p.Rules.BlockIf)
}

func TestLoadFileEmptyPathFallsBack(t *testing.T) {
	loader := NewLoader()
	p := loader.LoadFile("")
	assert.Equal(t, DefaultPolicy().Name, p.Name)
}

func TestLoadBytesMalformedFallsBack(t *testing.T) {
	loader := NewLoader()

	p := loader.LoadBytes([]byte("rules: [not: valid: yaml"), "inline")

	assert.Equal(t, DefaultPolicy().Name, p.Name)
	assert.Equal(t, []string{"EMAIL", "PHONE"}, p.Rules.MaskIf)
}

func TestLoadBytesEmptyFallsBack(t *testing.T) {
	loader := NewLoader()
	p := loader.LoadBytes(nil, "inline")
	assert.Equal(t, DefaultPolicy().Name, p.Name)
}

func TestLoadFileParsesDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")

	doc := `
version: "2.0"
name: Production Policy
description: blocks everything critical
rules:
  block_if: [PAN, SSN]
  mask_if: [EMAIL]
  warn_if: [IP_ADDRESS]
  allowed_models: [gpt-4o]
  blocked_models: [gpt-3.5-turbo]
  allowed_apps: ["crm"]
  blocked_apps: ["legacy"]
org_overrides:
  org-eu:
    block_if: [EMAIL, PAN]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	loader := NewLoader()
	p := loader.LoadFile(path)

	assert.Equal(t, "Production Policy", p.Name)
	assert.Equal(t, "2.0", p.Version)
	assert.Equal(t, []string{"PAN", "SSN"}, p.Rules.BlockIf)
	assert.Equal(t, []string{"gpt-4o"}, p.Rules.AllowedModels)
	assert.Equal(t, []string{"crm"}, p.Rules.AllowedApps)

	override, ok := p.OrgOverrides["org-eu"]
	require.True(t, ok)
	// Overrides replace the defaults: no mask_if is inherited
	assert.Empty(t, override.MaskIf)
	assert.Equal(t, []string{"EMAIL", "PAN"}, override.BlockIf)
	// Unspecified allowed_apps defaults to the wildcard
	assert.Equal(t, []string{"*"}, override.AllowedApps)
}

func TestLoadBytesMissingTopLevelRules(t *testing.T) {
	loader := NewLoader()

	p := loader.LoadBytes([]byte("name: Named But Bare\n"), "inline")

	// Rules fall back to the default rule set
	assert.Equal(t, "Named But Bare", p.Name)
	assert.Equal(t, DefaultPolicy().Rules.BlockIf, p.Rules.BlockIf)
	assert.Equal(t, []string{"*"}, p.Rules.AllowedApps)
}

func TestRulesForReturnsOverride(t *testing.T) {
	p := &Policy{
		Rules: Rules{BlockIf: []string{"SSN"}},
		OrgOverrides: map[string]Rules{
			"org-1": {WarnIf: []string{"SSN"}},
		},
	}

	assert.Equal(t, []string{"SSN"}, p.RulesFor("").BlockIf)
	assert.Equal(t, []string{"SSN"}, p.RulesFor("org-2").BlockIf)
	assert.Empty(t, p.RulesFor("org-1").BlockIf)
	assert.Equal(t, []string{"SSN"}, p.RulesFor("org-1").WarnIf)
}
