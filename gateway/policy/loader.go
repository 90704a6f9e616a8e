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
	"os"

	"gopkg.in/yaml.v3"

	"promptgate/platform/shared/logger"
)

// Loader reads policy documents from YAML. The loader never returns an
// error into the request path: any failure falls back to the built-in
// default policy with a logged warning.
type Loader struct {
	log *logger.Logger
}

// NewLoader creates a policy loader.
func NewLoader() *Loader {
	return &Loader{log: logger.New("policy-loader")}
}

// DefaultPolicy returns the built-in policy: block critical PII, mask
// medium PII, warn on low-risk identifiers, allow every model and app.
func DefaultPolicy() *Policy {
	return &Policy{
		Version:     "1.0",
		Name:        "Default Compliance Policy",
		Description: "Default policy that blocks critical PII and masks medium PII",
		Rules: Rules{
			BlockIf:     []string{"AADHAAR", "PAN", "CREDIT_CARD", "SSN"},
			MaskIf:      []string{"EMAIL", "PHONE"},
			WarnIf:      []string{"IP_ADDRESS", "DATE_OF_BIRTH"},
			AllowedApps: []string{"*"},
		},
	}
}

// LoadFile loads a policy from a YAML file, falling back to the default
// policy when the file is missing, empty, or malformed.
func (l *Loader) LoadFile(path string) *Policy {
	if path == "" {
		return DefaultPolicy()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		l.log.Warn("", "", "policy file not readable, using default policy", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return DefaultPolicy()
	}

	return l.LoadBytes(data, path)
}

// LoadBytes parses a YAML policy document. source is used only for logging.
func (l *Loader) LoadBytes(data []byte, source string) *Policy {
	if len(data) == 0 {
		l.log.Warn("", "", "empty policy document, using default policy", map[string]interface{}{
			"source": source,
		})
		return DefaultPolicy()
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		l.log.Error("", "", "policy parse failed, using default policy", map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		})
		return DefaultPolicy()
	}

	normalize(&p)
	l.log.Info("", "", "policy loaded", map[string]interface{}{
		"source":    source,
		"name":      p.Name,
		"overrides": len(p.OrgOverrides),
	})
	return &p
}

// normalize fills document-level defaults. Missing top-level fields take
// the default policy's values; an org override does NOT inherit from the
// default rules - unspecified override fields keep their zero values,
// except allowed_apps which defaults to the wildcard.
func normalize(p *Policy) {
	def := DefaultPolicy()

	if p.Version == "" {
		p.Version = def.Version
	}
	if p.Name == "" {
		p.Name = def.Name
	}
	if isZeroRules(p.Rules) {
		p.Rules = def.Rules
	}
	if p.Rules.AllowedApps == nil {
		p.Rules.AllowedApps = []string{"*"}
	}

	for orgID, rules := range p.OrgOverrides {
		if rules.AllowedApps == nil {
			rules.AllowedApps = []string{"*"}
			p.OrgOverrides[orgID] = rules
		}
	}
}

func isZeroRules(r Rules) bool {
	return r.BlockIf == nil && r.MaskIf == nil && r.WarnIf == nil &&
		r.AllowedModels == nil && r.BlockedModels == nil &&
		r.AllowedApps == nil && r.BlockedApps == nil
}
