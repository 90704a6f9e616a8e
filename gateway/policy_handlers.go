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

package gateway

import (
	"encoding/json"
	"net/http"
)

// HandleGetPolicy returns the current policy configuration.
func (g *Gateway) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(g.engine.Info()); err != nil {
		g.log.Error("", "", "failed to encode policy info", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// HandleReloadPolicy re-reads the policy file and swaps it in.
func (g *Gateway) HandleReloadPolicy(w http.ResponseWriter, r *http.Request) {
	g.engine.Reload("")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "success",
		"message": "Policy reloaded",
		"policy":  g.engine.Info(),
	}); err != nil {
		g.log.Error("", "", "failed to encode reload response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
