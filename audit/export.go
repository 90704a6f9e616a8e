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

package audit

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var csvHeader = []string{
	"id", "org_id", "app_id", "user_id", "model", "provider", "prompt_hash",
	"token_count_input", "token_count_output", "latency_ms", "risk_flags", "created_at",
}

// HandleExportCSV streams the filtered audit logs as a CSV download.
// Rows are written as they are scanned so large exports never hold the
// full result set in memory.
func (s *Server) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filename := fmt.Sprintf("audit_logs_%s.csv", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return
	}

	err = s.store.Export(filter, func(record LogRecord) error {
		return writer.Write(csvRow(record))
	})
	if err != nil {
		// Headers are already out; all we can do is log and stop the stream.
		s.log.ErrorWithCode("", "", "export_failed", "failed to stream CSV export", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	writer.Flush()
	promExports.WithLabelValues("csv").Inc()
}

func csvRow(record LogRecord) []string {
	return []string{
		record.ID.String(),
		record.OrgID,
		record.AppID,
		orEmpty(record.UserID),
		record.Model,
		record.Provider,
		record.PromptHash,
		orEmptyInt(record.TokenCountInput),
		orEmptyInt(record.TokenCountOutput),
		orEmptyInt(record.LatencyMs),
		strings.Join(record.RiskFlags, ","),
		record.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func orEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func orEmptyInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
