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
	"net/http"
	"sort"
	"strconv"
	"time"

	"promptgate/platform/gateway/detection"
)

// violationSummary aggregates flagged records for the compliance view.
type violationSummary struct {
	TotalViolations  int                      `json:"total_violations"`
	TotalBlocked     int                      `json:"total_blocked"`
	TotalMasked      int                      `json:"total_masked"`
	TotalWarned      int                      `json:"total_warned"`
	ByType           map[string]int           `json:"by_type"`
	ByAction         map[string]int           `json:"by_action"`
	BySeverity       map[string]int           `json:"by_severity"`
	TopViolatingApps []map[string]interface{} `json:"top_violating_apps"`
	TopViolatingOrgs []map[string]interface{} `json:"top_violating_orgs"`
	RecentViolations []map[string]interface{} `json:"recent_violations"`
}

// violationItem is the flattened list form of a flagged record.
type violationItem struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	AppID     string    `json:"app_id"`
	UserID    *string   `json:"user_id"`
	Model     string    `json:"model"`
	RiskFlags []string  `json:"risk_flags"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

type trendBucket struct {
	Date    string `json:"date"`
	Total   int    `json:"total"`
	Blocked int    `json:"blocked"`
	Masked  int    `json:"masked"`
	Warned  int    `json:"warned"`
}

// HandleListViolations lists flagged records, optionally narrowed by
// action.
func (s *Server) HandleListViolations(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, limit, err := paginationFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.store.ListViolations(filter, page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query violations")
		return
	}

	actionFilter := r.URL.Query().Get("action")
	items := make([]violationItem, 0, len(records))
	for _, record := range records {
		action := record.Action()
		if actionFilter != "" && action != actionFilter {
			continue
		}
		items = append(items, violationItem{
			ID:        record.ID.String(),
			OrgID:     record.OrgID,
			AppID:     record.AppID,
			UserID:    record.UserID,
			Model:     record.Model,
			RiskFlags: record.RiskFlags,
			Action:    action,
			CreatedAt: record.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, items)
}

// HandleViolationsSummary aggregates flagged records: counts by action,
// PII type, and severity, plus the worst offenders and the most recent
// violations.
func (s *Server) HandleViolationsSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.store.AllViolations(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query violations")
		return
	}

	summary := violationSummary{
		ByType:     map[string]int{},
		ByAction:   map[string]int{"blocked": 0, "masked": 0, "warned": 0, "allowed": 0},
		BySeverity: map[string]int{"critical": 0, "high": 0, "medium": 0, "low": 0},
	}
	summary.TotalViolations = len(records)

	appCounts := map[string]int{}
	orgCounts := map[string]int{}

	for _, record := range records {
		action := record.Action()
		if _, ok := summary.ByAction[action]; ok {
			summary.ByAction[action]++
		}

		for _, piiType := range record.RiskFlags {
			summary.ByType[piiType]++
			severity := severityBucket(piiType)
			summary.BySeverity[severity]++
		}

		appCounts[record.AppID]++
		orgCounts[record.OrgID]++
	}

	summary.TotalBlocked = summary.ByAction["blocked"]
	summary.TotalMasked = summary.ByAction["masked"]
	summary.TotalWarned = summary.ByAction["warned"]
	summary.TopViolatingApps = topCounts(appCounts, "app_id", 10)
	summary.TopViolatingOrgs = topCounts(orgCounts, "org_id", 10)

	recent := records
	if len(recent) > 10 {
		recent = recent[:10]
	}
	summary.RecentViolations = make([]map[string]interface{}, 0, len(recent))
	for _, record := range recent {
		summary.RecentViolations = append(summary.RecentViolations, map[string]interface{}{
			"id":         record.ID.String(),
			"org_id":     record.OrgID,
			"app_id":     record.AppID,
			"model":      record.Model,
			"risk_flags": record.RiskFlags,
			"action":     record.Action(),
			"created_at": record.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, summary)
}

// HandleViolationTrends returns daily violation counts for a window of
// days. Buckets follow the configured trend timezone, UTC by default.
func (s *Server) HandleViolationTrends(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = parsed
	}

	loc := time.UTC
	if s.cfg.TrendTZ != "" {
		parsed, err := time.LoadLocation(s.cfg.TrendTZ)
		if err == nil {
			loc = parsed
		}
	}

	endDate := time.Now().UTC()
	startDate := endDate.AddDate(0, 0, -days)
	filter := ListFilter{
		OrgID:     r.URL.Query().Get("org_id"),
		StartDate: &startDate,
		EndDate:   &endDate,
	}

	records, err := s.store.AllViolations(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query violations")
		return
	}

	buckets := map[string]*trendBucket{}
	for _, record := range records {
		date := record.CreatedAt.In(loc).Format("2006-01-02")
		bucket, ok := buckets[date]
		if !ok {
			bucket = &trendBucket{Date: date}
			buckets[date] = bucket
		}
		bucket.Total++
		switch record.Action() {
		case "blocked":
			bucket.Blocked++
		case "masked":
			bucket.Masked++
		case "warned":
			bucket.Warned++
		}
	}

	trends := make([]trendBucket, 0, len(buckets))
	for _, bucket := range buckets {
		trends = append(trends, *bucket)
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Date < trends[j].Date })

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trends":      trends,
		"period_days": days,
		"start_date":  startDate.Format(time.RFC3339),
		"end_date":    endDate.Format(time.RFC3339),
	})
}

// HandleViolationsByType breaks flagged records down per PII type.
func (s *Server) HandleViolationsByType(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.store.AllViolations(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query violations")
		return
	}

	type typeCounts struct {
		Total   int
		Blocked int
		Masked  int
		Warned  int
	}
	counts := map[string]*typeCounts{}

	for _, record := range records {
		action := record.Action()
		for _, piiType := range record.RiskFlags {
			c, ok := counts[piiType]
			if !ok {
				c = &typeCounts{}
				counts[piiType] = c
			}
			c.Total++
			switch action {
			case "blocked":
				c.Blocked++
			case "masked":
				c.Masked++
			case "warned":
				c.Warned++
			}
		}
	}

	byType := make([]map[string]interface{}, 0, len(counts))
	for piiType, c := range counts {
		byType = append(byType, map[string]interface{}{
			"pii_type": piiType,
			"total":    c.Total,
			"blocked":  c.Blocked,
			"masked":   c.Masked,
			"warned":   c.Warned,
		})
	}
	sort.Slice(byType, func(i, j int) bool {
		ti := byType[i]["total"].(int)
		tj := byType[j]["total"].(int)
		if ti != tj {
			return ti > tj
		}
		return byType[i]["pii_type"].(string) < byType[j]["pii_type"].(string)
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{"by_type": byType})
}

// severityBucket maps a PII type to the severity label used in
// compliance views, via the canonical pattern registry.
func severityBucket(piiType string) string {
	switch detection.SeverityFor(detection.PIIType(piiType)) {
	case detection.SeverityCritical:
		return "critical"
	case detection.SeverityHigh:
		return "high"
	case detection.SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// topCounts returns the n highest counts as {key: name, "violation_count": n}
// maps, ordered descending with name as tiebreak.
func topCounts(counts map[string]int, key string, n int) []map[string]interface{} {
	type entry struct {
		name  string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, entry{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})
	if len(entries) > n {
		entries = entries[:n]
	}

	out := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]interface{}{
			key:               e.name,
			"violation_count": e.count,
		})
	}
	return out
}
