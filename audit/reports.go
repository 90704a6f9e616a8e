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
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// HandleAuditReport renders a PDF compliance report for a date range,
// the last 30 days by default.
func (s *Server) HandleAuditReport(w http.ResponseWriter, r *http.Request) {
	endDate := time.Now().UTC()
	startDate := endDate.AddDate(0, 0, -30)

	q := r.URL.Query()
	if raw := q.Get("start_date"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start_date")
			return
		}
		startDate = parsed
	}
	if raw := q.Get("end_date"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end_date")
			return
		}
		endDate = parsed
	}

	filter := ListFilter{
		OrgID:     q.Get("org_id"),
		StartDate: &startDate,
		EndDate:   &endDate,
	}

	stats, err := s.store.Stats(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute report stats")
		return
	}
	violations, err := s.store.AllViolations(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query violations")
		return
	}

	pdf := buildReportPDF(startDate, endDate, stats, violations)

	filename := fmt.Sprintf("audit_report_%s_%s.pdf",
		startDate.Format("20060102"), endDate.Format("20060102"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if err := pdf.Output(w); err != nil {
		s.log.ErrorWithCode("", "", "report_failed", "failed to render PDF report", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	promExports.WithLabelValues("pdf").Inc()
}

func buildReportPDF(startDate, endDate time.Time, stats Stats, violations []LogRecord) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("PromptGate Audit Report", false)
	pdf.AddPage()

	// Title
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "PromptGate Audit Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Period: %s to %s",
		startDate.Format("2006-01-02"), endDate.Format("2006-01-02")), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	// Executive summary
	sectionTitle(pdf, "Executive Summary")
	pdf.SetFont("Helvetica", "", 10)
	violationRate := 0.0
	if stats.TotalRequests > 0 {
		violationRate = float64(stats.RequestsWithRiskFlags) / float64(stats.TotalRequests) * 100
	}
	summary := fmt.Sprintf(
		"During this period the gateway processed %d chat completion requests across %d applications "+
			"and %d models. %d requests (%.1f%%) carried one or more PII risk flags.",
		stats.TotalRequests, stats.UniqueApps, stats.UniqueModels,
		stats.RequestsWithRiskFlags, violationRate)
	pdf.MultiCell(0, 5, summary, "", "L", false)
	pdf.Ln(4)

	// Summary statistics table
	sectionTitle(pdf, "Summary Statistics")
	statRow(pdf, "Total requests", fmt.Sprintf("%d", stats.TotalRequests))
	statRow(pdf, "Input tokens", fmt.Sprintf("%d", stats.TotalTokensInput))
	statRow(pdf, "Output tokens", fmt.Sprintf("%d", stats.TotalTokensOutput))
	statRow(pdf, "Unique models", fmt.Sprintf("%d", stats.UniqueModels))
	statRow(pdf, "Unique applications", fmt.Sprintf("%d", stats.UniqueApps))
	statRow(pdf, "Requests with risk flags", fmt.Sprintf("%d", stats.RequestsWithRiskFlags))
	pdf.Ln(4)

	// Violations by type
	sectionTitle(pdf, "Violations by PII Type")
	typeCounts := map[string]int{}
	appCounts := map[string]int{}
	for _, record := range violations {
		for _, piiType := range record.RiskFlags {
			typeCounts[piiType]++
		}
		appCounts[record.AppID]++
	}
	if len(typeCounts) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 6, "No violations recorded in this period.", "", 1, "L", false, 0, "")
	} else {
		tableHeader(pdf, "PII Type", "Count")
		for _, row := range sortedCounts(typeCounts) {
			tableRow(pdf, row.name, fmt.Sprintf("%d", row.count))
		}
	}
	pdf.Ln(4)

	// Top applications
	sectionTitle(pdf, "Top Applications by Violations")
	if len(appCounts) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 6, "No violations recorded in this period.", "", 1, "L", false, 0, "")
	} else {
		tableHeader(pdf, "Application", "Violations")
		rows := sortedCounts(appCounts)
		if len(rows) > 10 {
			rows = rows[:10]
		}
		for _, row := range rows {
			tableRow(pdf, row.name, fmt.Sprintf("%d", row.count))
		}
	}
	pdf.Ln(4)

	// Recommendations
	sectionTitle(pdf, "Recommendations")
	pdf.SetFont("Helvetica", "", 10)
	for _, rec := range recommendations(stats, typeCounts) {
		pdf.MultiCell(0, 5, "- "+rec, "", "L", false)
	}

	// Footer
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 5, fmt.Sprintf("Generated by PromptGate on %s. Prompt contents are never stored; this report is derived from hashed audit records.",
		time.Now().UTC().Format("2006-01-02 15:04 MST")), "", 1, "C", false, 0, "")

	return pdf
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
}

func statRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(80, 6, label, "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 6, value, "1", 1, "R", false, 0, "")
}

func tableHeader(pdf *gofpdf.Fpdf, left, right string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(80, 6, left, "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 6, right, "1", 1, "R", true, 0, "")
}

func tableRow(pdf *gofpdf.Fpdf, left, right string) {
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(80, 6, left, "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 6, right, "1", 1, "R", false, 0, "")
}

type countRow struct {
	name  string
	count int
}

func sortedCounts(counts map[string]int) []countRow {
	rows := make([]countRow, 0, len(counts))
	for name, count := range counts {
		rows = append(rows, countRow{name, count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].name < rows[j].name
	})
	return rows
}

func recommendations(stats Stats, typeCounts map[string]int) []string {
	var recs []string
	if stats.TotalRequests == 0 {
		return []string{"No traffic recorded in this period. Verify gateway connectivity to the audit service."}
	}
	if typeCounts["PAN"] > 0 || typeCounts["CREDIT_CARD"] > 0 {
		recs = append(recs, "Payment card data reached the gateway. Review upstream applications for card number handling before prompts are built.")
	}
	if typeCounts["AADHAAR"] > 0 || typeCounts["SSN"] > 0 {
		recs = append(recs, "Government identifiers were detected. Confirm the blocking policy covers all applications that handle customer identity data.")
	}
	if typeCounts["EMAIL"] > 0 || typeCounts["PHONE"] > 0 {
		recs = append(recs, "Contact details are being masked regularly. Consider client-side redaction to reduce masking latency.")
	}
	if float64(stats.RequestsWithRiskFlags) > float64(stats.TotalRequests)*0.1 {
		recs = append(recs, "More than 10% of requests carried risk flags. Schedule a developer review of prompt construction practices.")
	}
	if len(recs) == 0 {
		recs = append(recs, "No systemic PII exposure detected. Maintain the current policy configuration.")
	}
	return recs
}
