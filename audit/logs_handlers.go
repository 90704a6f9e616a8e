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
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"promptgate/platform/shared/logger"
)

// Server carries the audit service handlers and their dependencies.
type Server struct {
	cfg   Config
	store *Store
	log   *logger.Logger
}

// NewServer creates the audit HTTP server over a store.
func NewServer(cfg Config, store *Store) *Server {
	return &Server{
		cfg:   cfg,
		store: store,
		log:   logger.New("audit"),
	}
}

// paginatedResponse is the envelope for list endpoints.
type paginatedResponse struct {
	Items []LogRecord `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Pages int         `json:"pages"`
}

// HandleCreateLog is the append-only write endpoint consumed by the
// gateway's audit emitter. Replayed ids are absorbed silently.
func (s *Server) HandleCreateLog(w http.ResponseWriter, r *http.Request) {
	var record LogRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid audit log payload")
		return
	}
	if record.OrgID == "" || record.AppID == "" || record.Model == "" || record.Provider == "" {
		writeError(w, http.StatusBadRequest, "Missing required audit log fields")
		return
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	if err := s.store.Insert(record); err != nil {
		s.log.ErrorWithCode("", record.ID.String(), "insert_failed", "failed to insert audit log", map[string]interface{}{
			"error": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "Failed to store audit log")
		return
	}

	promLogWrites.Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(record); err != nil {
		s.log.Error("", record.ID.String(), "failed to encode create response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// HandleListLogs lists audit logs with filters and pagination.
func (s *Server) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		promQueryDuration.WithLabelValues("list").Observe(float64(time.Since(start).Milliseconds()))
	}()

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

	records, total, err := s.store.List(filter, page, limit)
	if err != nil {
		s.log.ErrorWithCode("", "", "list_failed", "failed to list audit logs", map[string]interface{}{
			"error": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "Failed to query audit logs")
		return
	}
	if records == nil {
		records = []LogRecord{}
	}

	writeJSON(w, http.StatusOK, paginatedResponse{
		Items: records,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: (total + limit - 1) / limit,
	})
}

// HandleGetLog fetches one audit log by id.
func (s *Server) HandleGetLog(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid log ID format")
		return
	}

	record, err := s.store.GetByID(id)
	if errors.Is(err, ErrLogNotFound) {
		writeError(w, http.StatusNotFound, "Audit log not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit log")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// HandleStats returns aggregate statistics.
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		promQueryDuration.WithLabelValues("stats").Observe(float64(time.Since(start).Milliseconds()))
	}()

	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := s.store.Stats(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// filterFromQuery parses the shared filter query parameters.
func filterFromQuery(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{
		OrgID:    q.Get("org_id"),
		AppID:    q.Get("app_id"),
		UserID:   q.Get("user_id"),
		Model:    q.Get("model"),
		Provider: q.Get("provider"),
		PIIType:  q.Get("pii_type"),
	}

	if raw := q.Get("start_date"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return ListFilter{}, errors.New("invalid start_date")
		}
		filter.StartDate = &t
	}
	if raw := q.Get("end_date"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return ListFilter{}, errors.New("invalid end_date")
		}
		filter.EndDate = &t
	}
	if raw := q.Get("has_risk_flags"); raw != "" {
		flagged, err := strconv.ParseBool(raw)
		if err != nil {
			return ListFilter{}, errors.New("invalid has_risk_flags")
		}
		filter.HasRiskFlags = &flagged
	}
	return filter, nil
}

// paginationFromQuery parses and validates page/limit.
func paginationFromQuery(r *http.Request) (page, limit int, err error) {
	q := r.URL.Query()
	page = 1
	limit = 50

	if raw := q.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, errors.New("page must be >= 1")
		}
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			return 0, 0, errors.New("limit must be between 1 and 100")
		}
	}
	return page, limit, nil
}

// parseDate accepts RFC 3339 timestamps and bare dates.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	// Keep characters like >= readable in error messages
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"error": message})
}
