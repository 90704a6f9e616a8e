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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// Sentinel errors for store operations.
var (
	ErrLogNotFound = errors.New("audit log not found")
	ErrInvalidID   = errors.New("invalid log id format")
)

// LogRecord is one immutable audit log row. The table has no UPDATE or
// DELETE path anywhere in this package.
type LogRecord struct {
	ID               uuid.UUID              `json:"id"`
	OrgID            string                 `json:"org_id"`
	AppID            string                 `json:"app_id"`
	UserID           *string                `json:"user_id"`
	Model            string                 `json:"model"`
	Provider         string                 `json:"provider"`
	PromptHash       string                 `json:"prompt_hash"`
	TokenCountInput  *int                   `json:"token_count_input"`
	TokenCountOutput *int                   `json:"token_count_output"`
	LatencyMs        *int                   `json:"latency_ms"`
	RiskFlags        []string               `json:"risk_flags"`
	Metadata         map[string]interface{} `json:"metadata"`
	CreatedAt        time.Time              `json:"created_at"`
}

// Action returns metadata.action, "unknown" when absent.
func (r LogRecord) Action() string {
	if action, ok := r.Metadata["action"].(string); ok && action != "" {
		return action
	}
	return "unknown"
}

// ListFilter narrows list, export, and stats queries. Zero values mean
// "no filter" except HasRiskFlags, which is tri-state.
type ListFilter struct {
	OrgID        string
	AppID        string
	UserID       string
	Model        string
	Provider     string
	StartDate    *time.Time
	EndDate      *time.Time
	HasRiskFlags *bool
	PIIType      string
}

// Stats is the aggregate view over audit logs.
type Stats struct {
	TotalRequests         int `json:"total_requests"`
	TotalTokensInput      int `json:"total_tokens_input"`
	TotalTokensOutput     int `json:"total_tokens_output"`
	UniqueModels          int `json:"unique_models"`
	UniqueApps            int `json:"unique_apps"`
	RequestsWithRiskFlags int `json:"requests_with_risk_flags"`
}

// Store is the Postgres-backed audit log repository.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// OpenStore connects to Postgres and verifies the connection.
func OpenStore(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewStore(db), nil
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

const logColumns = `id, org_id, app_id, user_id, model, provider, prompt_hash,
	token_count_input, token_count_output, latency_ms, risk_flags, metadata, created_at`

// Insert appends one record. Retried deliveries of the same id are
// absorbed by ON CONFLICT DO NOTHING, keeping the write idempotent.
func (s *Store) Insert(record LogRecord) error {
	riskFlags, err := json.Marshal(orEmptyFlags(record.RiskFlags))
	if err != nil {
		return fmt.Errorf("failed to marshal risk flags: %w", err)
	}
	metadata, err := json.Marshal(orEmptyMetadata(record.Metadata))
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, org_id, app_id, user_id, model, provider, prompt_hash,
			token_count_input, token_count_output, latency_ms, risk_flags, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return execWithRetry(s.db, query,
		record.ID, record.OrgID, record.AppID, record.UserID,
		record.Model, record.Provider, record.PromptHash,
		record.TokenCountInput, record.TokenCountOutput, record.LatencyMs,
		riskFlags, metadata, createdAt)
}

// List returns the filtered page newest-first plus the total match count.
func (s *Store) List(filter ListFilter, page, limit int) ([]LogRecord, int, error) {
	where, args := buildWhere(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM audit_logs" + where
	if err := s.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	offset := (page - 1) * limit
	query := fmt.Sprintf("SELECT %s FROM audit_logs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		logColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// GetByID fetches one record. Returns ErrLogNotFound when absent.
func (s *Store) GetByID(id uuid.UUID) (*LogRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM audit_logs WHERE id = $1", logColumns)

	rows, err := s.db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrLogNotFound
	}
	return &records[0], nil
}

// Stats computes aggregate statistics over the filtered logs.
func (s *Store) Stats(filter ListFilter) (Stats, error) {
	where, args := buildWhere(filter)

	query := `SELECT COUNT(*),
		COALESCE(SUM(token_count_input), 0),
		COALESCE(SUM(token_count_output), 0),
		COUNT(DISTINCT model),
		COUNT(DISTINCT app_id),
		COUNT(*) FILTER (WHERE jsonb_array_length(risk_flags) > 0)
		FROM audit_logs` + where

	var stats Stats
	err := s.db.QueryRow(query, args...).Scan(
		&stats.TotalRequests,
		&stats.TotalTokensInput,
		&stats.TotalTokensOutput,
		&stats.UniqueModels,
		&stats.UniqueApps,
		&stats.RequestsWithRiskFlags,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	return stats, nil
}

// ListViolations returns the filtered page of records that carry risk
// flags, newest first.
func (s *Store) ListViolations(filter ListFilter, page, limit int) ([]LogRecord, error) {
	flagged := true
	filter.HasRiskFlags = &flagged
	records, _, err := s.List(filter, page, limit)
	return records, err
}

// AllViolations returns every flagged record matching the filter,
// newest first, for the aggregate views.
func (s *Store) AllViolations(filter ListFilter) ([]LogRecord, error) {
	flagged := true
	filter.HasRiskFlags = &flagged
	where, args := buildWhere(filter)

	query := fmt.Sprintf("SELECT %s FROM audit_logs%s ORDER BY created_at DESC", logColumns, where)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Export streams every filtered record newest-first through fn, one row
// at a time, without materialising the result set.
func (s *Store) Export(filter ListFilter, fn func(LogRecord) error) error {
	where, args := buildWhere(filter)

	query := fmt.Sprintf("SELECT %s FROM audit_logs%s ORDER BY created_at DESC", logColumns, where)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("failed to query export: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return rows.Err()
}

// buildWhere assembles the WHERE clause for a filter. The returned
// string is empty or starts with " WHERE".
func buildWhere(filter ListFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.OrgID != "" {
		add("org_id = $%d", filter.OrgID)
	}
	if filter.AppID != "" {
		add("app_id = $%d", filter.AppID)
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Model != "" {
		add("model = $%d", filter.Model)
	}
	if filter.Provider != "" {
		add("provider = $%d", filter.Provider)
	}
	if filter.StartDate != nil {
		add("created_at >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("created_at <= $%d", *filter.EndDate)
	}
	if filter.HasRiskFlags != nil {
		if *filter.HasRiskFlags {
			clauses = append(clauses, "jsonb_array_length(risk_flags) > 0")
		} else {
			clauses = append(clauses, "jsonb_array_length(risk_flags) = 0")
		}
	}
	if filter.PIIType != "" {
		flag, _ := json.Marshal([]string{filter.PIIType})
		add("risk_flags @> $%d", string(flag))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (LogRecord, error) {
	var record LogRecord
	var riskFlags, metadata []byte

	err := row.Scan(
		&record.ID, &record.OrgID, &record.AppID, &record.UserID,
		&record.Model, &record.Provider, &record.PromptHash,
		&record.TokenCountInput, &record.TokenCountOutput, &record.LatencyMs,
		&riskFlags, &metadata, &record.CreatedAt,
	)
	if err != nil {
		return LogRecord{}, fmt.Errorf("failed to scan audit log: %w", err)
	}

	if len(riskFlags) > 0 {
		if err := json.Unmarshal(riskFlags, &record.RiskFlags); err != nil {
			return LogRecord{}, fmt.Errorf("failed to decode risk flags: %w", err)
		}
	}
	if record.RiskFlags == nil {
		record.RiskFlags = []string{}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return LogRecord{}, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	if record.Metadata == nil {
		record.Metadata = map[string]interface{}{}
	}
	return record, nil
}

func scanRecords(rows *sql.Rows) ([]LogRecord, error) {
	var records []LogRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// execWithRetry executes a statement with retries for transient
// connection failures.
func execWithRetry(db *sql.DB, query string, args ...interface{}) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if _, err = db.Exec(query, args...); err == nil {
			return nil
		}
		time.Sleep(time.Millisecond * time.Duration(50*(attempt+1)))
	}
	return err
}

func orEmptyFlags(flags []string) []string {
	if flags == nil {
		return []string{}
	}
	return flags
}

func orEmptyMetadata(metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		return map[string]interface{}{}
	}
	return metadata
}
