// Copyright 2025 PromptGate
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func logRows(records ...LogRecord) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "org_id", "app_id", "user_id", "model", "provider", "prompt_hash",
		"token_count_input", "token_count_output", "latency_ms", "risk_flags", "metadata", "created_at",
	})
	for _, r := range records {
		flags, _ := json.Marshal(orEmptyFlags(r.RiskFlags))
		metadata, _ := json.Marshal(orEmptyMetadata(r.Metadata))
		rows.AddRow(r.ID, r.OrgID, r.AppID, r.UserID, r.Model, r.Provider, r.PromptHash,
			r.TokenCountInput, r.TokenCountOutput, r.LatencyMs, flags, metadata, r.CreatedAt)
	}
	return rows
}

func sampleRecord(flags []string, action string) LogRecord {
	latency := 420
	return LogRecord{
		ID:         uuid.New(),
		OrgID:      "acme-corp",
		AppID:      "crm-assistant",
		Model:      "gpt-4o",
		Provider:   "openai",
		PromptHash: "deadbeef",
		LatencyMs:  &latency,
		RiskFlags:  flags,
		Metadata:   map[string]interface{}{"action": action},
		CreatedAt:  time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestInsertUsesOnConflictDoNothing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Insert(sampleRecord(nil, "allowed"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRetriesTransientFailures(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("connection reset"))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Insert(sampleRecord(nil, "allowed"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListReturnsPageAndTotal(t *testing.T) {
	store, mock := newMockStore(t)
	record := sampleRecord([]string{"EMAIL"}, "masked")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs WHERE org_id = $1")).
		WithArgs("acme-corp").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(120))
	mock.ExpectQuery("ORDER BY created_at DESC LIMIT \\$2 OFFSET \\$3").
		WithArgs("acme-corp", 50, 50).
		WillReturnRows(logRows(record))

	records, total, err := store.List(ListFilter{OrgID: "acme-corp"}, 2, 50)
	require.NoError(t, err)
	assert.Equal(t, 120, total)
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)
	assert.Equal(t, []string{"EMAIL"}, records[0].RiskFlags)
	assert.Equal(t, "masked", records[0].Action())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("FROM audit_logs WHERE id").
		WithArgs(id).
		WillReturnRows(logRows())

	_, err := store.GetByID(id)
	assert.ErrorIs(t, err, ErrLogNotFound)
}

func TestStatsScansAggregates(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("COUNT\\(DISTINCT model\\)").
		WillReturnRows(sqlmock.NewRows([]string{"c1", "c2", "c3", "c4", "c5", "c6"}).
			AddRow(1000, 52000, 18000, 3, 4, 87))

	stats, err := store.Stats(ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1000, stats.TotalRequests)
	assert.Equal(t, 52000, stats.TotalTokensInput)
	assert.Equal(t, 18000, stats.TotalTokensOutput)
	assert.Equal(t, 3, stats.UniqueModels)
	assert.Equal(t, 4, stats.UniqueApps)
	assert.Equal(t, 87, stats.RequestsWithRiskFlags)
}

func TestAllViolationsForcesFlaggedFilter(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("jsonb_array_length(risk_flags) > 0")).
		WillReturnRows(logRows(sampleRecord([]string{"PAN"}, "blocked")))

	records, err := store.AllViolations(ListFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "blocked", records[0].Action())
}

func TestExportStreamsRows(t *testing.T) {
	store, mock := newMockStore(t)
	first := sampleRecord(nil, "allowed")
	second := sampleRecord([]string{"SSN"}, "blocked")

	mock.ExpectQuery("ORDER BY created_at DESC").
		WillReturnRows(logRows(first, second))

	var seen []uuid.UUID
	err := store.Export(ListFilter{}, func(record LogRecord) error {
		seen = append(seen, record.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, seen)
}

func TestBuildWhereClauses(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	flagged := true

	where, args := buildWhere(ListFilter{
		OrgID:        "acme-corp",
		Model:        "gpt-4o",
		StartDate:    &start,
		HasRiskFlags: &flagged,
		PIIType:      "PAN",
	})

	assert.Equal(t,
		` WHERE org_id = $1 AND model = $2 AND created_at >= $3 AND jsonb_array_length(risk_flags) > 0 AND risk_flags @> $4`,
		where)
	require.Len(t, args, 4)
	assert.Equal(t, `["PAN"]`, args[3])
}

func TestBuildWhereEmptyFilter(t *testing.T) {
	where, args := buildWhere(ListFilter{})
	assert.Empty(t, where)
	assert.Nil(t, args)
}

func TestEnsureSchemaAppliesAllStatements(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	for i := 1; i < len(schemaStatements); i++ {
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, store.EnsureSchema())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActionDefaultsToUnknown(t *testing.T) {
	record := LogRecord{Metadata: map[string]interface{}{}}
	assert.Equal(t, "unknown", record.Action())

	record.Metadata["action"] = "warned"
	assert.Equal(t, "warned", record.Action())
}
