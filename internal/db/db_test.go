package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/npidb-scraper/internal/types"
)

func TestRecordRows(t *testing.T) {
	runID := uuid.New()
	records := []types.ProviderRecord{
		{NPI: "1", Name: "A", Address: "X", Phone: "p", Specialty: "Pediatrics", State: "CA"},
		{NPI: "2", Name: "B", Address: "Y", Fax: "f", Specialty: "Pediatrics", State: "CA"},
	}

	rows := recordRows(runID, records)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Len(t, row, len(recordColumns))
		assert.Equal(t, runID, row[0])
	}
	assert.Equal(t, []any{runID, 1, "1", "A", "X", "p", "", "Pediatrics", "CA"}, rows[0])
	assert.Equal(t, 2, rows[1][1])
	assert.Equal(t, "f", rows[1][6])
}

func TestRecordRows_Empty(t *testing.T) {
	assert.Empty(t, recordRows(uuid.New(), nil))
}

func TestSchemaDeclaresRecordColumns(t *testing.T) {
	for _, col := range recordColumns {
		assert.Contains(t, schema, col)
	}
}

func TestRunStatus(t *testing.T) {
	assert.Equal(t, RunStatusEmpty, RunStatus(0))
	assert.Equal(t, RunStatusCompleted, RunStatus(1))
	assert.Equal(t, RunStatusCompleted, RunStatus(5000))
}

// recordingQuerier logs the statements a run export issues and can fail the copy.
type recordingQuerier struct {
	statements []string
	copied     int
	copyErr    error
}

func (q *recordingQuerier) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	q.statements = append(q.statements, sql[:6])
	return pgconn.CommandTag{}, nil
}

func (q *recordingQuerier) CopyFrom(_ context.Context, table pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	q.statements = append(q.statements, "COPY "+table[0])
	if q.copyErr != nil {
		return 0, q.copyErr
	}
	for src.Next() {
		q.copied++
	}
	return int64(q.copied), nil
}

func testRequest(t *testing.T) types.RunRequest {
	t.Helper()
	req, err := types.NewRunRequest("", "pediatrics_208000000x", "Pediatrics", "CA", 10, types.ModeBasic)
	require.NoError(t, err)
	return req
}

func TestExportRun_Order(t *testing.T) {
	q := &recordingQuerier{}
	records := []types.ProviderRecord{
		{NPI: "1234567890", Name: "A", Specialty: "Pediatrics", State: "CA"},
		{NPI: "1098765432", Name: "B", Specialty: "Pediatrics", State: "CA"},
	}

	require.NoError(t, exportRun(context.Background(), q, testRequest(t), records, "exhausted"))
	assert.Equal(t, []string{"INSERT", "COPY provider_records", "UPDATE"}, q.statements)
	assert.Equal(t, 2, q.copied)
}

func TestExportRun_EmptySkipsCopy(t *testing.T) {
	q := &recordingQuerier{}

	require.NoError(t, exportRun(context.Background(), q, testRequest(t), nil, "fetch_failed"))
	assert.Equal(t, []string{"INSERT", "UPDATE"}, q.statements)
}

func TestExportRun_CopyFailureStopsBeforeCompleting(t *testing.T) {
	q := &recordingQuerier{copyErr: errors.New("value too long for type character(2)")}
	records := []types.ProviderRecord{{NPI: "1234567890", Name: "A", Specialty: "Pediatrics", State: "CAL"}}

	err := exportRun(context.Background(), q, testRequest(t), records, "exhausted")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save records")
	assert.Equal(t, []string{"INSERT", "COPY provider_records"}, q.statements)
}
