// Package db provides PostgreSQL storage for exported provider records.
package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/npidb-scraper/internal/types"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// querier is the part of a pool or transaction the run writers use.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// EnsureSchema creates the export tables if they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// CreateRun records the start of a collection run under the request's ID.
func (db *DB) CreateRun(ctx context.Context, req types.RunRequest) error {
	return createRun(ctx, db.pool, req)
}

// SaveRecords bulk-inserts a run's records, numbering them in collection order.
func (db *DB) SaveRecords(ctx context.Context, runID uuid.UUID, records []types.ProviderRecord) (int64, error) {
	return saveRecords(ctx, db.pool, runID, records)
}

// CompleteRun marks a run finished with its stop reason and record count.
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status, stopReason string, records int) error {
	return completeRun(ctx, db.pool, runID, status, stopReason, records)
}

func createRun(ctx context.Context, q querier, req types.RunRequest) error {
	_, err := q.Exec(ctx,
		`INSERT INTO scrape_runs (id, specialty_slug, specialty, state, mode, record_cap, listing_url, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		req.ID, req.SpecialtySlug, req.SpecialtyLabel, req.StateCode, req.Mode.String(), req.Cap, req.ListingURL(), RunStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func saveRecords(ctx context.Context, q querier, runID uuid.UUID, records []types.ProviderRecord) (int64, error) {
	n, err := q.CopyFrom(ctx,
		pgx.Identifier{"provider_records"},
		recordColumns,
		pgx.CopyFromRows(recordRows(runID, records)),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save records: %w", err)
	}
	return n, nil
}

func completeRun(ctx context.Context, q querier, runID uuid.UUID, status, stopReason string, records int) error {
	_, err := q.Exec(ctx,
		`UPDATE scrape_runs
		 SET status = $1, stop_reason = $2, record_count = $3, completed_at = NOW()
		 WHERE id = $4`,
		status, stopReason, records, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil when it does not exist.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	err := db.pool.QueryRow(ctx,
		`SELECT id, specialty_slug, specialty, state, mode, record_cap, status,
		        COALESCE(stop_reason, ''), record_count, created_at, completed_at
		 FROM scrape_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.SpecialtySlug, &run.Specialty, &run.State, &run.Mode, &run.Cap, &run.Status,
		&run.StopReason, &run.RecordCount, &run.CreatedAt, &run.CompletedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRecords returns a run's records in collection order.
func (db *DB) ListRecords(ctx context.Context, runID uuid.UUID) ([]types.ProviderRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT npi, provider_name, address, phone, fax, specialty, state
		 FROM provider_records WHERE run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []types.ProviderRecord
	for rows.Next() {
		var r types.ProviderRecord
		if err := rows.Scan(&r.NPI, &r.Name, &r.Address, &r.Phone, &r.Fax, &r.Specialty, &r.State); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

var recordColumns = []string{"run_id", "position", "npi", "provider_name", "address", "phone", "fax", "specialty", "state"}

func recordRows(runID uuid.UUID, records []types.ProviderRecord) [][]any {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{runID, i + 1, r.NPI, r.Name, r.Address, r.Phone, r.Fax, r.Specialty, r.State}
	}
	return rows
}

// ExportRun stores a finished run and its records in one transaction, so a failed
// insert leaves nothing behind. Runs with no records are stored with RunStatusEmpty.
func (db *DB) ExportRun(ctx context.Context, req types.RunRequest, records []types.ProviderRecord, stopReason string) error {
	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		return exportRun(ctx, tx, req, records, stopReason)
	})
}

func exportRun(ctx context.Context, q querier, req types.RunRequest, records []types.ProviderRecord, stopReason string) error {
	if err := createRun(ctx, q, req); err != nil {
		return err
	}
	if len(records) > 0 {
		if _, err := saveRecords(ctx, q, req.ID, records); err != nil {
			return err
		}
	}
	return completeRun(ctx, q, req.ID, RunStatus(len(records)), stopReason, len(records))
}

// RunStatus returns the final status for a run that gathered n records.
func RunStatus(n int) string {
	if n == 0 {
		return RunStatusEmpty
	}
	return RunStatusCompleted
}
