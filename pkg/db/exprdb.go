// SQLite store for pipeline runs and their combined expression tables.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/njohner/Methods-in-Microbiomics/pkg/expression"
	"github.com/njohner/Methods-in-Microbiomics/pkg/profile"
)

type ExprDB struct {
	sql *sql.DB
}

// Run describes one recorded pipeline run.
type Run struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	MatrixPath   string    `json:"matrix_path"`
	MetadataPath string    `json:"metadata_path"`
	Records      int       `json:"records"`
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	started_at    TIMESTAMP NOT NULL,
	matrix_path   TEXT NOT NULL,
	metadata_path TEXT NOT NULL,
	n_records     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS expression (
	run_id               TEXT NOT NULL REFERENCES runs(run_id),
	ko                   TEXT NOT NULL,
	sample_metag         TEXT NOT NULL,
	sample_metat         TEXT NOT NULL,
	sample_pair          TEXT NOT NULL,
	gene_abundance       REAL NOT NULL,
	transcript_abundance REAL NOT NULL,
	expression           REAL
);
CREATE INDEX IF NOT EXISTS expression_ko ON expression(run_id, ko);
CREATE INDEX IF NOT EXISTS expression_pair ON expression(run_id, sample_pair);
`

// NewExprDB wraps an open sqlite handle and makes sure the schema exists.
func NewExprDB(sqldb *sql.DB) (*ExprDB, error) {
	if _, err := sqldb.Exec(schema); err != nil {
		return nil, fmt.Errorf("create expression schema: %w", err)
	}
	return &ExprDB{sql: sqldb}, nil
}

// RecordRun stores a run and its expression records in one transaction.
// Non-finite expression values are stored as NULL, mirroring the NA stamp in
// the TSV output.
func (edb *ExprDB) RecordRun(ctx context.Context, run Run, records []expression.Record) error {

	tx, err := edb.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("fail to begin tx %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, matrix_path, metadata_path, n_records) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt, run.MatrixPath, run.MetadataPath, len(records))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}

	stm, err := tx.PrepareContext(ctx, `
		INSERT INTO expression
			(run_id, ko, sample_metag, sample_metat, sample_pair, gene_abundance, transcript_abundance, expression)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare expression insert: %w", err)
	}
	defer stm.Close()

	for _, rec := range records {
		expr := sql.NullFloat64{Float64: rec.Expression, Valid: rec.Finite()}
		_, err := stm.ExecContext(ctx,
			run.RunID, rec.KO, rec.Pair.Metag, rec.Pair.Metat, rec.Pair.Name(),
			rec.GeneAbundance, rec.TranscriptAbundance, expr)
		if err != nil {
			return fmt.Errorf("insert expression %s/%s: %w", rec.KO, rec.Pair.Name(), err)
		}
	}

	return tx.Commit()
}

// Runs lists recorded runs, newest first.
func (edb *ExprDB) Runs(ctx context.Context) ([]Run, error) {

	rows, err := edb.sql.QueryContext(ctx,
		`SELECT run_id, started_at, matrix_path, metadata_path, n_records FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.MatrixPath, &r.MetadataPath, &r.Records); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// ExpressionByKO returns a run's expression records for one orthologous
// group. Records stored with a NULL expression come back as +Inf, matching
// how the combiner flagged them.
func (edb *ExprDB) ExpressionByKO(ctx context.Context, runID, ko string) ([]expression.Record, error) {
	return edb.queryRecords(ctx,
		`SELECT ko, sample_metag, sample_metat, gene_abundance, transcript_abundance, expression
		 FROM expression WHERE run_id = ? AND ko = ? ORDER BY sample_pair`, runID, ko)
}

// ExpressionByPair returns a run's expression records for one sample pair.
func (edb *ExprDB) ExpressionByPair(ctx context.Context, runID, pair string) ([]expression.Record, error) {
	return edb.queryRecords(ctx,
		`SELECT ko, sample_metag, sample_metat, gene_abundance, transcript_abundance, expression
		 FROM expression WHERE run_id = ? AND sample_pair = ? ORDER BY ko`, runID, pair)
}

func (edb *ExprDB) queryRecords(ctx context.Context, query string, args ...any) ([]expression.Record, error) {

	rows, err := edb.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []expression.Record
	for rows.Next() {
		var rec expression.Record
		var pair profile.SamplePair
		var expr sql.NullFloat64
		if err := rows.Scan(&rec.KO, &pair.Metag, &pair.Metat,
			&rec.GeneAbundance, &rec.TranscriptAbundance, &expr); err != nil {
			return nil, err
		}
		rec.Pair = pair
		if expr.Valid {
			rec.Expression = expr.Float64
		} else {
			rec.Expression = rec.TranscriptAbundance / rec.GeneAbundance
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
