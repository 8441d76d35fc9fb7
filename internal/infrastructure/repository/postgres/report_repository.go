package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ReportRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS batch_reports (
	id TEXT PRIMARY KEY,
	total INTEGER NOT NULL,
	processed INTEGER NOT NULL,
	succeeded INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	dropped INTEGER NOT NULL,
	avg_duration_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	insight JSONB,
	warnings JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE TABLE IF NOT EXISTS batch_documents (
	processing_id TEXT PRIMARY KEY,
	batch_id TEXT NOT NULL REFERENCES batch_reports(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	failed_stage TEXT,
	category TEXT,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	quality DOUBLE PRECISION NOT NULL DEFAULT 0,
	duration_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	result JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batch_documents_batch ON batch_documents(batch_id);
CREATE INDEX IF NOT EXISTS idx_batch_reports_started_at ON batch_reports(started_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ReportRepository) SaveReport(ctx context.Context, report *domain.BatchReport) error {
	insightJSON, err := json.Marshal(report.Insight)
	if err != nil {
		return fmt.Errorf("marshal insight: %w", err)
	}
	warningsJSON, err := json.Marshal(warningsOrEmpty(report.Warnings))
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin report tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO batch_reports (
	id, total, processed, succeeded, failed, dropped, avg_duration_ms, started_at, finished_at, insight, warnings
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		report.ID, report.Stats.Total, report.Stats.Processed, report.Stats.Succeeded, report.Stats.Failed,
		report.Stats.Dropped, durationMs(report.Stats.AvgDuration), report.Stats.StartedAt, report.Stats.FinishedAt,
		insightJSON, warningsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert batch report: %w", err)
	}

	for _, result := range report.Results {
		resultJSON, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result for %s: %w", result.Document.Name, err)
		}
		category, confidence := classificationOf(result)
		_, err = tx.ExecContext(ctx, `
INSERT INTO batch_documents (
	processing_id, batch_id, name, success, failed_stage, category, confidence, quality, duration_ms, result
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
			result.ProcessingID, report.ID, result.Document.Name, result.Success, string(result.FailedStage),
			category, confidence, result.QualityScore, durationMs(result.Duration), resultJSON,
		)
		if err != nil {
			return fmt.Errorf("insert document result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report tx: %w", err)
	}
	return nil
}

func (r *ReportRepository) GetReport(ctx context.Context, id string) (*domain.BatchReport, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, total, processed, succeeded, failed, dropped, avg_duration_ms, started_at, finished_at, insight, warnings
FROM batch_reports
WHERE id = $1
`, id)

	report := &domain.BatchReport{}
	var avgMs float64
	var insightRaw, warningsRaw []byte

	err := row.Scan(
		&report.ID, &report.Stats.Total, &report.Stats.Processed, &report.Stats.Succeeded, &report.Stats.Failed,
		&report.Stats.Dropped, &avgMs, &report.Stats.StartedAt, &report.Stats.FinishedAt, &insightRaw, &warningsRaw,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrReportNotFound, "get report", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan batch report: %w", err)
	}
	report.Stats.AvgDuration = time.Duration(avgMs * float64(time.Millisecond))

	if len(insightRaw) > 0 && string(insightRaw) != "null" {
		var insight domain.CollectiveInsight
		if err := json.Unmarshal(insightRaw, &insight); err != nil {
			return nil, fmt.Errorf("unmarshal insight: %w", err)
		}
		report.Insight = &insight
	}
	if err := json.Unmarshal(warningsRaw, &report.Warnings); err != nil {
		return nil, fmt.Errorf("unmarshal warnings: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT result
FROM batch_documents
WHERE batch_id = $1
ORDER BY name
`, id)
	if err != nil {
		return nil, fmt.Errorf("query document results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var resultRaw []byte
		if err := rows.Scan(&resultRaw); err != nil {
			return nil, fmt.Errorf("scan document result: %w", err)
		}
		var result domain.PipelineResult
		if err := json.Unmarshal(resultRaw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal document result: %w", err)
		}
		report.Results = append(report.Results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document results: %w", err)
	}
	return report, nil
}

func classificationOf(result *domain.PipelineResult) (string, float64) {
	if result.Formatted == nil || result.Formatted.Classification == nil {
		return "", 0
	}
	return result.Formatted.Classification.Category, result.Formatted.Classification.Confidence
}

func warningsOrEmpty(warnings []string) []string {
	if warnings == nil {
		return []string{}
	}
	return warnings
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
