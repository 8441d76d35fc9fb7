package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mkovalenko/docupipe/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*ReportRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ReportRepository{db: db}, mock, func() { _ = db.Close() }
}

func sampleReport() *domain.BatchReport {
	started := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	return &domain.BatchReport{
		ID: "batch-1",
		Results: []*domain.PipelineResult{
			{
				ProcessingID: "proc-1",
				Document:     domain.DocumentDescriptor{Name: "inv.txt"},
				Success:      true,
				QualityScore: 0.74,
				Duration:     1200 * time.Millisecond,
				Formatted: &domain.FormattedResult{
					Classification: &domain.ClassificationResult{
						Category:   domain.CategoryInvoice,
						Confidence: 0.82,
					},
				},
			},
		},
		Stats: domain.BatchStats{
			Total:       1,
			Processed:   1,
			Succeeded:   1,
			StartedAt:   started,
			FinishedAt:  started.Add(2 * time.Second),
			AvgDuration: 1200 * time.Millisecond,
		},
	}
}

func TestSaveReportWritesReportAndDocuments(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	report := sampleReport()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO batch_reports").
		WithArgs(report.ID, 1, 1, 1, 0, 0, float64(1200), report.Stats.StartedAt, report.Stats.FinishedAt,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO batch_documents").
		WithArgs("proc-1", report.ID, "inv.txt", true, "", domain.CategoryInvoice, 0.82, 0.74,
			float64(1200), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.SaveReport(context.Background(), report); err != nil {
		t.Fatalf("save report: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveReportRollsBackOnDocumentInsertFailure(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	report := sampleReport()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO batch_reports").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO batch_documents").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	if err := repo.SaveReport(context.Background(), report); err == nil {
		t.Fatal("expected error from failed document insert")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetReportReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, total, processed, succeeded, failed, dropped").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetReport(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsKind(err, domain.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetReportReconstructsResults(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	started := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	reportRows := sqlmock.NewRows([]string{
		"id", "total", "processed", "succeeded", "failed", "dropped",
		"avg_duration_ms", "started_at", "finished_at", "insight", "warnings",
	}).AddRow("batch-1", 2, 2, 1, 1, 0, 1500.0, started, started.Add(3*time.Second),
		[]byte(`{"available":true,"overview":"mostly invoices"}`), []byte(`["dropped x.zip"]`))

	mock.ExpectQuery("SELECT id, total, processed, succeeded, failed, dropped").
		WithArgs("batch-1").
		WillReturnRows(reportRows)

	docRows := sqlmock.NewRows([]string{"result"}).
		AddRow([]byte(`{"processing_id":"proc-1","document":{"name":"a.txt"},"success":true}`)).
		AddRow([]byte(`{"processing_id":"proc-2","document":{"name":"b.txt"},"success":false}`))

	mock.ExpectQuery("SELECT result").
		WithArgs("batch-1").
		WillReturnRows(docRows)

	report, err := repo.GetReport(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if report.Stats.AvgDuration != 1500*time.Millisecond {
		t.Fatalf("unexpected avg duration %v", report.Stats.AvgDuration)
	}
	if report.Insight == nil || report.Insight.Overview != "mostly invoices" {
		t.Fatalf("unexpected insight %+v", report.Insight)
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("unexpected warnings %v", report.Warnings)
	}
	if len(report.Results) != 2 || report.Results[0].ProcessingID != "proc-1" {
		t.Fatalf("unexpected results %+v", report.Results)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
