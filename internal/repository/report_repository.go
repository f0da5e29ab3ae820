package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/models"
)

// ReportRepository archives generated reports in Postgres, one row per study, report id and date.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

type reportRow struct {
	ID        string    `db:"id"`
	StudyID   string    `db:"study_id"`
	ReportID  string    `db:"report_id"`
	Date      string    `db:"report_date"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// archivedReportRow is the read shape; lib/pq scans a DATE column into time.Time.
type archivedReportRow struct {
	ID        string    `db:"id"`
	StudyID   string    `db:"study_id"`
	ReportID  string    `db:"report_id"`
	Date      time.Time `db:"report_date"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Upsert writes the report, replacing the data of an existing row with the same key.
func (r *ReportRepository) Upsert(ctx context.Context, report *models.Report) error {
	data, err := json.Marshal(report.Data)
	if err != nil {
		return fmt.Errorf("marshal report data: %w", err)
	}
	now := time.Now().UTC()
	row := reportRow{
		ID:        uuid.NewString(),
		StudyID:   report.StudyID,
		ReportID:  report.ReportID,
		Date:      report.Date.String(),
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	const query = `INSERT INTO study_reports (id, study_id, report_id, report_date, data, created_at, updated_at) VALUES (:id, :study_id, :report_id, :report_date, :data, :created_at, :updated_at) ON CONFLICT (study_id, report_id, report_date) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("upsert study report: %w", err)
	}
	return nil
}

// Get returns the archived report for the key.
func (r *ReportRepository) Get(ctx context.Context, studyID, reportID string, date civil.Date) (*models.Report, error) {
	const query = `SELECT id, study_id, report_id, report_date, data, created_at, updated_at FROM study_reports WHERE study_id = $1 AND report_id = $2 AND report_date = $3`
	var row archivedReportRow
	if err := r.db.GetContext(ctx, &row, query, studyID, reportID, date.String()); err != nil {
		return nil, fmt.Errorf("get study report: %w", err)
	}

	report := &models.Report{StudyID: row.StudyID, ReportID: row.ReportID, Date: civil.DateOf(row.Date)}
	if err := json.Unmarshal(row.Data, &report.Data); err != nil {
		return nil, fmt.Errorf("unmarshal report data: %w", err)
	}
	return report, nil
}
