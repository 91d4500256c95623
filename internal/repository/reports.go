package repository

import (
	"context"
	"strings"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
)

type reportRow struct {
	ID              string    `db:"id"`
	TenantID        string    `db:"tenant_id"`
	CaseID          string    `db:"case_id"`
	Title           string    `db:"title"`
	ReportType      string    `db:"report_type"`
	Content         string    `db:"content"`
	DocumentIDs     string    `db:"document_ids"`
	FieldData       string    `db:"field_data"`
	Status          string    `db:"status"`
	AnalysisResults *string   `db:"analysis_results"`
	CreatedBy       *string   `db:"created_by"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r reportRow) toModel() (models.Report, error) {
	content, err := fromJSON[map[string]any](r.Content)
	if err != nil {
		return models.Report{}, err
	}
	documentIDs, err := fromJSON[[]string](r.DocumentIDs)
	if err != nil {
		return models.Report{}, err
	}
	fieldData, err := fromJSON[map[string]any](r.FieldData)
	if err != nil {
		return models.Report{}, err
	}
	return models.Report{
		ID:              r.ID,
		TenantID:        r.TenantID,
		CaseID:          r.CaseID,
		Title:           r.Title,
		ReportType:      r.ReportType,
		Content:         content,
		DocumentIDs:     nonNil(documentIDs),
		FieldData:       fieldData,
		Status:          r.Status,
		AnalysisResults: r.AnalysisResults,
		CreatedBy:       r.CreatedBy,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

const reportColumns = `id, tenant_id, case_id, title, report_type, content, document_ids, field_data, status,
	analysis_results, created_by, created_at, updated_at`

func (r *repository) CreateReport(ctx context.Context, report *models.Report) error {
	content, err := toJSON(report.Content)
	if err != nil {
		return err
	}
	documentIDs, err := toJSON(nonNil(report.DocumentIDs))
	if err != nil {
		return err
	}
	fieldData, err := toJSON(report.FieldData)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		report.ID,
		report.TenantID,
		report.CaseID,
		report.Title,
		report.ReportType,
		content,
		documentIDs,
		fieldData,
		report.Status,
		report.AnalysisResults,
		report.CreatedBy,
		report.CreatedAt,
		report.UpdatedAt,
	)

	return err
}

func (r *repository) GetReport(ctx context.Context, id, tenantID string) (*models.Report, error) {
	var row reportRow

	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1 AND tenant_id = $2 AND deleted = 0`

	err := r.db.GetContext(ctx, &row, query, id, tenantID)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	report, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *repository) ListReportsByCase(ctx context.Context, caseID, tenantID string) ([]models.Report, error) {
	var rows []reportRow

	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE case_id = $1 AND tenant_id = $2 AND deleted = 0
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &rows, query, caseID, tenantID); err != nil {
		return nil, err
	}

	reports := make([]models.Report, 0, len(rows))
	for _, row := range rows {
		report, err := row.toModel()
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (r *repository) UpdateReport(ctx context.Context, id, tenantID string, update models.ReportUpdate) (bool, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if update.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *update.Title)
	}
	if update.Content != nil {
		content, err := toJSON(*update.Content)
		if err != nil {
			return false, err
		}
		sets = append(sets, "content = ?")
		args = append(args, content)
	}
	if update.DocumentIDs != nil {
		ids, err := toJSON(nonNil(*update.DocumentIDs))
		if err != nil {
			return false, err
		}
		sets = append(sets, "document_ids = ?")
		args = append(args, ids)
	}
	if update.FieldData != nil {
		fieldData, err := toJSON(*update.FieldData)
		if err != nil {
			return false, err
		}
		sets = append(sets, "field_data = ?")
		args = append(args, fieldData)
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}

	query := r.db.Rebind(`UPDATE reports SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND tenant_id = ? AND deleted = 0`)
	return affected(r.db.ExecContext(ctx, query, append(args, id, tenantID)...))
}

func (r *repository) SaveReportAnalysis(ctx context.Context, id, tenantID, analysis string) (bool, error) {
	query := `
		UPDATE reports
		SET analysis_results = $1, updated_at = $2
		WHERE id = $3 AND tenant_id = $4 AND deleted = 0
	`
	return affected(r.db.ExecContext(ctx, query, analysis, time.Now().UTC(), id, tenantID))
}
