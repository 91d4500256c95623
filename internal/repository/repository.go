package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/jmoiron/sqlx"
)

// Repository persists clients, cases, documents and reports. Lookups of a
// missing or soft-deleted record return nil without an error. Mutations
// report whether a matching record was changed.
type Repository interface {
	CreateClient(ctx context.Context, client *models.Client) error
	GetClient(ctx context.Context, id string) (*models.Client, error)
	ListClients(ctx context.Context, limit, skip int) ([]models.Client, int, error)

	CreateCase(ctx context.Context, c *models.Case) error
	GetCase(ctx context.Context, id, tenantID string) (*models.Case, error)
	ListCases(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error)
	UpdateCase(ctx context.Context, id, tenantID string, update models.CaseUpdate) (bool, error)
	DeleteCase(ctx context.Context, id, tenantID string) (bool, error)
	AddDocumentToCase(ctx context.Context, caseID, tenantID string, doc models.CaseDocument) (bool, error)
	NextCaseNumber(ctx context.Context, tenantID string, now time.Time) (string, error)

	CreateDocument(ctx context.Context, doc *models.Document) (string, error)
	GetDocument(ctx context.Context, id, tenantID string) (*models.Document, error)
	ListDocumentsByCase(ctx context.Context, caseID, tenantID string) ([]models.Document, error)
	AddPageData(ctx context.Context, documentID, tenantID string, page models.DocumentPage) (bool, error)
	UpdateOCRStatus(ctx context.Context, id, tenantID string, status models.OCRStatus, ocrError *string) (bool, error)
	SetDocumentAnalysis(ctx context.Context, id, tenantID, analysis string) (bool, error)
	DeleteDocument(ctx context.Context, id, tenantID string) (bool, error)

	CreateReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id, tenantID string) (*models.Report, error)
	ListReportsByCase(ctx context.Context, caseID, tenantID string) ([]models.Report, error)
	UpdateReport(ctx context.Context, id, tenantID string, update models.ReportUpdate) (bool, error)
	SaveReportAnalysis(ctx context.Context, id, tenantID, analysis string) (bool, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// CaseNumber formats the generated case number for a month and sequence.
func CaseNumber(now time.Time, seq int64) string {
	return fmt.Sprintf("JD%s%03d", now.Format("200601"), seq)
}

func caseCounterName(tenantID string, now time.Time) string {
	return "case_number:" + tenantID + ":" + now.Format("200601")
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fromJSON[T any](s string) (T, error) {
	var v T
	if s == "" {
		return v, nil
	}
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
