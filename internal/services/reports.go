package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/analyzer"
	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/BerylCAtieno/forensic-docs-api/internal/repository"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

type ReportService interface {
	CreateReport(ctx context.Context, req *models.CreateReportRequest) (*models.Report, error)
	GetReport(ctx context.Context, id, tenantID string) (*models.Report, error)
	ListCaseReports(ctx context.Context, caseID, tenantID string) (*models.ListResponse[models.Report], error)
	UpdateReport(ctx context.Context, id, tenantID string, update models.ReportUpdate) (*models.Report, error)
	AnalyzeReport(ctx context.Context, id, tenantID string) (*models.AnalysisResponse, error)
}

type reportService struct {
	repo     repository.Repository
	analyzer analyzer.Analyzer
	logger   *utils.Logger
}

func NewReportService(repo repository.Repository, llm analyzer.Analyzer, logger *utils.Logger) ReportService {
	return &reportService{
		repo:     repo,
		analyzer: llm,
		logger:   logger,
	}
}

func (s *reportService) CreateReport(ctx context.Context, req *models.CreateReportRequest) (*models.Report, error) {
	if _, err := validateTenant(ctx, s.repo, s.logger, req.TenantID); err != nil {
		return nil, err
	}
	if _, err := getCase(ctx, s.repo, s.logger, req.CaseID, req.TenantID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, utils.NewBadRequestError("Report title is required")
	}
	if err := s.checkDocuments(ctx, req.CaseID, req.TenantID, req.DocumentIDs); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	report := &models.Report{
		ID:          utils.GenerateID(),
		TenantID:    req.TenantID,
		CaseID:      req.CaseID,
		Title:       title,
		ReportType:  req.ReportType,
		Content:     orEmpty(req.Content),
		DocumentIDs: req.DocumentIDs,
		FieldData:   orEmpty(req.FieldData),
		Status:      models.ReportStatusDraft,
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if report.DocumentIDs == nil {
		report.DocumentIDs = []string{}
	}

	if err := s.repo.CreateReport(ctx, report); err != nil {
		s.logger.Error("Failed to create report", "error", err, "case_id", req.CaseID)
		return nil, utils.NewInternalError("Failed to create report")
	}

	s.logger.Info("Report created", "id", report.ID, "case_id", report.CaseID, "documents", len(report.DocumentIDs))
	return report, nil
}

// checkDocuments rejects document references that are not live documents of
// the case.
func (s *reportService) checkDocuments(ctx context.Context, caseID, tenantID string, ids []string) error {
	for _, id := range ids {
		doc, err := s.repo.GetDocument(ctx, id, tenantID)
		if err != nil {
			s.logger.Error("Failed to get document", "error", err, "id", id)
			return utils.NewInternalError("Failed to verify report documents")
		}
		if doc == nil || doc.CaseID != caseID {
			return utils.NewBadRequestError(fmt.Sprintf("Document %s does not belong to case %s", id, caseID))
		}
	}
	return nil
}

func (s *reportService) GetReport(ctx context.Context, id, tenantID string) (*models.Report, error) {
	if _, err := validateTenant(ctx, s.repo, s.logger, tenantID); err != nil {
		return nil, err
	}
	return s.getReport(ctx, id, tenantID)
}

func (s *reportService) getReport(ctx context.Context, id, tenantID string) (*models.Report, error) {
	report, err := s.repo.GetReport(ctx, id, tenantID)
	if err != nil {
		s.logger.Error("Failed to get report", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to get report")
	}
	if report == nil {
		return nil, utils.NewNotFoundError("Report not found")
	}
	return report, nil
}

func (s *reportService) ListCaseReports(ctx context.Context, caseID, tenantID string) (*models.ListResponse[models.Report], error) {
	if _, err := validateTenant(ctx, s.repo, s.logger, tenantID); err != nil {
		return nil, err
	}
	if _, err := getCase(ctx, s.repo, s.logger, caseID, tenantID); err != nil {
		return nil, err
	}

	reports, err := s.repo.ListReportsByCase(ctx, caseID, tenantID)
	if err != nil {
		s.logger.Error("Failed to list reports", "error", err, "case_id", caseID)
		return nil, utils.NewInternalError("Failed to list reports")
	}
	return listResponse(reports, len(reports)), nil
}

func (s *reportService) UpdateReport(ctx context.Context, id, tenantID string, update models.ReportUpdate) (*models.Report, error) {
	if _, err := validateTenant(ctx, s.repo, s.logger, tenantID); err != nil {
		return nil, err
	}
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return nil, utils.NewBadRequestError("Report title cannot be empty")
	}
	if update.DocumentIDs != nil {
		report, err := s.getReport(ctx, id, tenantID)
		if err != nil {
			return nil, err
		}
		if err := s.checkDocuments(ctx, report.CaseID, tenantID, *update.DocumentIDs); err != nil {
			return nil, err
		}
	}

	ok, err := s.repo.UpdateReport(ctx, id, tenantID, update)
	if err != nil {
		s.logger.Error("Failed to update report", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to update report")
	}
	if !ok {
		return nil, utils.NewNotFoundError("Report not found")
	}
	return s.getReport(ctx, id, tenantID)
}

// AnalyzeReport runs the analyzer over the report content, its field data and
// the OCR text of every referenced document, and stores the result.
func (s *reportService) AnalyzeReport(ctx context.Context, id, tenantID string) (*models.AnalysisResponse, error) {
	if _, err := validateTenant(ctx, s.repo, s.logger, tenantID); err != nil {
		return nil, err
	}
	if s.analyzer == nil {
		return nil, analysisError(analyzer.ErrUnavailable, "")
	}
	report, err := s.getReport(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	text, err := s.reportText(ctx, report)
	if err != nil {
		return nil, err
	}

	analysis, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		s.logger.Error("Failed to analyze report", "error", err, "id", id)
		return nil, analysisError(err, "Failed to analyze report")
	}

	if _, err := s.repo.SaveReportAnalysis(ctx, id, tenantID, analysis); err != nil {
		s.logger.Error("Failed to save report analysis", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to save report analysis")
	}

	s.logger.Info("Report analyzed", "id", id, "documents", len(report.DocumentIDs))
	return &models.AnalysisResponse{
		ID:         report.ID,
		Analysis:   analysis,
		AnalyzedAt: time.Now().UTC(),
	}, nil
}

func (s *reportService) reportText(ctx context.Context, report *models.Report) (string, error) {
	var b strings.Builder

	if len(report.Content) > 0 {
		content, err := json.MarshalIndent(report.Content, "", "  ")
		if err != nil {
			return "", utils.NewBadRequestError("Report content is not serializable")
		}
		b.Write(content)
	}

	if len(report.FieldData) > 0 {
		b.WriteString("\n\nField Data:\n")
		keys := make([]string, 0, len(report.FieldData))
		for k := range report.FieldData {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %v\n", k, report.FieldData[k])
		}
	}

	for _, docID := range report.DocumentIDs {
		doc, err := s.repo.GetDocument(ctx, docID, report.TenantID)
		if err != nil {
			s.logger.Error("Failed to get document", "error", err, "id", docID)
			return "", utils.NewInternalError("Failed to load report documents")
		}
		if doc == nil {
			s.logger.Warn("Report references a missing document", "report_id", report.ID, "document_id", docID)
			continue
		}
		fmt.Fprintf(&b, "\n\nDocument %s:\n%s", doc.Filename, pagesText(doc.Pages))
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", utils.NewBadRequestError("Report has no content to analyze")
	}
	return text, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
