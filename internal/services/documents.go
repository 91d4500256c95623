package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/analyzer"
	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/BerylCAtieno/forensic-docs-api/internal/repository"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

var (
	errNoRecord = errors.New("record not found")
	errNoText   = errors.New("no OCR text to analyze")
)

// DocumentProcessor runs the intake pipeline and owns the stored artifacts.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, file io.Reader, filename, tenantID, caseID string, metadata map[string]any) (*models.ProcessingResult, error)
	GetDocumentPreview(ctx context.Context, documentID, tenantID, caseID string, page int) (*models.Preview, error)
	DeleteDocumentArtifacts(ctx context.Context, tenantID, caseID, documentID string) (int, error)
}

type DocumentService interface {
	UploadDocument(ctx context.Context, req *models.UploadRequest) (*models.UploadResponse, error)
	GetDocument(ctx context.Context, id, tenantID string) (*models.Document, error)
	ListCaseDocuments(ctx context.Context, caseID, tenantID string) (*models.ListResponse[models.Document], error)
	GetPreview(ctx context.Context, id, tenantID string, page int) (*models.Preview, error)
	AnalyzeDocument(ctx context.Context, id, tenantID string) (*models.AnalysisResponse, error)
	DeleteDocument(ctx context.Context, id, tenantID string) error
}

type documentService struct {
	repo      repository.Repository
	processor DocumentProcessor
	analyzer  analyzer.Analyzer
	logger    *utils.Logger
}

// NewDocumentService wires the document workflow. llm may be nil, in which
// case analysis requests are skipped on upload and rejected on demand.
func NewDocumentService(repo repository.Repository, processor DocumentProcessor, llm analyzer.Analyzer, logger *utils.Logger) DocumentService {
	return &documentService{
		repo:      repo,
		processor: processor,
		analyzer:  llm,
		logger:    logger,
	}
}

func (s *documentService) UploadDocument(ctx context.Context, req *models.UploadRequest) (*models.UploadResponse, error) {
	if _, err := validateTenant(ctx, s.repo, s.logger, req.TenantID); err != nil {
		return nil, err
	}
	if _, err := getCase(ctx, s.repo, s.logger, req.CaseID, req.TenantID); err != nil {
		return nil, err
	}

	filename := utils.SanitizeFilename(req.Filename)
	if filename == "" {
		return nil, utils.NewBadRequestError("No file selected")
	}
	if len(req.File) == 0 {
		return nil, utils.NewBadRequestError("Uploaded file is empty")
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	metadata := map[string]any{
		"original_filename": filename,
		"description":       req.Description,
		"tags":              tags,
		"file_size":         len(req.File),
	}
	var createdBy *string
	if req.CreatedBy != "" {
		createdBy = &req.CreatedBy
		metadata["created_by"] = req.CreatedBy
	}

	logger := s.logger.With("tenant_id", req.TenantID, "case_id", req.CaseID)

	result, err := s.processor.ProcessDocument(ctx, bytes.NewReader(req.File), filename, req.TenantID, req.CaseID, metadata)
	if err != nil {
		logger.Error("Document processing failed", "error", err, "filename", filename)
		return nil, utils.ToAppError(err, "Document processing failed")
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:           result.DocumentID,
		TenantID:     req.TenantID,
		CaseID:       req.CaseID,
		Filename:     filename,
		DocumentType: result.DocumentType,
		StoragePaths: models.StoragePaths{
			Original: result.OriginalPath,
			BasePath: result.BasePath,
		},
		PageCount: len(result.Pages),
		OCRStatus: models.OCRStatusProcessing,
		Metadata:  result.Metadata,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.repo.CreateDocument(ctx, doc); err != nil {
		logger.Error("Failed to save document record", "error", err, "document_id", doc.ID)
		if _, derr := s.processor.DeleteDocumentArtifacts(context.WithoutCancel(ctx), req.TenantID, req.CaseID, doc.ID); derr != nil {
			logger.Warn("Failed to remove artifacts of unsaved document", "error", derr, "document_id", doc.ID)
		}
		return nil, utils.NewInternalError("Failed to save document")
	}

	if err := s.recordPages(ctx, doc, result); err != nil {
		logger.Error("Failed to save document pages", "error", err, "document_id", doc.ID)
		msg := err.Error()
		if _, uerr := s.repo.UpdateOCRStatus(context.WithoutCancel(ctx), doc.ID, doc.TenantID, models.OCRStatusFailed, &msg); uerr != nil {
			logger.Warn("Failed to mark document as failed", "error", uerr, "document_id", doc.ID)
		}
		return nil, utils.NewInternalError("Failed to save document")
	}

	resp := &models.UploadResponse{
		DocumentID:     doc.ID,
		Filename:       filename,
		DocumentType:   doc.DocumentType,
		Pages:          doc.PageCount,
		ProcessingTime: result.ProcessingTime.Seconds(),
		Message:        "Document uploaded and processed successfully",
	}

	if req.Analyze {
		if analysis, err := s.analyze(ctx, doc, result.RawText()); err != nil {
			logger.Warn("Document analysis failed", "error", err, "document_id", doc.ID)
			resp.AnalysisError = "Document analysis failed"
		} else {
			resp.Analysis = &analysis
		}
	}

	logger.Info("Document uploaded", "document_id", doc.ID, "pages", doc.PageCount, "filename", filename)
	return resp, nil
}

func (s *documentService) recordPages(ctx context.Context, doc *models.Document, result *models.ProcessingResult) error {
	for _, page := range result.Pages {
		ok, err := s.repo.AddPageData(ctx, doc.ID, doc.TenantID, models.DocumentPage{
			PageNumber:    page.PageNumber,
			ImagePath:     page.ImagePath,
			ThumbnailPath: page.ThumbnailPath,
			TextPath:      page.TextPath,
			OCRText:       page.OCRData.Raw,
			UpdatedAt:     time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if !ok {
			return utils.Wrap(utils.ErrNotFound, errNoRecord, "page %d of document %s", page.PageNumber, doc.ID)
		}
	}

	ok, err := s.repo.AddDocumentToCase(ctx, doc.CaseID, doc.TenantID, models.CaseDocument{
		DocumentID:   doc.ID,
		Filename:     doc.Filename,
		DocumentType: doc.DocumentType,
		PageCount:    doc.PageCount,
		AddedAt:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if !ok {
		return utils.Wrap(utils.ErrNotFound, errNoRecord, "case %s", doc.CaseID)
	}

	if _, err := s.repo.UpdateOCRStatus(ctx, doc.ID, doc.TenantID, models.OCRStatusComplete, nil); err != nil {
		return err
	}
	doc.OCRStatus = models.OCRStatusComplete
	return nil
}

func (s *documentService) analyze(ctx context.Context, doc *models.Document, text string) (string, error) {
	if s.analyzer == nil {
		return "", analyzer.ErrUnavailable
	}
	if strings.TrimSpace(text) == "" {
		return "", utils.Wrap(utils.ErrValidation, errNoText, "document %s", doc.ID)
	}

	analysis, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		return "", err
	}
	if _, err := s.repo.SetDocumentAnalysis(ctx, doc.ID, doc.TenantID, analysis); err != nil {
		return "", err
	}
	return analysis, nil
}

func (s *documentService) GetDocument(ctx context.Context, id, tenantID string) (*models.Document, error) {
	if _, err := validateTenant(ctx, s.repo, s.logger, tenantID); err != nil {
		return nil, err
	}
	return s.getDocument(ctx, id, tenantID)
}

func (s *documentService) getDocument(ctx context.Context, id, tenantID string) (*models.Document, error) {
	doc, err := s.repo.GetDocument(ctx, id, tenantID)
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to retrieve document")
	}
	if doc == nil {
		return nil, utils.NewNotFoundError("Document not found")
	}
	return doc, nil
}

func (s *documentService) ListCaseDocuments(ctx context.Context, caseID, tenantID string) (*models.ListResponse[models.Document], error) {
	if _, err := validateTenant(ctx, s.repo, s.logger, tenantID); err != nil {
		return nil, err
	}
	if _, err := getCase(ctx, s.repo, s.logger, caseID, tenantID); err != nil {
		return nil, err
	}

	docs, err := s.repo.ListDocumentsByCase(ctx, caseID, tenantID)
	if err != nil {
		s.logger.Error("Failed to list documents", "error", err, "case_id", caseID)
		return nil, utils.NewInternalError("Failed to list documents")
	}
	return listResponse(docs, len(docs)), nil
}

func (s *documentService) GetPreview(ctx context.Context, id, tenantID string, page int) (*models.Preview, error) {
	if _, err := validateTenant(ctx, s.repo, s.logger, tenantID); err != nil {
		return nil, err
	}
	if page < 1 {
		return nil, utils.NewBadRequestError("page must be a positive integer")
	}
	doc, err := s.getDocument(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	preview, err := s.processor.GetDocumentPreview(ctx, doc.ID, doc.TenantID, doc.CaseID, page)
	if err != nil {
		s.logger.Warn("Failed to build preview", "error", err, "id", id, "page", page)
		return nil, utils.ToAppError(err, "Failed to get document preview")
	}
	return preview, nil
}

func (s *documentService) AnalyzeDocument(ctx context.Context, id, tenantID string) (*models.AnalysisResponse, error) {
	if _, err := validateTenant(ctx, s.repo, s.logger, tenantID); err != nil {
		return nil, err
	}
	if s.analyzer == nil {
		return nil, analysisError(analyzer.ErrUnavailable, "")
	}
	doc, err := s.getDocument(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}
	if doc.OCRStatus != models.OCRStatusComplete {
		return nil, utils.NewBadRequestError("Document has not finished processing")
	}

	analysis, err := s.analyze(ctx, doc, pagesText(doc.Pages))
	if err != nil {
		s.logger.Error("Failed to analyze document", "error", err, "id", id)
		return nil, analysisError(err, "Failed to analyze document")
	}

	s.logger.Info("Document analyzed", "id", id, "analysis_length", len(analysis))
	return &models.AnalysisResponse{
		ID:         doc.ID,
		Analysis:   analysis,
		AnalyzedAt: time.Now().UTC(),
	}, nil
}

func (s *documentService) DeleteDocument(ctx context.Context, id, tenantID string) error {
	if _, err := validateTenant(ctx, s.repo, s.logger, tenantID); err != nil {
		return err
	}
	doc, err := s.getDocument(ctx, id, tenantID)
	if err != nil {
		return err
	}

	ok, err := s.repo.DeleteDocument(ctx, doc.ID, tenantID)
	if err != nil {
		s.logger.Error("Failed to delete document", "error", err, "id", id)
		return utils.NewInternalError("Failed to delete document")
	}
	if !ok {
		return utils.NewNotFoundError("Document not found")
	}

	removed, err := s.processor.DeleteDocumentArtifacts(ctx, doc.TenantID, doc.CaseID, doc.ID)
	if err != nil {
		s.logger.Warn("Failed to remove document artifacts", "error", err, "id", id)
	}

	s.logger.Info("Document deleted", "id", id, "artifacts_removed", removed)
	return nil
}

// pagesText joins the OCR text of pages in page order.
func pagesText(pages []models.DocumentPage) string {
	sorted := make([]models.DocumentPage, len(pages))
	copy(sorted, pages)
	slices.SortFunc(sorted, func(a, b models.DocumentPage) int { return a.PageNumber - b.PageNumber })

	parts := make([]string, len(sorted))
	for i, p := range sorted {
		parts[i] = p.OCRText
	}
	return strings.Join(parts, "\n")
}

func analysisError(err error, fallback string) *utils.AppError {
	if errors.Is(err, analyzer.ErrUnavailable) {
		return &utils.AppError{StatusCode: http.StatusServiceUnavailable, Message: "Analysis service unavailable", Err: err}
	}
	return utils.ToAppError(err, fallback)
}
