package services

import (
	"context"
	"strings"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/BerylCAtieno/forensic-docs-api/internal/repository"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

type CaseService interface {
	CreateCase(ctx context.Context, req *models.CreateCaseRequest) (*models.Case, error)
	GetCase(ctx context.Context, id, tenantID string) (*models.Case, error)
	ListCases(ctx context.Context, filter models.CaseFilter) (*models.ListResponse[models.Case], error)
	UpdateCase(ctx context.Context, id, tenantID string, update models.CaseUpdate) (*models.Case, error)
	DeleteCase(ctx context.Context, id, tenantID string) error
}

type caseService struct {
	repo   repository.Repository
	logger *utils.Logger
	now    func() time.Time
}

func NewCaseService(repo repository.Repository, logger *utils.Logger) CaseService {
	return &caseService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *caseService) CreateCase(ctx context.Context, req *models.CreateCaseRequest) (*models.Case, error) {
	if _, err := validateTenant(ctx, s.repo, s.logger, req.TenantID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, utils.NewBadRequestError("Case title is required")
	}

	now := s.now()
	caseNumber := strings.TrimSpace(req.CaseNumber)
	if caseNumber == "" {
		n, err := s.repo.NextCaseNumber(ctx, req.TenantID, now)
		if err != nil {
			s.logger.Error("Failed to generate case number", "error", err, "tenant_id", req.TenantID)
			return nil, utils.NewInternalError("Failed to create case")
		}
		caseNumber = n
	}

	status := req.Status
	if status == "" {
		status = models.CaseStatusOpen
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	c := &models.Case{
		ID:          utils.GenerateID(),
		TenantID:    req.TenantID,
		CaseNumber:  caseNumber,
		Title:       title,
		Description: req.Description,
		Tags:        tags,
		Status:      status,
		Documents:   []models.CaseDocument{},
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateCase(ctx, c); err != nil {
		s.logger.Error("Failed to create case", "error", err, "tenant_id", req.TenantID, "case_number", caseNumber)
		return nil, utils.NewInternalError("Failed to create case")
	}

	s.logger.Info("Case created", "id", c.ID, "tenant_id", c.TenantID, "case_number", c.CaseNumber)
	return c, nil
}

func (s *caseService) GetCase(ctx context.Context, id, tenantID string) (*models.Case, error) {
	if _, err := validateTenant(ctx, s.repo, s.logger, tenantID); err != nil {
		return nil, err
	}
	return getCase(ctx, s.repo, s.logger, id, tenantID)
}

func (s *caseService) ListCases(ctx context.Context, filter models.CaseFilter) (*models.ListResponse[models.Case], error) {
	if _, err := validateTenant(ctx, s.repo, s.logger, filter.TenantID); err != nil {
		return nil, err
	}
	filter.Limit, filter.Skip = pagination(filter.Limit, filter.Skip, 50)

	cases, total, err := s.repo.ListCases(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list cases", "error", err, "tenant_id", filter.TenantID)
		return nil, utils.NewInternalError("Failed to list cases")
	}
	return listResponse(cases, total), nil
}

func (s *caseService) UpdateCase(ctx context.Context, id, tenantID string, update models.CaseUpdate) (*models.Case, error) {
	if _, err := validateTenant(ctx, s.repo, s.logger, tenantID); err != nil {
		return nil, err
	}
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return nil, utils.NewBadRequestError("Case title cannot be empty")
	}

	ok, err := s.repo.UpdateCase(ctx, id, tenantID, update)
	if err != nil {
		s.logger.Error("Failed to update case", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to update case")
	}
	if !ok {
		return nil, utils.NewNotFoundError("Case not found")
	}
	return getCase(ctx, s.repo, s.logger, id, tenantID)
}

func (s *caseService) DeleteCase(ctx context.Context, id, tenantID string) error {
	if _, err := validateTenant(ctx, s.repo, s.logger, tenantID); err != nil {
		return err
	}

	ok, err := s.repo.DeleteCase(ctx, id, tenantID)
	if err != nil {
		s.logger.Error("Failed to delete case", "error", err, "id", id)
		return utils.NewInternalError("Failed to delete case")
	}
	if !ok {
		return utils.NewNotFoundError("Case not found")
	}

	s.logger.Info("Case deleted", "id", id, "tenant_id", tenantID)
	return nil
}

func getCase(ctx context.Context, repo repository.Repository, logger *utils.Logger, id, tenantID string) (*models.Case, error) {
	c, err := repo.GetCase(ctx, id, tenantID)
	if err != nil {
		logger.Error("Failed to get case", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to get case")
	}
	if c == nil {
		return nil, utils.NewNotFoundError("Case not found")
	}
	return c, nil
}
