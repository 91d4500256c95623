package services

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/BerylCAtieno/forensic-docs-api/internal/repository"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
	"github.com/google/uuid"
)

const maxTenantCodeBase = 20

type ClientService interface {
	CreateClient(ctx context.Context, req *models.CreateClientRequest) (*models.Client, error)
	GetClient(ctx context.Context, id string) (*models.Client, error)
	ListClients(ctx context.Context, limit, skip int) (*models.ListResponse[models.Client], error)
	ValidateTenant(ctx context.Context, tenantID string) (*models.Client, error)
}

type clientService struct {
	repo   repository.Repository
	logger *utils.Logger
}

func NewClientService(repo repository.Repository, logger *utils.Logger) ClientService {
	return &clientService{
		repo:   repo,
		logger: logger,
	}
}

func (s *clientService) CreateClient(ctx context.Context, req *models.CreateClientRequest) (*models.Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, utils.NewBadRequestError("Client name is required")
	}
	if _, err := mail.ParseAddress(req.ContactEmail); err != nil {
		return nil, utils.NewBadRequestError("A valid contact_email is required")
	}

	now := time.Now().UTC()
	client := &models.Client{
		ID:           utils.GenerateID(),
		Name:         name,
		TenantCode:   TenantCode(name),
		ContactEmail: req.ContactEmail,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		Settings:     req.Settings,
		Status:       models.ClientStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if client.Settings == nil {
		client.Settings = map[string]any{}
	}

	if err := s.repo.CreateClient(ctx, client); err != nil {
		s.logger.Error("Failed to create client", "error", err, "name", name)
		return nil, utils.NewInternalError("Failed to create client")
	}

	s.logger.Info("Client created", "id", client.ID, "tenant_code", client.TenantCode)
	return client, nil
}

func (s *clientService) GetClient(ctx context.Context, id string) (*models.Client, error) {
	client, err := s.repo.GetClient(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get client", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to get client")
	}
	if client == nil {
		return nil, utils.NewNotFoundError("Client not found")
	}
	return client, nil
}

func (s *clientService) ListClients(ctx context.Context, limit, skip int) (*models.ListResponse[models.Client], error) {
	limit, skip = pagination(limit, skip, 50)
	clients, total, err := s.repo.ListClients(ctx, limit, skip)
	if err != nil {
		s.logger.Error("Failed to list clients", "error", err)
		return nil, utils.NewInternalError("Failed to list clients")
	}
	return listResponse(clients, total), nil
}

// ValidateTenant resolves tenantID to an active client. The tenant ID is the
// client ID.
func (s *clientService) ValidateTenant(ctx context.Context, tenantID string) (*models.Client, error) {
	return validateTenant(ctx, s.repo, s.logger, tenantID)
}

func validateTenant(ctx context.Context, repo repository.Repository, logger *utils.Logger, tenantID string) (*models.Client, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, utils.NewForbiddenError("Invalid tenant ID")
	}
	client, err := repo.GetClient(ctx, tenantID)
	if err != nil {
		logger.Error("Failed to validate tenant", "error", err, "tenant_id", tenantID)
		return nil, utils.NewInternalError("Failed to validate tenant")
	}
	if client == nil || client.Status != models.ClientStatusActive {
		logger.Warn("Rejected tenant", "tenant_id", tenantID)
		return nil, utils.NewForbiddenError("Invalid tenant ID")
	}
	return client, nil
}

// TenantCode derives a short readable code from a client name, made unique
// with a random suffix.
func TenantCode(name string) string {
	var b strings.Builder
	for _, r := range strings.ReplaceAll(strings.ToLower(name), " ", "-") {
		if r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	base := []rune(b.String())
	if len(base) > maxTenantCodeBase {
		base = base[:maxTenantCodeBase]
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return string(base) + "-" + suffix
}

func pagination(limit, skip, defaultLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > 500 {
		limit = 500
	}
	if skip < 0 {
		skip = 0
	}
	return limit, skip
}

func listResponse[T any](items []T, total int) *models.ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return &models.ListResponse[T]{
		Items: items,
		Count: len(items),
		Total: total,
	}
}
