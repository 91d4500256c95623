package repository

import (
	"context"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
)

type clientRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	TenantCode   string    `db:"tenant_code"`
	ContactEmail string    `db:"contact_email"`
	ContactName  *string   `db:"contact_name"`
	ContactPhone *string   `db:"contact_phone"`
	Settings     string    `db:"settings"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r clientRow) toModel() (models.Client, error) {
	settings, err := fromJSON[map[string]any](r.Settings)
	if err != nil {
		return models.Client{}, err
	}
	return models.Client{
		ID:           r.ID,
		Name:         r.Name,
		TenantCode:   r.TenantCode,
		ContactEmail: r.ContactEmail,
		ContactName:  r.ContactName,
		ContactPhone: r.ContactPhone,
		Settings:     settings,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

const clientColumns = `id, name, tenant_code, contact_email, contact_name, contact_phone, settings, status, created_at, updated_at`

func (r *repository) CreateClient(ctx context.Context, client *models.Client) error {
	settings, err := toJSON(client.Settings)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO clients (` + clientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		client.ID,
		client.Name,
		client.TenantCode,
		client.ContactEmail,
		client.ContactName,
		client.ContactPhone,
		settings,
		client.Status,
		client.CreatedAt,
		client.UpdatedAt,
	)

	return err
}

func (r *repository) GetClient(ctx context.Context, id string) (*models.Client, error) {
	var row clientRow

	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1 AND deleted = 0`

	err := r.db.GetContext(ctx, &row, query, id)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	client, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *repository) ListClients(ctx context.Context, limit, skip int) ([]models.Client, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM clients WHERE deleted = 0`); err != nil {
		return nil, 0, err
	}

	var rows []clientRow
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE deleted = 0
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	if err := r.db.SelectContext(ctx, &rows, query, limit, skip); err != nil {
		return nil, 0, err
	}

	clients := make([]models.Client, 0, len(rows))
	for _, row := range rows {
		c, err := row.toModel()
		if err != nil {
			return nil, 0, err
		}
		clients = append(clients, c)
	}
	return clients, total, nil
}
