package repository

import (
	"context"
	"strings"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/jmoiron/sqlx"
)

type caseRow struct {
	ID          string    `db:"id"`
	TenantID    string    `db:"tenant_id"`
	CaseNumber  string    `db:"case_number"`
	Title       string    `db:"title"`
	Description *string   `db:"description"`
	Tags        string    `db:"tags"`
	Status      string    `db:"status"`
	CreatedBy   *string   `db:"created_by"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r caseRow) toModel() (models.Case, error) {
	tags, err := fromJSON[[]string](r.Tags)
	if err != nil {
		return models.Case{}, err
	}
	if tags == nil {
		tags = []string{}
	}
	return models.Case{
		ID:          r.ID,
		TenantID:    r.TenantID,
		CaseNumber:  r.CaseNumber,
		Title:       r.Title,
		Description: r.Description,
		Tags:        tags,
		Status:      r.Status,
		Documents:   []models.CaseDocument{},
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

type caseDocumentRow struct {
	CaseID       string    `db:"case_id"`
	DocumentID   string    `db:"document_id"`
	Filename     string    `db:"filename"`
	DocumentType string    `db:"document_type"`
	PageCount    int       `db:"page_count"`
	AddedAt      time.Time `db:"added_at"`
}

const caseColumns = `id, tenant_id, case_number, title, description, tags, status, created_by, created_at, updated_at`

func (r *repository) CreateCase(ctx context.Context, c *models.Case) error {
	tags, err := toJSON(nonNil(c.Tags))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cases (` + caseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		c.ID,
		c.TenantID,
		c.CaseNumber,
		c.Title,
		c.Description,
		tags,
		c.Status,
		c.CreatedBy,
		c.CreatedAt,
		c.UpdatedAt,
	)

	return err
}

func (r *repository) GetCase(ctx context.Context, id, tenantID string) (*models.Case, error) {
	var row caseRow

	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1 AND tenant_id = $2 AND deleted = 0`

	err := r.db.GetContext(ctx, &row, query, id, tenantID)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c, err := row.toModel()
	if err != nil {
		return nil, err
	}

	cases := []models.Case{c}
	if err := r.attachCaseDocuments(ctx, cases); err != nil {
		return nil, err
	}
	return &cases[0], nil
}

func (r *repository) ListCases(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error) {
	where := []string{"tenant_id = ?", "deleted = 0"}
	args := []any{filter.TenantID}

	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	for _, tag := range filter.Tags {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(cases.tags) WHERE json_each.value = ?)")
		args = append(args, tag)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		where = append(where, "(title LIKE ? OR description LIKE ? OR case_number LIKE ?)")
		args = append(args, like, like, like)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM cases WHERE `+clause), args...); err != nil {
		return nil, 0, err
	}

	query := r.db.Rebind(`SELECT ` + caseColumns + ` FROM cases WHERE ` + clause + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`)
	var rows []caseRow
	if err := r.db.SelectContext(ctx, &rows, query, append(args, filter.Limit, filter.Skip)...); err != nil {
		return nil, 0, err
	}

	cases := make([]models.Case, 0, len(rows))
	for _, row := range rows {
		c, err := row.toModel()
		if err != nil {
			return nil, 0, err
		}
		cases = append(cases, c)
	}
	if err := r.attachCaseDocuments(ctx, cases); err != nil {
		return nil, 0, err
	}
	return cases, total, nil
}

func (r *repository) attachCaseDocuments(ctx context.Context, cases []models.Case) error {
	if len(cases) == 0 {
		return nil
	}

	ids := make([]string, len(cases))
	index := make(map[string]int, len(cases))
	for i, c := range cases {
		ids[i] = c.ID
		index[c.ID] = i
	}

	query, args, err := sqlx.In(`SELECT * FROM case_documents WHERE case_id IN (?) ORDER BY added_at`, ids)
	if err != nil {
		return err
	}

	var rows []caseDocumentRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return err
	}

	for _, row := range rows {
		i := index[row.CaseID]
		cases[i].Documents = append(cases[i].Documents, models.CaseDocument{
			DocumentID:   row.DocumentID,
			Filename:     row.Filename,
			DocumentType: models.DocumentType(row.DocumentType),
			PageCount:    row.PageCount,
			AddedAt:      row.AddedAt,
		})
	}
	return nil
}

func (r *repository) UpdateCase(ctx context.Context, id, tenantID string, update models.CaseUpdate) (bool, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if update.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *update.Title)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if update.Tags != nil {
		tags, err := toJSON(nonNil(*update.Tags))
		if err != nil {
			return false, err
		}
		sets = append(sets, "tags = ?")
		args = append(args, tags)
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}

	query := r.db.Rebind(`UPDATE cases SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND tenant_id = ? AND deleted = 0`)
	return affected(r.db.ExecContext(ctx, query, append(args, id, tenantID)...))
}

func (r *repository) DeleteCase(ctx context.Context, id, tenantID string) (bool, error) {
	query := `UPDATE cases SET deleted = 1, updated_at = $1 WHERE id = $2 AND tenant_id = $3 AND deleted = 0`
	return affected(r.db.ExecContext(ctx, query, time.Now().UTC(), id, tenantID))
}

func (r *repository) AddDocumentToCase(ctx context.Context, caseID, tenantID string, doc models.CaseDocument) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	ok, err := affected(tx.ExecContext(ctx,
		`UPDATE cases SET updated_at = $1 WHERE id = $2 AND tenant_id = $3 AND deleted = 0`,
		time.Now().UTC(), caseID, tenantID))
	if err != nil || !ok {
		return false, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO case_documents (case_id, document_id, filename, document_type, page_count, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (case_id, document_id) DO UPDATE SET
			filename = excluded.filename,
			document_type = excluded.document_type,
			page_count = excluded.page_count
	`, caseID, doc.DocumentID, doc.Filename, string(doc.DocumentType), doc.PageCount, doc.AddedAt)
	if err != nil {
		return false, err
	}

	return true, tx.Commit()
}

func (r *repository) NextCaseNumber(ctx context.Context, tenantID string, now time.Time) (string, error) {
	var seq int64
	err := r.db.GetContext(ctx, &seq, `
		INSERT INTO counters (name, seq) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET seq = seq + 1
		RETURNING seq
	`, caseCounterName(tenantID, now))
	if err != nil {
		return "", err
	}
	return CaseNumber(now, seq), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
