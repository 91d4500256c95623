package repository

import (
	"context"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/jmoiron/sqlx"
)

type documentRow struct {
	ID           string    `db:"id"`
	TenantID     string    `db:"tenant_id"`
	CaseID       string    `db:"case_id"`
	Filename     string    `db:"filename"`
	DocumentType string    `db:"document_type"`
	OriginalPath string    `db:"original_path"`
	BasePath     string    `db:"base_path"`
	PageCount    int       `db:"page_count"`
	OCRStatus    string    `db:"ocr_status"`
	OCRError     *string   `db:"ocr_error"`
	Metadata     string    `db:"metadata"`
	Analysis     *string   `db:"analysis"`
	CreatedBy    *string   `db:"created_by"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r documentRow) toModel() (models.Document, error) {
	metadata, err := fromJSON[map[string]any](r.Metadata)
	if err != nil {
		return models.Document{}, err
	}
	return models.Document{
		ID:           r.ID,
		TenantID:     r.TenantID,
		CaseID:       r.CaseID,
		Filename:     r.Filename,
		DocumentType: models.DocumentType(r.DocumentType),
		StoragePaths: models.StoragePaths{Original: r.OriginalPath, BasePath: r.BasePath},
		PageCount:    r.PageCount,
		OCRStatus:    models.OCRStatus(r.OCRStatus),
		OCRError:     r.OCRError,
		Metadata:     metadata,
		Pages:        []models.DocumentPage{},
		Analysis:     r.Analysis,
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

type pageRow struct {
	DocumentID string `db:"document_id"`
	models.DocumentPage
}

const documentColumns = `id, tenant_id, case_id, filename, document_type, original_path, base_path, page_count,
	ocr_status, ocr_error, metadata, analysis, created_by, created_at, updated_at`

func (r *repository) CreateDocument(ctx context.Context, doc *models.Document) (string, error) {
	metadata, err := toJSON(doc.Metadata)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.db.ExecContext(ctx, query,
		doc.ID,
		doc.TenantID,
		doc.CaseID,
		doc.Filename,
		string(doc.DocumentType),
		doc.StoragePaths.Original,
		doc.StoragePaths.BasePath,
		doc.PageCount,
		string(doc.OCRStatus),
		doc.OCRError,
		metadata,
		doc.Analysis,
		doc.CreatedBy,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return "", err
	}

	return doc.ID, nil
}

func (r *repository) GetDocument(ctx context.Context, id, tenantID string) (*models.Document, error) {
	var row documentRow

	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND tenant_id = $2 AND deleted = 0`

	err := r.db.GetContext(ctx, &row, query, id, tenantID)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	doc, err := row.toModel()
	if err != nil {
		return nil, err
	}

	docs := []models.Document{doc}
	if err := r.attachPages(ctx, docs); err != nil {
		return nil, err
	}
	return &docs[0], nil
}

func (r *repository) ListDocumentsByCase(ctx context.Context, caseID, tenantID string) ([]models.Document, error) {
	var rows []documentRow

	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE case_id = $1 AND tenant_id = $2 AND deleted = 0
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &rows, query, caseID, tenantID); err != nil {
		return nil, err
	}

	docs := make([]models.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.toModel()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := r.attachPages(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *repository) attachPages(ctx context.Context, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, len(docs))
	index := make(map[string]int, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		index[d.ID] = i
	}

	query, args, err := sqlx.In(`
		SELECT document_id, page_number, image_path, thumbnail_path, text_path, ocr_text, updated_at
		FROM document_pages
		WHERE document_id IN (?)
		ORDER BY document_id, page_number
	`, ids)
	if err != nil {
		return err
	}

	var rows []pageRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return err
	}

	for _, row := range rows {
		i := index[row.DocumentID]
		docs[i].Pages = append(docs[i].Pages, row.DocumentPage)
	}
	return nil
}

// AddPageData inserts a page or replaces the stored page with the same number.
func (r *repository) AddPageData(ctx context.Context, documentID, tenantID string, page models.DocumentPage) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	ok, err := affected(tx.ExecContext(ctx,
		`UPDATE documents SET updated_at = $1 WHERE id = $2 AND tenant_id = $3 AND deleted = 0`,
		now, documentID, tenantID))
	if err != nil || !ok {
		return false, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO document_pages (document_id, page_number, image_path, thumbnail_path, text_path, ocr_text, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (document_id, page_number) DO UPDATE SET
			image_path = excluded.image_path,
			thumbnail_path = excluded.thumbnail_path,
			text_path = excluded.text_path,
			ocr_text = excluded.ocr_text,
			updated_at = excluded.updated_at
	`, documentID, page.PageNumber, page.ImagePath, page.ThumbnailPath, page.TextPath, page.OCRText, now)
	if err != nil {
		return false, err
	}

	return true, tx.Commit()
}

func (r *repository) UpdateOCRStatus(ctx context.Context, id, tenantID string, status models.OCRStatus, ocrError *string) (bool, error) {
	query := `
		UPDATE documents
		SET ocr_status = $1, ocr_error = $2, updated_at = $3
		WHERE id = $4 AND tenant_id = $5 AND deleted = 0
	`
	return affected(r.db.ExecContext(ctx, query, string(status), ocrError, time.Now().UTC(), id, tenantID))
}

func (r *repository) SetDocumentAnalysis(ctx context.Context, id, tenantID, analysis string) (bool, error) {
	query := `
		UPDATE documents
		SET analysis = $1, updated_at = $2
		WHERE id = $3 AND tenant_id = $4 AND deleted = 0
	`
	return affected(r.db.ExecContext(ctx, query, analysis, time.Now().UTC(), id, tenantID))
}

// DeleteDocument soft-deletes the document and detaches it from its case.
func (r *repository) DeleteDocument(ctx context.Context, id, tenantID string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var caseID string
	err = tx.GetContext(ctx, &caseID, `SELECT case_id FROM documents WHERE id = $1 AND tenant_id = $2 AND deleted = 0`, id, tenantID)
	if notFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET deleted = 1, updated_at = $1 WHERE id = $2`, now, id); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM case_documents WHERE case_id = $1 AND document_id = $2`, caseID, id); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE cases SET updated_at = $1 WHERE id = $2`, now, caseID); err != nil {
		return false, err
	}

	return true, tx.Commit()
}
