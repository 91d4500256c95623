package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/db"
	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
)

func newTestRepository(t *testing.T) Repository {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "test.db")

	if err := db.RunMigrations(dbFile); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	conn, err := db.NewSQLiteDB(dbFile)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return NewRepository(conn)
}

func strPtr(s string) *string { return &s }

func seedCase(t *testing.T, repo Repository, id, tenantID string, tags ...string) *models.Case {
	t.Helper()
	now := time.Now().UTC()
	c := &models.Case{
		ID:         id,
		TenantID:   tenantID,
		CaseNumber: "JD-" + id,
		Title:      "Case " + id,
		Tags:       tags,
		Status:     models.CaseStatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.CreateCase(context.Background(), c); err != nil {
		t.Fatalf("create case: %v", err)
	}
	return c
}

func seedDocument(t *testing.T, repo Repository, id, tenantID, caseID string) *models.Document {
	t.Helper()
	now := time.Now().UTC()
	doc := &models.Document{
		ID:           id,
		TenantID:     tenantID,
		CaseID:       caseID,
		Filename:     "scan.pdf",
		DocumentType: models.DocumentTypePDF,
		StoragePaths: models.StoragePaths{Original: "tenants/t/original.pdf", BasePath: "tenants/t"},
		OCRStatus:    models.OCRStatusProcessing,
		Metadata:     map[string]any{"description": "intake"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := repo.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}

func TestClientRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	client := &models.Client{
		ID:           "c1",
		Name:         "Acme Clinic",
		TenantCode:   "acme-clinic-abc123",
		ContactEmail: "ops@acme.test",
		ContactName:  strPtr("Ops"),
		Settings:     map[string]any{"retention_days": float64(30)},
		Status:       models.ClientStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.CreateClient(ctx, client); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetClient(ctx, "c1")
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.Name != "Acme Clinic" || *got.ContactName != "Ops" || got.ContactPhone != nil {
		t.Errorf("unexpected client: %+v", got)
	}
	if got.Settings["retention_days"] != float64(30) {
		t.Errorf("settings not kept: %v", got.Settings)
	}

	missing, err := repo.GetClient(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil for missing client, got %v %v", missing, err)
	}

	clients, total, err := repo.ListClients(ctx, 10, 0)
	if err != nil || total != 1 || len(clients) != 1 {
		t.Errorf("list: %d %d %v", len(clients), total, err)
	}
}

func TestCasesAreTenantScoped(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedCase(t, repo, "case1", "T1")

	if c, err := repo.GetCase(ctx, "case1", "T2"); err != nil || c != nil {
		t.Errorf("case leaked across tenants: %v %v", c, err)
	}
	c, err := repo.GetCase(ctx, "case1", "T1")
	if err != nil || c == nil {
		t.Fatalf("get: %v %v", c, err)
	}
	if len(c.Documents) != 0 || c.Tags == nil {
		t.Errorf("expected empty documents and tags, got %+v", c)
	}
}

func TestListCasesFilters(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedCase(t, repo, "a", "T1", "injury", "urgent")
	seedCase(t, repo, "b", "T1", "injury")
	seedCase(t, repo, "c", "T1")
	seedCase(t, repo, "d", "T2", "injury")

	cases, total, err := repo.ListCases(ctx, models.CaseFilter{TenantID: "T1", Tags: []string{"injury"}, Limit: 50})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(cases) != 2 {
		t.Errorf("expected 2 injury cases, got %d (total %d)", len(cases), total)
	}

	cases, _, err = repo.ListCases(ctx, models.CaseFilter{TenantID: "T1", Tags: []string{"injury", "urgent"}, Limit: 50})
	if err != nil || len(cases) != 1 || cases[0].ID != "a" {
		t.Errorf("expected only case a, got %v %v", cases, err)
	}

	cases, total, err = repo.ListCases(ctx, models.CaseFilter{TenantID: "T1", Search: "case c", Limit: 50})
	if err != nil || total != 1 || cases[0].ID != "c" {
		t.Errorf("search failed: %v %d %v", cases, total, err)
	}

	cases, total, err = repo.ListCases(ctx, models.CaseFilter{TenantID: "T1", Limit: 1, Skip: 1})
	if err != nil || total != 3 || len(cases) != 1 {
		t.Errorf("paging failed: %d %d %v", len(cases), total, err)
	}
}

func TestUpdateAndDeleteCase(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedCase(t, repo, "case1", "T1")

	tags := []string{"closed-out"}
	ok, err := repo.UpdateCase(ctx, "case1", "T1", models.CaseUpdate{Title: strPtr("Renamed"), Tags: &tags})
	if err != nil || !ok {
		t.Fatalf("update: %v %v", ok, err)
	}
	c, _ := repo.GetCase(ctx, "case1", "T1")
	if c.Title != "Renamed" || len(c.Tags) != 1 || c.Tags[0] != "closed-out" {
		t.Errorf("update not applied: %+v", c)
	}

	if ok, _ := repo.UpdateCase(ctx, "case1", "T2", models.CaseUpdate{Title: strPtr("x")}); ok {
		t.Errorf("update must be tenant scoped")
	}

	ok, err = repo.DeleteCase(ctx, "case1", "T1")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if c, _ := repo.GetCase(ctx, "case1", "T1"); c != nil {
		t.Errorf("deleted case still visible")
	}
	if ok, _ := repo.DeleteCase(ctx, "case1", "T1"); ok {
		t.Errorf("second delete should report false")
	}
}

func TestAddPageDataUpserts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedCase(t, repo, "case1", "T1")
	seedDocument(t, repo, "doc1", "T1", "case1")

	for _, page := range []models.DocumentPage{
		{PageNumber: 2, ImagePath: "p2.jpg", OCRText: "second"},
		{PageNumber: 1, ImagePath: "p1.jpg", OCRText: "first"},
		{PageNumber: 2, ImagePath: "p2b.jpg", OCRText: "second again"},
	} {
		ok, err := repo.AddPageData(ctx, "doc1", "T1", page)
		if err != nil || !ok {
			t.Fatalf("add page %d: %v %v", page.PageNumber, ok, err)
		}
	}

	doc, err := repo.GetDocument(ctx, "doc1", "T1")
	if err != nil || doc == nil {
		t.Fatalf("get: %v %v", doc, err)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages after upsert, got %d", len(doc.Pages))
	}
	if doc.Pages[0].PageNumber != 1 || doc.Pages[1].ImagePath != "p2b.jpg" || doc.Pages[1].OCRText != "second again" {
		t.Errorf("unexpected pages: %+v", doc.Pages)
	}
	if doc.Metadata["description"] != "intake" {
		t.Errorf("metadata not kept: %v", doc.Metadata)
	}

	if ok, err := repo.AddPageData(ctx, "doc1", "T2", models.DocumentPage{PageNumber: 3}); err != nil || ok {
		t.Errorf("page data must be tenant scoped: %v %v", ok, err)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedCase(t, repo, "case1", "T1")
	seedDocument(t, repo, "doc1", "T1", "case1")

	ok, err := repo.AddDocumentToCase(ctx, "case1", "T1", models.CaseDocument{
		DocumentID:   "doc1",
		Filename:     "scan.pdf",
		DocumentType: models.DocumentTypePDF,
		PageCount:    3,
		AddedAt:      time.Now().UTC(),
	})
	if err != nil || !ok {
		t.Fatalf("add to case: %v %v", ok, err)
	}
	if ok, _ := repo.AddDocumentToCase(ctx, "missing", "T1", models.CaseDocument{DocumentID: "doc1"}); ok {
		t.Errorf("adding to a missing case should report false")
	}

	c, _ := repo.GetCase(ctx, "case1", "T1")
	if len(c.Documents) != 1 || c.Documents[0].PageCount != 3 {
		t.Errorf("case documents: %+v", c.Documents)
	}

	if ok, err := repo.UpdateOCRStatus(ctx, "doc1", "T1", models.OCRStatusComplete, nil); err != nil || !ok {
		t.Fatalf("status: %v %v", ok, err)
	}
	if ok, err := repo.SetDocumentAnalysis(ctx, "doc1", "T1", "summary"); err != nil || !ok {
		t.Fatalf("analysis: %v %v", ok, err)
	}
	doc, _ := repo.GetDocument(ctx, "doc1", "T1")
	if doc.OCRStatus != models.OCRStatusComplete || doc.Analysis == nil || *doc.Analysis != "summary" {
		t.Errorf("unexpected document: %+v", doc)
	}

	docs, err := repo.ListDocumentsByCase(ctx, "case1", "T1")
	if err != nil || len(docs) != 1 {
		t.Fatalf("list by case: %v %v", docs, err)
	}

	if ok, err := repo.DeleteDocument(ctx, "doc1", "T1"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if doc, _ := repo.GetDocument(ctx, "doc1", "T1"); doc != nil {
		t.Errorf("deleted document still visible")
	}
	c, _ = repo.GetCase(ctx, "case1", "T1")
	if len(c.Documents) != 0 {
		t.Errorf("deleted document still attached to case")
	}
}

func TestNextCaseNumber(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	first, err := repo.NextCaseNumber(ctx, "T1", now)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	second, _ := repo.NextCaseNumber(ctx, "T1", now)
	other, _ := repo.NextCaseNumber(ctx, "T2", now)

	if first != "JD202610001" || second != "JD202610002" {
		t.Errorf("unexpected sequence %s, %s", first, second)
	}
	if other != "JD202610001" {
		t.Errorf("sequence must be per tenant, got %s", other)
	}
}

func TestReports(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	report := &models.Report{
		ID:          "r1",
		TenantID:    "T1",
		CaseID:      "case1",
		Title:       "Initial findings",
		ReportType:  "medical_summary",
		Content:     map[string]any{"body": "text"},
		DocumentIDs: []string{"doc1"},
		Status:      models.ReportStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.CreateReport(ctx, report); err != nil {
		t.Fatalf("create: %v", err)
	}

	status := "final"
	if ok, err := repo.UpdateReport(ctx, "r1", "T1", models.ReportUpdate{Status: &status}); err != nil || !ok {
		t.Fatalf("update: %v %v", ok, err)
	}
	if ok, err := repo.SaveReportAnalysis(ctx, "r1", "T1", "analysis"); err != nil || !ok {
		t.Fatalf("save analysis: %v %v", ok, err)
	}

	got, err := repo.GetReport(ctx, "r1", "T1")
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.Status != "final" || *got.AnalysisResults != "analysis" || got.DocumentIDs[0] != "doc1" {
		t.Errorf("unexpected report: %+v", got)
	}

	reports, err := repo.ListReportsByCase(ctx, "case1", "T1")
	if err != nil || len(reports) != 1 {
		t.Errorf("list: %v %v", reports, err)
	}
}
