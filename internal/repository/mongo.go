package repository

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BerylCAtieno/forensic-docs-api/internal/db"
	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
)

type mongoRepository struct {
	clients   *mongo.Collection
	cases     *mongo.Collection
	documents *mongo.Collection
	reports   *mongo.Collection
	counters  *mongo.Collection
}

func NewMongoRepository(database *mongo.Database) Repository {
	return &mongoRepository{
		clients:   database.Collection(db.ClientsCollection),
		cases:     database.Collection(db.CasesCollection),
		documents: database.Collection(db.DocumentsCollection),
		reports:   database.Collection(db.ReportsCollection),
		counters:  database.Collection(db.CountersCollection),
	}
}

func scoped(id, tenantID string) bson.M {
	return bson.M{"_id": id, "tenant_id": tenantID, "deleted": false}
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter bson.M) (*T, error) {
	var v T
	err := col.FindOne(ctx, filter).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]T, error) {
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func matched(res *mongo.UpdateResult, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *mongoRepository) CreateClient(ctx context.Context, client *models.Client) error {
	_, err := r.clients.InsertOne(ctx, client)
	return err
}

func (r *mongoRepository) GetClient(ctx context.Context, id string) (*models.Client, error) {
	return findOne[models.Client](ctx, r.clients, bson.M{"_id": id, "deleted": false})
}

func (r *mongoRepository) ListClients(ctx context.Context, limit, skip int) ([]models.Client, int, error) {
	filter := bson.M{"deleted": false}

	total, err := r.clients.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(skip))
	clients, err := findAll[models.Client](ctx, r.clients, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return clients, int(total), nil
}

func (r *mongoRepository) CreateCase(ctx context.Context, c *models.Case) error {
	doc := *c
	doc.Tags = nonNil(doc.Tags)
	doc.Documents = nonNil(doc.Documents)
	_, err := r.cases.InsertOne(ctx, doc)
	return err
}

func (r *mongoRepository) GetCase(ctx context.Context, id, tenantID string) (*models.Case, error) {
	return findOne[models.Case](ctx, r.cases, scoped(id, tenantID))
}

func (r *mongoRepository) ListCases(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error) {
	query := bson.M{"tenant_id": filter.TenantID, "deleted": false}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if len(filter.Tags) > 0 {
		query["tags"] = bson.M{"$all": filter.Tags}
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
			bson.M{"case_number": pattern},
		}
	}

	total, err := r.cases.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(filter.Limit)).
		SetSkip(int64(filter.Skip))
	cases, err := findAll[models.Case](ctx, r.cases, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return cases, int(total), nil
}

func (r *mongoRepository) UpdateCase(ctx context.Context, id, tenantID string, update models.CaseUpdate) (bool, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Tags != nil {
		set["tags"] = nonNil(*update.Tags)
	}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	return matched(r.cases.UpdateOne(ctx, scoped(id, tenantID), bson.M{"$set": set}))
}

func (r *mongoRepository) DeleteCase(ctx context.Context, id, tenantID string) (bool, error) {
	return matched(r.cases.UpdateOne(ctx, scoped(id, tenantID), bson.M{
		"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()},
	}))
}

func (r *mongoRepository) AddDocumentToCase(ctx context.Context, caseID, tenantID string, doc models.CaseDocument) (bool, error) {
	ok, err := matched(r.cases.UpdateOne(ctx, scoped(caseID, tenantID), bson.M{
		"$pull": bson.M{"documents": bson.M{"document_id": doc.DocumentID}},
	}))
	if err != nil || !ok {
		return false, err
	}

	return matched(r.cases.UpdateOne(ctx, scoped(caseID, tenantID), bson.M{
		"$push": bson.M{"documents": doc},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}))
}

func (r *mongoRepository) NextCaseNumber(ctx context.Context, tenantID string, now time.Time) (string, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": caseCounterName(tenantID, now)},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return "", err
	}
	return CaseNumber(now, counter.Seq), nil
}

func (r *mongoRepository) CreateDocument(ctx context.Context, doc *models.Document) (string, error) {
	d := *doc
	d.Pages = nonNil(d.Pages)
	if _, err := r.documents.InsertOne(ctx, d); err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (r *mongoRepository) GetDocument(ctx context.Context, id, tenantID string) (*models.Document, error) {
	doc, err := findOne[models.Document](ctx, r.documents, scoped(id, tenantID))
	if doc != nil {
		sortPages(doc)
	}
	return doc, err
}

func (r *mongoRepository) ListDocumentsByCase(ctx context.Context, caseID, tenantID string) ([]models.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	docs, err := findAll[models.Document](ctx, r.documents, bson.M{"case_id": caseID, "tenant_id": tenantID, "deleted": false}, opts)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		sortPages(&docs[i])
	}
	return docs, nil
}

func sortPages(doc *models.Document) {
	sort.Slice(doc.Pages, func(i, j int) bool { return doc.Pages[i].PageNumber < doc.Pages[j].PageNumber })
}

func (r *mongoRepository) AddPageData(ctx context.Context, documentID, tenantID string, page models.DocumentPage) (bool, error) {
	now := time.Now().UTC()
	page.UpdatedAt = now

	filter := scoped(documentID, tenantID)
	filter["pages.page_number"] = page.PageNumber
	ok, err := matched(r.documents.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"pages.$": page, "updated_at": now},
	}))
	if err != nil || ok {
		return ok, err
	}

	return matched(r.documents.UpdateOne(ctx, scoped(documentID, tenantID), bson.M{
		"$push": bson.M{"pages": page},
		"$set":  bson.M{"updated_at": now},
	}))
}

func (r *mongoRepository) UpdateOCRStatus(ctx context.Context, id, tenantID string, status models.OCRStatus, ocrError *string) (bool, error) {
	update := bson.M{"$set": bson.M{"ocr_status": status, "updated_at": time.Now().UTC()}}
	if ocrError != nil {
		update["$set"].(bson.M)["ocr_error"] = *ocrError
	} else {
		update["$unset"] = bson.M{"ocr_error": ""}
	}
	return matched(r.documents.UpdateOne(ctx, scoped(id, tenantID), update))
}

func (r *mongoRepository) SetDocumentAnalysis(ctx context.Context, id, tenantID, analysis string) (bool, error) {
	return matched(r.documents.UpdateOne(ctx, scoped(id, tenantID), bson.M{
		"$set": bson.M{"analysis": analysis, "updated_at": time.Now().UTC()},
	}))
}

func (r *mongoRepository) DeleteDocument(ctx context.Context, id, tenantID string) (bool, error) {
	var doc models.Document
	err := r.documents.FindOneAndUpdate(ctx, scoped(id, tenantID), bson.M{
		"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, err = r.cases.UpdateOne(ctx, bson.M{"_id": doc.CaseID, "tenant_id": tenantID}, bson.M{
		"$pull": bson.M{"documents": bson.M{"document_id": id}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	return err == nil, err
}

func (r *mongoRepository) CreateReport(ctx context.Context, report *models.Report) error {
	rep := *report
	rep.DocumentIDs = nonNil(rep.DocumentIDs)
	_, err := r.reports.InsertOne(ctx, rep)
	return err
}

func (r *mongoRepository) GetReport(ctx context.Context, id, tenantID string) (*models.Report, error) {
	return findOne[models.Report](ctx, r.reports, scoped(id, tenantID))
}

func (r *mongoRepository) ListReportsByCase(ctx context.Context, caseID, tenantID string) ([]models.Report, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findAll[models.Report](ctx, r.reports, bson.M{"case_id": caseID, "tenant_id": tenantID, "deleted": false}, opts)
}

func (r *mongoRepository) UpdateReport(ctx context.Context, id, tenantID string, update models.ReportUpdate) (bool, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Content != nil {
		set["content"] = *update.Content
	}
	if update.DocumentIDs != nil {
		set["document_ids"] = nonNil(*update.DocumentIDs)
	}
	if update.FieldData != nil {
		set["field_data"] = *update.FieldData
	}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	return matched(r.reports.UpdateOne(ctx, scoped(id, tenantID), bson.M{"$set": set}))
}

func (r *mongoRepository) SaveReportAnalysis(ctx context.Context, id, tenantID, analysis string) (bool, error) {
	return matched(r.reports.UpdateOne(ctx, scoped(id, tenantID), bson.M{
		"$set": bson.M{"analysis_results": analysis, "updated_at": time.Now().UTC()},
	}))
}
