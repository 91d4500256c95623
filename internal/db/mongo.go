package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names of the mongo backend.
const (
	ClientsCollection   = "clients"
	CasesCollection     = "cases"
	DocumentsCollection = "documents"
	ReportsCollection   = "reports"
	CountersCollection  = "counters"
)

func ConnectMongoDB(ctx context.Context, uri, dbName string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Test connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	if err := createIndexes(ctx, client.Database(dbName)); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return client, nil
}

func createIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		ClientsCollection: {
			{
				Keys:    bson.D{{Key: "tenant_code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "deleted", Value: 1}, {Key: "created_at", Value: -1}},
			},
		},
		CasesCollection: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "case_number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "deleted", Value: 1}, {Key: "created_at", Value: -1}},
			},
		},
		DocumentsCollection: {
			{
				Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "case_id", Value: 1}, {Key: "deleted", Value: 1}},
			},
		},
		ReportsCollection: {
			{
				Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "case_id", Value: 1}, {Key: "deleted", Value: 1}},
			},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
