package repository

import (
	"context"
	"log"

	"github.com/tieubaoca/knowledge-base-be/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type DocumentRepo interface {
	CreateDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, id string) (*types.Document, error)
	ListDocumentsByKnowledgeBase(ctx context.Context, kbID string) ([]*types.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	DeleteDocumentsByKnowledgeBase(ctx context.Context, kbID string) error
}

type documentRepo struct {
	collection *mongo.Collection
}

func NewDocumentRepo(db *mongo.Database) DocumentRepo {
	collection := db.Collection("documents")
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "knowledge_base_id", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "uploaded_at", Value: -1},
			},
		},
	}
	if _, err := collection.Indexes().CreateMany(context.Background(), indexes); err != nil {
		log.Printf("Error creating document indexes: %v", err)
	}

	return &documentRepo{
		collection: collection,
	}
}

func (r *documentRepo) CreateDocument(ctx context.Context, doc *types.Document) error {
	_, err := r.collection.InsertOne(ctx, doc)
	return err
}

func (r *documentRepo) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	var doc types.Document
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) ListDocumentsByKnowledgeBase(ctx context.Context, kbID string) ([]*types.Document, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"knowledge_base_id": kbID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []*types.Document
	for cursor.Next(ctx) {
		var doc types.Document
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

func (r *documentRepo) DeleteDocument(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *documentRepo) DeleteDocumentsByKnowledgeBase(ctx context.Context, kbID string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"knowledge_base_id": kbID})
	return err
}
