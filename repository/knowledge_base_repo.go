package repository

import (
	"context"
	"log"

	"github.com/tieubaoca/knowledge-base-be/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type KnowledgeBaseRepo interface {
	CreateKnowledgeBase(ctx context.Context, kb *types.KnowledgeBase) error
	GetKnowledgeBase(ctx context.Context, id string) (*types.KnowledgeBase, error)
	GetKnowledgeBaseByCode(ctx context.Context, code string) (*types.KnowledgeBase, error)
	ListKnowledgeBases(ctx context.Context) ([]*types.KnowledgeBase, error)
	UpdateKnowledgeBase(ctx context.Context, kb *types.KnowledgeBase) error
	DeleteKnowledgeBase(ctx context.Context, id string) error
}

type knowledgeBaseRepo struct {
	collection *mongo.Collection
}

func NewKnowledgeBaseRepo(db *mongo.Database) KnowledgeBaseRepo {
	collection := db.Collection("knowledge_bases")
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "updated_at", Value: -1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(context.Background(), indexes); err != nil {
		log.Printf("Error creating knowledge base indexes: %v", err)
	}

	return &knowledgeBaseRepo{
		collection: collection,
	}
}

func (r *knowledgeBaseRepo) CreateKnowledgeBase(ctx context.Context, kb *types.KnowledgeBase) error {
	_, err := r.collection.InsertOne(ctx, kb)
	return err
}

func (r *knowledgeBaseRepo) GetKnowledgeBase(ctx context.Context, id string) (*types.KnowledgeBase, error) {
	var kb types.KnowledgeBase
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&kb)
	if err != nil {
		return nil, err
	}
	return &kb, nil
}

func (r *knowledgeBaseRepo) GetKnowledgeBaseByCode(ctx context.Context, code string) (*types.KnowledgeBase, error) {
	var kb types.KnowledgeBase
	err := r.collection.FindOne(ctx, bson.M{"code": code}).Decode(&kb)
	if err != nil {
		return nil, err
	}
	return &kb, nil
}

func (r *knowledgeBaseRepo) ListKnowledgeBases(ctx context.Context) ([]*types.KnowledgeBase, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var kbs []*types.KnowledgeBase
	for cursor.Next(ctx) {
		var kb types.KnowledgeBase
		if err := cursor.Decode(&kb); err != nil {
			return nil, err
		}
		kbs = append(kbs, &kb)
	}
	return kbs, nil
}

func (r *knowledgeBaseRepo) UpdateKnowledgeBase(ctx context.Context, kb *types.KnowledgeBase) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": kb.ID}, kb)
	return err
}

func (r *knowledgeBaseRepo) DeleteKnowledgeBase(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
