package repository

import (
	"context"
	"log"

	"github.com/tieubaoca/knowledge-base-be/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ChatRepo persists chat sessions and their messages. It is a collaborator
// of the query pipeline: the pipeline returns {answer, references} and the
// caller stores them here.
type ChatRepo interface {
	CreateSession(ctx context.Context, session *types.ChatSession) error
	GetSession(ctx context.Context, id string) (*types.ChatSession, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]*types.ChatSession, error)
	UpdateSession(ctx context.Context, session *types.ChatSession) error
	DeleteSession(ctx context.Context, id string) error

	CreateMessage(ctx context.Context, message *types.ChatMessage) error
	GetMessages(ctx context.Context, sessionID string) ([]*types.ChatMessage, error)
	CountMessages(ctx context.Context, sessionID string) (int64, error)
}

type chatRepo struct {
	sessions *mongo.Collection
	messages *mongo.Collection
}

func NewChatRepo(db *mongo.Database) ChatRepo {
	sessions := db.Collection("chat_sessions")
	messages := db.Collection("chat_messages")

	sessionIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
	}
	if _, err := sessions.Indexes().CreateMany(context.Background(), sessionIndexes); err != nil {
		log.Printf("Error creating chat session indexes: %v", err)
	}
	messageIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: 1}}},
	}
	if _, err := messages.Indexes().CreateMany(context.Background(), messageIndexes); err != nil {
		log.Printf("Error creating chat message indexes: %v", err)
	}

	return &chatRepo{
		sessions: sessions,
		messages: messages,
	}
}

func (r *chatRepo) CreateSession(ctx context.Context, session *types.ChatSession) error {
	_, err := r.sessions.InsertOne(ctx, session)
	return err
}

func (r *chatRepo) GetSession(ctx context.Context, id string) (*types.ChatSession, error) {
	var session types.ChatSession
	err := r.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *chatRepo) ListSessions(ctx context.Context, userID string, limit int) ([]*types.ChatSession, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.sessions.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*types.ChatSession
	for cursor.Next(ctx) {
		var session types.ChatSession
		if err := cursor.Decode(&session); err != nil {
			return nil, err
		}
		sessions = append(sessions, &session)
	}
	return sessions, nil
}

func (r *chatRepo) UpdateSession(ctx context.Context, session *types.ChatSession) error {
	_, err := r.sessions.ReplaceOne(ctx, bson.M{"_id": session.ID}, session)
	return err
}

// DeleteSession removes the session and cascades to its messages.
func (r *chatRepo) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.messages.DeleteMany(ctx, bson.M{"session_id": id}); err != nil {
		return err
	}
	_, err := r.sessions.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *chatRepo) CreateMessage(ctx context.Context, message *types.ChatMessage) error {
	_, err := r.messages.InsertOne(ctx, message)
	return err
}

func (r *chatRepo) GetMessages(ctx context.Context, sessionID string) ([]*types.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.messages.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*types.ChatMessage
	for cursor.Next(ctx) {
		var message types.ChatMessage
		if err := cursor.Decode(&message); err != nil {
			return nil, err
		}
		messages = append(messages, &message)
	}
	return messages, nil
}

func (r *chatRepo) CountMessages(ctx context.Context, sessionID string) (int64, error) {
	return r.messages.CountDocuments(ctx, bson.M{"session_id": sessionID})
}
