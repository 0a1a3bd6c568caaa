package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tieubaoca/knowledge-base-be/repository"
	"github.com/tieubaoca/knowledge-base-be/types"
	"github.com/tieubaoca/knowledge-base-be/utils"
)

const SESSION_TITLE_LIMIT = 20

// ChatService persists question/answer exchanges as chat sessions on top
// of the retrieval pipeline.
type ChatService struct {
	rag      *RAGService
	sessions repository.ChatRepo
}

func NewChatService(rag *RAGService, sessions repository.ChatRepo) *ChatService {
	return &ChatService{rag: rag, sessions: sessions}
}

// Ask answers req and records both sides of the exchange in the session.
// An empty sessionID starts a new session titled after the first question.
func (s *ChatService) Ask(ctx context.Context, sessionID, userID string, req types.ChatRequest) (*types.ChatSession, *types.ChatResult, error) {
	var session *types.ChatSession
	if sessionID == "" {
		session = &types.ChatSession{
			ID:              utils.GenerateID("session"),
			Title:           sessionTitle(req.Question),
			KnowledgeBaseID: req.KnowledgeBaseID,
			UserID:          userID,
			CreatedAt:       time.Now().Unix(),
			UpdatedAt:       time.Now().Unix(),
		}
		if err := s.sessions.CreateSession(ctx, session); err != nil {
			return nil, nil, err
		}
	} else {
		existing, err := s.sessions.GetSession(ctx, sessionID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, errors.New("chat session not found: " + sessionID)
		}
		if err != nil {
			return nil, nil, err
		}
		session = existing
		if req.KnowledgeBaseID == "" {
			req.KnowledgeBaseID = session.KnowledgeBaseID
		}
	}

	result := s.rag.Chat(ctx, req)

	now := time.Now().Unix()
	userMessage := &types.ChatMessage{
		ID:        utils.GenerateID("msg"),
		SessionID: session.ID,
		Role:      types.CHAT_ROLE_USER,
		Content:   req.Question,
		CreatedAt: now,
	}
	if err := s.sessions.CreateMessage(ctx, userMessage); err != nil {
		return nil, nil, err
	}
	assistantMessage := &types.ChatMessage{
		ID:         utils.GenerateID("msg"),
		SessionID:  session.ID,
		Role:       types.CHAT_ROLE_ASSISTANT,
		Content:    result.Answer,
		References: result.References,
		CreatedAt:  now,
	}
	if err := s.sessions.CreateMessage(ctx, assistantMessage); err != nil {
		return nil, nil, err
	}

	session.UpdatedAt = now
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return nil, nil, err
	}
	return session, result, nil
}

// History returns a session's messages oldest first.
func (s *ChatService) History(ctx context.Context, sessionID string) ([]*types.ChatMessage, error) {
	return s.sessions.GetMessages(ctx, sessionID)
}

// sessionTitle derives a session title from its first question.
func sessionTitle(question string) string {
	if utf8.RuneCountInString(question) <= SESSION_TITLE_LIMIT {
		return question
	}
	return string([]rune(question)[:SESSION_TITLE_LIMIT]) + "..."
}
