package types

const (
	CHAT_ROLE_USER      = "user"
	CHAT_ROLE_ASSISTANT = "assistant"
)

// ChatSession groups the messages of one conversation, optionally bound to
// a knowledge base.
type ChatSession struct {
	ID              string `json:"id" bson:"_id"`
	UserID          string `json:"user_id" bson:"user_id"`
	Title           string `json:"title" bson:"title"`
	KnowledgeBaseID string `json:"knowledge_base_id,omitempty" bson:"knowledge_base_id,omitempty"`
	ModelName       string `json:"model_name,omitempty" bson:"model_name,omitempty"`
	CreatedAt       int64  `json:"created_at" bson:"created_at"`
	UpdatedAt       int64  `json:"updated_at" bson:"updated_at"`
}

// ChatMessage is one turn in a session. Assistant messages carry the
// references produced by the query pipeline.
type ChatMessage struct {
	ID         string      `json:"id" bson:"_id"`
	SessionID  string      `json:"session_id" bson:"session_id"`
	Role       string      `json:"role" bson:"role"`
	Content    string      `json:"content" bson:"content"`
	References []Reference `json:"references,omitempty" bson:"references,omitempty"`
	CreatedAt  int64       `json:"created_at" bson:"created_at"`
}

// Reference points an answer back to the chunk that informed it. It is
// derived purely from retrieval metadata, in retrieval order.
type Reference struct {
	DocumentID   string  `json:"documentId" bson:"document_id"`
	DocumentName string  `json:"documentName" bson:"document_name"`
	ChunkID      string  `json:"chunkId" bson:"chunk_id"`
	Similarity   float64 `json:"similarity" bson:"similarity"`
	Content      string  `json:"content" bson:"content"`
}

// ChatRequest is one question for the query pipeline. KnowledgeBaseID may
// be empty, which skips retrieval entirely.
type ChatRequest struct {
	Question            string  `json:"question"`
	KnowledgeBaseID     string  `json:"knowledge_base_id,omitempty"`
	ModelName           string  `json:"model_name,omitempty"`
	TopK                int     `json:"top_k,omitempty"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`
}

// ChatResult is always well-formed: the query pipeline converts every
// internal failure into a fallback answer with empty references.
type ChatResult struct {
	Answer       string      `json:"answer"`
	References   []Reference `json:"references"`
	ContextCount int         `json:"context_count"`
}
