package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tieubaoca/knowledge-base-be/types"
)

type stubLLM struct {
	lastRequest openai.ChatCompletionRequest
	answer      string
	err         error
}

func (s *stubLLM) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.lastRequest = req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: s.answer}},
		},
	}, nil
}

type stubVectorStore struct {
	results   []types.SearchResult
	searchErr error

	lastQuery     string
	lastTopK      int
	lastThreshold float64
}

func (s *stubVectorStore) EnsureCollection(ctx context.Context, kbID, kbName string) error {
	return nil
}

func (s *stubVectorStore) AddChunks(ctx context.Context, kbID string, chunks []types.Chunk) error {
	return nil
}

func (s *stubVectorStore) Search(ctx context.Context, kbID, query string, topK int, similarityThreshold float64) ([]types.SearchResult, error) {
	s.lastQuery = query
	s.lastTopK = topK
	s.lastThreshold = similarityThreshold
	return s.results, s.searchErr
}

func (s *stubVectorStore) DeleteChunks(ctx context.Context, kbID string, chunkIDs []string) error {
	return nil
}

func (s *stubVectorStore) DeleteCollection(ctx context.Context, kbID string) error {
	return nil
}

func newTestRAGService(llm ChatCompleter, store *stubVectorStore, kbs ...*types.KnowledgeBase) *RAGService {
	return &RAGService{
		llm:                 llm,
		vectorDB:            store,
		knowledgeBases:      newFakeKnowledgeBaseRepo(kbs...),
		defaultModel:        "qwen2-7b-instruct",
		temperature:         0.7,
		maxTokens:           2048,
		topK:                5,
		similarityThreshold: 0.7,
	}
}

func searchResult(id, content, source string, similarity float64) types.SearchResult {
	return types.SearchResult{
		ID:      id,
		Content: content,
		Metadata: types.ChunkMetadata{
			DocumentID:   "doc_1",
			DocumentName: source,
			Source:       source,
		},
		Similarity: similarity,
	}
}

func TestGenerateAnswerBuildsGroundedPrompt(t *testing.T) {
	llm := &stubLLM{answer: "answer text"}
	s := newTestRAGService(llm, &stubVectorStore{})

	docs := []types.SearchResult{
		searchResult("doc_1_chunk_0", "第一块内容", "manual.pdf", 0.91),
		searchResult("doc_1_chunk_1", "第二块内容", "manual.pdf", 0.85),
	}
	answer, references, err := s.GenerateAnswer(context.Background(), "问题？", docs, "", -1, 0)
	require.NoError(t, err)
	assert.Equal(t, "answer text", answer)
	require.Len(t, references, 2)

	require.Len(t, llm.lastRequest.Messages, 2)
	assert.Equal(t, systemPrompt, llm.lastRequest.Messages[0].Content)
	userPrompt := llm.lastRequest.Messages[1].Content
	assert.Contains(t, userPrompt, "[来源: manual.pdf]\n第一块内容")
	assert.Contains(t, userPrompt, contextSeparator)
	assert.Contains(t, userPrompt, "问题？")

	assert.Equal(t, "qwen2-7b-instruct", llm.lastRequest.Model)
	assert.Equal(t, float32(0.7), llm.lastRequest.Temperature)
	assert.Equal(t, 2048, llm.lastRequest.MaxTokens)
}

func TestGenerateAnswerNoContextPlaceholder(t *testing.T) {
	llm := &stubLLM{answer: "无法回答"}
	s := newTestRAGService(llm, &stubVectorStore{})

	_, references, err := s.GenerateAnswer(context.Background(), "q", nil, "", -1, 0)
	require.NoError(t, err)
	assert.Empty(t, references)
	assert.Contains(t, llm.lastRequest.Messages[1].Content, noContextPlaceholder)
}

func TestGenerateAnswerOverrides(t *testing.T) {
	llm := &stubLLM{answer: "ok"}
	s := newTestRAGService(llm, &stubVectorStore{})

	_, _, err := s.GenerateAnswer(context.Background(), "q", nil, "other-model", 0.2, 512)
	require.NoError(t, err)
	assert.Equal(t, "other-model", llm.lastRequest.Model)
	assert.Equal(t, float32(0.2), llm.lastRequest.Temperature)
	assert.Equal(t, 512, llm.lastRequest.MaxTokens)
}

func TestBuildReferencesTruncatesExcerpt(t *testing.T) {
	long := strings.Repeat("长", 300)
	references := buildReferences([]types.SearchResult{
		searchResult("doc_1_chunk_0", long, "book.pdf", 0.8),
	})
	require.Len(t, references, 1)

	assert.Equal(t, strings.Repeat("长", referenceExcerptLimit)+"...", references[0].Content)
	assert.Equal(t, "doc_1_chunk_0", references[0].ChunkID)
	assert.Equal(t, "book.pdf", references[0].DocumentName)
	assert.Equal(t, 0.8, references[0].Similarity)
}

func TestBuildReferencesShortContent(t *testing.T) {
	references := buildReferences([]types.SearchResult{
		searchResult("doc_1_chunk_0", "short", "book.pdf", 0.8),
	})
	require.Len(t, references, 1)
	assert.Equal(t, "short...", references[0].Content)
}

func TestChatRetrievalFailureFallsBack(t *testing.T) {
	store := &stubVectorStore{searchErr: errors.New("weaviate down")}
	s := newTestRAGService(&stubLLM{answer: "should not be used"}, store)

	result := s.Chat(context.Background(), types.ChatRequest{
		Question:        "问题",
		KnowledgeBaseID: "kb_1",
	})
	assert.Equal(t, fallbackAnswer, result.Answer)
	assert.Empty(t, result.References)
	assert.Zero(t, result.ContextCount)
}

func TestChatGenerationFailureFallsBack(t *testing.T) {
	store := &stubVectorStore{results: []types.SearchResult{
		searchResult("doc_1_chunk_0", "内容", "manual.pdf", 0.9),
	}}
	s := newTestRAGService(&stubLLM{err: errors.New("llm down")}, store)

	result := s.Chat(context.Background(), types.ChatRequest{
		Question:        "问题",
		KnowledgeBaseID: "kb_1",
	})
	assert.Equal(t, fallbackAnswer, result.Answer)
	assert.Empty(t, result.References)
}

func TestChatEmptyKnowledgeBase(t *testing.T) {
	store := &stubVectorStore{results: nil}
	llm := &stubLLM{answer: "知识库中没有相关信息"}
	s := newTestRAGService(llm, store)

	result := s.Chat(context.Background(), types.ChatRequest{
		Question:        "问题",
		KnowledgeBaseID: "kb_1",
	})
	assert.Equal(t, "知识库中没有相关信息", result.Answer)
	assert.Empty(t, result.References)
	assert.Zero(t, result.ContextCount)
	assert.Contains(t, llm.lastRequest.Messages[1].Content, noContextPlaceholder)
}

func TestChatAppliesRequestOverrides(t *testing.T) {
	store := &stubVectorStore{results: []types.SearchResult{
		searchResult("doc_1_chunk_0", "内容", "manual.pdf", 0.9),
	}}
	s := newTestRAGService(&stubLLM{answer: "ok"}, store)

	result := s.Chat(context.Background(), types.ChatRequest{
		Question:            "问题",
		KnowledgeBaseID:     "kb_1",
		TopK:                3,
		SimilarityThreshold: 0.5,
	})
	assert.Equal(t, 3, store.lastTopK)
	assert.Equal(t, 0.5, store.lastThreshold)
	assert.Equal(t, "问题", store.lastQuery)
	assert.Equal(t, 1, result.ContextCount)
}

func TestChatAppliesKnowledgeBaseOverrides(t *testing.T) {
	store := &stubVectorStore{results: []types.SearchResult{
		searchResult("doc_1_chunk_0", "内容", "manual.pdf", 0.95),
	}}
	kb := testKB()
	kb.TopK = 3
	kb.SimilarityThreshold = 0.9
	s := newTestRAGService(&stubLLM{answer: "ok"}, store, kb)

	s.Chat(context.Background(), types.ChatRequest{
		Question:        "问题",
		KnowledgeBaseID: kb.ID,
	})
	assert.Equal(t, 3, store.lastTopK)
	assert.Equal(t, 0.9, store.lastThreshold)
}

func TestChatRequestOverridesBeatKnowledgeBase(t *testing.T) {
	store := &stubVectorStore{results: []types.SearchResult{
		searchResult("doc_1_chunk_0", "内容", "manual.pdf", 0.95),
	}}
	kb := testKB()
	kb.TopK = 3
	kb.SimilarityThreshold = 0.9
	s := newTestRAGService(&stubLLM{answer: "ok"}, store, kb)

	s.Chat(context.Background(), types.ChatRequest{
		Question:            "问题",
		KnowledgeBaseID:     kb.ID,
		TopK:                8,
		SimilarityThreshold: 0.4,
	})
	assert.Equal(t, 8, store.lastTopK)
	assert.Equal(t, 0.4, store.lastThreshold)
}

func TestChatUnknownKnowledgeBaseUsesDefaults(t *testing.T) {
	store := &stubVectorStore{results: nil}
	s := newTestRAGService(&stubLLM{answer: "ok"}, store)

	s.Chat(context.Background(), types.ChatRequest{
		Question:        "问题",
		KnowledgeBaseID: "kb_missing",
	})
	assert.Equal(t, 5, store.lastTopK)
	assert.Equal(t, 0.7, store.lastThreshold)
}

func TestChatSkipsRetrievalWithoutKnowledgeBase(t *testing.T) {
	store := &stubVectorStore{results: []types.SearchResult{
		searchResult("doc_1_chunk_0", "内容", "manual.pdf", 0.9),
	}}
	s := newTestRAGService(&stubLLM{answer: "ok"}, store)

	result := s.Chat(context.Background(), types.ChatRequest{Question: "问题"})
	assert.Empty(t, store.lastQuery)
	assert.Zero(t, result.ContextCount)
}
