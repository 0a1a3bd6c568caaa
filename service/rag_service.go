package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/tieubaoca/knowledge-base-be/config"
	"github.com/tieubaoca/knowledge-base-be/database"
	"github.com/tieubaoca/knowledge-base-be/repository"
	"github.com/tieubaoca/knowledge-base-be/types"
)

const (
	systemPrompt         = "你是一个专业的知识库助手，能够根据提供的上下文信息准确回答用户的问题。如果上下文中没有相关信息，请如实告知用户。"
	noContextPlaceholder = "没有找到相关的上下文信息。"
	fallbackAnswer       = "抱歉，生成回答时出现了问题。请稍后重试或联系管理员。"
	contextSeparator     = "\n\n---\n\n"

	referenceExcerptLimit = 200

	promptTemplate = "请基于以下上下文信息回答用户的问题。\n\n" +
		"【上下文信息】\n%s\n\n" +
		"【用户问题】\n%s\n\n" +
		"【回答要求】\n" +
		"1. 仅基于上述上下文信息进行回答\n" +
		"2. 如果上下文中没有相关信息，请明确告知用户\n" +
		"3. 回答要准确、简洁、有条理\n" +
		"4. 可以引用具体的来源信息\n\n" +
		"请回答："
)

// ChatCompleter is the slice of the OpenAI client the answer generator
// needs. *openai.Client satisfies it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// RAGService answers questions over a knowledge base: retrieve the most
// similar chunks, build a grounded prompt, and cite the chunks used.
type RAGService struct {
	llm            ChatCompleter
	vectorDB       database.VectorStore
	knowledgeBases repository.KnowledgeBaseRepo

	defaultModel        string
	temperature         float32
	maxTokens           int
	topK                int
	similarityThreshold float64
}

func NewRAGService(llmCfg config.LLMConfig, ragCfg config.RAGConfig, vectorDB database.VectorStore, knowledgeBases repository.KnowledgeBaseRepo) *RAGService {
	clientCfg := openai.DefaultConfig(llmCfg.APIKey)
	clientCfg.BaseURL = llmCfg.BaseURL
	if llmCfg.TimeoutSecs > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: time.Duration(llmCfg.TimeoutSecs) * time.Second}
	}

	return &RAGService{
		llm:                 openai.NewClientWithConfig(clientCfg),
		vectorDB:            vectorDB,
		knowledgeBases:      knowledgeBases,
		defaultModel:        llmCfg.DefaultModel,
		temperature:         float32(llmCfg.Temperature),
		maxTokens:           llmCfg.MaxTokens,
		topK:                ragCfg.TopK,
		similarityThreshold: ragCfg.SimilarityThreshold,
	}
}

// Chat runs the full question-answering flow for req. Retrieval knobs
// resolve request value > knowledge-base override > config default.
// Retrieval or generation failures degrade to a fixed apology answer with
// no references instead of an error.
func (s *RAGService) Chat(ctx context.Context, req types.ChatRequest) *types.ChatResult {
	topK, threshold := s.resolveRetrievalParams(ctx, req)

	var docs []types.SearchResult
	if req.KnowledgeBaseID != "" {
		results, err := s.vectorDB.Search(ctx, req.KnowledgeBaseID, req.Question, topK, threshold)
		if err != nil {
			log.Printf("search failed for knowledge base %s: %v", req.KnowledgeBaseID, err)
			return &types.ChatResult{Answer: fallbackAnswer, References: []types.Reference{}}
		}
		docs = results
	}

	answer, references, err := s.GenerateAnswer(ctx, req.Question, docs, req.ModelName, -1, 0)
	if err != nil {
		log.Printf("answer generation failed: %v", err)
		return &types.ChatResult{Answer: fallbackAnswer, References: []types.Reference{}}
	}

	return &types.ChatResult{
		Answer:       answer,
		References:   references,
		ContextCount: len(docs),
	}
}

// resolveRetrievalParams picks top-k and similarity threshold for one
// request. A zero-valued override on the knowledge base means "use the
// global default", same as on the request.
func (s *RAGService) resolveRetrievalParams(ctx context.Context, req types.ChatRequest) (int, float64) {
	topK := s.topK
	threshold := s.similarityThreshold

	if req.KnowledgeBaseID != "" {
		kb, err := s.knowledgeBases.GetKnowledgeBase(ctx, req.KnowledgeBaseID)
		if err != nil {
			log.Printf("failed to load knowledge base %s, using defaults: %v", req.KnowledgeBaseID, err)
		} else {
			if kb.TopK > 0 {
				topK = kb.TopK
			}
			if kb.SimilarityThreshold > 0 {
				threshold = kb.SimilarityThreshold
			}
		}
	}

	if req.TopK > 0 {
		topK = req.TopK
	}
	if req.SimilarityThreshold > 0 {
		threshold = req.SimilarityThreshold
	}
	return topK, threshold
}

// GenerateAnswer produces an answer for question grounded on docs, plus a
// citation for every context chunk that was fed to the model. Zero-value
// modelName, negative temperature, and non-positive maxTokens fall back to
// the service defaults.
func (s *RAGService) GenerateAnswer(ctx context.Context, question string, docs []types.SearchResult, modelName string, temperature float32, maxTokens int) (string, []types.Reference, error) {
	if modelName == "" {
		modelName = s.defaultModel
	}
	if temperature < 0 {
		temperature = s.temperature
	}
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}

	prompt := buildPrompt(question, buildContext(docs))

	resp, err := s.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       modelName,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", types.ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, fmt.Errorf("%w: %v", types.ErrGenerationFailed, errors.New("no choices returned"))
	}

	return resp.Choices[0].Message.Content, buildReferences(docs), nil
}

// buildContext renders retrieved chunks as source-tagged blocks.
func buildContext(docs []types.SearchResult) string {
	if len(docs) == 0 {
		return noContextPlaceholder
	}
	blocks := make([]string, 0, len(docs))
	for _, doc := range docs {
		blocks = append(blocks, fmt.Sprintf("[来源: %s]\n%s", doc.Metadata.Source, doc.Content))
	}
	return strings.Join(blocks, contextSeparator)
}

func buildPrompt(question, context string) string {
	return fmt.Sprintf(promptTemplate, context, question)
}

// buildReferences creates one citation per context chunk with a truncated
// excerpt of its content.
func buildReferences(docs []types.SearchResult) []types.Reference {
	references := make([]types.Reference, 0, len(docs))
	for _, doc := range docs {
		excerpt := []rune(doc.Content)
		if len(excerpt) > referenceExcerptLimit {
			excerpt = excerpt[:referenceExcerptLimit]
		}
		references = append(references, types.Reference{
			DocumentID:   doc.Metadata.DocumentID,
			DocumentName: doc.Metadata.DocumentName,
			ChunkID:      doc.ID,
			Similarity:   doc.Similarity,
			Content:      string(excerpt) + "...",
		})
	}
	return references
}
