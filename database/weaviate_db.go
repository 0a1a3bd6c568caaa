package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"sort"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tieubaoca/knowledge-base-be/config"
	"github.com/tieubaoca/knowledge-base-be/types"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const BATCH_SIZE = 200

// chunkNamespace makes Weaviate object ids a pure function of the chunk id,
// so inserts are idempotent and deletes need no lookup.
var chunkNamespace = uuid.MustParse("8e2c6b46-7a0f-4f3e-9b25-3c1d2f4a9c01")

var chunkFields = []graphql.Field{
	{Name: "content"},
	{Name: "chunk_id"},
	{Name: "document_id"},
	{Name: "document_name"},
	{Name: "kb_id"},
	{Name: "chunk_index"},
	{Name: "chunk_total"},
	{Name: "source"},
	{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}, {Name: "id"}}},
}

// WeaviateStore keeps one Weaviate class per knowledge base. Vectors are
// produced by the injected Embedder; the class vectorizer stays "none".
type WeaviateStore struct {
	client   *weaviate.Client
	embedder Embedder
}

func NewWeaviateStore(cfg config.WeaviateStoreConfig, embedder Embedder) (*WeaviateStore, error) {
	var scheme string
	if strings.Contains(cfg.Host, "https") {
		scheme = "https"
	} else {
		scheme = "http"
	}
	host := strings.TrimPrefix(cfg.Host, scheme+"://")
	clientCfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if cfg.APIKey != "" {
		clientCfg.AuthConfig = auth.ApiKey{
			Value: cfg.APIKey,
		}
		clientCfg.Headers = map[string]string{
			"X-Weaviate-Api-Key":     cfg.APIKey,
			"X-Weaviate-Cluster-Url": fmt.Sprintf("%s://%s", scheme, host),
		}
	}
	client, err := weaviate.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return &WeaviateStore{
		client:   client,
		embedder: embedder,
	}, nil
}

func (s *WeaviateStore) EnsureCollection(ctx context.Context, kbID, kbName string) error {
	className := CollectionClass(kbID)
	exists, err := s.hasClass(ctx, className)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	classObj := &models.Class{
		Class:       className,
		Description: fmt.Sprintf("kb_id=%s kb_name=%s", kbID, kbName),
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "chunk_id", DataType: []string{"text"}},
			{Name: "document_id", DataType: []string{"text"}},
			{Name: "document_name", DataType: []string{"text"}},
			{Name: "kb_id", DataType: []string{"text"}},
			{Name: "chunk_index", DataType: []string{"int"}},
			{Name: "chunk_total", DataType: []string{"int"}},
			{Name: "source", DataType: []string{"text"}},
		},
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
	}
	if err := s.client.Schema().ClassCreator().WithClass(classObj).Do(ctx); err != nil {
		return fmt.Errorf("%w: failed to create collection %s: %v", types.ErrVectorStore, className, err)
	}
	log.Printf("Created vector collection %s for knowledge base %s", className, kbID)
	return nil
}

func (s *WeaviateStore) AddChunks(ctx context.Context, kbID string, chunks []types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	contents := make([]string, len(chunks))
	for i, chunk := range chunks {
		contents[i] = chunk.Content
	}
	// Embed everything before touching the store so a failed embedding
	// batch never leaves partial inserts behind.
	vectors, err := s.embedder.Embed(ctx, contents)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", types.ErrVectorStore, len(vectors), len(chunks))
	}

	className := CollectionClass(kbID)
	total := len(chunks)
	for i := 0; i < total; i += BATCH_SIZE {
		end := i + BATCH_SIZE
		if end > total {
			end = total
		}

		batcher := s.client.Batch().ObjectsBatcher()
		for j := i; j < end; j++ {
			batcher = batcher.WithObjects(&models.Object{
				Class:      className,
				ID:         strfmt.UUID(ChunkObjectID(chunks[j].ID)),
				Properties: chunkProperties(chunks[j]),
				Vector:     vectors[j],
			})
		}

		resp, err := batcher.Do(ctx)
		if err != nil {
			return fmt.Errorf("%w: failed to insert batch %d-%d: %v", types.ErrVectorStore, i, end, err)
		}
		for _, obj := range resp {
			if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
				return fmt.Errorf("%w: failed to insert object %s: %s", types.ErrVectorStore, obj.ID, obj.Result.Errors.Error[0].Message)
			}
		}
	}

	log.Printf("Added %d chunks to knowledge base %s", total, kbID)
	return nil
}

func (s *WeaviateStore) Search(ctx context.Context, kbID, query string, topK int, similarityThreshold float64) ([]types.SearchResult, error) {
	className := CollectionClass(kbID)
	exists, err := s.hasClass(ctx, className)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vectors[0])
	response, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithFields(chunkFields...).
		WithNearVector(nearVector).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %v", types.ErrVectorStore, err)
	}
	if response.Errors != nil {
		return nil, fmt.Errorf("%w: search failed: %s", types.ErrVectorStore, response.Errors[0].Message)
	}

	results := ParseSearchResults(response.Data, className, similarityThreshold)
	log.Printf("Retrieved %d relevant chunks from knowledge base %s", len(results), kbID)
	return results, nil
}

func (s *WeaviateStore) DeleteChunks(ctx context.Context, kbID string, chunkIDs []string) error {
	className := CollectionClass(kbID)
	exists, err := s.hasClass(ctx, className)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	for _, chunkID := range chunkIDs {
		err := s.client.Data().Deleter().
			WithClassName(className).
			WithID(ChunkObjectID(chunkID)).
			Do(ctx)
		if err != nil {
			var clientErr *fault.WeaviateClientError
			if errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusNotFound {
				continue
			}
			return fmt.Errorf("%w: failed to delete chunk %s: %v", types.ErrVectorStore, chunkID, err)
		}
	}
	return nil
}

func (s *WeaviateStore) DeleteCollection(ctx context.Context, kbID string) error {
	className := CollectionClass(kbID)
	exists, err := s.hasClass(ctx, className)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := s.client.Schema().ClassDeleter().WithClassName(className).Do(ctx); err != nil {
		return fmt.Errorf("%w: failed to delete collection %s: %v", types.ErrVectorStore, className, err)
	}
	log.Printf("Deleted vector collection %s", className)
	return nil
}

func (s *WeaviateStore) hasClass(ctx context.Context, className string) (bool, error) {
	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: failed to get schema: %v", types.ErrVectorStore, err)
	}
	for _, class := range schema.Classes {
		if class.Class == className {
			return true, nil
		}
	}
	return false, nil
}

// chunkProperties flattens a chunk and its metadata into the typed
// properties declared by EnsureCollection.
func chunkProperties(chunk types.Chunk) map[string]interface{} {
	return map[string]interface{}{
		"content":       chunk.Content,
		"chunk_id":      chunk.ID,
		"document_id":   chunk.Metadata.DocumentID,
		"document_name": chunk.Metadata.DocumentName,
		"kb_id":         chunk.Metadata.KnowledgeBaseID,
		"chunk_index":   chunk.Metadata.ChunkIndex,
		"chunk_total":   chunk.Metadata.ChunkTotal,
		"source":        chunk.Metadata.Source,
	}
}

// CollectionClass derives the Weaviate class name for a knowledge base.
// Class names must match [A-Z][_0-9A-Za-z]*, so the id is prefixed and any
// other rune is mapped to underscore. The mapping is deterministic: the
// same knowledge base always resolves to the same class.
func CollectionClass(kbID string) string {
	var b strings.Builder
	b.WriteString("Kb_")
	for _, r := range kbID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// ChunkObjectID digests a chunk id into the UUID Weaviate requires.
func ChunkObjectID(chunkID string) string {
	return uuid.NewSHA1(chunkNamespace, []byte(chunkID)).String()
}

// DistanceToSimilarity converts a store distance into the score exposed to
// callers. 1/(1+d) is a heuristic, not a calibrated probability; it assumes
// distances grow from 0 for identical vectors, which holds for Weaviate's
// cosine distance.
func DistanceToSimilarity(distance float64) float64 {
	return math.Round(10000/(1+distance)) / 10000
}

// ParseSearchResults converts a GraphQL Get payload into ranked results,
// dropping everything below the similarity threshold.
func ParseSearchResults(data map[string]models.JSONObject, className string, similarityThreshold float64) []types.SearchResult {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	items, ok := get[className].([]interface{})
	if !ok {
		return nil
	}

	var results []types.SearchResult
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		additional, ok := obj["_additional"].(map[string]interface{})
		if !ok {
			continue
		}
		distance, ok := additional["distance"].(float64)
		if !ok {
			continue
		}
		// Threshold against the raw score; rounding is for display only
		// and must not let a just-below score slip through.
		if 1/(1+distance) < similarityThreshold {
			continue
		}
		similarity := DistanceToSimilarity(distance)
		results = append(results, types.SearchResult{
			ID:         asString(obj["chunk_id"]),
			Content:    asString(obj["content"]),
			Similarity: similarity,
			Metadata: types.ChunkMetadata{
				DocumentID:      asString(obj["document_id"]),
				DocumentName:    asString(obj["document_name"]),
				KnowledgeBaseID: asString(obj["kb_id"]),
				ChunkIndex:      asInt(obj["chunk_index"]),
				ChunkTotal:      asInt(obj["chunk_total"]),
				Source:          asString(obj["source"]),
			},
		})
	}

	// Stable sort keeps store order for equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	return results
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt(v interface{}) int {
	f, _ := v.(float64)
	return int(f)
}
