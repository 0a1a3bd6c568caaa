package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tieubaoca/knowledge-base-be/config"
	"github.com/tieubaoca/knowledge-base-be/types"
)

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) ExtractText(filePath, fileType string) (string, error) {
	return s.text, s.err
}

type recordingVectorStore struct {
	added      []types.Chunk
	deletedIDs []string
	classes    map[string]bool

	addErr    error
	deleteErr error
}

func newRecordingVectorStore() *recordingVectorStore {
	return &recordingVectorStore{classes: map[string]bool{}}
}

func (s *recordingVectorStore) EnsureCollection(ctx context.Context, kbID, kbName string) error {
	s.classes[kbID] = true
	return nil
}

func (s *recordingVectorStore) AddChunks(ctx context.Context, kbID string, chunks []types.Chunk) error {
	if s.addErr != nil {
		return s.addErr
	}
	s.added = append(s.added, chunks...)
	return nil
}

func (s *recordingVectorStore) Search(ctx context.Context, kbID, query string, topK int, similarityThreshold float64) ([]types.SearchResult, error) {
	return nil, nil
}

func (s *recordingVectorStore) DeleteChunks(ctx context.Context, kbID string, chunkIDs []string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletedIDs = append(s.deletedIDs, chunkIDs...)
	return nil
}

func (s *recordingVectorStore) DeleteCollection(ctx context.Context, kbID string) error {
	delete(s.classes, kbID)
	return nil
}

type fakeDocumentRepo struct {
	docs      map[string]*types.Document
	createErr error
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: map[string]*types.Document{}}
}

func (r *fakeDocumentRepo) CreateDocument(ctx context.Context, doc *types.Document) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.docs[doc.ID] = doc
	return nil
}

func (r *fakeDocumentRepo) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return doc, nil
}

func (r *fakeDocumentRepo) ListDocumentsByKnowledgeBase(ctx context.Context, kbID string) ([]*types.Document, error) {
	var docs []*types.Document
	for _, doc := range r.docs {
		if doc.KnowledgeBaseID == kbID {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (r *fakeDocumentRepo) DeleteDocument(ctx context.Context, id string) error {
	delete(r.docs, id)
	return nil
}

func (r *fakeDocumentRepo) DeleteDocumentsByKnowledgeBase(ctx context.Context, kbID string) error {
	for id, doc := range r.docs {
		if doc.KnowledgeBaseID == kbID {
			delete(r.docs, id)
		}
	}
	return nil
}

type fakeKnowledgeBaseRepo struct {
	kbs map[string]*types.KnowledgeBase
}

func newFakeKnowledgeBaseRepo(kbs ...*types.KnowledgeBase) *fakeKnowledgeBaseRepo {
	r := &fakeKnowledgeBaseRepo{kbs: map[string]*types.KnowledgeBase{}}
	for _, kb := range kbs {
		r.kbs[kb.ID] = kb
	}
	return r
}

func (r *fakeKnowledgeBaseRepo) CreateKnowledgeBase(ctx context.Context, kb *types.KnowledgeBase) error {
	r.kbs[kb.ID] = kb
	return nil
}

func (r *fakeKnowledgeBaseRepo) GetKnowledgeBase(ctx context.Context, id string) (*types.KnowledgeBase, error) {
	kb, ok := r.kbs[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return kb, nil
}

func (r *fakeKnowledgeBaseRepo) GetKnowledgeBaseByCode(ctx context.Context, code string) (*types.KnowledgeBase, error) {
	for _, kb := range r.kbs {
		if kb.Code == code {
			return kb, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeKnowledgeBaseRepo) ListKnowledgeBases(ctx context.Context) ([]*types.KnowledgeBase, error) {
	var kbs []*types.KnowledgeBase
	for _, kb := range r.kbs {
		kbs = append(kbs, kb)
	}
	return kbs, nil
}

func (r *fakeKnowledgeBaseRepo) UpdateKnowledgeBase(ctx context.Context, kb *types.KnowledgeBase) error {
	r.kbs[kb.ID] = kb
	return nil
}

func (r *fakeKnowledgeBaseRepo) DeleteKnowledgeBase(ctx context.Context, id string) error {
	delete(r.kbs, id)
	return nil
}

func testIngestConfig(t *testing.T) *config.Config {
	return &config.Config{
		UploadDir:         t.TempDir(),
		AllowedExtensions: []string{"pdf", "doc", "docx", "txt"},
		RAG: config.RAGConfig{
			ChunkSize:     500,
			ChunkOverlap:  50,
			MinTextLength: 10,
		},
	}
}

func newTestIngestService(t *testing.T, extractor TextExtractor, store *recordingVectorStore, docs *fakeDocumentRepo, kbs *fakeKnowledgeBaseRepo) *IngestService {
	return NewIngestService(testIngestConfig(t), extractor, NewChunkService(), store, docs, kbs)
}

func testKB() *types.KnowledgeBase {
	return &types.KnowledgeBase{ID: "kb_1", Name: "Manuals", Code: "manuals"}
}

func TestIngestDocumentSuccess(t *testing.T) {
	store := newRecordingVectorStore()
	docs := newFakeDocumentRepo()
	kbs := newFakeKnowledgeBaseRepo(testKB())
	extractor := &stubExtractor{text: "第一段内容。\n第二段内容。"}
	s := newTestIngestService(t, extractor, store, docs, kbs)

	result, err := s.IngestDocument(context.Background(), "kb_1", types.FileUpload{
		Name:       "manual.txt",
		Data:       []byte("raw bytes"),
		UploadedBy: "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, "manual.txt", result.Name)
	assert.Equal(t, int64(9), result.FileSize)
	assert.Equal(t, result.ChunkCount, len(store.added))
	assert.True(t, store.classes["kb_1"])

	doc, err := docs.GetDocument(context.Background(), result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, types.DOCUMENT_STATUS_COMPLETED, doc.Status)
	assert.Equal(t, result.ChunkCount, doc.ChunkCount)
	assert.Equal(t, "kb_1", doc.KnowledgeBaseID)
	assert.Equal(t, "alice", doc.UploadedBy)
	assert.FileExists(t, doc.FilePath)
}

func TestIngestDocumentRejectsUnsupportedExtension(t *testing.T) {
	s := newTestIngestService(t, &stubExtractor{}, newRecordingVectorStore(), newFakeDocumentRepo(), newFakeKnowledgeBaseRepo(testKB()))

	_, err := s.IngestDocument(context.Background(), "kb_1", types.FileUpload{Name: "virus.exe"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)

	var ingestErr *types.IngestionError
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, "virus.exe", ingestErr.File)
}

func TestIngestDocumentUnknownKnowledgeBase(t *testing.T) {
	s := newTestIngestService(t, &stubExtractor{}, newRecordingVectorStore(), newFakeDocumentRepo(), newFakeKnowledgeBaseRepo())

	_, err := s.IngestDocument(context.Background(), "kb_missing", types.FileUpload{Name: "manual.txt"})
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestIngestDocumentTextLengthBoundary(t *testing.T) {
	store := newRecordingVectorStore()
	kbs := newFakeKnowledgeBaseRepo(testKB())

	// 9 characters: one short of the minimum.
	short := &stubExtractor{text: strings.Repeat("字", 9)}
	s := newTestIngestService(t, short, store, newFakeDocumentRepo(), kbs)
	_, err := s.IngestDocument(context.Background(), "kb_1", types.FileUpload{Name: "short.txt"})
	assert.ErrorIs(t, err, types.ErrExtractionFailed)

	// 10 characters: exactly the minimum passes.
	enough := &stubExtractor{text: strings.Repeat("字", 10)}
	s = newTestIngestService(t, enough, store, newFakeDocumentRepo(), kbs)
	result, err := s.IngestDocument(context.Background(), "kb_1", types.FileUpload{Name: "enough.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunkCount)
}

func TestIngestDocumentExtractionFailureCleansUp(t *testing.T) {
	store := newRecordingVectorStore()
	docs := newFakeDocumentRepo()
	extractor := &stubExtractor{err: fmt.Errorf("%w: broken file", types.ErrExtractionFailed)}
	s := newTestIngestService(t, extractor, store, docs, newFakeKnowledgeBaseRepo(testKB()))

	_, err := s.IngestDocument(context.Background(), "kb_1", types.FileUpload{Name: "bad.pdf", Data: []byte("x")})
	require.Error(t, err)
	assert.Empty(t, store.added)
	assert.Empty(t, docs.docs)
}

func TestIngestDocumentVectorStoreFailureRollsBack(t *testing.T) {
	store := newRecordingVectorStore()
	store.addErr = errors.New("batch rejected")
	docs := newFakeDocumentRepo()
	s := newTestIngestService(t, &stubExtractor{text: "足够长的文本内容用于测试。"}, store, docs, newFakeKnowledgeBaseRepo(testKB()))

	_, err := s.IngestDocument(context.Background(), "kb_1", types.FileUpload{Name: "doc.txt", Data: []byte("x")})
	require.Error(t, err)
	// Rollback deletes the ids that were attempted.
	assert.NotEmpty(t, store.deletedIDs)
	assert.Empty(t, docs.docs)
}

func TestIngestDocumentUsesKnowledgeBaseOverrides(t *testing.T) {
	store := newRecordingVectorStore()
	kb := testKB()
	kb.ChunkSize = 20
	kb.ChunkOverlap = 5
	s := newTestIngestService(t, &stubExtractor{text: strings.Repeat("字", 50)}, store, newFakeDocumentRepo(), newFakeKnowledgeBaseRepo(kb))

	result, err := s.IngestDocument(context.Background(), "kb_1", types.FileUpload{Name: "doc.txt", Data: []byte("x")})
	require.NoError(t, err)
	assert.Greater(t, result.ChunkCount, 1)
	for _, chunk := range store.added {
		assert.LessOrEqual(t, len([]rune(chunk.Content)), 20)
	}
}

func TestIngestBatchPartialFailure(t *testing.T) {
	store := newRecordingVectorStore()
	docs := newFakeDocumentRepo()
	s := newTestIngestService(t, &stubExtractor{text: "足够长的文本内容用于测试。"}, store, docs, newFakeKnowledgeBaseRepo(testKB()))

	result := s.IngestBatch(context.Background(), "kb_1", []types.FileUpload{
		{Name: "good.txt", Data: []byte("x")},
		{Name: "bad.exe", Data: []byte("x")},
		{Name: "also_good.txt", Data: []byte("x")},
	})

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailCount)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "bad.exe", result.Failed[0].Name)
	assert.Contains(t, result.Failed[0].Reason, "unsupported file format")
	assert.Len(t, result.Uploaded, 2)
}

func TestDeleteDocumentRemovesChunksAndRecord(t *testing.T) {
	store := newRecordingVectorStore()
	docs := newFakeDocumentRepo()
	s := newTestIngestService(t, &stubExtractor{text: "第一段。\n第二段。\n第三段。"}, store, docs, newFakeKnowledgeBaseRepo(testKB()))

	result, err := s.IngestDocument(context.Background(), "kb_1", types.FileUpload{Name: "doc.txt", Data: []byte("x")})
	require.NoError(t, err)

	require.NoError(t, s.DeleteDocument(context.Background(), result.DocumentID))

	assert.Empty(t, docs.docs)
	require.Len(t, store.deletedIDs, result.ChunkCount)
	assert.Equal(t, fmt.Sprintf("%s_chunk_0", result.DocumentID), store.deletedIDs[0])
}

func TestDeleteDocumentUnknownIsNoop(t *testing.T) {
	s := newTestIngestService(t, &stubExtractor{}, newRecordingVectorStore(), newFakeDocumentRepo(), newFakeKnowledgeBaseRepo())

	assert.NoError(t, s.DeleteDocument(context.Background(), "doc_missing"))
}

func TestDeleteDocumentSurvivesVectorStoreFailure(t *testing.T) {
	store := newRecordingVectorStore()
	docs := newFakeDocumentRepo()
	s := newTestIngestService(t, &stubExtractor{text: "第一段。\n第二段。"}, store, docs, newFakeKnowledgeBaseRepo(testKB()))

	result, err := s.IngestDocument(context.Background(), "kb_1", types.FileUpload{Name: "doc.txt", Data: []byte("x")})
	require.NoError(t, err)

	store.deleteErr = errors.New("weaviate down")
	require.NoError(t, s.DeleteDocument(context.Background(), result.DocumentID))
	assert.Empty(t, docs.docs)
}

func TestDeleteKnowledgeBaseCascades(t *testing.T) {
	store := newRecordingVectorStore()
	docs := newFakeDocumentRepo()
	kbs := newFakeKnowledgeBaseRepo(testKB())
	s := newTestIngestService(t, &stubExtractor{text: "足够长的文本内容用于测试。"}, store, docs, kbs)

	_, err := s.IngestDocument(context.Background(), "kb_1", types.FileUpload{Name: "a.txt", Data: []byte("x")})
	require.NoError(t, err)
	_, err = s.IngestDocument(context.Background(), "kb_1", types.FileUpload{Name: "b.txt", Data: []byte("x")})
	require.NoError(t, err)

	require.NoError(t, s.DeleteKnowledgeBase(context.Background(), "kb_1"))

	assert.Empty(t, docs.docs)
	assert.Empty(t, kbs.kbs)
	assert.False(t, store.classes["kb_1"])
}

func TestDeleteKnowledgeBaseUnknownIsNoop(t *testing.T) {
	s := newTestIngestService(t, &stubExtractor{}, newRecordingVectorStore(), newFakeDocumentRepo(), newFakeKnowledgeBaseRepo())

	assert.NoError(t, s.DeleteKnowledgeBase(context.Background(), "kb_missing"))
}
