package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tieubaoca/knowledge-base-be/config"
	"github.com/tieubaoca/knowledge-base-be/database"
	"github.com/tieubaoca/knowledge-base-be/repository"
	"github.com/tieubaoca/knowledge-base-be/types"
	"github.com/tieubaoca/knowledge-base-be/utils"
)

// TextExtractor extracts plain text from a stored upload.
type TextExtractor interface {
	ExtractText(filePath, fileType string) (string, error)
}

// IngestService owns the document lifecycle: accept uploads, extract and
// chunk their text, push embedded chunks into the vector store, and keep
// the MongoDB document records consistent with it.
type IngestService struct {
	uploadDir         string
	allowedExtensions map[string]bool
	minTextLength     int
	defaults          types.DocumentServiceConfig

	extractor      TextExtractor
	chunker        *ChunkService
	vectorDB       database.VectorStore
	documents      repository.DocumentRepo
	knowledgeBases repository.KnowledgeBaseRepo
}

func NewIngestService(
	cfg *config.Config,
	extractor TextExtractor,
	chunker *ChunkService,
	vectorDB database.VectorStore,
	documents repository.DocumentRepo,
	knowledgeBases repository.KnowledgeBaseRepo,
) *IngestService {
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[ext] = true
	}
	return &IngestService{
		uploadDir:         cfg.UploadDir,
		allowedExtensions: allowed,
		minTextLength:     cfg.RAG.MinTextLength,
		defaults: types.DocumentServiceConfig{
			ChunkSize:    cfg.RAG.ChunkSize,
			ChunkOverlap: cfg.RAG.ChunkOverlap,
		},
		extractor:      extractor,
		chunker:        chunker,
		vectorDB:       vectorDB,
		documents:      documents,
		knowledgeBases: knowledgeBases,
	}
}

// IngestDocument processes one upload into knowledge base kbID. On any
// failure the saved file and any chunks already written are cleaned up, so
// a failed ingest leaves no partial document behind.
func (s *IngestService) IngestDocument(ctx context.Context, kbID string, file types.FileUpload) (*types.IngestResult, error) {
	fileType := utils.FileType(file.Name)
	if !s.allowedExtensions[fileType] {
		return nil, &types.IngestionError{
			File: file.Name,
			Err:  fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, fileType),
		}
	}

	kb, err := s.knowledgeBases.GetKnowledgeBase(ctx, kbID)
	if err != nil {
		return nil, &types.IngestionError{File: file.Name, Err: fmt.Errorf("knowledge base %s: %w", kbID, err)}
	}

	filePath, err := utils.SaveUpload(file.Data, file.Name, s.uploadDir)
	if err != nil {
		return nil, &types.IngestionError{File: file.Name, Err: err}
	}

	text, err := s.extractor.ExtractText(filePath, fileType)
	if err != nil {
		s.cleanupFile(filePath)
		return nil, &types.IngestionError{File: file.Name, Err: err}
	}
	if n := utf8.RuneCountInString(text); n < s.minTextLength {
		s.cleanupFile(filePath)
		return nil, &types.IngestionError{
			File: file.Name,
			Err:  fmt.Errorf("%w: extracted text too short (%d chars)", types.ErrExtractionFailed, n),
		}
	}

	chunkSize := s.defaults.ChunkSize
	if kb.ChunkSize > 0 {
		chunkSize = kb.ChunkSize
	}
	chunkOverlap := s.defaults.ChunkOverlap
	if kb.ChunkOverlap > 0 {
		chunkOverlap = kb.ChunkOverlap
	}

	docID := utils.GenerateID("doc")
	chunks, err := s.chunker.ChunkWithMetadata(text, docID, file.Name, kbID, chunkSize, chunkOverlap)
	if err != nil {
		s.cleanupFile(filePath)
		return nil, &types.IngestionError{File: file.Name, Err: err}
	}
	if len(chunks) == 0 {
		s.cleanupFile(filePath)
		return nil, &types.IngestionError{
			File: file.Name,
			Err:  fmt.Errorf("%w: no chunks produced", types.ErrExtractionFailed),
		}
	}

	if err := s.vectorDB.EnsureCollection(ctx, kbID, kb.Name); err != nil {
		s.cleanupFile(filePath)
		return nil, &types.IngestionError{File: file.Name, Err: err}
	}
	if err := s.vectorDB.AddChunks(ctx, kbID, chunks); err != nil {
		// Roll back whatever subset of the batch made it in.
		ids := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			ids = append(ids, chunk.ID)
		}
		if delErr := s.vectorDB.DeleteChunks(ctx, kbID, ids); delErr != nil {
			log.Printf("Warning: failed to roll back chunks for %s: %v", file.Name, delErr)
		}
		s.cleanupFile(filePath)
		return nil, &types.IngestionError{File: file.Name, Err: err}
	}

	document := &types.Document{
		ID:              docID,
		KnowledgeBaseID: kbID,
		Name:            file.Name,
		FileName:        file.Name,
		FilePath:        filePath,
		FileSize:        int64(len(file.Data)),
		FileType:        fileType,
		ChunkCount:      len(chunks),
		Status:          types.DOCUMENT_STATUS_COMPLETED,
		UploadedBy:      file.UploadedBy,
		UploadedAt:      time.Now().Unix(),
	}
	if err := s.documents.CreateDocument(ctx, document); err != nil {
		ids := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			ids = append(ids, chunk.ID)
		}
		if delErr := s.vectorDB.DeleteChunks(ctx, kbID, ids); delErr != nil {
			log.Printf("Warning: failed to roll back chunks for %s: %v", file.Name, delErr)
		}
		s.cleanupFile(filePath)
		return nil, &types.IngestionError{File: file.Name, Err: err}
	}

	return &types.IngestResult{
		DocumentID: docID,
		Name:       file.Name,
		ChunkCount: len(chunks),
		FileSize:   int64(len(file.Data)),
	}, nil
}

// IngestBatch processes uploads sequentially. One bad file never aborts
// the batch; its failure is recorded and the rest continue.
func (s *IngestService) IngestBatch(ctx context.Context, kbID string, files []types.FileUpload) *types.BatchIngestResult {
	result := &types.BatchIngestResult{
		Uploaded: []types.IngestResult{},
		Failed:   []types.FailedUpload{},
	}
	for _, file := range files {
		uploaded, err := s.IngestDocument(ctx, kbID, file)
		if err != nil {
			result.Failed = append(result.Failed, types.FailedUpload{Name: file.Name, Reason: err.Error()})
			result.FailCount++
			continue
		}
		result.Uploaded = append(result.Uploaded, *uploaded)
		result.SuccessCount++
	}
	return result
}

// DeleteDocument removes a document's chunks, stored file, and record.
// Deleting an unknown document is a no-op; partial vector-store failures
// are logged and the record is still removed so retries stay idempotent.
func (s *IngestService) DeleteDocument(ctx context.Context, documentID string) error {
	document, err := s.documents.GetDocument(ctx, documentID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return err
	}

	chunkIDs := make([]string, 0, document.ChunkCount)
	for i := 0; i < document.ChunkCount; i++ {
		chunkIDs = append(chunkIDs, fmt.Sprintf("%s_chunk_%d", document.ID, i))
	}
	if err := s.vectorDB.DeleteChunks(ctx, document.KnowledgeBaseID, chunkIDs); err != nil {
		log.Printf("Warning: failed to delete chunks of document %s: %v", document.ID, err)
	}

	s.cleanupFile(document.FilePath)
	return s.documents.DeleteDocument(ctx, documentID)
}

// DeleteKnowledgeBase drops the knowledge base's vector collection, every
// stored file, all document records, and finally the knowledge base itself.
func (s *IngestService) DeleteKnowledgeBase(ctx context.Context, kbID string) error {
	_, err := s.knowledgeBases.GetKnowledgeBase(ctx, kbID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.vectorDB.DeleteCollection(ctx, kbID); err != nil {
		log.Printf("Warning: failed to delete vector collection for %s: %v", kbID, err)
	}

	documents, err := s.documents.ListDocumentsByKnowledgeBase(ctx, kbID)
	if err != nil {
		return err
	}
	for _, document := range documents {
		s.cleanupFile(document.FilePath)
	}
	if err := s.documents.DeleteDocumentsByKnowledgeBase(ctx, kbID); err != nil {
		return err
	}
	return s.knowledgeBases.DeleteKnowledgeBase(ctx, kbID)
}

func (s *IngestService) cleanupFile(filePath string) {
	if err := utils.RemoveFileIfExists(filePath); err != nil {
		log.Printf("Warning: failed to remove file %s: %v", filePath, err)
	}
}
