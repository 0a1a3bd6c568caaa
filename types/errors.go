package types

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Callers branch with errors.Is/errors.As; the
// ingestion pipeline wraps them per file in IngestionError.
var (
	ErrUnsupportedFormat    = errors.New("unsupported file format")
	ErrEncodingUndetected   = errors.New("unable to detect text encoding")
	ErrExtractionFailed     = errors.New("text extraction failed")
	ErrInvalidChunkConfig   = errors.New("chunk overlap must be smaller than chunk size")
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	ErrEmbeddingTimeout     = errors.New("embedding request timed out")
	ErrVectorStore          = errors.New("vector store operation failed")
	ErrGenerationFailed     = errors.New("answer generation failed")
)

// EmbeddingServiceError reports a non-2xx response from the embedding
// endpoint.
type EmbeddingServiceError struct {
	Status int
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service returned status %d", e.Status)
}

// IngestionError wraps a pipeline failure with the file it affected.
type IngestionError struct {
	File string
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("failed to ingest %s: %v", e.File, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
