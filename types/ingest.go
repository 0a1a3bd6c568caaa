package types

// FileUpload is the raw input handed to the ingestion pipeline by the
// surrounding collaborator (CLI command, web layer, ...).
type FileUpload struct {
	Name       string `json:"name"`
	Data       []byte `json:"-"`
	UploadedBy string `json:"uploaded_by,omitempty"`
}

// IngestResult reports one successfully ingested file.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	ChunkCount int    `json:"chunk_count"`
	FileSize   int64  `json:"file_size"`
}

// FailedUpload records why a single file of a batch was rejected.
type FailedUpload struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// BatchIngestResult accumulates per-file outcomes: one file failing never
// aborts its siblings.
type BatchIngestResult struct {
	Uploaded     []IngestResult `json:"uploaded"`
	Failed       []FailedUpload `json:"failed"`
	SuccessCount int            `json:"success_count"`
	FailCount    int            `json:"fail_count"`
}

// DocumentServiceConfig carries the chunking knobs for one ingestion run.
type DocumentServiceConfig struct {
	ChunkSize    int
	ChunkOverlap int
}
