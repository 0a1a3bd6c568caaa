package types

const (
	DOCUMENT_STATUS_PROCESSING = "processing"
	DOCUMENT_STATUS_COMPLETED  = "completed"
	DOCUMENT_STATUS_FAILED     = "failed"
)

const (
	KB_VISIBLE_ALL        = "all"
	KB_VISIBLE_AUTHORIZED = "authorized"
	KB_VISIBLE_PRIVATE    = "private"
)

// Document is the durable record of an ingested file. It only reaches the
// store with status "completed"; a failed ingestion leaves no record behind.
type Document struct {
	ID              string `json:"id" bson:"_id"`
	KnowledgeBaseID string `json:"knowledge_base_id" bson:"knowledge_base_id"`
	Name            string `json:"name" bson:"name"`
	FileName        string `json:"file_name" bson:"file_name"`
	FilePath        string `json:"file_path" bson:"file_path"`
	FileSize        int64  `json:"file_size" bson:"file_size"`
	FileType        string `json:"file_type" bson:"file_type"`
	ChunkCount      int    `json:"chunk_count" bson:"chunk_count"`
	Status          string `json:"status" bson:"status"`
	ErrorMessage    string `json:"error_message,omitempty" bson:"error_message,omitempty"`
	UploadedBy      string `json:"uploaded_by" bson:"uploaded_by"`
	UploadedAt      int64  `json:"uploaded_at" bson:"uploaded_at"`
}

// KnowledgeBase owns documents and one vector collection named after its id.
// Zero-valued overrides mean "use the global default from config".
type KnowledgeBase struct {
	ID                  string  `json:"id" bson:"_id"`
	Name                string  `json:"name" bson:"name"`
	Code                string  `json:"code" bson:"code"`
	Description         string  `json:"description" bson:"description"`
	Visible             string  `json:"visible" bson:"visible"`
	Status              string  `json:"status" bson:"status"`
	ChunkSize           int     `json:"chunk_size" bson:"chunk_size"`
	ChunkOverlap        int     `json:"chunk_overlap" bson:"chunk_overlap"`
	SimilarityThreshold float64 `json:"similarity_threshold" bson:"similarity_threshold"`
	TopK                int     `json:"top_k" bson:"top_k"`
	CreatedBy           string  `json:"created_by" bson:"created_by"`
	CreatedAt           int64   `json:"created_at" bson:"created_at"`
	UpdatedAt           int64   `json:"updated_at" bson:"updated_at"`
}

// ChunkMetadata travels with every chunk into the vector store and comes
// back on retrieval; references are built from it.
type ChunkMetadata struct {
	DocumentID      string `json:"document_id"`
	DocumentName    string `json:"document_name"`
	KnowledgeBaseID string `json:"kb_id"`
	ChunkIndex      int    `json:"chunk_index"`
	ChunkTotal      int    `json:"chunk_total"`
	Source          string `json:"source"`
}

// Chunk is one bounded slice of a document's extracted text, identified as
// {documentId}_chunk_{index}. That id format is a durable vector-store
// contract: document deletion recomputes the ids from the chunk count.
type Chunk struct {
	ID       string        `json:"id"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// SearchResult is a retrieved chunk with its transformed similarity score.
type SearchResult struct {
	ID         string        `json:"id"`
	Content    string        `json:"content"`
	Metadata   ChunkMetadata `json:"metadata"`
	Similarity float64       `json:"similarity"`
}
