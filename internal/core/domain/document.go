package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	SizeBytes   int64          `json:"size_bytes"`
	UploadedBy  string         `json:"uploaded_by"`
	Processed   bool           `json:"processed"`
	ChunkCount  int            `json:"chunk_count"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ProcessResult reports the outcome of one ingestion run.
type ProcessResult struct {
	DocumentID       string `json:"document_id"`
	ChunkCount       int    `json:"chunk_count"`
	AlreadyProcessed bool   `json:"already_processed"`
}

// SampleDocument is a built-in demo document indexed as a single passage.
type SampleDocument struct {
	Title   string `yaml:"title" json:"title"`
	Content string `yaml:"content" json:"content"`
}
