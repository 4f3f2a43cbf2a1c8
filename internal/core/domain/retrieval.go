package domain

// PassageMetadata is stored next to every indexed vector.
type PassageMetadata struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkText  string `json:"chunk_text"`
}

// IndexEntry is one (vector, passage, metadata) triple handed to a VectorIndex.
type IndexEntry struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata PassageMetadata
}

// IndexHit is one nearest-neighbour result. Distance is in [0,1] for
// normalized cosine, lower is closer.
type IndexHit struct {
	ID       string
	Text     string
	Metadata PassageMetadata
	Distance float64
}

type Evidence struct {
	PassageID  string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Filename   string  `json:"filename"`
	Text       string  `json:"chunk_text"`
	Similarity float64 `json:"similarity"`
}

type AnswerResult struct {
	Query          string     `json:"query"`
	Answer         string     `json:"response"`
	Sources        []Evidence `json:"sources"`
	ResponseTimeMS int64      `json:"response_time"`
	SearchID       *int64     `json:"search_id,omitempty"`
	Error          bool       `json:"error,omitempty"`
}

// CompletionRequest is the input of a generative model call.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}
