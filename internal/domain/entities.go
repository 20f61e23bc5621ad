package domain

// Document is a raw page produced by the crawler, loaded from disk.
type Document struct {
	ID       string
	Source   string
	Text     string
	Metadata map[string]string
}

// Chunk is a bounded text span cut from a document. IDs are derived from
// (DocID, StartOffset) so re-ingesting the same document yields the same IDs.
type Chunk struct {
	ID          string
	DocID       string
	Text        string
	StartOffset int
	Overlap     int
	Metadata    map[string]string
}

// IndexEntry is the unit persisted in the vector index.
type IndexEntry struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Payload is the data stored alongside a vector.
type Payload struct {
	Text     string            `json:"text"`
	Source   string            `json:"source"`
	DocID    string            `json:"doc_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ScoredEntry is an index entry with its similarity score.
type ScoredEntry struct {
	Entry IndexEntry
	Score float64
}

// RetrievedChunk is a chunk returned by retrieval, ready for prompt assembly.
type RetrievedChunk struct {
	ID     string
	Text   string
	Source string
	Score  float64
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a chat session. Context records the chunks
// used to answer, for assistant messages only.
type Message struct {
	Role    string
	Content string
	Context []RetrievedChunk
}

// ChatSession holds the ordered message history for one conversation.
// Sessions live for the process lifetime; there is no persistence.
type ChatSession struct {
	ID       string
	Messages []Message
}

// IngestionReport summarizes an ingestion run.
type IngestionReport struct {
	DocumentsProcessed int
	ChunksWritten      int
	ChunksFailed       int
	FailedChunkIDs     []string
}
