package model

// Document is the ephemeral ingestion input. It is never persisted as a
// whole; only its chunks reach the datastore.
type Document struct {
	Text     string            `json:"text"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Chunk is a bounded contiguous token span of a source document. Immutable
// once produced by the chunker. SequenceID is 0-based within a source.
type Chunk struct {
	Text       string `json:"text"`
	Source     string `json:"source"`
	SequenceID int    `json:"sequence_id"`
	TokenCount int    `json:"token_count"`
	// HardSplit flags a piece of a single sentence that exceeded the chunk
	// token target and had to be cut at token boundaries.
	HardSplit bool `json:"hard_split,omitempty"`
}

// EmbeddedChunk pairs a chunk with its embedding vector. The pairing is
// positional and must survive batching.
type EmbeddedChunk struct {
	Chunk
	Vector []float32 `json:"-"`
}

// RetrievedHit is a read-only projection of an indexed chunk returned by
// hybrid search. Score is the fused lexical+vector relevance score and is
// not bounded to [0,1].
type RetrievedHit struct {
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	SequenceID int     `json:"sequence_id"`
	TokenCount int     `json:"token_count"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
}

type CollectionStats struct {
	ObjectCount     int64 `json:"object_count"`
	ApproxSizeBytes int64 `json:"approx_size_bytes"`
}
