package domain

// Embedding defaults used when the vectorizer config leaves them unset.
const (
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultEmbeddingDim   = 1536
)
