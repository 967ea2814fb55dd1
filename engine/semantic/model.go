package semantic

import "github.com/CrisisMapAI/crisismap-mvp/engine/domain"

// SearchResult is a single vector search hit with its decoded event.
type SearchResult struct {
	ID    string             `json:"id"`
	Score float32            `json:"score"`
	Event domain.CrisisEvent `json:"event"`
}

// VectorRecord is a single embedded event ready for storage.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Event     domain.CrisisEvent
}
