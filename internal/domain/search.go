package domain

// Relevance is a coarse bucket derived from a similarity score.
type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceMedium Relevance = "medium"
	RelevanceLow    Relevance = "low"
)

// Bucket thresholds for similarity scores in [0,1].
const (
	relevanceHighThreshold   = 0.8
	relevanceMediumThreshold = 0.6
)

// RelevanceForScore buckets a [0,1] similarity score.
func RelevanceForScore(score float32) Relevance {
	switch {
	case score >= relevanceHighThreshold:
		return RelevanceHigh
	case score >= relevanceMediumThreshold:
		return RelevanceMedium
	default:
		return RelevanceLow
	}
}

// SearchMethod identifies which retrieval path produced a result set.
type SearchMethod string

const (
	SearchMethodVector  SearchMethod = "vector_search"
	SearchMethodLexical SearchMethod = "lexical_fallback"
)

// SearchResult represents a single document retrieval hit. For vector hits
// Content is the matched chunk; for lexical hits it is the best-scoring
// sentence of the document.
type SearchResult struct {
	ID          string
	Score       float32
	DocumentID  int64
	Title       string
	Content     string
	ChunkIndex  int
	TotalChunks int
	Relevance   Relevance
}

// ConversationHit represents a recalled prior conversation turn.
type ConversationHit struct {
	ID             string
	Score          float32
	ConversationID string
	Role           string
	Content        string
	Relevance      Relevance
}
