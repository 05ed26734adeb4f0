package service

import (
	"context"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/convoflow-ai/convoflow/internal/domain"
	"github.com/convoflow-ai/convoflow/internal/telemetry"
)

const (
	// DefaultSearchLimit caps results when the caller does not set one.
	DefaultSearchLimit = 5

	// minLexicalTermLen drops short tokens that match everything.
	minLexicalTermLen = 3
)

// VectorSearcher runs nearest-neighbor queries over the vector index.
type VectorSearcher interface {
	SearchDocumentChunks(ctx context.Context, embedding []float32, botID int64, limit int) ([]*domain.SearchResult, error)
	SearchConversationTurns(ctx context.Context, embedding []float32, botID int64, limit int) ([]*domain.ConversationHit, error)
}

// LexicalDocumentSource lists the indexed documents a bot can fall back to.
type LexicalDocumentSource interface {
	ListIndexedByBot(ctx context.Context, botID int64) ([]*domain.Document, error)
}

// RetrieverService answers document and conversation-memory queries. The
// primary path embeds the query and searches the vector index; when no
// embedding client is configured, the vector query fails, or it returns
// nothing, the service degrades to a lexical term-count scan over the bot's
// indexed documents rather than surfacing an error.
type RetrieverService struct {
	embedding EmbeddingClient
	vectors   VectorSearcher
	docs      LexicalDocumentSource
}

// NewRetrieverService creates a new RetrieverService instance. embedding may
// be nil, in which case every search takes the lexical path.
func NewRetrieverService(embedding EmbeddingClient, vectors VectorSearcher, docs LexicalDocumentSource) *RetrieverService {
	return &RetrieverService{
		embedding: embedding,
		vectors:   vectors,
		docs:      docs,
	}
}

// SearchInput represents a document retrieval request
type SearchInput struct {
	BotID int64
	Query string
	Limit int
}

// SearchOutput represents an ordered document retrieval result set
type SearchOutput struct {
	Results      []*domain.SearchResult
	TotalResults int
	SearchMethod domain.SearchMethod
}

// Search retrieves the best-matching document excerpts for a query, highest
// score first.
func (s *RetrieverService) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrieverService.Search", telemetry.SpanAttributes{
		BotID:     input.BotID,
		Operation: "search",
	})
	defer span.End()

	query := strings.TrimSpace(input.Query)
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	if query == "" {
		return &SearchOutput{Results: []*domain.SearchResult{}, SearchMethod: domain.SearchMethodLexical}, nil
	}

	if s.embedding != nil {
		results, err := s.vectorSearch(ctx, query, input.BotID, limit)
		if err != nil {
			log.Printf("Vector search failed for bot %d, falling back to lexical: %v", input.BotID, err)
			telemetry.CaptureError(ctx, err)
		} else if len(results) > 0 {
			return &SearchOutput{
				Results:      results,
				TotalResults: len(results),
				SearchMethod: domain.SearchMethodVector,
			}, nil
		}
	}

	results, err := s.lexicalSearch(ctx, query, input.BotID, limit)
	if err != nil {
		return nil, err
	}
	return &SearchOutput{
		Results:      results,
		TotalResults: len(results),
		SearchMethod: domain.SearchMethodLexical,
	}, nil
}

// RecallConversation retrieves prior conversation turns relevant to a query.
// Conversation memory has no lexical fallback; without an embedding client it
// simply recalls nothing.
func (s *RetrieverService) RecallConversation(ctx context.Context, botID int64, query string, limit int) ([]*domain.ConversationHit, error) {
	if s.embedding == nil || strings.TrimSpace(query) == "" {
		return []*domain.ConversationHit{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	embedding, err := s.embedding.GenerateEmbedding(ctx, query)
	if err != nil {
		log.Printf("Conversation recall embedding failed for bot %d: %v", botID, err)
		return []*domain.ConversationHit{}, nil
	}

	hits, err := s.vectors.SearchConversationTurns(ctx, embedding, botID, limit)
	if err != nil {
		log.Printf("Conversation recall query failed for bot %d: %v", botID, err)
		return []*domain.ConversationHit{}, nil
	}
	return hits, nil
}

func (s *RetrieverService) vectorSearch(ctx context.Context, query string, botID int64, limit int) ([]*domain.SearchResult, error) {
	embedding, err := s.embedding.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.vectors.SearchDocumentChunks(ctx, embedding, botID, limit)
}

// lexicalSearch scores each indexed document by counting query-term
// occurrences and surfaces the best-scoring sentence as the excerpt. Scores
// are normalized against the top document so the strongest match reads as a
// full-confidence hit.
func (s *RetrieverService) lexicalSearch(ctx context.Context, query string, botID int64, limit int) ([]*domain.SearchResult, error) {
	terms := lexicalTerms(query)
	if len(terms) == 0 {
		return []*domain.SearchResult{}, nil
	}

	docs, err := s.docs.ListIndexedByBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	type scoredDoc struct {
		doc     *domain.Document
		matches int
	}

	var scored []scoredDoc
	for _, doc := range docs {
		matches := countTermMatches(doc.Content, terms)
		if matches == 0 {
			continue
		}
		scored = append(scored, scoredDoc{doc: doc, matches: matches})
	}
	if len(scored) == 0 {
		return []*domain.SearchResult{}, nil
	}

	// Stable: documents with equal term counts keep retrieval order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].matches > scored[j].matches
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	maxMatches := scored[0].matches
	results := make([]*domain.SearchResult, 0, len(scored))
	for _, sd := range scored {
		score := float32(sd.matches) / float32(maxMatches)
		results = append(results, &domain.SearchResult{
			ID:          strconv.FormatInt(sd.doc.ID, 10),
			Score:       score,
			DocumentID:  sd.doc.ID,
			Title:       sd.doc.Title,
			Content:     bestSentence(sd.doc.Content, terms),
			ChunkIndex:  0,
			TotalChunks: 1,
			Relevance:   domain.RelevanceForScore(score),
		})
	}
	return results, nil
}

// lexicalTerms tokenizes a query on whitespace, lowercases, and discards
// terms shorter than three characters.
func lexicalTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= minLexicalTermLen {
			terms = append(terms, f)
		}
	}
	return terms
}

func countTermMatches(content string, terms []string) int {
	lower := strings.ToLower(content)
	total := 0
	for _, term := range terms {
		total += strings.Count(lower, term)
	}
	return total
}

// bestSentence returns the single sentence containing the most query terms,
// or the leading portion of the content when no sentence matches.
func bestSentence(content string, terms []string) string {
	sentences := splitSentences(content)

	best := ""
	bestScore := 0
	for _, sentence := range sentences {
		score := countTermMatches(sentence, terms)
		if score > bestScore {
			best = sentence
			bestScore = score
		}
	}
	if best != "" {
		return strings.TrimSpace(best)
	}
	if len(sentences) > 0 {
		return strings.TrimSpace(sentences[0])
	}
	return strings.TrimSpace(content)
}

func splitSentences(content string) []string {
	var sentences []string
	start := 0
	runes := []rune(content)
	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			segment := string(runes[start : i+1])
			if strings.TrimSpace(segment) != "" {
				sentences = append(sentences, segment)
			}
			start = i + 1
		}
	}
	if start < len(runes) {
		segment := string(runes[start:])
		if strings.TrimSpace(segment) != "" {
			sentences = append(sentences, segment)
		}
	}
	return sentences
}
