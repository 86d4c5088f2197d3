package retrieval

import (
	"context"
	"fmt"

	"admission-chatbot-be/internal/repository/contract"
	"admission-chatbot-be/pkg/embedding"
	"admission-chatbot-be/pkg/graph"
	"admission-chatbot-be/pkg/store"
)

// Searcher is one retrieval backend. Implementations score each fragment in
// [0, 1]; the orchestrator takes the best fragment score as the step score.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]store.Fragment, error)
}

// VectorSearcher retrieves document chunks by embedding similarity.
type VectorSearcher struct {
	embedder  embedding.EmbeddingProvider
	chunkRepo contract.DocumentChunkRepository
	threshold float64
}

func NewVectorSearcher(embedder embedding.EmbeddingProvider, chunkRepo contract.DocumentChunkRepository, threshold float64) *VectorSearcher {
	return &VectorSearcher{
		embedder:  embedder,
		chunkRepo: chunkRepo,
		threshold: threshold,
	}
}

func (s *VectorSearcher) Search(ctx context.Context, query string, limit int) ([]store.Fragment, error) {
	resp, err := s.embedder.Generate(ctx, query, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scored, err := s.chunkRepo.SearchSimilarWithScore(ctx, resp.Embedding.Values, limit, s.threshold)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	fragments := make([]store.Fragment, 0, len(scored))
	for _, sc := range scored {
		fragments = append(fragments, store.Fragment{
			ID:      sc.Chunk.Id.String(),
			Title:   sc.Chunk.Title,
			Content: sc.Chunk.Content,
			Score:   sc.Similarity,
			Source:  "vector",
		})
	}
	return fragments, nil
}

// GraphSearcher retrieves related entities from the knowledge graph. Used as
// a secondary backend for enrichment steps on complex questions.
type GraphSearcher struct {
	client *graph.Client
}

func NewGraphSearcher(client *graph.Client) *GraphSearcher {
	return &GraphSearcher{client: client}
}

func (s *GraphSearcher) Search(ctx context.Context, query string, limit int) ([]store.Fragment, error) {
	return s.client.TraverseRelated(ctx, query, limit)
}

// CompositeSearcher queries every backend and merges results. A backend
// error is tolerated as long as at least one backend answered.
type CompositeSearcher struct {
	backends []Searcher
}

func NewCompositeSearcher(backends ...Searcher) *CompositeSearcher {
	return &CompositeSearcher{backends: backends}
}

func (s *CompositeSearcher) Search(ctx context.Context, query string, limit int) ([]store.Fragment, error) {
	var merged []store.Fragment
	var lastErr error
	answered := false

	for _, backend := range s.backends {
		fragments, err := backend.Search(ctx, query, limit)
		if err != nil {
			lastErr = err
			continue
		}
		answered = true
		merged = append(merged, fragments...)
	}

	if !answered && lastErr != nil {
		return nil, lastErr
	}
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}
