package vectorindex

import "context"

// Reranker reorders a candidate pool using a cross-encoder or similar
// model. Its internals are out of scope here (spec Non-goals); this
// package only defines the seam a caller can plug one into.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []SearchResult) ([]SearchResult, error)
}

// NoopReranker returns results unchanged. It is the default collaborator
// when no external reranker is configured.
type NoopReranker struct{}

func (NoopReranker) Rerank(_ context.Context, _ string, results []SearchResult) ([]SearchResult, error) {
	return results, nil
}
