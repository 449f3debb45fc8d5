package vectorindex

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/nimbusdocs/ingestcore/internal/ingesterr"
)

// SearchRequest describes one similarity query against a workspace
// namespace.
type SearchRequest struct {
	Namespace          string
	QueryVector        []float32
	TopK               int
	Metric             DistanceMetric
	Threshold          float64 // min similarity/dot, or max l2 distance; 0 disables filtering
	ExcludeIdentifiers []string // source document ids (docId metadata) to drop from results
}

// searchPool returns min(2*topK, 200), the backend-overflow cap shared by
// the similarity/distance/dot query modes.
func searchPool(topK int) int {
	pool := 2 * topK
	if pool <= 0 || pool > poolCap {
		pool = poolCap
	}
	return pool
}

// Search runs req against idx, pulling a bounded candidate pool from the
// backend and then applying metric-specific filtering, exclusion and
// truncation — the part chromem-go's opaque KNN search does not do for
// us.
func (idx *Index) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	ns := normalizeNamespace(req.Namespace)
	idx.mu.Lock()
	col, ok := idx.cols[ns]
	dim := idx.dims[ns]
	idx.mu.Unlock()
	if !ok {
		return nil, nil
	}
	if dim > 0 && len(req.QueryVector) != dim {
		return nil, fmt.Errorf("vectorindex: namespace %s expects dimension %d, query vector has %d: %w", ns, dim, len(req.QueryVector), ingesterr.ErrDimensionMismatch)
	}

	pool := searchPool(req.TopK)
	if n := col.Count(); pool > n {
		pool = n
	}
	if pool == 0 {
		return nil, nil
	}

	raw, err := col.QueryEmbedding(ctx, req.QueryVector, pool, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query namespace %s: %w", ns, err)
	}

	excluded := make(map[string]struct{}, len(req.ExcludeIdentifiers))
	for _, id := range req.ExcludeIdentifiers {
		excluded[id] = struct{}{}
	}

	metric := req.Metric
	if metric == "" {
		metric = MetricCosine
	}

	results := make([]SearchResult, 0, len(raw))
	for _, r := range raw {
		if _, skip := excluded[r.Metadata["docId"]]; skip {
			continue
		}
		score := scoreFor(metric, float64(r.Similarity))
		if math.IsNaN(score) {
			log.Printf("vectorindex: namespace=%s id=%s produced NaN %s score, dropping", ns, r.ID, metric)
			continue
		}
		if !passesThreshold(metric, score, req.Threshold) {
			continue
		}
		results = append(results, SearchResult{
			ID:       r.ID,
			DocID:    r.Metadata["docId"],
			Text:     r.Content,
			Score:    score,
			Metadata: r.Metadata,
		})
	}

	sortByMetric(metric, results)

	if req.TopK > 0 && len(results) > req.TopK {
		results = results[:req.TopK]
	}

	logFirstResultDiagnostics(ns, metric, results)
	return results, nil
}

// scoreFor converts chromem-go's cosine similarity into the requested
// metric. Every vector entering this index is unit-L2-normalized by the
// embedder gateway, so for unit vectors a and b: dot(a,b) == cos(a,b),
// and ||a-b||^2 == 2 - 2*cos(a,b). clamp guards against float drift
// pushing cosine fractionally outside [-1, 1].
func scoreFor(metric DistanceMetric, cosine float64) float64 {
	cosine = clamp(cosine, -1, 1)
	switch metric {
	case MetricDot:
		return cosine
	case MetricL2:
		sq := 2 - 2*cosine
		if sq < 0 {
			sq = 0
		}
		return math.Sqrt(sq)
	default:
		return cosine
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func passesThreshold(metric DistanceMetric, score, threshold float64) bool {
	if threshold == 0 {
		return true
	}
	if metric == MetricL2 {
		return score <= threshold
	}
	return score >= threshold
}

func sortByMetric(metric DistanceMetric, results []SearchResult) {
	if metric == MetricL2 {
		sort.SliceStable(results, func(i, j int) bool { return results[i].Score < results[j].Score })
		return
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
}

// qualitativeBucket buckets a cosine similarity value for log scanning.
func qualitativeBucket(cosine float64) string {
	switch {
	case cosine >= 0.9:
		return "excellent"
	case cosine >= 0.75:
		return "good"
	case cosine >= 0.5:
		return "moderate"
	case cosine >= 0.1:
		return "low"
	case cosine >= -0.1:
		return "orthogonal"
	default:
		return "opposite"
	}
}

func logFirstResultDiagnostics(namespace string, metric DistanceMetric, results []SearchResult) {
	if len(results) == 0 {
		log.Printf("vectorindex: namespace=%s metric=%s results=0", namespace, metric)
		return
	}
	top := results[0]
	cosine := top.Score
	switch metric {
	case MetricL2:
		cosine = 1 - (top.Score*top.Score)/2
	case MetricDot:
		cosine = top.Score
	}
	l2 := math.Sqrt(math.Max(0, 2-2*cosine))
	log.Printf("vectorindex: namespace=%s metric=%s results=%d top.distance=%.4f top.cosine=%.4f top.quality=%s",
		namespace, metric, len(results), l2, cosine, qualitativeBucket(cosine))
}

// PerformSimilaritySearch runs a cosine-similarity query, dropping
// results below minSimilarity and any whose source document id is in
// filterIdentifiers (used to prevent double-citation of pinned docs).
func (idx *Index) PerformSimilaritySearch(ctx context.Context, namespace string, queryVector []float32, topK int, minSimilarity float64, filterIdentifiers []string) ([]SearchResult, error) {
	return idx.Search(ctx, SearchRequest{
		Namespace:          namespace,
		QueryVector:        queryVector,
		TopK:               topK,
		Metric:             MetricCosine,
		Threshold:          minSimilarity,
		ExcludeIdentifiers: filterIdentifiers,
	})
}

// PerformDistanceSearch runs an L2-distance query, where a lower score is
// a closer match.
func (idx *Index) PerformDistanceSearch(ctx context.Context, namespace string, queryVector []float32, topK int, maxDistance float64, filterIdentifiers []string) ([]SearchResult, error) {
	return idx.Search(ctx, SearchRequest{
		Namespace:          namespace,
		QueryVector:        queryVector,
		TopK:               topK,
		Metric:             MetricL2,
		Threshold:          maxDistance,
		ExcludeIdentifiers: filterIdentifiers,
	})
}

// PerformDotProductSearch runs a dot-product query. Assumes normalized
// vectors, so scores fall in [-1, 1].
func (idx *Index) PerformDotProductSearch(ctx context.Context, namespace string, queryVector []float32, topK int, minDot float64, filterIdentifiers []string) ([]SearchResult, error) {
	return idx.Search(ctx, SearchRequest{
		Namespace:          namespace,
		QueryVector:        queryVector,
		TopK:               topK,
		Metric:             MetricDot,
		Threshold:          minDot,
		ExcludeIdentifiers: filterIdentifiers,
	})
}

// rerankPoolSize implements max(10, min(50, ceil(0.1*collectionSize))).
func rerankPoolSize(collectionSize int) int {
	pool := int(math.Ceil(0.1 * float64(collectionSize)))
	if pool > 50 {
		pool = 50
	}
	if pool < 10 {
		pool = 10
	}
	return pool
}

// PerformRerankedSearch fetches a wider cosine pool and hands it to
// reranker before truncating to topK.
func (idx *Index) PerformRerankedSearch(ctx context.Context, namespace, query string, queryVector []float32, topK int, reranker Reranker) ([]SearchResult, error) {
	ns := normalizeNamespace(namespace)
	pool := rerankPoolSize(idx.NamespaceCount(ns))

	candidates, err := idx.Search(ctx, SearchRequest{
		Namespace:   ns,
		QueryVector: queryVector,
		TopK:        pool,
		Metric:      MetricCosine,
	})
	if err != nil {
		return nil, err
	}
	reranked, err := reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: rerank namespace %s: %w", ns, err)
	}
	if topK > 0 && len(reranked) > topK {
		reranked = reranked[:topK]
	}
	return reranked, nil
}
