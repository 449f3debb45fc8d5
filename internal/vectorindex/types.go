// Package vectorindex implements the collection-per-workspace vector
// index layer: one chromem-go collection per workspace namespace,
// cosine/L2/dot search modes, and the dimension/schema safety nets
// chromem-go itself does not provide.
package vectorindex

import "github.com/google/uuid"

// VectorRecord is one row in a workspace collection.
type VectorRecord struct {
	ID       uuid.UUID
	Vector   []float32
	Text     string
	DocID    string
	Metadata map[string]string
}

// DistanceMetric selects the query mode.
type DistanceMetric string

const (
	MetricCosine DistanceMetric = "cosine"
	MetricL2     DistanceMetric = "l2"
	MetricDot    DistanceMetric = "dot"
)

// poolCap bounds how many candidates are pulled from the backend before
// metric-specific filtering, to avoid backend overflow.
const poolCap = 200

// SearchResult is one ranked hit, still carrying its full metadata so
// callers can shape it for either an LLM context or a UI payload.
type SearchResult struct {
	ID       string
	DocID    string
	Text     string
	Score    float64 // similarity (cosine), distance (l2, lower is closer), or dot product
	Metadata map[string]string
}

// ContextText strips vector and bulky payload fields, returning what is
// fed to an LLM.
func (r SearchResult) ContextText() string {
	return r.Text
}

// SourceDocument is the UI-facing shape of a result: unlike ContextText
// it retains imageBase64.
type SourceDocument struct {
	ID          string
	DocID       string
	Text        string
	Score       float64
	Metadata    map[string]string
	ImageBase64 string
}

// ToSourceDocuments preserves imageBase64 from each result's metadata.
func ToSourceDocuments(results []SearchResult) []SourceDocument {
	out := make([]SourceDocument, len(results))
	for i, r := range results {
		out[i] = SourceDocument{
			ID:          r.ID,
			DocID:       r.DocID,
			Text:        r.Text,
			Score:       r.Score,
			Metadata:    r.Metadata,
			ImageBase64: r.Metadata["imageBase64"],
		}
	}
	return out
}

// ToContextTexts returns only each result's Text, the view fed to an LLM;
// metadata, including imageBase64, is dropped.
func ToContextTexts(results []SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Text
	}
	return out
}
