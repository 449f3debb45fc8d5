package vectorindex

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/nimbusdocs/ingestcore/internal/ingesterr"
)

// noopEmbeddingFunc errors if ever invoked: every vector entering or
// leaving this package is precomputed by the embedder gateway, so the
// backend's own embedding step must never run.
func noopEmbeddingFunc(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("vectorindex: embeddings must be precomputed, got a text-embed call")
}

// Index wraps one chromem-go database holding one collection per
// workspace namespace.
type Index struct {
	mu      sync.Mutex
	db      *chromem.DB
	cols    map[string]*chromem.Collection
	dims    map[string]int
	dataDir string
}

// New opens an Index backed by an in-memory chromem-go database. Persist
// and Load handle durability against dataDir.
func New(dataDir string) *Index {
	return &Index{
		db:      chromem.NewDB(),
		cols:    make(map[string]*chromem.Collection),
		dims:    make(map[string]int),
		dataDir: dataDir,
	}
}

func normalizeNamespace(namespace string) string {
	return strings.ToLower(namespace)
}

// NamespaceExists reports whether a collection has been created for
// namespace.
func (idx *Index) NamespaceExists(namespace string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.cols[normalizeNamespace(namespace)]
	return ok
}

// NamespaceCount returns the number of vectors stored in namespace.
func (idx *Index) NamespaceCount(namespace string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	col, ok := idx.cols[normalizeNamespace(namespace)]
	if !ok {
		return 0
	}
	return col.Count()
}

// TotalVectors sums the vector count across every namespace.
func (idx *Index) TotalVectors() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	total := 0
	for _, col := range idx.cols {
		total += col.Count()
	}
	return total
}

// AddDocumentToNamespace inserts rec into namespace's collection,
// creating it lazily on first insert. The collection's dimension is
// fixed by whichever vector created it; mismatches are rejected rather
// than silently accepted.
func (idx *Index) AddDocumentToNamespace(ctx context.Context, namespace string, rec VectorRecord) error {
	ns := normalizeNamespace(namespace)
	doc := toChromemDocument(rec)

	idx.mu.Lock()
	col, exists := idx.cols[ns]
	if exists {
		if dim := idx.dims[ns]; dim != len(rec.Vector) {
			idx.mu.Unlock()
			return fmt.Errorf("vectorindex: namespace %s expects dimension %d, got %d: %w", ns, dim, len(rec.Vector), ingesterr.ErrDimensionMismatch)
		}
	}
	idx.mu.Unlock()

	if !exists {
		created, err := idx.db.GetOrCreateCollection(ns, nil, noopEmbeddingFunc)
		if err != nil {
			return fmt.Errorf("vectorindex: create collection %s: %w", ns, err)
		}
		idx.mu.Lock()
		idx.cols[ns] = created
		idx.dims[ns] = len(rec.Vector)
		col = created
		idx.mu.Unlock()
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		if isSchemaConflict(err) {
			return idx.recoverFromSchemaConflict(ctx, ns, doc, rec)
		}
		return fmt.Errorf("vectorindex: add document to %s: %w", ns, err)
	}
	return nil
}

// recoverFromSchemaConflict drops and recreates the collection, seeding
// it with the batch that triggered the conflict.
func (idx *Index) recoverFromSchemaConflict(ctx context.Context, ns string, doc chromem.Document, rec VectorRecord) error {
	log.Printf("vectorindex: schema conflict in namespace %s, dropping and recreating", ns)

	idx.mu.Lock()
	delete(idx.cols, ns)
	idx.mu.Unlock()
	_ = idx.db.DeleteCollection(ns)

	col, err := idx.db.GetOrCreateCollection(ns, nil, noopEmbeddingFunc)
	if err != nil {
		return fmt.Errorf("vectorindex: recreate collection %s: %w", ns, ingesterr.ErrSchemaConflict)
	}
	idx.mu.Lock()
	idx.cols[ns] = col
	idx.dims[ns] = len(rec.Vector)
	idx.mu.Unlock()

	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("vectorindex: add document after recreate: %w", ingesterr.ErrSchemaConflict)
	}
	return nil
}

func isSchemaConflict(err error) bool {
	// chromem-go's columnar encoder surfaces historical empty-string
	// fields as a generic encode error; there is no typed sentinel, so
	// match on the message.
	return err != nil && strings.Contains(err.Error(), "encode")
}

// DeleteDocumentFromNamespace deletes every vector whose docId matches
// docID from namespace.
func (idx *Index) DeleteDocumentFromNamespace(ctx context.Context, namespace, docID string) error {
	ns := normalizeNamespace(namespace)
	idx.mu.Lock()
	col, ok := idx.cols[ns]
	idx.mu.Unlock()
	if !ok {
		return nil
	}
	return col.Delete(ctx, map[string]string{"docId": docID}, nil)
}

// DeleteNamespace drops namespace's collection entirely.
func (idx *Index) DeleteNamespace(namespace string) error {
	ns := normalizeNamespace(namespace)
	idx.mu.Lock()
	delete(idx.cols, ns)
	delete(idx.dims, ns)
	idx.mu.Unlock()
	return idx.db.DeleteCollection(ns)
}

// Reset drops every namespace.
func (idx *Index) Reset() error {
	idx.mu.Lock()
	names := make([]string, 0, len(idx.cols))
	for ns := range idx.cols {
		names = append(names, ns)
	}
	idx.mu.Unlock()
	for _, ns := range names {
		if err := idx.DeleteNamespace(ns); err != nil {
			return fmt.Errorf("vectorindex: reset: dropping %s: %w", ns, err)
		}
	}
	return nil
}

// Persist exports the full database to dataDir.
func (idx *Index) Persist(ctx context.Context) error {
	if idx.dataDir == "" {
		return nil
	}
	return idx.db.ExportToFile(idx.dataDir+"/chromem.gob.gz", true, "")
}

// Load imports the database from dataDir, re-acquiring every collection
// handle afterward.
func (idx *Index) Load(ctx context.Context) error {
	if idx.dataDir == "" {
		return nil
	}
	if err := idx.db.ImportFromFile(idx.dataDir+"/chromem.gob.gz", ""); err != nil {
		return fmt.Errorf("vectorindex: import: %w", err)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for ns := range idx.cols {
		col := idx.db.GetCollection(ns, noopEmbeddingFunc)
		if col == nil {
			continue
		}
		idx.cols[ns] = col
	}
	return nil
}

func toChromemDocument(rec VectorRecord) chromem.Document {
	return chromem.Document{
		ID:        rec.ID.String(),
		Content:   rec.Text,
		Embedding: rec.Vector,
		Metadata:  withDocID(rec.Metadata, rec.DocID),
	}
}

func withDocID(meta map[string]string, docID string) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out["docId"] = docID
	return out
}
