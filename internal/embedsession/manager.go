package embedsession

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusdocs/ingestcore/internal/db"
	"github.com/nimbusdocs/ingestcore/internal/embedder"
	"github.com/nimbusdocs/ingestcore/internal/ingesterr"
	"github.com/nimbusdocs/ingestcore/internal/metastore"
	"github.com/nimbusdocs/ingestcore/internal/pathutil"
	"github.com/nimbusdocs/ingestcore/internal/vectorindex"
	"github.com/nimbusdocs/ingestcore/internal/vision"
)

const multimodalDirectMode = "multimodal_direct"
const captionFallbackMode = "caption_fallback"

// ManagerConfig collects the chunking and embedding tunables a Manager
// applies to every text document.
type ManagerConfig struct {
	ChunkSize    int
	ChunkOverlap int
	EmbedPrefix  string
	MaxImageEdge int
}

// Manager enforces one active embedding session per workspace and runs
// the per-document embedding pipeline: cache lookup, chunk, embed,
// store, bridge.
type Manager struct {
	mu     sync.Mutex
	active map[string]*Session

	index     *vectorindex.Index
	cache     *pathutil.VectorCache
	gateway   *embedder.Gateway
	describer *vision.Describer
	bridge    *db.DB

	cfg     ManagerConfig
	onEvent EventHandler
}

// NewManager builds a Manager. describer may be nil, in which case image
// documents get no AI caption: the multimodal path embeds the image with
// an empty prompt, and the text fallback embeds the title with an empty
// caption.
func NewManager(index *vectorindex.Index, cache *pathutil.VectorCache, gateway *embedder.Gateway, describer *vision.Describer, bridge *db.DB, cfg ManagerConfig, onEvent EventHandler) *Manager {
	return &Manager{
		active:    make(map[string]*Session),
		index:     index,
		cache:     cache,
		gateway:   gateway,
		describer: describer,
		bridge:    bridge,
		cfg:       cfg,
		onEvent:   onEvent,
	}
}

// StartOptions parameterizes one embedding run.
type StartOptions struct {
	ForceReEmbed bool
}

// Start begins embedding docPaths into workspaceID's collection. It
// rejects a second concurrent session for the same workspace.
func (m *Manager) Start(ctx context.Context, workspaceID string, docPaths []string, opts StartOptions) (*Session, error) {
	m.mu.Lock()
	if existing, ok := m.active[workspaceID]; ok {
		snap := existing.Snapshot()
		if !snap.Status.IsTerminal() {
			m.mu.Unlock()
			return nil, fmt.Errorf("embedsession: workspace %s: %w", workspaceID, ingesterr.ErrSessionConflict)
		}
	}
	sess := newSession(uuid.NewString(), workspaceID, len(docPaths), opts.ForceReEmbed)
	m.active[workspaceID] = sess
	m.mu.Unlock()

	go m.run(ctx, sess, docPaths)
	return sess, nil
}

func (m *Manager) run(ctx context.Context, sess *Session, docPaths []string) {
	sess.mu.Lock()
	sess.Status = StatusRunning
	sess.mu.Unlock()

	for _, path := range docPaths {
		if sess.checkpoint() {
			m.finish(sess)
			return
		}

		sess.mu.Lock()
		sess.CurrentDocument = path
		sess.mu.Unlock()

		if err := m.processDocument(ctx, sess, path); err != nil {
			sess.appendError("document %s: %v", path, err)
		}

		sess.mu.Lock()
		sess.DocumentsProcessed++
		status := sess.Status
		sess.mu.Unlock()

		if m.onEvent != nil {
			m.onEvent(DocumentEvent{SessionID: sess.SessionID, WorkspaceID: sess.WorkspaceID, DocumentPath: path, Status: status})
		}
	}

	m.finish(sess)
}

func (m *Manager) finish(sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.Status == StatusCancelled {
		sess.EndTime = time.Now()
		return
	}
	if len(sess.Errors) > 0 && sess.DocumentsProcessed == 0 {
		sess.Status = StatusFailed
	} else {
		sess.Status = StatusCompleted
	}
	sess.EndTime = time.Now()
}

// processDocument embeds a single document: a vector-cache hit short
// circuits straight to the upsert path, otherwise it chunks and embeds
// text documents or captions and embeds image documents.
func (m *Manager) processDocument(ctx context.Context, sess *Session, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	var doc metastore.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	docID := uuid.NewString()

	if !sess.ForceReEmbed {
		exists, cached, err := m.cache.Lookup(path, false)
		if err != nil {
			return fmt.Errorf("cache lookup: %w", err)
		}
		if exists {
			sess.mu.Lock()
			sess.Metrics.CacheHits++
			sess.mu.Unlock()
			return m.upsertCached(ctx, sess.WorkspaceID, docID, path, cached)
		}
	}
	sess.mu.Lock()
	sess.Metrics.CacheMisses++
	sess.mu.Unlock()

	switch doc.FileType {
	case "image":
		return m.embedImage(ctx, sess, docID, path, doc)
	default:
		return m.embedText(ctx, sess, docID, path, doc)
	}
}

func (m *Manager) upsertCached(ctx context.Context, workspace, docID, path string, chunks []pathutil.CachedVector) error {
	vectorIDs := make([]string, 0, len(chunks))
	for _, c := range chunks {
		id, err := uuid.Parse(c.ID)
		if err != nil {
			id = uuid.New()
		}
		rec := vectorindex.VectorRecord{ID: id, Vector: c.Vector, Text: c.Text, DocID: docID, Metadata: stripEmpty(c.Metadata)}
		if err := m.index.AddDocumentToNamespace(ctx, workspace, rec); err != nil {
			return fmt.Errorf("upsert cached vector: %w", err)
		}
		vectorIDs = append(vectorIDs, id.String())
	}
	if m.bridge != nil {
		if err := m.bridge.InsertVectorRows(ctx, workspace, docID, path, vectorIDs); err != nil {
			return fmt.Errorf("persist document vectors: %w", err)
		}
	}
	return nil
}

func (m *Manager) embedText(ctx context.Context, sess *Session, docID, path string, doc metastore.Document) error {
	header := buildHeader(doc)
	chunks := chunkText(doc.PageContent, header, m.cfg.EmbedPrefix, m.cfg.ChunkSize, m.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: empty pageContent", ingesterr.ErrInvalidChunk)
	}

	vectors, err := m.gateway.EmbedChunks(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	cached := make([]pathutil.CachedVector, 0, len(chunks))
	vectorIDs := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		id := uuid.New()
		meta := stripEmpty(documentMetadata(doc))
		rec := vectorindex.VectorRecord{ID: id, Vector: vectors[i], Text: chunk, DocID: docID, Metadata: meta}
		if err := m.index.AddDocumentToNamespace(ctx, sess.WorkspaceID, rec); err != nil {
			return fmt.Errorf("add text vector: %w", err)
		}
		cached = append(cached, pathutil.CachedVector{ID: id.String(), Vector: vectors[i], Text: chunk, Metadata: meta})
		vectorIDs = append(vectorIDs, id.String())
	}

	if err := m.cache.Store(path, cached); err != nil {
		log.Printf("embedsession: caching vectors for %s: %v", path, err)
	}
	sess.mu.Lock()
	sess.Metrics.ChunksEmbedded += len(chunks)
	sess.mu.Unlock()

	if m.bridge != nil {
		if err := m.bridge.InsertVectorRows(ctx, sess.WorkspaceID, docID, path, vectorIDs); err != nil {
			return fmt.Errorf("persist document vectors: %w", err)
		}
	}
	return nil
}

func (m *Manager) embedImage(ctx context.Context, sess *Session, docID, path string, doc metastore.Document) error {
	if doc.ChunkSource == "" {
		doc.ChunkSource = "image-upload"
	}

	caption := ""
	if m.describer != nil {
		results := m.describer.DescribeImages(ctx, []string{doc.ImageBase64}, []string{doc.Title})
		if len(results) == 1 && results[0].Err == nil {
			caption = results[0].AICaption
		}
	}

	if m.gateway.MultimodalConfigured() {
		img, err := decodePNGBase64(doc.ImageBase64)
		if err == nil {
			vec, embedErr := m.gateway.EmbedImageDirect(ctx, img, caption, m.maxImageEdge())
			if embedErr == nil {
				return m.storeImageVectors(ctx, sess, docID, path, doc, []string{caption}, [][]float32{vec}, multimodalDirectMode)
			}
			log.Printf("embedsession: multimodal direct embed failed for %s, falling back to captions: %v", path, embedErr)
		} else {
			log.Printf("embedsession: decoding image for %s, falling back to captions: %v", path, err)
		}
	}

	texts := []string{doc.Title, caption}
	vectors, err := m.gateway.EmbedChunks(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed image captions: %w", err)
	}
	return m.storeImageVectors(ctx, sess, docID, path, doc, texts, vectors, captionFallbackMode)
}

func (m *Manager) storeImageVectors(ctx context.Context, sess *Session, docID, path string, doc metastore.Document, texts []string, vectors [][]float32, mode string) error {
	vectorIDs := make([]string, 0, len(vectors))
	cached := make([]pathutil.CachedVector, 0, len(vectors))
	for i, vec := range vectors {
		id := uuid.New()
		meta := documentMetadata(doc)
		meta["embeddingMode"] = mode
		meta = stripEmpty(meta)
		rec := vectorindex.VectorRecord{ID: id, Vector: vec, Text: texts[i], DocID: docID, Metadata: meta}
		if err := m.index.AddDocumentToNamespace(ctx, sess.WorkspaceID, rec); err != nil {
			return fmt.Errorf("add image vector: %w", err)
		}
		vectorIDs = append(vectorIDs, id.String())
		cached = append(cached, pathutil.CachedVector{ID: id.String(), Vector: vec, Text: texts[i], Metadata: meta})
	}
	if err := m.cache.Store(path, cached); err != nil {
		log.Printf("embedsession: caching image vectors for %s: %v", path, err)
	}
	sess.mu.Lock()
	sess.Metrics.ImagesEmbedded++
	sess.mu.Unlock()

	if m.bridge != nil {
		if err := m.bridge.InsertVectorRows(ctx, sess.WorkspaceID, docID, path, vectorIDs); err != nil {
			return fmt.Errorf("persist document vectors: %w", err)
		}
	}
	return nil
}

func (m *Manager) maxImageEdge() int {
	if m.cfg.MaxImageEdge <= 0 {
		return 1024
	}
	return m.cfg.MaxImageEdge
}

func decodePNGBase64(b64 string) (image.Image, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return img, nil
}

func buildHeader(doc metastore.Document) string {
	parts := make([]string, 0, 2)
	if doc.Title != "" {
		parts = append(parts, "Title: "+doc.Title)
	}
	if doc.DocSource != "" {
		parts = append(parts, "Source: "+doc.DocSource)
	}
	return strings.Join(parts, "\n")
}

func documentMetadata(doc metastore.Document) map[string]string {
	return map[string]string{
		"title":       doc.Title,
		"docAuthor":   doc.DocAuthor,
		"docSource":   doc.DocSource,
		"chunkSource": doc.ChunkSource,
		"url":         doc.URL,
		"published":   doc.Published,
		"fileType":    doc.FileType,
		"imageBase64": doc.ImageBase64,
	}
}

func stripEmpty(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
