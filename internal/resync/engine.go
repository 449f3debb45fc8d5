package resync

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/nimbusdocs/ingestcore/internal/metastore"
	"github.com/nimbusdocs/ingestcore/internal/pathutil"
)

// customDocumentsFolder is always hoisted to the front of the scan order
// and the returned tree.
const customDocumentsFolder = "custom-documents"

// Engine walks a document root folder-by-folder, refreshing the
// per-folder metadata index with bounded concurrency.
type Engine struct {
	store   *metastore.Store
	cache   *pathutil.VectorCache
	lookup  PinWatchLookup
	docRoot string

	batchSize        int
	smallConcurrency int
	largeConcurrency int
	slowMs           int

	onEvent EventHandler
}

// EngineConfig collects Engine's tunables.
type EngineConfig struct {
	DocRoot          string
	BatchSize        int
	SmallConcurrency int
	LargeConcurrency int
	SlowMs           int
}

// NewEngine builds an Engine. lookup may be nil, in which case pinned and
// watched flags are always false.
func NewEngine(store *metastore.Store, cache *pathutil.VectorCache, lookup PinWatchLookup, cfg EngineConfig, onEvent EventHandler) *Engine {
	if lookup == nil {
		lookup = NoopPinWatchLookup{}
	}
	return &Engine{
		store:            store,
		cache:            cache,
		lookup:           lookup,
		docRoot:          cfg.DocRoot,
		batchSize:        cfg.BatchSize,
		smallConcurrency: cfg.SmallConcurrency,
		largeConcurrency: cfg.LargeConcurrency,
		slowMs:           cfg.SlowMs,
		onEvent:          onEvent,
	}
}

// ScanOptions parameterizes one resync run.
type ScanOptions struct {
	FolderFilter []string
	ForceRefresh bool
}

// Scan starts a new resync session in the background and returns it
// immediately; callers observe progress via Session.Snapshot or the
// configured EventHandler.
func (e *Engine) Scan(ctx context.Context, opts ScanOptions) *Session {
	sess := newSession(uuid.NewString(), opts, e.effectiveBatchSize())
	go e.run(ctx, sess, opts)
	return sess
}

func (e *Engine) effectiveBatchSize() int {
	if e.batchSize <= 0 {
		return 10
	}
	return e.batchSize
}

func (e *Engine) run(ctx context.Context, sess *Session, opts ScanOptions) {
	sess.mu.Lock()
	sess.Status = StatusRunning
	sess.mu.Unlock()

	folders, err := e.enumerateFolders(opts.FolderFilter)
	if err != nil {
		e.fail(sess, fmt.Errorf("enumerate folders: %w", err))
		return
	}
	folders = hoistCustomDocuments(folders)

	total := 0
	for _, folder := range folders {
		n, err := e.countJSONFiles(folder)
		if err != nil {
			sess.appendError("count %s: %v", folder, err)
			continue
		}
		total += n
	}
	sess.mu.Lock()
	sess.TotalFiles = total
	sess.TotalBatches = ceilDiv(total, sess.BatchSize)
	sess.mu.Unlock()

	for _, folder := range folders {
		sess.mu.Lock()
		alreadyDone := sess.CompletedFolders[folder]
		sess.mu.Unlock()
		if alreadyDone {
			continue
		}

		if sess.checkpoint() {
			e.finish(sess)
			return
		}

		if err := e.scanFolder(ctx, sess, folder, opts.ForceRefresh); err != nil {
			sess.appendError("folder %s: %v", folder, err)
			continue
		}

		sess.mu.Lock()
		sess.CompletedFolders[folder] = true
		sess.CurrentFolder = ""
		sess.CurrentFolderProgress = 0
		sess.mu.Unlock()
	}

	e.finish(sess)
}

func (e *Engine) fail(sess *Session, err error) {
	sess.appendError("%v", err)
	sess.mu.Lock()
	sess.Status = StatusFailed
	sess.EndTime = time.Now()
	sess.mu.Unlock()
	log.Printf("resync: session %s failed: %v", sess.SessionID, err)
}

func (e *Engine) finish(sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.Status == StatusCancelled {
		sess.EndTime = time.Now()
		return
	}
	if len(sess.Errors) > 0 && sess.FilesProcessed == 0 {
		sess.Status = StatusFailed
	} else {
		sess.Status = StatusCompleted
	}
	sess.EndTime = time.Now()
}

// enumerateFolders lists immediate subdirectories of the document root,
// keeping only those matching one of filter's glob patterns (doublestar
// syntax) when filter is non-empty. A plain folder name in filter matches
// itself exactly, same as any other pattern with no wildcard.
func (e *Engine) enumerateFolders(filter []string) ([]string, error) {
	entries, err := os.ReadDir(e.docRoot)
	if err != nil {
		return nil, err
	}

	var folders []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if len(filter) > 0 && !matchesAny(filter, entry.Name()) {
			continue
		}
		folders = append(folders, entry.Name())
	}
	sort.Strings(folders)
	return folders, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

func hoistCustomDocuments(folders []string) []string {
	out := make([]string, 0, len(folders))
	found := false
	for _, f := range folders {
		if f == customDocumentsFolder {
			found = true
			continue
		}
		out = append(out, f)
	}
	if found {
		out = append([]string{customDocumentsFolder}, out...)
	}
	return out
}

func (e *Engine) countJSONFiles(folder string) (int, error) {
	entries, err := os.ReadDir(filepath.Join(e.docRoot, folder))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			n++
		}
	}
	return n, nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
