package resync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nimbusdocs/ingestcore/internal/metastore"
)

// scanFolder refreshes one folder's metadata index in batches of
// sess.BatchSize, persisting after every batch.
func (e *Engine) scanFolder(ctx context.Context, sess *Session, folder string, forceRefresh bool) error {
	folderPath := filepath.Join(e.docRoot, folder)

	index, err := e.store.GetFolder(ctx, folder)
	if err != nil {
		return fmt.Errorf("load folder index: %w", err)
	}
	if index == nil || forceRefresh {
		index = metastore.NewFolderIndex(folder)
	}

	files, err := e.jsonFiles(folderPath)
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}

	startAt := 0
	sess.mu.Lock()
	if sess.CurrentFolder == folder {
		startAt = sess.CurrentFolderProgress
	}
	sess.CurrentFolder = folder
	sess.mu.Unlock()

	for batchStart := startAt; batchStart < len(files); batchStart += sess.BatchSize {
		if sess.checkpoint() {
			return nil
		}

		batchEnd := batchStart + sess.BatchSize
		if batchEnd > len(files) {
			batchEnd = len(files)
		}
		batch := files[batchStart:batchEnd]

		batchStartTime := time.Now()
		metas, err := e.processBatch(ctx, sess, folderPath, batch)
		if err != nil {
			sess.appendError("batch %s[%d:%d]: %v", folder, batchStart, batchEnd, err)
		}

		pinnedByName, watchedByName, err := e.lookup.BulkLookup(ctx, fileNames(metas))
		if err != nil {
			sess.appendError("pin/watch lookup %s: %v", folder, err)
		} else {
			applyPinWatch(metas, pinnedByName, watchedByName)
		}

		for _, m := range metas {
			index.Upsert(m)
		}
		if err := e.store.SaveFolder(ctx, folder, index); err != nil {
			sess.appendError("save folder %s: %v", folder, err)
		}

		sess.mu.Lock()
		sess.FilesProcessed += len(batch)
		sess.CurrentBatch++
		sess.CurrentFolderProgress = batchEnd
		status := sess.Status
		sess.mu.Unlock()

		if e.onEvent != nil {
			e.onEvent(BatchEvent{
				SessionID:    sess.SessionID,
				Folder:       folder,
				FilesInBatch: len(batch),
				BatchTimeMs:  time.Since(batchStartTime).Milliseconds(),
				Status:       status,
			})
		}
	}

	return nil
}

func fileNames(metas []metastore.FileMetadata) []string {
	names := make([]string, len(metas))
	for i, m := range metas {
		names[i] = m.Name
	}
	return names
}

func applyPinWatch(metas []metastore.FileMetadata, pinned map[string][]string, watched map[string]bool) {
	for i := range metas {
		metas[i].PinnedWorkspaces = pinned[metas[i].Name]
		metas[i].Watched = watched[metas[i].Name]
	}
}

func (e *Engine) jsonFiles(folderPath string) ([]string, error) {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

// processBatch partitions batch into small/large pools by file size and
// processes each pool with its own bounded concurrency, using buffered
// channels as semaphores.
func (e *Engine) processBatch(ctx context.Context, sess *Session, folderPath string, batch []string) ([]metastore.FileMetadata, error) {
	small, large := e.partitionBySize(folderPath, batch)

	var mu sync.Mutex
	var results []metastore.FileMetadata

	process := func(files []string, concurrency int) {
		if concurrency < 1 {
			concurrency = 1
		}
		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup
		for _, name := range files {
			wg.Add(1)
			sem <- struct{}{}
			go func(name string) {
				defer wg.Done()
				defer func() { <-sem }()

				meta, elapsedMs, err := e.processFile(ctx, filepath.Join(folderPath, name))
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					sess.appendError("file %s: %v", name, err)
					return
				}
				if meta == nil {
					return // dropped: missing required fields
				}
				sess.Metrics.recordFile(elapsedMs, filepath.Join(folderPath, name), e.slowMs)
				results = append(results, *meta)
			}(name)
		}
		wg.Wait()
	}

	process(small, e.smallConcurrency)
	process(large, e.largeConcurrency)

	return results, nil
}

func (e *Engine) partitionBySize(folderPath string, batch []string) (small, large []string) {
	for _, name := range batch {
		info, err := os.Stat(filepath.Join(folderPath, name))
		if err != nil {
			small = append(small, name)
			continue
		}
		if info.Size() >= largeFileThreshold {
			large = append(large, name)
		} else {
			small = append(small, name)
		}
	}
	return small, large
}

// processFile stats, reads and parses one document JSON file, computes
// its cached flag and canWatch, and returns its FileMetadata projection.
// A nil result with a nil error signals that the file lacks a required
// field and was intentionally dropped.
func (e *Engine) processFile(ctx context.Context, fullPath string) (*metastore.FileMetadata, int64, error) {
	start := time.Now()

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, 0, fmt.Errorf("stat: %w", err)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, 0, fmt.Errorf("read: %w", err)
	}

	var doc metastore.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("parse: %w", err)
	}
	doc.MtimeMs = info.ModTime().UnixMilli()
	doc.Size = info.Size()

	meta := metastore.StripDocument(doc)
	if !hasRequiredFields(meta) {
		return nil, time.Since(start).Milliseconds(), nil
	}

	if e.cache != nil {
		cached, _, err := e.cache.Lookup(fullPath, true)
		if err == nil {
			meta.Cached = cached
		}
	}
	meta.CanWatch = canWatch(meta)

	return &meta, time.Since(start).Milliseconds(), nil
}

// hasRequiredFields checks metastore.RequiredFields against their
// FileMetadata projection.
func hasRequiredFields(m metastore.FileMetadata) bool {
	return m.Name != "" && m.Type != "" && m.URL != "" && m.Title != "" && m.DocAuthor != "" &&
		m.Description != "" && m.DocSource != "" && m.ChunkSource != "" && m.Published != "" &&
		m.WordCount > 0
}

// canWatch is true for file types the ingestion pipeline knows how to
// re-process on change.
func canWatch(m metastore.FileMetadata) bool {
	return m.FileType == "text" || m.FileType == "image"
}
