package resync

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch observes the document root for filesystem changes and triggers an
// incremental resync of whichever top-level folder changed, debounced by
// settle so a burst of writes to the same folder collapses into one scan.
// It blocks until ctx is cancelled.
func (e *Engine) Watch(ctx context.Context, settle time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	if err := e.addWatchDirs(watcher); err != nil {
		return fmt.Errorf("watching document root: %w", err)
	}

	pending := map[string]*time.Timer{}
	trigger := make(chan string, 16)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			folder := e.folderOf(ev.Name)
			if folder == "" {
				continue
			}
			if t, exists := pending[folder]; exists {
				t.Stop()
			}
			pending[folder] = time.AfterFunc(settle, func() { trigger <- folder })

		case folder := <-trigger:
			delete(pending, folder)
			log.Printf("resync: watch detected change in %s, rescanning", folder)
			sess := e.Scan(ctx, ScanOptions{FolderFilter: []string{folder}})
			e.waitForTerminal(sess)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("resync: watch error: %v", watchErr)
		}
	}
}

func (e *Engine) waitForTerminal(sess *Session) {
	for {
		switch sess.Snapshot().Status {
		case StatusCompleted, StatusFailed, StatusCancelled:
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// addWatchDirs registers the document root and its existing immediate
// subfolders; folders created afterward are picked up on the next Watch
// call. fsnotify has no recursive-watch primitive, which matches the
// folder-level (non-recursive) scan model the rest of the engine uses.
func (e *Engine) addWatchDirs(watcher *fsnotify.Watcher) error {
	if err := watcher.Add(e.docRoot); err != nil {
		return err
	}
	entries, err := os.ReadDir(e.docRoot)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := watcher.Add(filepath.Join(e.docRoot, entry.Name())); err != nil {
			log.Printf("resync: cannot watch folder %s: %v", entry.Name(), err)
		}
	}
	return nil
}

// folderOf maps an absolute path under docRoot to its top-level folder
// name, or "" for docRoot itself or a path outside it.
func (e *Engine) folderOf(path string) string {
	rel, err := filepath.Rel(e.docRoot, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	parts := strings.SplitN(filepath.ToSlash(rel), "/", 2)
	return parts[0]
}
