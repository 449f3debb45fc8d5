// Package resync implements the bounded-concurrency document-root scan:
// folder-by-folder metadata refresh with batched progress,
// pause/resume/cancel, and crash-safe checkpointing.
package resync

import (
	"fmt"
	"sync"
	"time"
)

// Status is a resync session's lifecycle state.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusRunning      Status = "running"
	StatusPaused       Status = "paused"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// largeFileThreshold separates the small and large worker pools.
const largeFileThreshold = 150 * 1024 * 1024

// SlowFile records a single file whose scan phases took unusually long.
type SlowFile struct {
	Path string
	Ms   int64
}

// Metrics accumulates scan-wide statistics.
type Metrics struct {
	FilesScanned      int
	TotalProcessingMs int64
	SlowestFiles      []SlowFile
	CacheHits         int
	CacheMisses       int
}

// AvgProcessingTimeMs is the mean per-file processing time so far.
func (m Metrics) AvgProcessingTimeMs() float64 {
	if m.FilesScanned == 0 {
		return 0
	}
	return float64(m.TotalProcessingMs) / float64(m.FilesScanned)
}

func (m *Metrics) recordFile(elapsedMs int64, path string, slowMs int) {
	m.FilesScanned++
	m.TotalProcessingMs += elapsedMs
	if elapsedMs <= int64(slowMs) {
		return
	}
	m.SlowestFiles = append(m.SlowestFiles, SlowFile{Path: path, Ms: elapsedMs})
	if len(m.SlowestFiles) > 10 {
		// keep only the 10 slowest seen so far, dropping the least slow
		slowest := m.SlowestFiles
		minIdx := 0
		for i, f := range slowest {
			if f.Ms < slowest[minIdx].Ms {
				minIdx = i
			}
		}
		m.SlowestFiles = append(slowest[:minIdx], slowest[minIdx+1:]...)
	}
}

// BatchEvent is emitted after each processed batch.
type BatchEvent struct {
	SessionID    string
	Folder       string
	FilesInBatch int
	BatchTimeMs  int64
	Status       Status
}

// EventHandler receives batch-completion events. A nil handler disables
// event emission.
type EventHandler func(BatchEvent)

// Session tracks one resync run. It is mutated only by the goroutine that
// owns it (Engine.run); external callers interact only through the
// Pause/Resume/Cancel/Snapshot surface.
type Session struct {
	mu sync.Mutex

	SessionID             string
	Status                Status
	TotalFiles            int
	FilesProcessed        int
	CurrentBatch          int
	TotalBatches          int
	CurrentFolder         string
	CurrentFolderProgress int
	CompletedFolders      map[string]bool
	Errors                []string
	StartTime             time.Time
	EndTime               time.Time
	BatchSize             int
	ForceRefresh          bool
	FolderFilter          []string
	Metrics               Metrics

	pauseRequested  bool
	cancelRequested bool
	wake            chan struct{}
}

func newSession(id string, opts ScanOptions, batchSize int) *Session {
	return &Session{
		SessionID:        id,
		Status:           StatusInitializing,
		CompletedFolders: make(map[string]bool),
		StartTime:        time.Now(),
		BatchSize:        batchSize,
		ForceRefresh:     opts.ForceRefresh,
		FolderFilter:     opts.FolderFilter,
		wake:             make(chan struct{}, 1),
	}
}

// Snapshot returns a copy of the session's current state, safe to read
// from any goroutine.
func (s *Session) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s
	cp.CompletedFolders = make(map[string]bool, len(s.CompletedFolders))
	for k, v := range s.CompletedFolders {
		cp.CompletedFolders[k] = v
	}
	cp.Errors = append([]string(nil), s.Errors...)
	return cp
}

func (s *Session) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pause requests a pause, observed at the next batch boundary. It is
// safe to call before the session reaches StatusRunning.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status == StatusCompleted || s.Status == StatusFailed || s.Status == StatusCancelled {
		return
	}
	s.pauseRequested = true
}

// Resume clears a pending pause and wakes a session blocked in Paused.
func (s *Session) Resume() {
	s.mu.Lock()
	s.pauseRequested = false
	s.mu.Unlock()
	s.notify()
}

// Cancel requests cancellation, observed at the next batch boundary.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.cancelRequested = true
	s.mu.Unlock()
	s.notify()
}

// checkpoint is called at a batch boundary. It returns true if the scan
// loop should stop. If a pause is pending it blocks until Resume or
// Cancel is called, holding no lock across the block.
func (s *Session) checkpoint() bool {
	s.mu.Lock()
	if s.cancelRequested {
		s.Status = StatusCancelled
		s.mu.Unlock()
		return true
	}
	if !s.pauseRequested {
		s.mu.Unlock()
		return false
	}
	s.Status = StatusPaused
	s.mu.Unlock()

	<-s.wake

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelRequested {
		s.Status = StatusCancelled
		return true
	}
	s.Status = StatusRunning
	return false
}

func (s *Session) appendError(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}
