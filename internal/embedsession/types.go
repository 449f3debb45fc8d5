// Package embedsession implements the per-workspace embedding session
// manager: one document at a time through the vector cache, chunker,
// embedder gateway and vision describer, with pause/resume/cancel
// checkpoints between documents.
package embedsession

import (
	"fmt"
	"sync"
	"time"
)

// Status is the embedding session's lifecycle state.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusRunning       Status = "running"
	StatusPaused        Status = "paused"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusCancelled     Status = "cancelled"
)

// Metrics accumulates session-wide counters.
type Metrics struct {
	CacheHits      int
	CacheMisses    int
	ChunksEmbedded int
	ImagesEmbedded int
}

// DocumentEvent is emitted after each document finishes processing.
type DocumentEvent struct {
	SessionID    string
	WorkspaceID  string
	DocumentPath string
	Status       Status
}

// EventHandler receives document-completion events. A nil handler
// disables event emission.
type EventHandler func(DocumentEvent)

// Session tracks one embedding run for a single workspace. It is mutated
// only by the goroutine that owns it (Manager.run).
type Session struct {
	mu sync.Mutex

	SessionID          string
	WorkspaceID        string
	Status             Status
	TotalDocuments     int
	DocumentsProcessed int
	CurrentDocument    string
	Errors             []string
	StartTime          time.Time
	EndTime            time.Time
	ForceReEmbed       bool
	Metrics            Metrics

	pauseRequested  bool
	cancelRequested bool
	wake            chan struct{}
}

func newSession(id, workspaceID string, totalDocs int, forceReEmbed bool) *Session {
	return &Session{
		SessionID:      id,
		WorkspaceID:    workspaceID,
		Status:         StatusInitializing,
		TotalDocuments: totalDocs,
		StartTime:      time.Now(),
		ForceReEmbed:   forceReEmbed,
		wake:           make(chan struct{}, 1),
	}
}

// Snapshot returns a copy of the session's current state.
func (s *Session) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s
	cp.Errors = append([]string(nil), s.Errors...)
	return cp
}

// IsTerminal reports whether status is one that will never transition
// again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func (s *Session) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pause requests a pause, observed between documents.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status.IsTerminal() {
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

// Cancel requests cancellation, observed between documents.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.cancelRequested = true
	s.mu.Unlock()
	s.notify()
}

// checkpoint is called between documents. It returns true if the session
// should stop running.
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
