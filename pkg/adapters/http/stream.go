package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/pixl-ae/leadflow/internal/logging"
	"github.com/pixl-ae/leadflow/pkg/domain"
)

// StreamManager fans session diffs out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- []byte]struct{} // session id -> channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager. A nil logger discards.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- []byte]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for the session. The returned func
// unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan []byte, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan []byte, 64)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- []byte]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// Subscribers returns the number of open subscriptions of a session.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

// Broadcast sends msg to every subscriber of the session. Slow clients
// with a full buffer miss the message.
func (sm *StreamManager) Broadcast(sessionID string, msg []byte) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// Publish is a session.ChangeListener broadcasting the diff as JSON.
func (sm *StreamManager) Publish(ctx context.Context, diff *domain.SessionDiff) {
	data, err := json.Marshal(diff)
	if err != nil {
		sm.logger.Error("Failed to encode session diff", "session_id", diff.SessionID, "err", err)
		return
	}
	sm.Broadcast(diff.SessionID, data)
}

// watchFilter keeps diffs touching at least one of the watched parts:
// messages, status, answers, step or persona.
type watchFilter []string

func parseWatch(raw string) watchFilter {
	if raw == "" {
		return nil
	}
	var out watchFilter
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func (w watchFilter) keep(msg []byte) bool {
	if len(w) == 0 {
		return true
	}
	var diff domain.SessionDiff
	if err := json.Unmarshal(msg, &diff); err != nil {
		return true
	}
	if diff.Reset {
		return true
	}
	for _, field := range w {
		switch field {
		case "messages":
			if len(diff.Messages) > 0 {
				return true
			}
		case "status":
			if diff.Status != nil {
				return true
			}
		case "answers":
			if len(diff.Answers) > 0 {
				return true
			}
		case "step":
			if diff.StepID != nil {
				return true
			}
		case "persona":
			if diff.Persona != nil {
				return true
			}
		}
	}
	return false
}
