package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xgaming/assistant-relay/services/relay/observability"
)

// ThreadCreator creates an upstream conversation thread. assistant.Client
// satisfies it; tests inject fakes.
type ThreadCreator interface {
	CreateThread(ctx context.Context) (string, error)
}

// SessionStore maps an opaque user id to its upstream thread id, creating
// the thread lazily on first use.
//
// A thread id, once assigned to a user, is never reassigned for the process
// lifetime. Entries are never evicted; the registry grows with the user
// population, which the sessions_tracked gauge makes observable.
type SessionStore interface {
	// ResolveThread returns the user's thread id, creating a thread on
	// first call for that user.
	ResolveThread(ctx context.Context, userID string) (string, error)

	// Len reports the number of tracked sessions.
	Len() int
}

type memorySessionStore struct {
	creator ThreadCreator

	mu      sync.Mutex
	threads map[string]string
}

func NewMemorySessionStore(creator ThreadCreator) SessionStore {
	return &memorySessionStore{
		creator: creator,
		threads: make(map[string]string),
	}
}

// ResolveThread holds the store lock across check-and-create, so two
// concurrent first messages from the same user cannot create two threads
// and orphan one. The upstream create under the lock serializes first
// contacts from distinct users too; acceptable since creation happens once
// per user.
func (s *memorySessionStore) ResolveThread(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if threadID, ok := s.threads[userID]; ok {
		return threadID, nil
	}
	threadID, err := s.creator.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create thread for user %q: %w", userID, err)
	}
	s.threads[userID] = threadID
	slog.Info("Session created", "user_id", userID, "thread_id", threadID)

	if m := observability.DefaultMetrics; m != nil {
		m.SetSessionCount(len(s.threads))
	}
	return threadID, nil
}

func (s *memorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads)
}

var _ SessionStore = (*memorySessionStore)(nil)
