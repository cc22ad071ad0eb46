package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultCleanupInterval = 10 * time.Minute

type memoryEntry struct {
	cred      Credential
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Entries expire ttl after their last
// Put and are swept by a background goroutine until Stop is called.
type MemoryStore struct {
	mu            sync.RWMutex
	sessions      map[string]*memoryEntry
	ttl           time.Duration
	now           func() time.Time
	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	stopOnce      sync.Once
	logger        *slog.Logger
}

// NewMemoryStore creates a MemoryStore with the given ttl and logger.
// A zero ttl means DefaultTTL; a nil logger means slog.Default().
func NewMemoryStore(ttl time.Duration, logger *slog.Logger) *MemoryStore {
	return newMemoryStore(ttl, defaultCleanupInterval, logger)
}

func newMemoryStore(ttl, cleanupInterval time.Duration, logger *slog.Logger) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &MemoryStore{
		sessions:      make(map[string]*memoryEntry),
		ttl:           ttl,
		now:           time.Now,
		cleanupTicker: time.NewTicker(cleanupInterval),
		cleanupDone:   make(chan struct{}),
		logger:        logger,
	}

	go s.cleanupExpiredSessions()

	return s
}

// Get returns a copy of the stored credential.
func (s *MemoryStore) Get(_ context.Context, id string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[id]
	if !ok || !s.now().Before(entry.expiresAt) {
		return nil, ErrNotFound
	}
	cred := entry.cred
	return &cred, nil
}

// Put stores a copy of cred and resets its expiry.
func (s *MemoryStore) Put(_ context.Context, id string, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = &memoryEntry{
		cred:      *cred,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// Delete removes the credential for id.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions, including expired entries not
// yet swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) cleanupExpiredSessions() {
	for {
		select {
		case <-s.cleanupTicker.C:
			if n := s.sweep(); n > 0 {
				s.logger.Info("Cleaned up expired sessions", "count", n)
			}
		case <-s.cleanupDone:
			return
		}
	}
}

func (s *MemoryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expired := 0
	for id, entry := range s.sessions {
		if !now.Before(entry.expiresAt) {
			delete(s.sessions, id)
			expired++
		}
	}
	return expired
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		s.cleanupTicker.Stop()
		close(s.cleanupDone)
	})
}
