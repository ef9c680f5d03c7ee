package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/procdoc/sop-flow/internal/logger"
)

// Store owns all live sessions. Purely in-memory apart from each session's
// scoped directory; nothing survives process restart by design.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	dataDir  string
	ttl      time.Duration
	logger   logger.Logger
}

func NewStore(dataDir string, ttl time.Duration, log logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{
		sessions: make(map[string]*Session),
		dataDir:  dataDir,
		ttl:      ttl,
		logger:   log,
	}, nil
}

// Create allocates a session with its own directory and cancellable context.
func (st *Store) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	dir := filepath.Join(st.dataDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		ID:        id,
		Dir:       dir,
		CreatedAt: time.Now(),
		ctx:       sctx,
		cancel:    cancel,
		state:     StateIdle,
	}

	st.mu.Lock()
	st.sessions[id] = s
	st.mu.Unlock()

	st.logger.Info(ctx, "Session created: %s", id)
	return s, nil
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Destroy cancels in-flight stage work and removes every temp artifact.
// Runs on explicit finish, on abandon and on TTL expiry alike.
func (st *Store) Destroy(ctx context.Context, id string) error {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s not found", id)
	}

	s.cancel()
	if err := os.RemoveAll(s.Dir); err != nil {
		st.logger.Warn(ctx, "Failed to remove session dir %s: %v", s.Dir, err)
		return err
	}

	st.logger.Info(ctx, "Session destroyed: %s", id)
	return nil
}

// DestroyAll tears down every session, used on shutdown.
func (st *Store) DestroyAll(ctx context.Context) {
	st.mu.RLock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	st.mu.RUnlock()

	for _, id := range ids {
		_ = st.Destroy(ctx, id)
	}
}

// Janitor destroys sessions older than the TTL. Blocks until ctx is done.
func (st *Store) Janitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.sweep(ctx)
		}
	}
}

func (st *Store) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-st.ttl)

	st.mu.RLock()
	var expired []string
	for id, s := range st.sessions {
		if s.CreatedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	st.mu.RUnlock()

	for _, id := range expired {
		st.logger.Info(ctx, "Session %s expired, cleaning up", id)
		_ = st.Destroy(ctx, id)
	}
}
