package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rpattn/streamgate/internal/domain"
	"github.com/rpattn/streamgate/pkg/fsutil"

	"github.com/google/uuid"
)

const (
	processedKeysFile = "processed.json"
	sessionsFile      = "sessions.json"
)

// fileProcessedKeyRepository keeps keys in a JSON array on disk, in insertion order.
type fileProcessedKeyRepository struct {
	mu    sync.Mutex
	path  string
	keys  []string
	index map[string]struct{}
	ready bool
}

// NewFileProcessedKeyRepository stores processed keys under dataDir/processed.json.
func NewFileProcessedKeyRepository(dataDir string) ProcessedKeyRepository {
	return &fileProcessedKeyRepository{path: filepath.Join(dataDir, processedKeysFile)}
}

func (r *fileProcessedKeyRepository) load() error {
	if r.ready {
		return nil
	}
	var keys []string
	if _, err := fsutil.ReadJSON(r.path, &keys); err != nil {
		return fmt.Errorf("failed to load processed keys: %w", err)
	}
	r.keys = make([]string, 0, len(keys))
	r.index = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := r.index[k]; dup {
			continue
		}
		r.index[k] = struct{}{}
		r.keys = append(r.keys, k)
	}
	r.ready = true
	return nil
}

func (r *fileProcessedKeyRepository) List(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return nil, err
	}
	return append([]string(nil), r.keys...), nil
}

func (r *fileProcessedKeyRepository) Add(_ context.Context, keys []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return err
	}

	added := false
	for _, k := range keys {
		if _, ok := r.index[k]; ok {
			continue
		}
		r.index[k] = struct{}{}
		r.keys = append(r.keys, k)
		added = true
	}
	if !added {
		return nil
	}
	if err := fsutil.WriteJSON(r.path, r.keys); err != nil {
		return fmt.Errorf("failed to persist processed keys: %w", err)
	}
	return nil
}

func (r *fileProcessedKeyRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := fsutil.WriteJSON(r.path, []string{}); err != nil {
		return fmt.Errorf("failed to clear processed keys: %w", err)
	}
	r.keys = []string{}
	r.index = map[string]struct{}{}
	r.ready = true
	return nil
}

// fileSessionRepository keeps sessions in a JSON array on disk.
type fileSessionRepository struct {
	mu       sync.Mutex
	path     string
	sessions map[uuid.UUID]domain.Session
}

// NewFileSessionRepository stores sessions under dataDir/sessions.json.
func NewFileSessionRepository(dataDir string) SessionRepository {
	return &fileSessionRepository{path: filepath.Join(dataDir, sessionsFile)}
}

func (r *fileSessionRepository) load() error {
	if r.sessions != nil {
		return nil
	}
	var stored []domain.Session
	if _, err := fsutil.ReadJSON(r.path, &stored); err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	r.sessions = make(map[uuid.UUID]domain.Session, len(stored))
	for _, s := range stored {
		r.sessions[s.Token] = s
	}
	return nil
}

func (r *fileSessionRepository) persist() error {
	out := make([]domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if err := fsutil.WriteJSON(r.path, out); err != nil {
		return fmt.Errorf("failed to persist sessions: %w", err)
	}
	return nil
}

func (r *fileSessionRepository) Save(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return err
	}
	r.sessions[session.Token] = session
	return r.persist()
}

func (r *fileSessionRepository) Get(_ context.Context, token uuid.UUID) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return domain.Session{}, err
	}
	s, ok := r.sessions[token]
	if !ok {
		return domain.Session{}, ErrNotFound
	}
	return s, nil
}

func (r *fileSessionRepository) Delete(_ context.Context, token uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(); err != nil {
		return err
	}
	if _, ok := r.sessions[token]; !ok {
		return nil
	}
	delete(r.sessions, token)
	return r.persist()
}
