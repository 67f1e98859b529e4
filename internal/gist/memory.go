package gist

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps snippets in process memory. Everything is lost on
// restart; meant for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]*Snapshot
	urlBase string
}

// NewMemoryStore creates an empty store. URLs are built as
// <urlBase>/meta/gist/<id>.
func NewMemoryStore(urlBase string) *MemoryStore {
	return &MemoryStore{
		items:   make(map[string]*Snapshot),
		urlBase: strings.TrimRight(urlBase, "/"),
	}
}

func (s *MemoryStore) Create(ctx context.Context, params CreateParams) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := newID()
	snap := &Snapshot{
		ID:    id,
		URL:   snippetURL(s.urlBase, id),
		Files: map[string]string{params.Filename: params.Content},
	}

	s.mu.Lock()
	s.items[id] = snap
	s.mu.Unlock()

	return snap.clone(), nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	snap, ok := s.items[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return snap.clone(), nil
}

// Put stores a snapshot under its own id, replacing any previous one.
func (s *MemoryStore) Put(snap *Snapshot) {
	s.mu.Lock()
	s.items[snap.ID] = snap.clone()
	s.mu.Unlock()
}

// Len returns the number of stored snippets.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

var newID = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func snippetURL(base, id string) string {
	return base + "/meta/gist/" + id
}
