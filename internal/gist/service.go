package gist

import (
	"context"

	"playground-gateway/internal/apperr"
)

const (
	Filename    = "playground.rs"
	Description = "Code shared from the Rust Playground"
)

// Gist is a shared snippet after its files have been merged.
type Gist struct {
	ID   string
	URL  string
	Code string
}

// Service creates and loads shared snippets.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create stores code as a private single-file snippet.
func (s *Service) Create(ctx context.Context, code string) (*Gist, error) {
	snap, err := s.store.Create(ctx, CreateParams{
		Description: Description,
		Filename:    Filename,
		Content:     code,
		Public:      false,
	})
	if err != nil {
		return nil, apperr.SnippetCreate(err)
	}
	return fromSnapshot(snap), nil
}

// Load fetches a snippet by id and merges its files.
func (s *Service) Load(ctx context.Context, id string) (*Gist, error) {
	snap, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, apperr.SnippetLoad(err)
	}
	return fromSnapshot(snap), nil
}

func fromSnapshot(snap *Snapshot) *Gist {
	return &Gist{ID: snap.ID, URL: snap.URL, Code: Merge(snap.Files)}
}
