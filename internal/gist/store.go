// Package gist shares snippets through an external store and folds
// multi-file snippets into a single source blob.
package gist

import (
	"context"
	"errors"
	"maps"
)

// ErrNotFound is returned by a Store when the id is unknown.
var ErrNotFound = errors.New("gist: not found")

// Snapshot is a snippet as the store returns it.
type Snapshot struct {
	ID    string            `json:"id"`
	URL   string            `json:"url"`
	Files map[string]string `json:"files"`
}

func (s *Snapshot) clone() *Snapshot {
	return &Snapshot{ID: s.ID, URL: s.URL, Files: maps.Clone(s.Files)}
}

type CreateParams struct {
	Description string
	Filename    string
	Content     string
	Public      bool
}

// Store is the external snippet store.
type Store interface {
	Create(ctx context.Context, params CreateParams) (*Snapshot, error)
	Load(ctx context.Context, id string) (*Snapshot, error)
}
