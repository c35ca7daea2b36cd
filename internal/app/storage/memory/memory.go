// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/oslobygg/fravik-service/internal/app/domain/fravik"
	"github.com/oslobygg/fravik-service/internal/app/storage"
)

// Store is an in-memory application and draft store.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	applications map[int64]fravik.Application
	byIdemKey    map[string]int64
	drafts       map[string]storage.Draft
}

var _ storage.ApplicationStore = (*Store)(nil)
var _ storage.DraftStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:       1,
		applications: make(map[int64]fravik.Application),
		byIdemKey:    make(map[string]int64),
		drafts:       make(map[string]storage.Draft),
	}
}

// ApplicationStore implementation --------------------------------------------

func (s *Store) CreateApplication(_ context.Context, app fravik.Application) (fravik.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if app.IdempotencyKey != "" {
		if _, exists := s.byIdemKey[app.IdempotencyKey]; exists {
			return fravik.Application{}, storage.ErrDuplicateIdempotencyKey
		}
	}

	app.ID = s.nextID
	s.nextID++

	now := time.Now().UTC()
	app.LastUpdatedAt = &now

	s.applications[app.ID] = cloneApplication(app)
	if app.IdempotencyKey != "" {
		s.byIdemKey[app.IdempotencyKey] = app.ID
	}
	return app, nil
}

func (s *Store) UpdateApplication(_ context.Context, app fravik.Application) (fravik.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.applications[app.ID]
	if !ok {
		return fravik.Application{}, storage.ErrNotFound
	}

	app.SubmittedAt = original.SubmittedAt
	now := time.Now().UTC()
	app.LastUpdatedAt = &now

	s.applications[app.ID] = cloneApplication(app)
	return app, nil
}

func (s *Store) GetApplication(_ context.Context, id int64) (fravik.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.applications[id]
	if !ok {
		return fravik.Application{}, storage.ErrNotFound
	}
	return cloneApplication(app), nil
}

func (s *Store) GetApplicationByIdempotencyKey(_ context.Context, key string) (fravik.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdemKey[key]
	if !ok {
		return fravik.Application{}, storage.ErrNotFound
	}
	return cloneApplication(s.applications[id]), nil
}

func (s *Store) ListApplications(_ context.Context) ([]fravik.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]fravik.Application, 0, len(s.applications))
	for id := int64(1); id < s.nextID; id++ {
		if app, ok := s.applications[id]; ok {
			result = append(result, cloneApplication(app))
		}
	}
	return result, nil
}

// DraftStore implementation ---------------------------------------------------

func (s *Store) SaveDraft(_ context.Context, key string, draft storage.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft.Data = cloneApplication(draft.Data)
	s.drafts[key] = draft
	return nil
}

func (s *Store) LoadDraft(_ context.Context, key string) (storage.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	draft, ok := s.drafts[key]
	if !ok {
		return storage.Draft{}, storage.ErrNotFound
	}
	draft.Data = cloneApplication(draft.Data)
	return draft, nil
}

func (s *Store) DeleteDraft(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, key)
	return nil
}

func (s *Store) DeleteExpiredDrafts(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := olderThan.UnixMilli()
	removed := 0
	for key, draft := range s.drafts {
		if draft.Timestamp < cutoff {
			delete(s.drafts, key)
			removed++
		}
	}
	return removed, nil
}

// Helpers ---------------------------------------------------------------------

// cloneApplication deep-copies via JSON so callers can never mutate stored
// state through shared slices or maps.
func cloneApplication(app fravik.Application) fravik.Application {
	raw, err := json.Marshal(app)
	if err != nil {
		return app
	}
	var out fravik.Application
	if err := json.Unmarshal(raw, &out); err != nil {
		return app
	}
	return out
}
