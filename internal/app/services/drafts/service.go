// Package drafts manages editing-session snapshots: an application in
// progress is saved under a session key and restored on return, until it is
// submitted or grows too old.
package drafts

import (
	"context"
	"errors"
	"time"

	"github.com/oslobygg/fravik-service/internal/app/domain/fravik"
	"github.com/oslobygg/fravik-service/internal/app/storage"
	"github.com/oslobygg/fravik-service/pkg/logger"
)

// DefaultMaxAge is how long a draft stays restorable.
const DefaultMaxAge = 7 * 24 * time.Hour

// ErrExpired is returned when a stored draft is past its maximum age. The
// expired draft is discarded as a side effect.
var ErrExpired = errors.New("draft expired")

// Service stores and restores editing drafts.
type Service struct {
	store  storage.DraftStore
	maxAge time.Duration
	log    *logger.Logger
	now    func() time.Time
}

// New creates a draft service over store. A zero maxAge selects the default.
func New(store storage.DraftStore, maxAge time.Duration, log *logger.Logger) *Service {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if log == nil {
		log = logger.NewDefault("drafts")
	}
	return &Service{
		store:  store,
		maxAge: maxAge,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Save snapshots the application under key, stamped with the save time.
func (s *Service) Save(ctx context.Context, key string, app fravik.Application) error {
	return s.store.SaveDraft(ctx, key, storage.Draft{
		Data:      app,
		Timestamp: s.now().UnixMilli(),
	})
}

// Load restores the draft stored under key. A draft older than the maximum
// age is deleted and reported as expired rather than restored.
func (s *Service) Load(ctx context.Context, key string) (fravik.Application, error) {
	draft, err := s.store.LoadDraft(ctx, key)
	if err != nil {
		return fravik.Application{}, err
	}

	savedAt := time.UnixMilli(draft.Timestamp)
	if s.now().Sub(savedAt) > s.maxAge {
		if err := s.store.DeleteDraft(ctx, key); err != nil {
			s.log.WithError(err).WithField("draft_key", key).Warn("expired draft cleanup failed")
		}
		return fravik.Application{}, ErrExpired
	}
	return draft.Data, nil
}

// Clear removes the draft stored under key. Clearing an absent draft is not
// an error.
func (s *Service) Clear(ctx context.Context, key string) error {
	if err := s.store.DeleteDraft(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// Sweep deletes every draft past the maximum age and returns how many went.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.maxAge)
	removed, err := s.store.DeleteExpiredDrafts(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Info("expired drafts swept")
	}
	return removed, nil
}
