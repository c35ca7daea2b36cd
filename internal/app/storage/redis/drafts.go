// Package redis implements the draft store on Redis so editing-session
// drafts survive service restarts and can be shared across instances.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/oslobygg/fravik-service/internal/app/storage"
)

const keyPrefix = "fravik:draft:"

// DraftStore implements storage.DraftStore backed by Redis. Entries carry a
// TTL slightly past the retention window; DeleteExpiredDrafts handles
// entries written by older versions without a TTL.
type DraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ storage.DraftStore = (*DraftStore)(nil)

// NewDraftStore creates a draft store. ttl bounds how long entries live
// server-side; zero disables the Redis-level expiry.
func NewDraftStore(client *redis.Client, ttl time.Duration) *DraftStore {
	return &DraftStore{client: client, ttl: ttl}
}

func (s *DraftStore) SaveDraft(ctx context.Context, key string, draft storage.Draft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *DraftStore) LoadDraft(ctx context.Context, key string) (storage.Draft, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return storage.Draft{}, storage.ErrNotFound
		}
		return storage.Draft{}, fmt.Errorf("load draft: %w", err)
	}
	var draft storage.Draft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return storage.Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	return draft, nil
}

func (s *DraftStore) DeleteDraft(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func (s *DraftStore) DeleteExpiredDrafts(ctx context.Context, olderThan time.Time) (int, error) {
	cutoff := olderThan.UnixMilli()
	removed := 0

	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return removed, fmt.Errorf("scan draft %s: %w", key, err)
		}
		var draft storage.Draft
		if err := json.Unmarshal(raw, &draft); err != nil || draft.Timestamp < cutoff {
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return removed, fmt.Errorf("delete expired draft %s: %w", key, err)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan drafts: %w", err)
	}
	return removed, nil
}
