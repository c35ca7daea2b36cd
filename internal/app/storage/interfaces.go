// Package storage defines the persistence contracts for the fravik service.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/oslobygg/fravik-service/internal/app/domain/fravik"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateIdempotencyKey is returned when a create collides with an
// already-stored idempotency key. Callers must not retry past it.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// ApplicationStore persists submitted exemption applications. The store
// assigns the integer application id on create.
type ApplicationStore interface {
	CreateApplication(ctx context.Context, app fravik.Application) (fravik.Application, error)
	UpdateApplication(ctx context.Context, app fravik.Application) (fravik.Application, error)
	GetApplication(ctx context.Context, id int64) (fravik.Application, error)
	GetApplicationByIdempotencyKey(ctx context.Context, key string) (fravik.Application, error)
	ListApplications(ctx context.Context) ([]fravik.Application, error)
}

// Draft is the stored shape of an editing-session snapshot: the full
// application plus the epoch-millisecond save time.
type Draft struct {
	Data      fravik.Application `json:"data"`
	Timestamp int64              `json:"timestamp"`
}

// DraftStore is a key-value store for editing-session drafts.
type DraftStore interface {
	SaveDraft(ctx context.Context, key string, draft Draft) error
	LoadDraft(ctx context.Context, key string) (Draft, error)
	DeleteDraft(ctx context.Context, key string) error
	DeleteExpiredDrafts(ctx context.Context, olderThan time.Time) (int, error)
}
