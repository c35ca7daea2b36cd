// Package postgres implements the application store backed by PostgreSQL.
// The full application document is stored as JSONB; identity, idempotency
// key and workflow status are lifted into columns for lookups.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/oslobygg/fravik-service/internal/app/domain/fravik"
	"github.com/oslobygg/fravik-service/internal/app/storage"
)

// Store implements storage.ApplicationStore backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.ApplicationStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS fravik_applications (
	id              BIGSERIAL PRIMARY KEY,
	idempotency_key TEXT UNIQUE,
	status          TEXT NOT NULL DEFAULT '',
	data            JSONB NOT NULL,
	submitted_at    TIMESTAMPTZ,
	updated_at      TIMESTAMPTZ NOT NULL
)`

// EnsureSchema creates the applications table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) CreateApplication(ctx context.Context, app fravik.Application) (fravik.Application, error) {
	now := time.Now().UTC()
	app.LastUpdatedAt = &now

	doc, err := json.Marshal(app)
	if err != nil {
		return fravik.Application{}, err
	}

	var idemKey sql.NullString
	if app.IdempotencyKey != "" {
		idemKey = sql.NullString{String: app.IdempotencyKey, Valid: true}
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO fravik_applications (idempotency_key, status, data, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, idemKey, statusOf(app), doc, app.SubmittedAt, now)

	if err := row.Scan(&app.ID); err != nil {
		if isUniqueViolation(err) {
			return fravik.Application{}, storage.ErrDuplicateIdempotencyKey
		}
		return fravik.Application{}, err
	}

	// Persist the assigned id inside the document as well.
	return s.UpdateApplication(ctx, app)
}

func (s *Store) UpdateApplication(ctx context.Context, app fravik.Application) (fravik.Application, error) {
	now := time.Now().UTC()
	app.LastUpdatedAt = &now

	doc, err := json.Marshal(app)
	if err != nil {
		return fravik.Application{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE fravik_applications
		SET status = $2, data = $3, submitted_at = $4, updated_at = $5
		WHERE id = $1
	`, app.ID, statusOf(app), doc, app.SubmittedAt, now)
	if err != nil {
		return fravik.Application{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fravik.Application{}, storage.ErrNotFound
	}
	return app, nil
}

func (s *Store) GetApplication(ctx context.Context, id int64) (fravik.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT data FROM fravik_applications WHERE id = $1
	`, id)
	return scanApplication(row)
}

func (s *Store) GetApplicationByIdempotencyKey(ctx context.Context, key string) (fravik.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT data FROM fravik_applications WHERE idempotency_key = $1
	`, key)
	return scanApplication(row)
}

func (s *Store) ListApplications(ctx context.Context) ([]fravik.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM fravik_applications ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []fravik.Application
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var app fravik.Application
		if err := json.Unmarshal(raw, &app); err != nil {
			return nil, fmt.Errorf("decode application document: %w", err)
		}
		result = append(result, app)
	}
	return result, rows.Err()
}

// Helpers ---------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (fravik.Application, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fravik.Application{}, storage.ErrNotFound
		}
		return fravik.Application{}, err
	}
	var app fravik.Application
	if err := json.Unmarshal(raw, &app); err != nil {
		return fravik.Application{}, fmt.Errorf("decode application document: %w", err)
	}
	return app, nil
}

func statusOf(app fravik.Application) string {
	if app.Processing == nil {
		return ""
	}
	return string(app.Processing.Status)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
