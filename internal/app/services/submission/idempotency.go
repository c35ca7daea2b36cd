package submission

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oslobygg/fravik-service/internal/app/domain/fravik"
)

// NewIdempotencyKey builds a submission-scoped key: the wall-clock epoch in
// milliseconds plus a random suffix. One key identifies one submission intent
// across all of its retries.
func NewIdempotencyKey() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix)
}

// EnsureIdempotencyKey assigns a key if the application does not carry one
// yet. A key already present is kept, so retries of the same submission
// reuse it.
func EnsureIdempotencyKey(app *fravik.Application) string {
	if app.IdempotencyKey == "" {
		app.IdempotencyKey = NewIdempotencyKey()
	}
	return app.IdempotencyKey
}
