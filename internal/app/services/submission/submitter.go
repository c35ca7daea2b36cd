// Package submission implements the client side of handing in an exemption
// application: pre-submission validation, the multipart payload, idempotent
// delivery with retries, and the observable submission lifecycle.
package submission

import (
	"context"
	"strings"
	"sync"

	"github.com/oslobygg/fravik-service/internal/app/domain/fravik"
	"github.com/oslobygg/fravik-service/pkg/logger"
)

// DraftClearer removes the editing-session draft after a confirmed
// submission.
type DraftClearer interface {
	Clear(ctx context.Context, key string) error
}

// Submitter drives one submission attempt through its lifecycle and exposes
// the current state to callers. Safe for concurrent use.
type Submitter struct {
	client *Client
	drafts DraftClearer
	log    *logger.Logger

	mu    sync.Mutex
	state State
}

// NewSubmitter wires a submitter over a delivery client. A nil drafts clearer
// skips draft cleanup.
func NewSubmitter(client *Client, drafts DraftClearer, log *logger.Logger) *Submitter {
	if log == nil {
		log = logger.NewDefault("submission")
	}
	return &Submitter{
		client: client,
		drafts: drafts,
		log:    log,
		state:  Idle(),
	}
}

// State returns the current lifecycle state.
func (s *Submitter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Submitter) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Reset clears a failed attempt so the user can try again. Success and
// in-flight states are kept.
func (s *Submitter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase == PhaseError {
		s.state = Idle()
	}
}

// Submit validates and delivers the application. Validation failures stop the
// attempt before any network activity; their messages end up in the error
// state joined by newlines. On success the editing draft identified by
// draftKey is cleared.
func (s *Submitter) Submit(ctx context.Context, req Request) (SubmitResponse, error) {
	s.setState(Validating())

	ok, violations := ValidateBeforeSubmit(req.Application, req.Files)
	if !ok {
		msg := strings.Join(violations, "\n")
		s.setState(Failed(msg))
		return SubmitResponse{}, &APIError{StatusCode: 0, Code: "ValidationFailed", Message: msg, Details: violations}
	}

	EnsureIdempotencyKey(&req.Application)
	s.setState(Submitting(10))

	resp, err := s.client.SubmitWithRetry(ctx, req.Application, req.Files)
	if err != nil {
		s.log.WithError(err).Error("submission failed")
		s.setState(Failed(userMessage(err)))
		return SubmitResponse{}, err
	}

	s.setState(Submitting(90))
	if s.drafts != nil && req.DraftKey != "" {
		if err := s.drafts.Clear(ctx, req.DraftKey); err != nil {
			// The submission already succeeded; a stale draft only
			// costs a later expiry sweep.
			s.log.WithError(err).WithField("draft_key", req.DraftKey).Warn("draft cleanup failed")
		}
	}

	s.setState(Success(resp.ID))
	s.log.WithField("application_id", resp.ID).Info("application submitted")
	return resp, nil
}

// Request bundles everything one submission needs.
type Request struct {
	Application fravik.Application
	Files       Files
	DraftKey    string
}

func userMessage(err error) string {
	if apiErr, ok := err.(*APIError); ok {
		if apiErr.Code == CodeDuplicateSubmission {
			return "Søknaden er allerede sendt inn"
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return "Innsending feilet. Prøv igjen senere."
}
