package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/oslobygg/fravik-service/internal/app/domain/fravik"
	"github.com/oslobygg/fravik-service/pkg/logger"
)

// CodeDuplicateSubmission is the server error code for an idempotency-key
// collision. It is final: the original submission already went through.
const CodeDuplicateSubmission = "DuplicateSubmission"

// SubmitResponse is the server's acknowledgement of a stored submission.
type SubmitResponse struct {
	Success        bool   `json:"success"`
	ID             int64  `json:"id"`
	Status         string `json:"status"`
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotencyKey"`
	SubmittedBy    string `json:"submittedBy,omitempty"`
	SubmittedAt    string `json:"submittedAt,omitempty"`
}

// ErrorResponse is the server's error body.
type ErrorResponse struct {
	Error         string   `json:"error"`
	Message       string   `json:"message"`
	Details       []string `json:"details,omitempty"`
	ApplicationID int64    `json:"applicationId,omitempty"`
}

// APIError is a failed submission attempt. StatusCode 0 means the request
// never reached the server.
type APIError struct {
	StatusCode    int
	Code          string
	Message       string
	Details       []string
	ApplicationID int64
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("submission failed: %s", e.Message)
	}
	return fmt.Sprintf("submission failed (%d %s): %s", e.StatusCode, e.Code, e.Message)
}

// Transient reports whether retrying the same request could succeed. Client
// errors and duplicate submissions are final; server errors and transport
// failures are worth retrying.
func (e *APIError) Transient() bool {
	if e.Code == CodeDuplicateSubmission {
		return false
	}
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return false
	}
	return true
}

// Client delivers applications to the submission endpoint with bounded
// retries on transient failures.
type Client struct {
	endpoint   string
	httpClient *http.Client
	log        *logger.Logger

	maxRetries int
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries bounds the total number of attempts.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBaseDelay sets the first backoff delay. Each further retry doubles it.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// NewClient creates a submission client for the given endpoint URL.
func NewClient(endpoint string, log *logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.NewDefault("submission")
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
		maxRetries: 3,
		baseDelay:  time.Second,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Submit performs a single delivery attempt.
func (c *Client) Submit(ctx context.Context, app fravik.Application, files Files) (SubmitResponse, error) {
	body, contentType, err := buildPayload(app, files)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Idempotency-Key", app.IdempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SubmitResponse{}, &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return SubmitResponse{}, &APIError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var body ErrorResponse
		if json.Unmarshal(raw, &body) == nil && body.Error != "" {
			apiErr.Code = body.Error
			apiErr.Message = body.Message
			apiErr.Details = body.Details
			apiErr.ApplicationID = body.ApplicationID
		}
		return SubmitResponse{}, apiErr
	}

	var out SubmitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return SubmitResponse{}, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return out, nil
}

// SubmitWithRetry delivers the application, retrying transient failures with
// exponential backoff. The application keeps one idempotency key across all
// attempts so the server can collapse duplicates.
func (c *Client) SubmitWithRetry(ctx context.Context, app fravik.Application, files Files) (SubmitResponse, error) {
	EnsureIdempotencyKey(&app)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			delay := c.baseDelay * (1 << (attempt - 2))
			c.log.WithField("attempt", attempt).
				WithField("delay", delay.String()).
				Warn("retrying submission")
			if err := c.sleep(ctx, delay); err != nil {
				return SubmitResponse{}, err
			}
		}

		resp, err := c.Submit(ctx, app, files)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Transient() {
			return SubmitResponse{}, err
		}
	}
	return SubmitResponse{}, lastErr
}

// Payload ---------------------------------------------------------------------

// buildPayload assembles the multipart body: the application as a JSON part
// named "application", the advisor attachment under its own name, and each
// documentation file as "documentation_<n>".
func buildPayload(app fravik.Application, files Files) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreatePart(jsonPartHeader("application"))
	if err != nil {
		return nil, "", err
	}
	if err := json.NewEncoder(part).Encode(app); err != nil {
		return nil, "", err
	}

	if f := files.AdvisorAttachment; f != nil {
		if err := writeFilePart(w, "advisorAttachment", f); err != nil {
			return nil, "", err
		}
	}
	for i, f := range files.Documentation {
		if err := writeFilePart(w, fmt.Sprintf("documentation_%d", i), f); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func jsonPartHeader(field string) textproto.MIMEHeader {
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, field))
	h.Set("Content-Type", "application/json")
	return h
}

func writeFilePart(w *multipart.Writer, field string, f *Attachment) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f.Filename))
	h.Set("Content-Type", f.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(f.Content)
	return err
}
