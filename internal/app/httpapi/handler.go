// Package httpapi exposes the fravik service over REST: the multipart submit
// endpoint used by the form frontend and the review endpoints used by the
// internal processing surface.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "github.com/oslobygg/fravik-service/internal/app"
	"github.com/oslobygg/fravik-service/internal/app/domain/fravik"
	"github.com/oslobygg/fravik-service/internal/app/metrics"
	"github.com/oslobygg/fravik-service/internal/app/services/drafts"
	"github.com/oslobygg/fravik-service/internal/app/services/review"
	"github.com/oslobygg/fravik-service/internal/app/services/submission"
	"github.com/oslobygg/fravik-service/internal/app/storage"
	"github.com/oslobygg/fravik-service/internal/middleware"
	"github.com/oslobygg/fravik-service/pkg/logger"
)

// maxSubmitBody bounds the whole multipart request: the JSON part plus the
// advisor attachment and documentation files.
const maxSubmitBody = 64 << 20

// handler bundles the HTTP endpoints over the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
	now func() time.Time
}

// NewHandler returns a router exposing the REST API.
func NewHandler(application *app.Application, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{
		app: application,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}

	r := mux.NewRouter()
	r.Use(middleware.Logging(log))
	r.HandleFunc("/api/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/api/submit", h.submit).Methods(http.MethodPost)
	r.HandleFunc("/api/submissions", h.list).Methods(http.MethodGet)
	r.HandleFunc("/api/submissions/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/api/submissions/{id}/review/{stage}", h.stageReview).Methods(http.MethodPost)
	r.HandleFunc("/api/submissions/{id}/revision/resume", h.resumeRevision).Methods(http.MethodPost)
	r.HandleFunc("/api/submissions/{id}/machines/{machineId}/decision", h.machineDecision).Methods(http.MethodPost)
	r.HandleFunc("/api/submissions/{id}/group-recommendation", h.groupRecommendation).Methods(http.MethodPost)
	r.HandleFunc("/api/submissions/{id}/decision", h.ownerDecision).Methods(http.MethodPost)
	r.HandleFunc("/api/drafts/{key}", h.saveDraft).Methods(http.MethodPut)
	r.HandleFunc("/api/drafts/{key}", h.loadDraft).Methods(http.MethodGet)
	r.HandleFunc("/api/drafts/{key}", h.deleteDraft).Methods(http.MethodDelete)
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Submission ------------------------------------------------------------------

// submit accepts the multipart payload built by the form client: an
// "application" JSON part plus optional file parts. Duplicate idempotency
// keys return the already-stored application as a conflict.
func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBody)
	if err := r.ParseMultipartForm(maxSubmitBody); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "InvalidPayload", fmt.Sprintf("ugyldig forespørsel: %v", err), nil)
		return
	}

	raw := r.FormValue("application")
	if raw == "" {
		writeErrorCode(w, http.StatusBadRequest, "InvalidPayload", "application-delen mangler", nil)
		return
	}
	var appData fravik.Application
	if err := json.Unmarshal([]byte(raw), &appData); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "InvalidPayload", fmt.Sprintf("ugyldig søknad: %v", err), nil)
		return
	}

	files, err := h.collectFiles(r)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "InvalidPayload", err.Error(), nil)
		return
	}

	if ok, violations := submission.ValidateBeforeSubmit(appData, files); !ok {
		metrics.RecordSubmission("invalid")
		writeErrorCode(w, http.StatusBadRequest, "ValidationFailed", "Søknaden er ikke gyldig", violations)
		return
	}

	// A payload carrying an existing id is a round-trip of a stored case
	// (revision after a documentation request); update it in place.
	if appData.ID != 0 {
		h.update(w, r, appData, files)
		return
	}

	if key := r.Header.Get("Idempotency-Key"); key != "" && appData.IdempotencyKey == "" {
		appData.IdempotencyKey = key
	}
	submission.EnsureIdempotencyKey(&appData)

	if existing, err := h.app.Applications.GetByIdempotencyKey(r.Context(), appData.IdempotencyKey); err == nil {
		metrics.RecordSubmission("duplicate")
		h.writeDuplicate(w, existing)
		return
	}

	now := h.now()
	appData.SubmittedAt = &now
	if appData.Processing == nil {
		appData.Processing = &fravik.Processing{}
	}
	appData.Processing.Status = fravik.StatusSubmitted
	if f := files.AdvisorAttachment; f != nil {
		appData.AdvisorAttachment = f.Filename
	}

	created, err := h.app.Applications.Create(r.Context(), appData)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateIdempotencyKey) {
			// Lost the race against a concurrent retry of the same key.
			if existing, lookupErr := h.app.Applications.GetByIdempotencyKey(r.Context(), appData.IdempotencyKey); lookupErr == nil {
				metrics.RecordSubmission("duplicate")
				h.writeDuplicate(w, existing)
				return
			}
		}
		metrics.RecordSubmission("error")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	metrics.RecordSubmission("stored")
	h.app.Notifier.SubmissionReceived(r.Context(), created)
	h.log.WithField("application_id", created.ID).
		WithField("project", created.ProjectName).
		Info("application received")

	writeJSON(w, http.StatusCreated, submission.SubmitResponse{
		Success:        true,
		ID:             created.ID,
		Status:         string(fravik.StatusSubmitted),
		Message:        "Søknaden er mottatt",
		IdempotencyKey: created.IdempotencyKey,
		SubmittedBy:    created.SubmittedBy,
		SubmittedAt:    now.Format(time.RFC3339),
	})
}

// update overwrites a stored case with a revised payload, keeping the
// stored processing record and idempotency key authoritative.
func (h *handler) update(w http.ResponseWriter, r *http.Request, appData fravik.Application, files submission.Files) {
	stored, err := h.app.Applications.Get(r.Context(), appData.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	appData.IdempotencyKey = stored.IdempotencyKey
	appData.Processing = stored.Processing
	appData.SubmittedAt = stored.SubmittedAt
	if f := files.AdvisorAttachment; f != nil {
		appData.AdvisorAttachment = f.Filename
	}

	updated, err := h.app.Applications.Update(r.Context(), appData)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.log.WithField("application_id", updated.ID).Info("application revised")

	writeJSON(w, http.StatusOK, submission.SubmitResponse{
		Success:        true,
		ID:             updated.ID,
		Status:         statusOf(updated),
		Message:        "Søknaden er oppdatert",
		IdempotencyKey: updated.IdempotencyKey,
		SubmittedBy:    updated.SubmittedBy,
	})
}

func statusOf(app fravik.Application) string {
	if app.Processing == nil {
		return ""
	}
	return string(app.Processing.Status)
}

func (h *handler) writeDuplicate(w http.ResponseWriter, existing fravik.Application) {
	writeJSON(w, http.StatusConflict, submission.ErrorResponse{
		Error:         submission.CodeDuplicateSubmission,
		Message:       "Søknaden er allerede sendt inn",
		ApplicationID: existing.ID,
	})
}

func (h *handler) collectFiles(r *http.Request) (submission.Files, error) {
	var files submission.Files
	if r.MultipartForm == nil {
		return files, nil
	}

	read := func(name string) (*submission.Attachment, error) {
		headers := r.MultipartForm.File[name]
		if len(headers) == 0 {
			return nil, nil
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("kunne ikke lese filen %s", fh.Filename)
		}
		defer f.Close()
		content, err := io.ReadAll(io.LimitReader(f, submission.MaxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("kunne ikke lese filen %s", fh.Filename)
		}
		return &submission.Attachment{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        int64(len(content)),
			Content:     content,
		}, nil
	}

	advisor, err := read("advisorAttachment")
	if err != nil {
		return files, err
	}
	files.AdvisorAttachment = advisor

	for i := 0; ; i++ {
		doc, err := read(fmt.Sprintf("documentation_%d", i))
		if err != nil {
			return files, err
		}
		if doc == nil {
			break
		}
		files.Documentation = append(files.Documentation, doc)
	}
	return files, nil
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	apps, err := h.app.Applications.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	appData, err := h.app.Applications.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appData)
}

// Review ----------------------------------------------------------------------

func (h *handler) stageReview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	stage := fravik.Stage(mux.Vars(r)["stage"])

	var payload struct {
		DocumentationSufficient fravik.YesNo          `json:"documentationSufficient"`
		Assessment              string                `json:"assessment"`
		Recommendation          fravik.Recommendation `json:"recommendation"`
		Reviewer                string                `json:"reviewer"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Review.RecordStageReview(r.Context(), id, stage, review.StageInput{
		DocumentationSufficient: payload.DocumentationSufficient,
		Assessment:              payload.Assessment,
		Recommendation:          payload.Recommendation,
		Reviewer:                payload.Reviewer,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) resumeRevision(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	updated, err := h.app.Review.ResumeAfterRevision(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) machineDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	machineID := mux.Vars(r)["machineId"]

	var payload fravik.MachineDecision
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Review.RecordMachineDecision(r.Context(), id, machineID, payload)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) groupRecommendation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var payload struct {
		Recommendation fravik.Recommendation `json:"recommendation"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Review.SetGroupRecommendation(r.Context(), id, payload.Recommendation)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) ownerDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var payload struct {
		AgreesWithGroup fravik.YesNo          `json:"agreesWithGroup"`
		Justification   string                `json:"justification"`
		Recommendation  fravik.Recommendation `json:"recommendation"`
		DecidedBy       string                `json:"decidedBy"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Review.RecordOwnerDecision(r.Context(), id, review.OwnerInput{
		AgreesWithGroup: payload.AgreesWithGroup,
		Justification:   payload.Justification,
		Recommendation:  payload.Recommendation,
		DecidedBy:       payload.DecidedBy,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if updated.Processing != nil {
		metrics.RecordDecision(string(updated.Processing.Status))
	}
	writeJSON(w, http.StatusOK, updated)
}

// Drafts ----------------------------------------------------------------------

func (h *handler) saveDraft(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var appData fravik.Application
	if err := decodeJSON(r.Body, &appData); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Drafts.Save(r.Context(), key, appData); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) loadDraft(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	appData, err := h.app.Drafts.Load(r.Context(), key)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appData)
}

func (h *handler) deleteDraft(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := h.app.Drafts.Clear(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Helpers ---------------------------------------------------------------------

func (h *handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "InvalidPayload", "ugyldig søknads-id", nil)
		return 0, false
	}
	return id, true
}

// writeServiceError maps service errors onto HTTP statuses.
func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "NotFound", "fant ikke ressursen", nil)
	case errors.Is(err, drafts.ErrExpired):
		writeErrorCode(w, http.StatusGone, "DraftExpired", "utkastet er utløpt", nil)
	case errors.Is(err, review.ErrNotSubmitted),
		errors.Is(err, review.ErrInvalidTransition),
		errors.Is(err, review.ErrStageNotActive),
		errors.Is(err, review.ErrRecommendationDerived),
		errors.Is(err, review.ErrDecisionsPending),
		errors.Is(err, review.ErrJustificationRequired):
		writeErrorCode(w, http.StatusConflict, "WorkflowConflict", err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeErrorCode(w, status, http.StatusText(status), err.Error(), nil)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string, details []string) {
	writeJSON(w, status, submission.ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}
