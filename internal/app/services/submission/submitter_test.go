package submission

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/oslobygg/fravik-service/internal/app/domain/fravik"
	"github.com/oslobygg/fravik-service/pkg/testutil"
)

type recordingClearer struct {
	keys []string
	err  error
}

func (c *recordingClearer) Clear(_ context.Context, key string) error {
	c.keys = append(c.keys, key)
	return c.err
}

func TestSubmitter_ValidationFailureSkipsNetwork(t *testing.T) {
	var calls int
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		calls++
		return testutil.JSONResponse(t, http.StatusOK, SubmitResponse{Success: true}), nil
	})
	sub := NewSubmitter(client, nil, nil)

	app := fravik.New() // empty, several violations
	_, err := sub.Submit(context.Background(), Request{Application: app})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if calls != 0 {
		t.Fatalf("network reached despite validation failure: %d calls", calls)
	}

	st := sub.State()
	if st.Phase != PhaseError {
		t.Fatalf("expected error state, got %s", st.Phase)
	}
	if !strings.Contains(st.Message, "Prosjektnavn er påkrevd") {
		t.Fatalf("violation missing from state message: %q", st.Message)
	}
	if !strings.Contains(st.Message, "\n") {
		t.Fatalf("violations not newline-joined: %q", st.Message)
	}
}

func TestSubmitter_SuccessClearsDraft(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return testutil.JSONResponse(t, http.StatusOK, SubmitResponse{Success: true, ID: 11, Status: "submitted"}), nil
	})
	clearer := &recordingClearer{}
	sub := NewSubmitter(client, clearer, nil)

	resp, err := sub.Submit(context.Background(), Request{
		Application: validMachineApplication(),
		DraftKey:    "fravik-draft",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.ID != 11 {
		t.Fatalf("unexpected id %d", resp.ID)
	}

	st := sub.State()
	if st.Phase != PhaseSuccess || st.ApplicationID != 11 {
		t.Fatalf("expected success state with id, got %+v", st)
	}
	if len(clearer.keys) != 1 || clearer.keys[0] != "fravik-draft" {
		t.Fatalf("draft not cleared: %v", clearer.keys)
	}
}

func TestSubmitter_DeliveryFailureKeepsDraft(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return testutil.JSONResponse(t, http.StatusInternalServerError, ErrorResponse{
			Error:   "InternalError",
			Message: "noe gikk galt",
		}), nil
	})
	clearer := &recordingClearer{}
	sub := NewSubmitter(client, clearer, nil)

	_, err := sub.Submit(context.Background(), Request{
		Application: validMachineApplication(),
		DraftKey:    "fravik-draft",
	})
	if err == nil {
		t.Fatalf("expected delivery error")
	}
	if len(clearer.keys) != 0 {
		t.Fatalf("draft cleared on failure: %v", clearer.keys)
	}
	if st := sub.State(); st.Phase != PhaseError {
		t.Fatalf("expected error state, got %s", st.Phase)
	}
}

func TestSubmitter_DuplicateSubmissionMessage(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return testutil.JSONResponse(t, http.StatusConflict, ErrorResponse{
			Error:         CodeDuplicateSubmission,
			Message:       "Søknaden er allerede sendt inn",
			ApplicationID: 5,
		}), nil
	})
	sub := NewSubmitter(client, nil, nil)

	_, err := sub.Submit(context.Background(), Request{Application: validMachineApplication()})
	if err == nil {
		t.Fatalf("expected error")
	}
	if st := sub.State(); st.Message != "Søknaden er allerede sendt inn" {
		t.Fatalf("unexpected user message: %q", st.Message)
	}
}

func TestSubmitter_ResetClearsOnlyErrorState(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return testutil.JSONResponse(t, http.StatusOK, SubmitResponse{Success: true, ID: 2}), nil
	})
	sub := NewSubmitter(client, nil, nil)

	if _, err := sub.Submit(context.Background(), Request{Application: fravik.New()}); err == nil {
		t.Fatalf("expected validation error")
	}
	sub.Reset()
	if st := sub.State(); st.Phase != PhaseIdle {
		t.Fatalf("expected idle after reset, got %s", st.Phase)
	}

	if _, err := sub.Submit(context.Background(), Request{Application: validMachineApplication()}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	sub.Reset()
	if st := sub.State(); st.Phase != PhaseSuccess {
		t.Fatalf("reset must not clear success, got %s", st.Phase)
	}
}
