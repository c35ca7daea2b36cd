package submission

import "fmt"

// Phase identifies where a submission attempt is in its lifecycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseSubmitting Phase = "submitting"
	PhaseSuccess    Phase = "success"
	PhaseError      Phase = "error"
)

// State is the submission lifecycle state with its phase-specific payload:
// progress while submitting, the assigned application id on success, the
// failure message on error.
type State struct {
	Phase         Phase
	Progress      int
	ApplicationID int64
	Message       string
}

// Idle is the resting state.
func Idle() State { return State{Phase: PhaseIdle} }

// Validating is entered before any network activity.
func Validating() State { return State{Phase: PhaseValidating} }

// Submitting carries delivery progress in percent.
func Submitting(progress int) State {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return State{Phase: PhaseSubmitting, Progress: progress}
}

// Success carries the server-assigned application id.
func Success(applicationID int64) State {
	return State{Phase: PhaseSuccess, ApplicationID: applicationID}
}

// Failed carries the failure message shown to the user.
func Failed(message string) State {
	return State{Phase: PhaseError, Message: message}
}

func (s State) String() string {
	switch s.Phase {
	case PhaseSubmitting:
		return fmt.Sprintf("submitting (%d%%)", s.Progress)
	case PhaseSuccess:
		return fmt.Sprintf("success (id=%d)", s.ApplicationID)
	case PhaseError:
		return fmt.Sprintf("error: %s", s.Message)
	default:
		return string(s.Phase)
	}
}
