// Package review implements the staged internal review of a submitted
// application: the BOI and project leader reviews, the working group's
// per-machine decisions, and the project owner's final decision.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oslobygg/fravik-service/internal/app/domain/fravik"
	"github.com/oslobygg/fravik-service/internal/app/services/notify"
	"github.com/oslobygg/fravik-service/internal/app/storage"
	"github.com/oslobygg/fravik-service/pkg/logger"
)

var (
	// ErrNotSubmitted is returned for review operations on applications
	// that have no processing record yet.
	ErrNotSubmitted = errors.New("application has not been submitted")

	// ErrInvalidTransition is returned when an operation would move the
	// workflow to a state the progression does not allow.
	ErrInvalidTransition = errors.New("workflow transition not allowed")

	// ErrStageNotActive is returned when a stage review is recorded while
	// the workflow is waiting on a different stage.
	ErrStageNotActive = errors.New("review stage not active")

	// ErrRecommendationDerived is returned when the group recommendation
	// is edited directly while it is derived from machine decisions.
	ErrRecommendationDerived = errors.New("group recommendation is derived from machine decisions")

	// ErrDecisionsPending is returned when the working group review is
	// concluded before every machine has a decision.
	ErrDecisionsPending = errors.New("machine decisions incomplete")

	// ErrJustificationRequired is returned when the owner diverges from
	// the working group without a justification.
	ErrJustificationRequired = errors.New("justification required when disagreeing with the working group")
)

// StageInput carries one review stage's answers.
type StageInput struct {
	DocumentationSufficient fravik.YesNo
	Assessment              string
	Recommendation          fravik.Recommendation
	Reviewer                string
}

// OwnerInput carries the project owner's decision.
type OwnerInput struct {
	AgreesWithGroup fravik.YesNo
	Justification   string
	// Recommendation is the owner's own conclusion, required when
	// AgreesWithGroup is "no"; the terminal status is taken from it.
	Recommendation fravik.Recommendation
	DecidedBy      string
}

// Service drives the review workflow over stored applications.
type Service struct {
	store    storage.ApplicationStore
	notifier notify.Dispatcher
	log      *logger.Logger
	now      func() time.Time
}

// New constructs a review service. A nil notifier disables notifications.
func New(store storage.ApplicationStore, notifier notify.Dispatcher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("review")
	}
	return &Service{
		store:    store,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// stageGate maps each review stage onto the status it is active in and the
// status reached when the stage concludes with sufficient documentation.
var stageGate = map[fravik.Stage]struct {
	active fravik.Status
	next   fravik.Status
}{
	fravik.StageBOI:   {fravik.StatusAwaitingBOIReview, fravik.StatusAwaitingPLReview},
	fravik.StagePL:    {fravik.StatusAwaitingPLReview, fravik.StatusAwaitingGroupReview},
	fravik.StageGroup: {fravik.StatusAwaitingGroupReview, fravik.StatusAwaitingOwnerDecision},
}

// BeginReview moves a freshly submitted application into the BOI review
// stage.
func (s *Service) BeginReview(ctx context.Context, id int64) (fravik.Application, error) {
	app, proc, err := s.load(ctx, id)
	if err != nil {
		return fravik.Application{}, err
	}
	if err := s.transition(proc, fravik.StatusAwaitingBOIReview); err != nil {
		return fravik.Application{}, err
	}
	return s.store.UpdateApplication(ctx, app)
}

// ResumeAfterRevision returns a revised application to the BOI review stage.
func (s *Service) ResumeAfterRevision(ctx context.Context, id int64) (fravik.Application, error) {
	app, proc, err := s.load(ctx, id)
	if err != nil {
		return fravik.Application{}, err
	}
	if proc.Status != fravik.StatusAwaitingENTRevision {
		return fravik.Application{}, fmt.Errorf("%w: status is %s", ErrInvalidTransition, proc.Status)
	}
	if err := s.transition(proc, fravik.StatusAwaitingBOIReview); err != nil {
		return fravik.Application{}, err
	}
	return s.store.UpdateApplication(ctx, app)
}

// RecordStageReview records one stage's two-phase review. An insufficient
// documentation answer routes the case back to the submitter without a
// recommendation; a sufficient answer requires a recommendation and advances
// the workflow. For the working group stage of a machine application the
// recommendation is derived, never authored: the input value is rejected and
// every machine must have a decision before the stage can conclude.
func (s *Service) RecordStageReview(ctx context.Context, id int64, stage fravik.Stage, input StageInput) (fravik.Application, error) {
	gate, ok := stageGate[stage]
	if !ok {
		return fravik.Application{}, fmt.Errorf("unknown review stage %q", stage)
	}

	app, proc, err := s.load(ctx, id)
	if err != nil {
		return fravik.Application{}, err
	}

	// A submitted case implicitly enters BOI review with the first review.
	if proc.Status == fravik.StatusSubmitted && stage == fravik.StageBOI {
		if err := s.transition(proc, fravik.StatusAwaitingBOIReview); err != nil {
			return fravik.Application{}, err
		}
	}
	if proc.Status != gate.active {
		return fravik.Application{}, fmt.Errorf("%w: %s review while status is %s", ErrStageNotActive, stage, proc.Status)
	}

	now := s.now()
	review := fravik.StageReview{
		DocumentationSufficient: input.DocumentationSufficient,
		Assessment:              input.Assessment,
		ReviewedAt:              &now,
		ReviewedBy:              input.Reviewer,
	}

	switch input.DocumentationSufficient {
	case fravik.No:
		// No recommendation is produced; the submitter must revise.
		proc.ApplyStage(stage, review)
		if err := s.transition(proc, fravik.StatusAwaitingENTRevision); err != nil {
			return fravik.Application{}, err
		}

	case fravik.Yes:
		rec := input.Recommendation
		if stage == fravik.StageGroup && app.RecommendationDerived() {
			if input.Recommendation != fravik.RecommendationUnset {
				return fravik.Application{}, ErrRecommendationDerived
			}
			derived, complete := fravik.AggregateMachineDecisions(&app)
			if !complete {
				return fravik.Application{}, ErrDecisionsPending
			}
			rec = derived
		}
		if rec == fravik.RecommendationUnset {
			return fravik.Application{}, fmt.Errorf("recommendation is required when documentation is sufficient")
		}
		review.Recommendation = rec
		proc.ApplyStage(stage, review)
		if err := s.transition(proc, gate.next); err != nil {
			return fravik.Application{}, err
		}

	default:
		return fravik.Application{}, fmt.Errorf("documentation sufficiency answer is required")
	}

	updated, err := s.store.UpdateApplication(ctx, app)
	if err != nil {
		return fravik.Application{}, err
	}
	s.log.WithField("application_id", id).
		WithField("stage", stage).
		WithField("status", proc.Status).
		Info("stage review recorded")
	return updated, nil
}

// RecordMachineDecision records the working group's verdict on one machine
// and synchronously recomputes the derived group recommendation before the
// record is persisted.
func (s *Service) RecordMachineDecision(ctx context.Context, id int64, machineID string, decision fravik.MachineDecision) (fravik.Application, error) {
	app, proc, err := s.load(ctx, id)
	if err != nil {
		return fravik.Application{}, err
	}
	if proc.Status != fravik.StatusAwaitingGroupReview {
		return fravik.Application{}, fmt.Errorf("%w: machine decisions while status is %s", ErrStageNotActive, proc.Status)
	}
	if _, ok := app.MachineByID(machineID); !ok {
		return fravik.Application{}, fmt.Errorf("machine %s: %w", machineID, storage.ErrNotFound)
	}
	switch decision.Decision {
	case fravik.DecisionApproved, fravik.DecisionRejected, fravik.DecisionUnset:
	default:
		return fravik.Application{}, fmt.Errorf("unknown decision %q", decision.Decision)
	}

	if proc.MachineDecisions == nil {
		proc.MachineDecisions = make(map[string]fravik.MachineDecision)
	}
	proc.MachineDecisions[machineID] = decision
	app.RecomputeGroupRecommendation()

	return s.store.UpdateApplication(ctx, app)
}

// SetGroupRecommendation sets the working group recommendation directly.
// Only allowed while the recommendation is not derived, i.e. for
// infrastructure applications.
func (s *Service) SetGroupRecommendation(ctx context.Context, id int64, rec fravik.Recommendation) (fravik.Application, error) {
	app, proc, err := s.load(ctx, id)
	if err != nil {
		return fravik.Application{}, err
	}
	if app.RecommendationDerived() {
		return fravik.Application{}, ErrRecommendationDerived
	}
	if proc.Status != fravik.StatusAwaitingGroupReview {
		return fravik.Application{}, fmt.Errorf("%w: group recommendation while status is %s", ErrStageNotActive, proc.Status)
	}
	proc.GroupRecommendation = rec
	return s.store.UpdateApplication(ctx, app)
}

// RecordOwnerDecision records the project owner's final decision and moves
// the workflow to its terminal state. Agreement ratifies the working group's
// recommendation; disagreement requires both a justification and the owner's
// own recommendation, which then determines the terminal status.
func (s *Service) RecordOwnerDecision(ctx context.Context, id int64, input OwnerInput) (fravik.Application, error) {
	app, proc, err := s.load(ctx, id)
	if err != nil {
		return fravik.Application{}, err
	}
	if proc.Status != fravik.StatusAwaitingOwnerDecision {
		return fravik.Application{}, fmt.Errorf("%w: owner decision while status is %s", ErrStageNotActive, proc.Status)
	}

	var final fravik.Status
	switch input.AgreesWithGroup {
	case fravik.Yes:
		terminal, ok := proc.GroupRecommendation.TerminalStatus()
		if !ok {
			return fravik.Application{}, fmt.Errorf("working group recommendation missing")
		}
		final = terminal

	case fravik.No:
		if strings.TrimSpace(input.Justification) == "" {
			return fravik.Application{}, ErrJustificationRequired
		}
		terminal, ok := input.Recommendation.TerminalStatus()
		if !ok {
			return fravik.Application{}, fmt.Errorf("owner recommendation required when disagreeing")
		}
		final = terminal
		proc.OwnerRecommendation = input.Recommendation

	default:
		return fravik.Application{}, fmt.Errorf("owner agreement answer is required")
	}

	now := s.now()
	proc.OwnerAgreesWithGroup = input.AgreesWithGroup
	proc.OwnerJustification = input.Justification
	proc.OwnerDecidedAt = &now
	proc.OwnerDecidedBy = input.DecidedBy
	if err := s.transition(proc, final); err != nil {
		return fravik.Application{}, err
	}

	updated, err := s.store.UpdateApplication(ctx, app)
	if err != nil {
		return fravik.Application{}, err
	}

	s.log.WithField("application_id", id).
		WithField("status", final).
		WithField("decided_by", input.DecidedBy).
		Info("owner decision recorded")
	if s.notifier != nil {
		s.notifier.DecisionRecorded(ctx, updated)
	}
	return updated, nil
}

// Helpers ---------------------------------------------------------------------

func (s *Service) load(ctx context.Context, id int64) (fravik.Application, *fravik.Processing, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return fravik.Application{}, nil, err
	}
	if app.Processing == nil || app.Processing.Status == "" {
		return fravik.Application{}, nil, ErrNotSubmitted
	}
	return app, app.Processing, nil
}

func (s *Service) transition(proc *fravik.Processing, next fravik.Status) error {
	if !proc.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, proc.Status, next)
	}
	proc.Status = next
	return nil
}
