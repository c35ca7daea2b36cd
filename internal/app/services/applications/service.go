// Package applications manages exemption application records and the
// machine/infrastructure editing rules.
package applications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oslobygg/fravik-service/internal/app/domain/fravik"
	"github.com/oslobygg/fravik-service/internal/app/storage"
	"github.com/oslobygg/fravik-service/pkg/logger"
)

// ErrConfirmationRequired is returned when a machine delete is attempted
// without the caller confirming the action.
var ErrConfirmationRequired = errors.New("machine deletion requires confirmation")

// ErrMachineNotFound is returned for machine operations on unknown ids.
var ErrMachineNotFound = errors.New("machine not found")

// ErrWrongBranch is returned for machine operations on applications whose
// active branch is not the machine branch.
var ErrWrongBranch = errors.New("operation not valid for this application type")

// Service provides create/read/update operations on applications and their
// machine collections.
type Service struct {
	store storage.ApplicationStore
	log   *logger.Logger
}

// New constructs an application editing service.
func New(store storage.ApplicationStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("applications")
	}
	return &Service{store: store, log: log}
}

// Create persists a new application record.
func (s *Service) Create(ctx context.Context, app fravik.Application) (fravik.Application, error) {
	if app.Machines == nil {
		app.Machines = []fravik.Machine{}
	}
	created, err := s.store.CreateApplication(ctx, app)
	if err != nil {
		return fravik.Application{}, err
	}
	s.log.WithField("application_id", created.ID).Info("application created")
	return created, nil
}

// Get retrieves an application by id.
func (s *Service) Get(ctx context.Context, id int64) (fravik.Application, error) {
	return s.store.GetApplication(ctx, id)
}

// GetByIdempotencyKey retrieves the application stored under a submission's
// idempotency key.
func (s *Service) GetByIdempotencyKey(ctx context.Context, key string) (fravik.Application, error) {
	return s.store.GetApplicationByIdempotencyKey(ctx, key)
}

// List returns all stored applications in id order.
func (s *Service) List(ctx context.Context) ([]fravik.Application, error) {
	return s.store.ListApplications(ctx)
}

// Update replaces the stored application wholesale.
func (s *Service) Update(ctx context.Context, app fravik.Application) (fravik.Application, error) {
	return s.store.UpdateApplication(ctx, app)
}

// SetType switches the application branch, resetting the inactive branch to
// its defaults.
func (s *Service) SetType(ctx context.Context, id int64, t fravik.ApplicationType) (fravik.Application, error) {
	switch t {
	case fravik.TypeMachine, fravik.TypeInfrastructure, fravik.TypeUnset:
	default:
		return fravik.Application{}, fmt.Errorf("unknown application type %q", t)
	}

	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return fravik.Application{}, err
	}
	app.SetType(t)
	return s.store.UpdateApplication(ctx, app)
}

// AddMachine appends a machine to a machine-type application. The returned
// application carries the machine with its assigned id.
func (s *Service) AddMachine(ctx context.Context, id int64, m fravik.Machine) (fravik.Application, fravik.Machine, error) {
	if strings.TrimSpace(m.Type) == "" {
		return fravik.Application{}, fravik.Machine{}, fmt.Errorf("machine type is required")
	}

	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return fravik.Application{}, fravik.Machine{}, err
	}
	if app.Type != fravik.TypeMachine {
		return fravik.Application{}, fravik.Machine{}, ErrWrongBranch
	}

	added := app.AddMachine(m)
	app.RecomputeGroupRecommendation()
	updated, err := s.store.UpdateApplication(ctx, app)
	if err != nil {
		return fravik.Application{}, fravik.Machine{}, err
	}
	s.log.WithField("application_id", id).
		WithField("machine_id", added.ID).
		Info("machine added")
	return updated, added, nil
}

// UpdateMachine replaces the machine with the matching id wholesale; the id
// is immutable across edits.
func (s *Service) UpdateMachine(ctx context.Context, id int64, m fravik.Machine) (fravik.Application, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return fravik.Application{}, err
	}
	if app.Type != fravik.TypeMachine {
		return fravik.Application{}, ErrWrongBranch
	}
	if !app.ReplaceMachine(m) {
		return fravik.Application{}, ErrMachineNotFound
	}
	app.RecomputeGroupRecommendation()
	return s.store.UpdateApplication(ctx, app)
}

// RemoveMachine deletes a machine by id. The caller must pass confirmed=true;
// the UI asks the user before issuing the call. Any decision recorded against
// the machine is pruned with it.
func (s *Service) RemoveMachine(ctx context.Context, id int64, machineID string, confirmed bool) (fravik.Application, error) {
	if !confirmed {
		return fravik.Application{}, ErrConfirmationRequired
	}

	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return fravik.Application{}, err
	}
	if !app.RemoveMachine(machineID) {
		return fravik.Application{}, ErrMachineNotFound
	}
	app.RecomputeGroupRecommendation()
	updated, err := s.store.UpdateApplication(ctx, app)
	if err != nil {
		return fravik.Application{}, err
	}
	s.log.WithField("application_id", id).
		WithField("machine_id", machineID).
		Info("machine removed")
	return updated, nil
}

// UpdateInfrastructure replaces the infrastructure record of an
// infrastructure-type application.
func (s *Service) UpdateInfrastructure(ctx context.Context, id int64, infra fravik.Infrastructure) (fravik.Application, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return fravik.Application{}, err
	}
	if app.Type != fravik.TypeInfrastructure {
		return fravik.Application{}, ErrWrongBranch
	}
	app.Infrastructure = infra
	return s.store.UpdateApplication(ctx, app)
}
