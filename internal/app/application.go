// Package app wires the fravik service's stores, domain services, and
// lifecycle-managed components into one runnable application.
package app

import (
	"context"
	"time"

	"github.com/oslobygg/fravik-service/internal/app/services/applications"
	"github.com/oslobygg/fravik-service/internal/app/services/drafts"
	"github.com/oslobygg/fravik-service/internal/app/services/notify"
	"github.com/oslobygg/fravik-service/internal/app/services/review"
	"github.com/oslobygg/fravik-service/internal/app/storage"
	"github.com/oslobygg/fravik-service/internal/app/storage/memory"
	"github.com/oslobygg/fravik-service/internal/app/system"
	"github.com/oslobygg/fravik-service/pkg/logger"
)

// Stores bundles the persistence backends the application runs on. Leave a
// field nil to fall back to the in-memory store.
type Stores struct {
	Applications storage.ApplicationStore
	Drafts       storage.DraftStore
}

// Options tunes application construction.
type Options struct {
	Stores        Stores
	Notifier      notify.Dispatcher
	DraftMaxAge   time.Duration
	SweepSchedule string
	Logger        *logger.Logger
}

// Application aggregates the service layer behind one lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Applications *applications.Service
	Review       *review.Service
	Drafts       *drafts.Service
	Notifier     notify.Dispatcher
}

// New wires an application from the given options.
func New(opts Options) (*Application, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("app")
	}

	stores := opts.Stores
	if stores.Applications == nil || stores.Drafts == nil {
		mem := memory.New()
		if stores.Applications == nil {
			stores.Applications = mem
		}
		if stores.Drafts == nil {
			stores.Drafts = mem
		}
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewLogDispatcher(log.WithField("component", "notify"))
	}

	draftsSvc := drafts.New(stores.Drafts, opts.DraftMaxAge, log.WithField("component", "drafts"))

	a := &Application{
		manager:      system.NewManager(),
		log:          log,
		Applications: applications.New(stores.Applications, log.WithField("component", "applications")),
		Review:       review.New(stores.Applications, notifier, log.WithField("component", "review")),
		Drafts:       draftsSvc,
		Notifier:     notifier,
	}

	janitor := drafts.NewJanitor(draftsSvc, opts.SweepSchedule, log.WithField("component", "drafts"))
	if err := a.manager.Register(janitor); err != nil {
		return nil, err
	}
	return a, nil
}

// Start brings up the lifecycle-managed components.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop shuts the lifecycle-managed components down in reverse order.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
