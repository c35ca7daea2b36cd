// Package notify dispatches outbound notifications when an application is
// received or decided. Deployment integrations (SMTP, case systems) plug in
// behind the Dispatcher interface.
package notify

import (
	"context"

	"github.com/oslobygg/fravik-service/internal/app/domain/fravik"
	"github.com/oslobygg/fravik-service/pkg/logger"
)

// Dispatcher receives workflow events worth telling the outside world about.
type Dispatcher interface {
	SubmissionReceived(ctx context.Context, app fravik.Application)
	DecisionRecorded(ctx context.Context, app fravik.Application)
}

// LogDispatcher writes notification events to the structured log. It is the
// default when no outbound integration is configured.
type LogDispatcher struct {
	log *logger.Logger
}

var _ Dispatcher = (*LogDispatcher)(nil)

// NewLogDispatcher creates a dispatcher logging through log.
func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	if log == nil {
		log = logger.NewDefault("notify")
	}
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) SubmissionReceived(_ context.Context, app fravik.Application) {
	d.log.WithField("application_id", app.ID).
		WithField("project", app.ProjectName).
		WithField("urgent", app.IsUrgent).
		Info("submission received")
}

func (d *LogDispatcher) DecisionRecorded(_ context.Context, app fravik.Application) {
	status := fravik.Status("")
	if app.Processing != nil {
		status = app.Processing.Status
	}
	d.log.WithField("application_id", app.ID).
		WithField("project", app.ProjectName).
		WithField("status", status).
		Info("decision recorded")
}
