package drafts

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oslobygg/fravik-service/internal/app/metrics"
	"github.com/oslobygg/fravik-service/pkg/logger"
)

// DefaultSweepSchedule runs the expiry sweep nightly at 03:00.
const DefaultSweepSchedule = "0 3 * * *"

// Janitor periodically sweeps expired drafts on a cron schedule. It plugs
// into the system manager as a lifecycle-managed service.
type Janitor struct {
	svc      *Service
	schedule string
	log      *logger.Logger
	cron     *cron.Cron
}

// NewJanitor creates a janitor sweeping svc on schedule. An empty schedule
// selects the default.
func NewJanitor(svc *Service, schedule string, log *logger.Logger) *Janitor {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if log == nil {
		log = logger.NewDefault("drafts")
	}
	return &Janitor{svc: svc, schedule: schedule, log: log}
}

func (j *Janitor) Name() string { return "draft-janitor" }

// Start schedules the sweep and runs one immediately so a restart cannot
// stretch the expiry window.
func (j *Janitor) Start(ctx context.Context) error {
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(j.schedule, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		removed, err := j.svc.Sweep(sweepCtx)
		if err != nil {
			j.log.WithError(err).Error("draft sweep failed")
			return
		}
		metrics.RecordDraftsSwept(removed)
	}); err != nil {
		return err
	}
	j.cron.Start()

	removed, err := j.svc.Sweep(ctx)
	if err != nil {
		j.log.WithError(err).Error("initial draft sweep failed")
		return nil
	}
	metrics.RecordDraftsSwept(removed)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop(ctx context.Context) error {
	if j.cron == nil {
		return nil
	}
	done := j.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
