// Package rescore runs scheduled full-project score refreshes.
package rescore

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/waitroomxyz/api/internal/app/domain/project"
	"github.com/waitroomxyz/api/internal/app/services/waitlist"
	"github.com/waitroomxyz/api/internal/app/storage"
	"github.com/waitroomxyz/api/internal/logging"
)

// Worker rescores every active project on a cron schedule. It satisfies
// system.Service.
type Worker struct {
	projects storage.ProjectStore
	waitlist *waitlist.Service
	schedule string
	cron     *cron.Cron
	log      *logging.Logger
}

// New returns a Worker on the given cron schedule, e.g. "0 3 * * *" for a
// nightly run.
func New(projects storage.ProjectStore, wl *waitlist.Service, schedule string, log *logging.Logger) *Worker {
	if log == nil {
		log = logging.NewDefault("rescore-worker")
	}
	return &Worker{
		projects: projects,
		waitlist: wl,
		schedule: schedule,
		log:      log,
	}
}

func (w *Worker) Name() string { return "rescore-worker" }

// Start schedules the job. The first run happens at the next schedule tick,
// not at startup.
func (w *Worker) Start(ctx context.Context) error {
	w.cron = cron.New()
	if _, err := w.cron.AddFunc(w.schedule, func() { w.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("bad rescore schedule %q: %w", w.schedule, err)
	}
	w.cron.Start()
	w.log.WithField("schedule", w.schedule).Info("rescore worker started")
	return nil
}

// Stop halts the scheduler and waits for an in-flight run to finish.
func (w *Worker) Stop(ctx context.Context) error {
	if w.cron == nil {
		return nil
	}
	select {
	case <-w.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce rescores all active projects. Failures on one project do not stop
// the others.
func (w *Worker) RunOnce(ctx context.Context) {
	projects, err := w.projects.ListActiveProjects(ctx)
	if err != nil {
		w.log.WithError(err).Error("list projects for rescore failed")
		return
	}
	for i := range projects {
		w.rescoreProject(ctx, &projects[i])
	}
}

func (w *Worker) rescoreProject(ctx context.Context, proj *project.Project) {
	if err := w.waitlist.Rescore(ctx, proj); err != nil {
		w.log.WithError(err).WithField("project_id", proj.ID).Error("rescore failed")
		return
	}
	w.log.WithField("project_id", proj.ID).Debug("rescore ok")
}
