package worker

import (
	"context"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/usecase"
	"github.com/socialpulse-lab/socialpulse/pkg/utils/logging"
)

const jobTimeout = 30 * time.Minute

// SyncWorker runs the global metric sync on a cron schedule.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type SyncWorker struct {
	sync     *usecase.SyncUseCase
	schedule string
	cron     *cron.Cron
	cancel   context.CancelFunc
}

// NewSyncWorker creates a worker that runs the sync batch on the given
// cron schedule (standard 5-field expression).
func NewSyncWorker(syncUC *usecase.SyncUseCase, schedule string) *SyncWorker {
	return &SyncWorker{
		sync:     syncUC,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start schedules the periodic job and runs an initial sync in the
// background. Does not block server startup.
func (w *SyncWorker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	if _, err := w.cron.AddFunc(w.schedule, func() { w.runOnce(ctx) }); err != nil {
		return goerr.Wrap(err, "invalid sync schedule", goerr.V("schedule", w.schedule))
	}

	logging.Default().Info("sync worker starting", "schedule", w.schedule)
	w.cron.Start()
	go w.runOnce(ctx)

	return nil
}

// Stop cancels in-flight jobs and waits for scheduled ones to drain
func (w *SyncWorker) Stop() {
	logging.Default().Info("sync worker stopping")
	if w.cancel != nil {
		w.cancel()
	}
	<-w.cron.Stop().Done()
	logging.Default().Info("sync worker stopped")
}

// runOnce performs a single global sync cycle
func (w *SyncWorker) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	startTime := time.Now()
	logging.Default().Info("starting scheduled sync")

	result, err := w.sync.RunGlobalSync(ctx)
	if err != nil {
		logging.Default().Error("scheduled sync failed (will retry next cycle)",
			"error", err.Error())
		return
	}

	logging.Default().Info("scheduled sync completed",
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration", time.Since(startTime).String())
}
