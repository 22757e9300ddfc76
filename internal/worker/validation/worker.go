package validation

import (
	"context"
	"time"

	"github.com/vexlio/doorkeep/internal/progress"
	"github.com/vexlio/doorkeep/internal/setup"
	"github.com/vexlio/doorkeep/internal/worker/core"
	"github.com/vexlio/doorkeep/pkg/utils"
	"go.uber.org/zap"
)

// Worker runs the validation task on a fixed interval, with one early run
// shortly after startup to catch backlog accumulated while offline.
type Worker struct {
	validator *Validator
	bar       *progress.Bar
	reporter  *core.StatusReporter
	logger    *zap.Logger

	startupDelay time.Duration
	interval     time.Duration
}

// New creates a validation worker from the app bundle and a presence checker.
func New(app *setup.App, checker PresenceChecker, bar *progress.Bar, logger *zap.Logger) *Worker {
	cfg := &app.Config.Worker.Validation

	return &Worker{
		validator:    NewValidator(app.DB.Model().Join(), checker, cfg, logger),
		bar:          bar,
		reporter:     core.NewStatusReporter(app.StatusClient, "validation", logger),
		logger:       logger,
		startupDelay: time.Duration(cfg.StartupDelaySeconds) * time.Second,
		interval:     time.Duration(cfg.CheckIntervalMinutes) * time.Minute,
	}
}

// Start begins the worker's main loop. Returns when the context is
// cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Validation worker started",
		zap.String("workerID", w.reporter.GetWorkerID()),
		zap.Duration("interval", w.interval))

	w.reporter.Start(ctx)
	defer w.reporter.Stop()

	w.bar.SetTotal(100)

	// First run happens shortly after startup rather than a full interval
	// later, so joins that matured while the worker was down are handled
	// promptly.
	if utils.ContextSleep(ctx, w.startupDelay) == utils.SleepCancelled {
		return
	}

	for {
		w.bar.Reset()
		w.reporter.SetHealthy(true)

		w.runOnce(ctx)

		if utils.ContextSleepWithLog(ctx, w.interval, w.logger, "Context cancelled, stopping validation worker") == utils.SleepCancelled {
			return
		}
	}
}

// runOnce executes a single validation tick. Errors mark the worker
// unhealthy and are retried on the next tick rather than aborting the loop.
func (w *Worker) runOnce(ctx context.Context) {
	now := time.Now().UTC()

	// Step 1: Find pending joins past the grace period (20%)
	w.bar.SetStepMessage("Finding validation candidates", 20)
	w.reporter.UpdateStatus("Finding validation candidates", 20)

	candidates, err := w.validator.FindCandidates(ctx, now)
	if err != nil {
		w.logger.Error("Failed to find validation candidates", zap.Error(err))
		w.reporter.SetHealthy(false)

		return
	}

	if len(candidates) == 0 {
		w.bar.SetStepMessage("No candidates", 100)
		w.reporter.UpdateStatus("No candidates", 100)

		return
	}

	// Step 2: Resolve member presence (60%)
	w.bar.SetStepMessage("Checking member presence", 60)
	w.reporter.UpdateStatus("Checking member presence", 60)

	plan := w.validator.ResolvePresence(ctx, candidates)

	// Step 3: Apply transitions (90%)
	w.bar.SetStepMessage("Applying transitions", 90)
	w.reporter.UpdateStatus("Applying transitions", 90)

	summary, err := w.validator.Apply(ctx, plan, now)
	if err != nil {
		w.reporter.SetHealthy(false)
	}

	summary.Candidates = len(candidates)

	// Step 4: Completed (100%)
	w.bar.SetStepMessage("Completed", 100)
	w.reporter.UpdateStatus("Completed", 100)

	w.logger.Info("Validation tick completed",
		zap.Int("candidates", summary.Candidates),
		zap.Int64("validated", summary.Validated),
		zap.Int64("leftEarly", summary.LeftEarly),
		zap.Int("skipped", summary.Skipped),
		zap.Int64("mismatch", summary.Mismatch))

	if summary.Mismatch > 0 {
		w.logger.Warn("Some planned transitions did not apply, rows changed concurrently",
			zap.Int64("mismatch", summary.Mismatch))
	}
}
