package temporal

import (
	"context"
	"time"

	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/temporal/activities"
	"go.temporal.io/sdk/worker"
	"go.uber.org/fx"
)

// workerStopTimeout bounds how long running sweep activities may take to finish on shutdown
const workerStopTimeout = time.Minute

// Worker polls the sweep task queue
type Worker struct {
	worker    worker.Worker
	taskQueue string
	log       *logger.Logger
}

func NewWorker(client *TemporalClient, cfg *config.Configuration, sweeps *activities.SweepActivities, log *logger.Logger) *Worker {
	w := worker.New(client.Client, cfg.Temporal.TaskQueue, worker.Options{
		// a sweep already fans out to Sweep.Concurrency goroutines
		MaxConcurrentActivityExecutionSize: cfg.Sweep.Concurrency,
		WorkerStopTimeout:                  workerStopTimeout,
	})
	RegisterWorkflowsAndActivities(w, sweeps)

	return &Worker{
		worker:    w,
		taskQueue: cfg.Temporal.TaskQueue,
		log:       log,
	}
}

func (w *Worker) Start() error {
	w.log.Infow("starting temporal worker", "task_queue", w.taskQueue)
	return w.worker.Start()
}

func (w *Worker) Stop() {
	w.log.Infow("stopping temporal worker", "task_queue", w.taskQueue)
	w.worker.Stop()
}

// RegisterWithLifecycle ties the worker to the fx app. Stop gives up waiting
// when the fx stop deadline passes.
func (w *Worker) RegisterWithLifecycle(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return w.Start()
		},
		OnStop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				defer close(done)
				w.Stop()
			}()

			select {
			case <-done:
			case <-ctx.Done():
				w.log.Errorw("timed out stopping temporal worker", "task_queue", w.taskQueue)
			}
			return nil
		},
	})
}
