package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/brojonat/algofund/service/algorand"
	"github.com/brojonat/algofund/service/ledger"
	"github.com/brojonat/algofund/service/metrics"
)

const defaultConcurrency = 10

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	TemporalHost      string
	TemporalNamespace string
	TaskQueue         string

	// Concurrency caps both activity executions and workflow tasks. Zero means 10.
	Concurrency int

	// ExpiryInterval, when set, is applied to the campaign expiry schedule on Run.
	ExpiryInterval time.Duration

	Store     ledger.Repository
	Confirmer ConfirmerInterface
	Publisher PublisherInterface // nil skips donation events
	Explorer  algorand.Explorer
	Metrics   *metrics.Metrics // nil disables metrics
	Logger    *slog.Logger
}

// Worker runs the donation confirmation and campaign expiry workflows.
type Worker struct {
	schedules      *Client
	worker         worker.Worker
	expiryInterval time.Duration
	logger         *slog.Logger
}

// NewWorker dials Temporal and registers every workflow and activity on the task queue.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Store == nil || cfg.Confirmer == nil {
		return nil, fmt.Errorf("worker requires a store and a confirmer")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	logger := cfg.Logger.With("component", "temporal_worker", "task_queue", cfg.TaskQueue)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHost,
		Namespace: cfg.TemporalNamespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal: %w", err)
	}

	w := worker.New(c, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})
	register(w, NewActivities(cfg.Store, cfg.Confirmer, cfg.Publisher, cfg.Explorer, cfg.Metrics, logger))

	logger.Info("temporal worker created",
		"host", cfg.TemporalHost,
		"namespace", cfg.TemporalNamespace,
		"concurrency", concurrency,
	)

	return &Worker{
		schedules:      &Client{client: c, taskQueue: cfg.TaskQueue, logger: logger},
		worker:         w,
		expiryInterval: cfg.ExpiryInterval,
		logger:         logger,
	}, nil
}

// register adds the workflows and the Activities methods, which are registered under their method names.
func register(r worker.Registry, activities *Activities) {
	r.RegisterWorkflow(DonationConfirmationWorkflow)
	r.RegisterWorkflow(ExpireCampaignsWorkflow)
	r.RegisterActivity(activities)
}

// Run upserts the expiry schedule and processes tasks until ctx is cancelled.
// The Temporal connection is closed before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	defer w.schedules.Close()

	if w.expiryInterval > 0 {
		if err := w.schedules.UpsertExpirySchedule(ctx, w.expiryInterval); err != nil {
			return err
		}
	}

	stop := make(chan interface{})
	release := context.AfterFunc(ctx, func() { close(stop) })
	defer release()

	w.logger.Info("temporal worker running")
	if err := w.worker.Run(stop); err != nil {
		return fmt.Errorf("worker stopped with error: %w", err)
	}
	w.logger.Info("temporal worker stopped")
	return nil
}
