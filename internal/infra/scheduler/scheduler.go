package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"contest_lifecycle/internal/app"
	"contest_lifecycle/internal/infra/metrics"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// BatchJobName is the stable key the periodic batch is registered under.
const BatchJobName = "lifecycle-batch"

// BatchRunner runs one orchestrated batch. *app.Orchestrator implements it.
type BatchRunner interface {
	RunAll(ctx context.Context) *app.BatchResult
}

type BatchScheduler struct {
	cronEngine *cron.Cron
	runner     BatchRunner
	logger     logrus.FieldLogger

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// NewBatchScheduler builds a scheduler that never runs two batch ticks at once
// in this process: a tick that fires while the previous one is running is skipped.
func NewBatchScheduler(runner BatchRunner, logger logrus.FieldLogger) *BatchScheduler {
	cronLogger := cron.PrintfLogger(logger.WithField("component", "cron"))
	return &BatchScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.Local), // Use server's local time for cron
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner:     runner,
		logger:     logger,
		jobs:       make(map[string]cron.EntryID),
	}
}

// Register adds the batch job under name. Registering a name that already
// exists is a no-op and returns the existing entry.
func (s *BatchScheduler) Register(name, spec string) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.jobs[name]; ok {
		s.logger.WithField("job", name).Debug("Job already registered, keeping existing entry")
		return id, nil
	}
	id, err := s.cronEngine.AddFunc(spec, func() { s.runBatch(name) })
	if err != nil {
		return 0, fmt.Errorf("could not add cron job %q with spec %q: %w", name, spec, err)
	}
	s.jobs[name] = id
	return id, nil
}

// Handle is returned by Start; stopping through it is the only way to stop the engine.
type Handle struct {
	once sync.Once
	s    *BatchScheduler
}

// Start registers the batch job and starts the cron engine.
func (s *BatchScheduler) Start(spec string) (*Handle, error) {
	s.logger.Info("Starting batch scheduler...")
	if _, err := s.Register(BatchJobName, spec); err != nil {
		return nil, err
	}
	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{"job": BatchJobName, "spec": spec}).Info("Batch scheduler started.")
	return &Handle{s: s}, nil
}

// Stop stops the scheduler and waits for a running batch. Safe to call twice.
func (h *Handle) Stop() {
	h.once.Do(func() {
		h.s.logger.Info("Stopping batch scheduler...")
		ctx := h.s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
		<-ctx.Done()
		h.s.logger.Info("Batch scheduler gracefully stopped.")
	})
}

func (s *BatchScheduler) runBatch(name string) {
	log := s.logger.WithField("job", name)
	log.Info("Cron job triggered for lifecycle batch.")

	// No deadline: a batch runs every candidate to completion.
	result := s.runner.RunAll(context.Background())
	if result.AllSucceeded {
		metrics.RecordTrigger("cron", "success")
		log.WithField("run_id", result.RunID).Info("Lifecycle batch completed.")
		return
	}
	metrics.RecordTrigger("cron", "partial")
	log.WithField("run_id", result.RunID).Warn("Lifecycle batch completed with failed sweeps.")
}
