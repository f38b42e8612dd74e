// internal/app/orchestrator.go
package app

import (
	"context"
	"fmt"
	"time"

	"contest_lifecycle/internal/domain/lifecycle"
	"contest_lifecycle/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Sweeper runs a single sweep. TransitionService implements it.
type Sweeper interface {
	RunSweep(ctx context.Context, kind lifecycle.Kind, now time.Time) (*lifecycle.SweepResult, error)
}

// Reporter receives batch results that need an operator's attention.
type Reporter interface {
	ReportBatch(ctx context.Context, result *BatchResult)
}

// SweepReport is the outcome of one sweep inside a batch run.
type SweepReport struct {
	Kind       lifecycle.Kind         `json:"kind"`
	Succeeded  bool                   `json:"succeeded"`
	DurationMs int64                  `json:"durationMs"`
	Error      string                 `json:"error,omitempty"`
	Result     *lifecycle.SweepResult `json:"result,omitempty"`
}

// BatchResult aggregates one orchestrator run.
type BatchResult struct {
	RunID           string                          `json:"runId"`
	StartedAt       time.Time                       `json:"startedAt"`
	Sweeps          map[lifecycle.Kind]*SweepReport `json:"sweeps"`
	AllSucceeded    bool                            `json:"allSucceeded"`
	TotalDurationMs int64                           `json:"totalDurationMs"`
}

// EntityErrors counts per-entity failures across all sweeps.
func (r *BatchResult) EntityErrors() int {
	total := 0
	for _, rep := range r.Sweeps {
		if rep.Result != nil {
			total += len(rep.Result.Errors)
		}
	}
	return total
}

// Orchestrator runs the enabled sweeps one after another in SweepOrder.
type Orchestrator struct {
	sweeper  Sweeper
	enabled  map[lifecycle.Kind]bool
	logger   logrus.FieldLogger
	now      func() time.Time
	reporter Reporter
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// WithReporter sets who is told about runs with failures.
func WithReporter(r Reporter) OrchestratorOption {
	return func(o *Orchestrator) { o.reporter = r }
}

func NewOrchestrator(sweeper Sweeper, enabled []lifecycle.Kind, logger logrus.FieldLogger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		sweeper: sweeper,
		enabled: make(map[lifecycle.Kind]bool, len(enabled)),
		logger:  logger,
		now:     time.Now,
	}
	for _, k := range enabled {
		o.enabled[k] = true
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EnabledKinds returns the sweeps this orchestrator runs, in run order.
func (o *Orchestrator) EnabledKinds() []lifecycle.Kind {
	kinds := make([]lifecycle.Kind, 0, len(o.enabled))
	for _, k := range lifecycle.SweepOrder {
		if o.enabled[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// RunAll runs every enabled sweep and never returns an error: failures are
// reported per sweep in the result.
func (o *Orchestrator) RunAll(ctx context.Context) *BatchResult {
	started := o.now()
	result := &BatchResult{
		RunID:        uuid.NewString(),
		StartedAt:    started,
		Sweeps:       make(map[lifecycle.Kind]*SweepReport),
		AllSucceeded: true,
	}
	log := o.logger.WithField("run_id", result.RunID)
	log.WithField("sweeps", o.EnabledKinds()).Info("Batch run started")

	for _, kind := range o.EnabledKinds() {
		rep := o.runSweep(ctx, kind)
		result.Sweeps[kind] = rep
		if !rep.Succeeded {
			result.AllSucceeded = false
			log.WithFields(logrus.Fields{"kind": kind, "error": rep.Error}).Error("Sweep failed")
			continue
		}
		log.WithFields(logrus.Fields{
			"kind":        kind,
			"candidates":  rep.Result.Candidates,
			"updated":     rep.Result.Updated,
			"skipped":     rep.Result.Skipped,
			"notified":    rep.Result.Notified,
			"errors":      len(rep.Result.Errors),
			"duration_ms": rep.DurationMs,
		}).Info("Sweep finished")
	}

	result.TotalDurationMs = o.now().Sub(started).Milliseconds()
	metrics.RecordBatchRun(result.AllSucceeded)
	log.WithFields(logrus.Fields{
		"all_succeeded":     result.AllSucceeded,
		"total_duration_ms": result.TotalDurationMs,
	}).Info("Batch run finished")

	if o.reporter != nil && (!result.AllSucceeded || result.EntityErrors() > 0) {
		o.reporter.ReportBatch(ctx, result)
	}
	return result
}

// runSweep captures the sweep's clock and contains both errors and panics.
func (o *Orchestrator) runSweep(ctx context.Context, kind lifecycle.Kind) (rep *SweepReport) {
	now := o.now()
	rep = &SweepReport{Kind: kind}
	defer func() {
		if r := recover(); r != nil {
			rep.Succeeded = false
			rep.Result = nil
			rep.Error = fmt.Sprintf("panic: %v", r)
		}
		elapsed := o.now().Sub(now)
		rep.DurationMs = elapsed.Milliseconds()
		metrics.RecordSweep(string(kind), elapsed, !rep.Succeeded)
	}()

	res, err := o.sweeper.RunSweep(ctx, kind, now)
	if err != nil {
		rep.Error = err.Error()
		return rep
	}
	rep.Succeeded = true
	rep.Result = res
	return rep
}
