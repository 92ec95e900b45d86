// Package pipeline runs the ordered batch steps that turn raw civic data into
// dashboard artifacts, and records what each run produced.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
	"github.com/couchcryptid/civic-data-etl/internal/schema"
)

// ErrSkipped marks a step that could not run because an optional input is
// missing. Skips are logged and recorded but do not fail the run.
var ErrSkipped = errors.New("skipped")

// ErrUnknownStep is returned when --only names a step that does not exist.
var ErrUnknownStep = errors.New("unknown step")

// Skip wraps a reason as ErrSkipped.
func Skip(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSkipped, fmt.Sprintf(format, args...))
}

// SkipIfMissing turns a not-exist error into a skip and returns other errors
// unchanged.
func SkipIfMissing(err error) error {
	if err != nil && errors.Is(err, fs.ErrNotExist) && !errors.Is(err, ErrSkipped) {
		return fmt.Errorf("%w: %w", ErrSkipped, err)
	}
	return err
}

// Step is one unit of the batch pipeline.
type Step interface {
	Name() string
	Title() string
	Run(ctx context.Context, rc *RunContext) error
}

// RunContext carries everything a step needs. The runner hands each step its
// own copy with a step-scoped logger.
type RunContext struct {
	RawDir    string
	Year      int
	ACSYear   int
	BatchSize int

	Catalog       schema.Catalog
	Neighborhoods *domain.Directory
	Geocoder      domain.Geocoder
	Loader        BatchLoader

	Out     *Sink
	Logger  *slog.Logger
	Metrics *observability.Metrics

	step string
}

// Raw joins path elements onto the raw input directory.
func (rc *RunContext) Raw(elem ...string) string {
	return filepath.Join(append([]string{rc.RawDir}, elem...)...)
}

// Step returns the name of the step the context was issued for.
func (rc *RunContext) Step() string { return rc.step }

// Read records n raw input records for the current step.
func (rc *RunContext) Read(n int) {
	rc.Metrics.RecordsRead.WithLabelValues(rc.step).Add(float64(n))
}

// Wrote records n output records for the current step.
func (rc *RunContext) Wrote(n int) {
	rc.Metrics.RecordsWritten.WithLabelValues(rc.step).Add(float64(n))
}

// Dropped records n discarded input records for the current step.
func (rc *RunContext) Dropped(reason string, n int) {
	if n > 0 {
		rc.Metrics.RecordsDropped.WithLabelValues(rc.step, reason).Add(float64(n))
	}
}

// Columns resolves a source schema against header and logs the result.
func (rc *RunContext) Columns(source string, header []string) (schema.Columns, error) {
	s, err := rc.Catalog.Schema(source)
	if err != nil {
		return nil, err
	}
	cols := s.Resolve(header)
	rc.Logger.Info("columns", append([]any{"source", source}, cols.LogAttrs()...)...)
	return cols, nil
}

// Runner executes steps in order and writes the run manifest.
type Runner struct {
	steps   []Step
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRunner creates a Runner. A nil clock uses real time.
func NewRunner(steps []Step, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Runner{steps: steps, clock: clock, logger: logger, metrics: metrics}
}

// Steps returns the registered steps in run order.
func (r *Runner) Steps() []Step { return r.steps }

// Run executes every step, or only the named one. A failing step does not
// stop later steps; all failures are returned joined. The manifest is written
// through rc.Out even when steps fail.
func (r *Runner) Run(ctx context.Context, rc *RunContext, only string) (*Manifest, error) {
	selected, err := r.selectSteps(only)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)
	started := r.clock.Now()

	r.metrics.PipelineRunning.Set(1)
	defer r.metrics.PipelineRunning.Set(0)

	logger.Info("pipeline started", "steps", len(selected), "raw_dir", rc.RawDir, "year", rc.Year)

	manifest := &Manifest{
		RunID:    runID,
		DataYear: rc.Year,
		Steps:    make([]StepResult, 0, len(selected)),
	}

	var errs []error
	for _, s := range selected {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := r.runStep(ctx, rc, s, logger)
		manifest.Steps = append(manifest.Steps, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("step %s: %w", s.Name(), err))
		}
	}

	finished := r.clock.Now()
	manifest.GeneratedAt = finished.UTC()
	r.metrics.LastRunTime.Set(float64(finished.Unix()))

	if err := rc.Out.WriteManifest(manifest); err != nil {
		errs = append(errs, err)
	}

	logger.Info("pipeline finished",
		"duration", finished.Sub(started),
		"failed", len(errs),
	)
	return manifest, errors.Join(errs...)
}

func (r *Runner) selectSteps(only string) ([]Step, error) {
	if only == "" {
		return r.steps, nil
	}
	for _, s := range r.steps {
		if s.Name() == only {
			return []Step{s}, nil
		}
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownStep, only)
}

func (r *Runner) runStep(ctx context.Context, base *RunContext, s Step, logger *slog.Logger) (StepResult, error) {
	rc := *base
	rc.step = s.Name()
	rc.Logger = logger.With("step", s.Name())

	rc.Logger.Info("step started", "title", s.Title())
	start := r.clock.Now()
	err := s.Run(ctx, &rc)
	elapsed := r.clock.Since(start)

	res := StepResult{
		Name:       s.Name(),
		DurationMs: elapsed.Milliseconds(),
		Artifacts:  rc.Out.Take(),
	}
	r.metrics.StepDuration.WithLabelValues(s.Name()).Observe(elapsed.Seconds())

	switch {
	case err == nil:
		res.Status = StatusOK
		rc.Logger.Info("step finished", "duration", elapsed.Round(time.Millisecond), "artifacts", len(res.Artifacts))
	case errors.Is(err, ErrSkipped):
		res.Status = StatusSkipped
		res.Error = err.Error()
		rc.Logger.Warn("step skipped", "reason", err)
		err = nil
	default:
		res.Status = StatusFailed
		res.Error = err.Error()
		rc.Logger.Error("step failed", "error", err, "duration", elapsed.Round(time.Millisecond))
	}
	r.metrics.StepRuns.WithLabelValues(s.Name(), string(res.Status)).Inc()
	return res, err
}
