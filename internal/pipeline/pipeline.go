package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/corpuscrawl/internal/model"
)

// Step defines the interface that all post-run steps must implement.
// Steps are executed in sequence, each receiving the finished run summary.
type Step interface {
	// Do executes the step.
	// Steps must treat the summary as read-only.
	Do(ctx context.Context, summary *model.RunSummary) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// StepFunc adapts a function to the Step interface.
type StepFunc struct {
	name string
	fn   func(ctx context.Context, summary *model.RunSummary) error
}

// NewStepFunc creates a named Step from a function.
func NewStepFunc(name string, fn func(ctx context.Context, summary *model.RunSummary) error) *StepFunc {
	return &StepFunc{name: name, fn: fn}
}

// Do calls the wrapped function.
func (s *StepFunc) Do(ctx context.Context, summary *model.RunSummary) error {
	return s.fn(ctx, summary)
}

// Name returns the step name.
func (s *StepFunc) Name() string {
	return s.name
}

// StepError records which step failed.
type StepError struct {
	Step string
	Err  error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Pipeline runs the post-run steps (history, metrics, reports) for a
// finished crawl.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to run every step even when
// an earlier one fails. All step errors are joined in the result.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added. Nil steps are ignored.
func (p *Pipeline) AddStep(step Step) {
	if step == nil {
		return
	}
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	for _, step := range steps {
		p.AddStep(step)
	}
}

// Execute runs all steps in sequence.
// Cancellation is checked before each step; a running step handles its
// own context.
//
// Returns the first failure as a *StepError, or every failure joined when
// continueOnError is set.
func (p *Pipeline) Execute(ctx context.Context, summary *model.RunSummary) error {
	var errs []error

	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"run_id", summary.RunID,
				"reason", ctx.Err(),
			)
			return errors.Join(append(errs, ctx.Err())...)
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"run_id", summary.RunID,
		)

		if err := step.Do(ctx, summary); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"run_id", summary.RunID,
				"error", err,
			)

			stepErr := &StepError{Step: step.Name(), Err: err}
			if !p.continueOnError {
				return stepErr
			}
			errs = append(errs, stepErr)
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"run_id", summary.RunID,
		)
	}

	return errors.Join(errs...)
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
