package saga

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StepState represents the state of an individual step
type StepState string

const (
	StepStatePending     StepState = "pending"
	StepStateRunning     StepState = "running"
	StepStateCompleted   StepState = "completed"
	StepStateFailed      StepState = "failed"
	StepStateCompensated StepState = "compensated"
)

// StepID uniquely identifies a step within a saga
type StepID string

// Data holds the shared data flowing between the steps of one run
type Data map[string]interface{}

// Step is one unit of work in a saga. Execute performs it; Compensate undoes
// it when a later step fails. Compensate is only called for steps whose
// Execute succeeded.
type Step interface {
	ID() StepID
	Execute(ctx context.Context, data Data) error
	Compensate(ctx context.Context, data Data) error
}

// StepExecution records the outcome of one step in a run report
type StepExecution struct {
	ID          StepID     `json:"id"`
	State       StepState  `json:"state"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Report describes a finished run for status introspection
type Report struct {
	Name        string          `json:"name"`
	Steps       []StepExecution `json:"steps"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Error       string          `json:"error,omitempty"`
}

// Runner executes sagas synchronously: steps run in order, and when one
// fails every previously completed step is compensated in reverse order.
// The caller gets the failing step's error; compensation failures are
// logged, never returned. The last run's report is retained.
type Runner struct {
	logger  *zap.Logger
	timeout time.Duration

	mu   sync.Mutex
	last *Report
}

func NewRunner(timeout time.Duration, logger *zap.Logger) *Runner {
	return &Runner{logger: logger, timeout: timeout}
}

// LastReport returns the report of the most recent run, or nil before any
func (r *Runner) LastReport() *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Run executes the named saga to completion or compensated failure
func (r *Runner) Run(ctx context.Context, name string, data Data, steps []Step) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	report := &Report{Name: name, StartedAt: time.Now()}
	for _, step := range steps {
		report.Steps = append(report.Steps, StepExecution{ID: step.ID(), State: StepStatePending})
	}
	defer func() {
		report.CompletedAt = time.Now()
		r.mu.Lock()
		r.last = report
		r.mu.Unlock()
	}()

	r.logger.Info("Saga started", zap.String("saga", name))

	for i, step := range steps {
		now := time.Now()
		report.Steps[i].State = StepStateRunning
		report.Steps[i].StartedAt = &now

		err := step.Execute(ctx, data)
		done := time.Now()
		report.Steps[i].CompletedAt = &done

		if err != nil {
			report.Steps[i].State = StepStateFailed
			report.Steps[i].Error = err.Error()
			report.Error = err.Error()

			r.logger.Error("Saga step failed",
				zap.String("saga", name),
				zap.String("step", string(step.ID())),
				zap.Error(err))

			r.compensate(ctx, name, data, steps, report, i-1)
			return fmt.Errorf("saga %s failed at step %s: %w", name, step.ID(), err)
		}

		report.Steps[i].State = StepStateCompleted
		r.logger.Info("Saga step completed",
			zap.String("saga", name),
			zap.String("step", string(step.ID())))
	}

	r.logger.Info("Saga completed", zap.String("saga", name))
	return nil
}

// compensate undoes completed steps in reverse order, starting at lastDone.
// Compensation runs on a fresh context so an expired run deadline cannot
// leave partial state behind.
func (r *Runner) compensate(ctx context.Context, name string, data Data, steps []Step, report *Report, lastDone int) {
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	for i := lastDone; i >= 0; i-- {
		step := steps[i]
		r.logger.Info("Compensating saga step",
			zap.String("saga", name),
			zap.String("step", string(step.ID())))

		if err := step.Compensate(compCtx, data); err != nil {
			r.logger.Error("Saga compensation failed",
				zap.String("saga", name),
				zap.String("step", string(step.ID())),
				zap.Error(err))
			continue
		}
		report.Steps[i].State = StepStateCompensated
	}
}
