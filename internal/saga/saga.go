// Package saga runs ordered steps with compensating actions. When a forward
// action fails, the compensations of the steps that already succeeded run in
// reverse order and the original error is returned.
package saga

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"product-attribute-service/internal/logger"
	"product-attribute-service/internal/metrics"
)

// State is a saga's position in its state machine.
type State string

const (
	StatePending  State = "PENDING"
	StateComplete State = "COMPLETE"
	StateFailed   State = "FAILED"
)

func StepOK(k int) State       { return State(fmt.Sprintf("STEP_%d_OK", k)) }
func StepFailed(k int) State   { return State(fmt.Sprintf("STEP_%d_FAILED", k)) }
func Compensating(k int) State { return State(fmt.Sprintf("COMPENSATING(%d)", k)) }
func (s State) Terminal() bool { return s == StateComplete || s == StateFailed }
func (s State) String() string { return string(s) }

// Step pairs a forward action with the action that undoes it. Compensate may
// be nil for steps with nothing to undo, such as notifications.
type Step struct {
	Name       string
	Forward    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
	// Partial marks a step whose forward action can fail after applying part
	// of its batch. Its own compensation then runs first, so it must only undo
	// what the forward action recorded as done.
	Partial bool
}

// Runner executes sagas. The zero value is usable and records no metrics.
type Runner struct {
	metrics *metrics.Collectors
	// OnTransition, when set, is called for every state change.
	OnTransition func(saga string, state State)
}

func NewRunner(m *metrics.Collectors) *Runner {
	return &Runner{metrics: m}
}

func (r *Runner) transition(name string, state State) {
	if r.OnTransition != nil {
		r.OnTransition(name, state)
	}
}

// Run executes steps in order. Steps are 1-indexed in state names.
func (r *Runner) Run(ctx context.Context, name string, steps ...Step) error {
	log := logger.FromContext(ctx).With(zap.String("saga", name))
	start := time.Now()
	r.transition(name, StatePending)

	for k, step := range steps {
		if err := runForward(ctx, step); err != nil {
			r.transition(name, StepFailed(k+1))
			log.Warn("saga step failed, compensating",
				zap.String("step", step.Name),
				zap.Int("index", k+1),
				zap.Error(err),
			)
			done := steps[:k]
			if step.Partial {
				done = steps[:k+1]
			}
			r.compensate(ctx, log, name, done)
			r.transition(name, StateFailed)
			r.metrics.SagaFinished(name, string(StateFailed), time.Since(start))
			return err
		}
		r.transition(name, StepOK(k+1))
	}

	r.transition(name, StateComplete)
	r.metrics.SagaFinished(name, string(StateComplete), time.Since(start))
	log.Debug("saga complete", zap.Int("steps", len(steps)), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// compensate undoes done in reverse. Failures are logged and counted, never
// compensated themselves. Compensations must run even if the caller's context
// was cancelled.
func (r *Runner) compensate(ctx context.Context, log *zap.Logger, name string, done []Step) {
	cctx := context.WithoutCancel(ctx)
	for k := len(done) - 1; k >= 0; k-- {
		step := done[k]
		r.transition(name, Compensating(k))
		if step.Compensate == nil {
			continue
		}
		err := runCompensate(cctx, step)
		r.metrics.Compensated(name, step.Name, err != nil)
		if err != nil {
			log.Error("saga compensation failed, store may be inconsistent",
				zap.String("step", step.Name),
				zap.Int("index", k+1),
				zap.Error(err),
			)
		}
	}
}

func runForward(ctx context.Context, step Step) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("saga: step %s panicked: %v", step.Name, p)
		}
	}()
	if step.Forward == nil {
		return nil
	}
	return step.Forward(ctx)
}

func runCompensate(ctx context.Context, step Step) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("saga: compensation of %s panicked: %v", step.Name, p)
		}
	}()
	return step.Compensate(ctx)
}
