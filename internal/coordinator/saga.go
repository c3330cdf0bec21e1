// Package coordinator runs a sequence of side-effecting steps as a small
// saga: if a later step fails, the compensations of the earlier ones run
// in reverse order. The checkout flow uses it so that a gateway session
// never outlives a failed order insert.
package coordinator

import (
	"context"
	"log/slog"
)

// Step is a single unit of work with a compensating action that undoes
// its effects.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// Orchestrator executes steps sequentially and compensates on failure.
type Orchestrator struct {
	steps []Step
}

func NewOrchestrator(steps ...Step) *Orchestrator {
	return &Orchestrator{steps: steps}
}

// Start runs the steps in order. On the first failure it compensates every
// previously successful step (LIFO) and returns the original error.
func (o *Orchestrator) Start(ctx context.Context) error {
	var done []Step

	for _, step := range o.steps {
		slog.DebugContext(ctx, "executing step", "step", step.Name())
		if err := step.Execute(ctx); err != nil {
			slog.ErrorContext(ctx, "step failed, rolling back", "step", step.Name(), "error", err)
			o.rollback(ctx, done)
			return err
		}
		done = append(done, step)
	}
	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, steps []Step) {
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.Compensate(ctx); err != nil {
			// The caller already has the original error; a failed
			// compensation can only be surfaced through logs.
			slog.ErrorContext(ctx, "CRITICAL: compensation failed", "step", step.Name(), "error", err)
		}
	}
}
