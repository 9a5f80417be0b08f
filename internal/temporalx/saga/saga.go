// Package saga holds the per-execution compensation stack. A compensation is
// registered only after its forward step has been confirmed successful, and the
// stack unwinds in strict reverse-registration order.
package saga

import (
	"github.com/hashicorp/go-multierror"
	"go.temporal.io/sdk/workflow"
)

// Compensation undoes one completed forward step. Implementations must route
// all side effects through activities so replay stays deterministic, and must
// carry the same idempotency key as the step they reverse.
type Compensation struct {
	Name string
	Run  func(ctx workflow.Context) error
}

type Saga struct {
	compensations []Compensation
	compensated   bool
}

func New() *Saga {
	return &Saga{}
}

// AddCompensation pushes a compensation onto the stack. Call it only after the
// corresponding forward activity has completed successfully.
func (s *Saga) AddCompensation(c Compensation) {
	if s == nil || c.Run == nil {
		return
	}
	s.compensations = append(s.compensations, c)
}

func (s *Saga) Len() int {
	if s == nil {
		return 0
	}
	return len(s.compensations)
}

// Compensate runs every registered compensation in LIFO order. A failing
// compensation (after its own engine-side retries exhaust) is collected, not
// fatal: the remaining entries still execute, and the aggregate error is
// returned so partial compensation is surfaced rather than hidden. Subsequent
// calls are no-ops.
func (s *Saga) Compensate(ctx workflow.Context) error {
	if s == nil || s.compensated {
		return nil
	}
	s.compensated = true

	log := workflow.GetLogger(ctx)
	var errs *multierror.Error
	for i := len(s.compensations) - 1; i >= 0; i-- {
		c := s.compensations[i]
		if err := c.Run(ctx); err != nil {
			log.Error("compensation failed after retries; continuing with remaining entries",
				"compensation", c.Name, "error", err)
			errs = multierror.Append(errs, err)
			continue
		}
		log.Info("compensation applied", "compensation", c.Name)
	}
	return errs.ErrorOrNil()
}
