package drive

import (
	"context"
	"log/slog"
)

// compensation is the undo half of a committed forward step in a
// multi-step remote sequence.
type compensation struct {
	desc string
	fn   func(ctx context.Context) error
}

// saga tracks committed forward steps so they can be compensated in
// reverse order when the sequence is cancelled or fails. The store
// offers no transactions, so this is the system's only rollback
// mechanism, and it is itself not atomic: a failed compensation leaves
// an orphaned record behind.
type saga struct {
	logger *slog.Logger
	steps  []compensation
}

func newSaga(logger *slog.Logger) *saga {
	return &saga{logger: logger}
}

// record registers the compensation for a forward step that has just
// committed.
func (s *saga) record(desc string, fn func(ctx context.Context) error) {
	s.steps = append(s.steps, compensation{desc: desc, fn: fn})
}

// rollback runs all recorded compensations in reverse order and returns
// the number that failed. A failing compensation is logged as a
// recoverable inconsistency (the record survives as an orphan) and the
// remaining compensations still run.
func (s *saga) rollback(ctx context.Context) int {
	failed := 0

	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.fn(ctx); err != nil {
			failed++

			s.logger.Warn("compensation failed, record orphaned",
				slog.String("step", step.desc),
				slog.String("error", err.Error()),
			)
		}
	}

	s.steps = nil

	return failed
}

// size returns the number of committed steps awaiting compensation.
func (s *saga) size() int {
	return len(s.steps)
}
