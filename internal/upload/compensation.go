package upload

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/emotrace/emotrace-backend/pkg/logger"
)

// compensation is one undo action registered after a side effect commits.
type compensation struct {
	step string
	undo func(ctx context.Context) error
}

// compensationStack accumulates undo actions in commit order and unwinds
// them in reverse. Unwind runs on a context detached from the request so
// a client disconnect cannot abandon cleanup halfway.
type compensationStack struct {
	items []compensation
}

func (s *compensationStack) push(step string, undo func(ctx context.Context) error) {
	s.items = append(s.items, compensation{step: step, undo: undo})
}

func (s *compensationStack) depth() int {
	return len(s.items)
}

// unwind executes the registered undo actions newest-first. Every action
// runs even when earlier ones fail; failures are collected and returned.
func (s *compensationStack) unwind(ctx context.Context, logg *logger.Logger) error {
	ctx = context.WithoutCancel(ctx)

	var errs error
	for i := len(s.items) - 1; i >= 0; i-- {
		item := s.items[i]
		if err := item.undo(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("undo %s: %w", item.step, err))
			if logg != nil {
				logg.Error(logg.WithField(ctx, "step", item.step), "compensation failed", err)
			}
		}
	}
	s.items = nil
	return errs
}
