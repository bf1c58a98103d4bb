package mapping

import (
	"context"

	"go.uber.org/multierr"
)

type fanout []Publisher

// Publishers fans progress events out to every non-nil publisher. All of
// them receive the event even when one fails.
func Publishers(ps ...Publisher) Publisher {
	out := make(fanout, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (f fanout) Publish(ctx context.Context, payload any) error {
	var errs error
	for _, p := range f {
		errs = multierr.Append(errs, p.Publish(ctx, payload))
	}
	return errs
}
