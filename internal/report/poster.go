package report

import (
	"context"
	"errors"
)

// Posters fans one payload out to several parent-context posters. It
// succeeds only when all of them do.
type Posters []Poster

func (ps Posters) Post(ctx context.Context, learnerID string, p Payload) error {
	var errs []error
	for _, poster := range ps {
		if err := poster.Post(ctx, learnerID, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RuntimeFunc adapts a function to RuntimeAPI.
type RuntimeFunc func(ctx context.Context, learnerID string, p Payload) error

func (f RuntimeFunc) Complete(ctx context.Context, learnerID string, p Payload) error {
	return f(ctx, learnerID, p)
}
