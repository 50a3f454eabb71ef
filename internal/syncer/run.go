package syncer

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunAll runs every session in parallel. Each session keeps its own
// network in order. The first failure cancels the others.
func RunAll(ctx context.Context, sessions []*Session) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		g.Go(func() error {
			_, err := s.Run(ctx)
			return err
		})
	}
	return g.Wait()
}
