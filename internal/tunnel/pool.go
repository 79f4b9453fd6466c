package tunnel

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/baaaaaaaka/tunneler/internal/config"
)

// startGroup starts all members with at most e.workers in flight. It always
// returns one result per member, in completion order.
func (e *Engine) startGroup(ctx context.Context, c *config.Config, g config.Group) []StartResult {
	if len(g.Members) == 0 {
		return nil
	}

	queue := make(chan config.Member, len(g.Members))
	for _, m := range g.Members {
		queue <- m
	}
	close(queue)

	var (
		mu      sync.Mutex
		results = make([]StartResult, 0, len(g.Members))
		eg      errgroup.Group
	)
	for i := 0; i < min(e.workers, len(g.Members)); i++ {
		eg.Go(func() error {
			for m := range queue {
				r, err := e.startTunnel(ctx, c, m.Tunnel, m.LocalPort)
				if err != nil {
					r = StartResult{Name: m.Tunnel, Status: err.Error()}
				}
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	e.log.Debug().Str("group", g.Name).Int("members", len(g.Members)).Msg("group started")
	return results
}
