package catalog

import (
	"context"

	"github.com/fairwaylabs/clubhouse/internal/domain"
	"github.com/fairwaylabs/clubhouse/internal/schedule"
)

// ResolverFor loads the cached catalog once under the caller's context
// and returns a duration resolver for the request. Catalog failures
// fall back to the name heuristic, so a cold cache never blocks a
// booking.
func (c *Cache) ResolverFor(ctx context.Context) schedule.DurationResolver {
	clubs, err := c.Clubs(ctx)
	if err != nil {
		return schedule.HeuristicDuration
	}
	var all []domain.Service
	for _, club := range clubs {
		svcs, err := c.Services(ctx, club.ID)
		if err != nil {
			continue
		}
		all = append(all, svcs...)
	}
	return schedule.CatalogDuration(all)
}
