package stats

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/refdesk/refdesk/internal/authz"
)

const recentGamesLimit = 5

// RepositoryPort describes the storage the stats service reads from.
type RepositoryPort interface {
	UpcomingGames(ctx context.Context, sc Scope) (int64, error)
	AssignmentTotal(ctx context.Context, sc Scope) (int64, error)
	ActiveOfficials(ctx context.Context) (int64, error)
	RecentGames(ctx context.Context, sc Scope, limit int) ([]RecentGame, error)
	Totals(ctx context.Context) (*Totals, error)
	LeagueIDs(ctx context.Context) ([]int64, error)
}

// Service coordinates dashboard aggregation with the cache layer.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService wires a RepositoryPort with a Cache helper.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Dashboard returns the landing-page counters scoped to the principal.
func (s *Service) Dashboard(ctx context.Context, pr authz.Principal) (*Dashboard, error) {
	return s.dashboardFor(ctx, ScopeFor(pr))
}

func (s *Service) dashboardFor(ctx context.Context, sc Scope) (*Dashboard, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		var out Dashboard
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			n, err := s.repo.UpcomingGames(ctx, sc)
			if err != nil {
				return err
			}
			out.UpcomingGames = n
			return nil
		})
		g.Go(func() error {
			n, err := s.repo.AssignmentTotal(ctx, sc)
			if err != nil {
				return err
			}
			out.TotalAssignments = n
			return nil
		})
		g.Go(func() error {
			n, err := s.repo.ActiveOfficials(ctx)
			if err != nil {
				return err
			}
			out.ActiveOfficials = n
			return nil
		})
		g.Go(func() error {
			games, err := s.repo.RecentGames(ctx, sc, recentGamesLimit)
			if err != nil {
				return err
			}
			out.RecentGames = games
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if out.RecentGames == nil {
			out.RecentGames = []RecentGame{}
		}
		return out, nil
	}

	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		dash := value.(Dashboard)
		return &dash, nil
	}
	key, err := s.cache.BuildKey(ctx, keyDashboard(sc))
	if err != nil {
		return nil, err
	}
	var dash Dashboard
	if err := s.cache.FetchJSON(ctx, key, &dash, loader); err != nil {
		return nil, err
	}
	return &dash, nil
}

// GlobalTotals returns the organization-wide counts.
func (s *Service) GlobalTotals(ctx context.Context) (*Totals, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		return s.repo.Totals(ctx)
	}
	if s.cache == nil {
		totals, err := s.repo.Totals(ctx)
		if err != nil {
			return nil, err
		}
		return totals, nil
	}
	key, err := s.cache.BuildKey(ctx, keyTotals())
	if err != nil {
		return nil, err
	}
	var totals Totals
	if err := s.cache.FetchJSON(ctx, key, &totals, loader); err != nil {
		return nil, err
	}
	return &totals, nil
}

// Warm bumps the cache version and precomputes the global and
// per-league dashboards under it, so interactive loads land on fresh
// entries. Returns the number of scopes primed.
func (s *Service) Warm(ctx context.Context) (int, error) {
	if err := s.cache.Bump(ctx); err != nil {
		return 0, err
	}
	if _, err := s.dashboardFor(ctx, Scope{Global: true}); err != nil {
		return 0, err
	}
	warmed := 1
	ids, err := s.repo.LeagueIDs(ctx)
	if err != nil {
		return warmed, err
	}
	for _, id := range ids {
		if _, err := s.dashboardFor(ctx, Scope{LeagueIDs: []int64{id}}); err != nil {
			return warmed, err
		}
		warmed++
	}
	return warmed, nil
}
