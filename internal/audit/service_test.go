package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/refdesk/refdesk/internal/audit"
)

type stubRepo struct {
	rows        []audit.Row
	lastFilters audit.Filters
	lastOffset  int
	lastLimit   int
	purged      time.Time
}

func (s *stubRepo) Window(ctx context.Context, f audit.Filters, offset, limit int) ([]audit.Row, error) {
	s.lastFilters = f
	s.lastOffset = offset
	s.lastLimit = limit
	if offset >= len(s.rows) {
		return []audit.Row{}, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func (s *stubRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.purged = cutoff
	return 3, nil
}

func entry(id int64, action string) audit.Row {
	return audit.Row{
		ID:       id,
		At:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Hour),
		ActorID:  2,
		Actor:    "admin",
		Action:   action,
		Entity:   "game",
		EntityID: "10",
	}
}

func TestTimelineWindowing(t *testing.T) {
	repo := &stubRepo{rows: []audit.Row{entry(3, "create"), entry(2, "update"), entry(1, "delete")}}
	service := audit.NewService(repo)

	result, err := service.Timeline(context.Background(), audit.Filters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)
	require.Equal(t, 0, repo.lastOffset)
	require.Equal(t, 3, repo.lastLimit)

	second, err := service.Timeline(context.Background(), audit.Filters{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, second.Rows, 1)
	require.False(t, second.Paging.HasNext)
	require.Equal(t, 1, second.Paging.PrevPage)
	require.Zero(t, second.Paging.NextPage)
	require.Equal(t, 2, repo.lastOffset)
}

func TestTimelineClampsPaging(t *testing.T) {
	repo := &stubRepo{}
	service := audit.NewService(repo)

	_, err := service.Timeline(context.Background(), audit.Filters{})
	require.NoError(t, err)
	require.Equal(t, 21, repo.lastLimit)

	_, err = service.Timeline(context.Background(), audit.Filters{PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 51, repo.lastLimit)
}

func TestPurgeDelegatesCutoff(t *testing.T) {
	repo := &stubRepo{}
	service := audit.NewService(repo)

	cutoff := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	n, err := service.Purge(context.Background(), cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	require.Equal(t, cutoff, repo.purged)
}
