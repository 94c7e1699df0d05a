package audit

import (
	"context"
	"time"

	"github.com/refdesk/refdesk/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// RepositoryPort describes the storage the audit service reads from.
type RepositoryPort interface {
	Window(ctx context.Context, f Filters, offset, limit int) ([]Row, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service coordinates audit timeline retrieval.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the audit service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of audit entries, newest first. It asks the
// repository for one row beyond the page to learn whether more follow.
func (s *Service) Timeline(ctx context.Context, f Filters) (Result, error) {
	window := shared.NormalizePage(f.Page, f.PageSize, defaultPageSize, maxPageSize)

	rows, err := s.repo.Window(ctx, f, window.Offset(), window.PageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > window.PageSize
	if hasNext {
		rows = rows[:window.PageSize]
	}

	paging := PagingInfo{Page: window.Page, PageSize: window.PageSize, HasNext: hasNext}
	if window.Page > 1 {
		paging.PrevPage = window.Page - 1
	}
	if hasNext {
		paging.NextPage = window.Page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Purge removes entries recorded before the cutoff. The retention job
// calls this on its schedule.
func (s *Service) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.PurgeBefore(ctx, cutoff)
}
