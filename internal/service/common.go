package service

import (
	"context"
	"log/slog"
	"time"

	"artenis/internal/middleware"
	"artenis/internal/notifications"
	"artenis/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Notifier delivers realtime events to users. *notifications.Notifier
// satisfies it.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uint, ev notifications.Event) error
}

// notify is best-effort: delivery failures are logged, never returned.
func notify(ctx context.Context, n Notifier, userID uint, ev notifications.Event) {
	if n == nil || userID == 0 {
		return
	}
	if err := n.NotifyUser(ctx, userID, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "notification failed",
			slog.String("event", ev.Type),
			slog.Uint64("recipient_id", uint64(userID)),
			slog.String("error", err.Error()))
	}
}

// Pagination is a 1-based page request.
type Pagination struct {
	Page  int
	Limit int
}

// Normalize clamps page to ≥ 1 and limit to [1, 50], defaulting to 20.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return p
}

func (p Pagination) repoPage() repository.Page {
	p = p.Normalize()
	return repository.Page{Limit: p.Limit, Offset: (p.Page - 1) * p.Limit}
}

// PageResult is one page of a listing with its navigation metadata.
type PageResult[T any] struct {
	Items       []T   `json:"items"`
	Total       int64 `json:"total"`
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalPages  int   `json:"total_pages"`
	HasNextPage bool  `json:"has_next_page"`
}

func newPageResult[T any](items []T, total int64, p Pagination) PageResult[T] {
	p = p.Normalize()
	if items == nil {
		items = []T{}
	}
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return PageResult[T]{
		Items:       items,
		Total:       total,
		Page:        p.Page,
		Limit:       p.Limit,
		TotalPages:  pages,
		HasNextPage: p.Page < pages,
	}
}

type clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }
