package relations

import (
	"context"
	"log/slog"

	"github.com/stagehubhq/stagehub/internal/cache"
	"github.com/stagehubhq/stagehub/internal/domain/event"
	"github.com/stagehubhq/stagehub/internal/domain/relation"
)

// EntryLister is satisfied by the postgres relations repo.
type EntryLister interface {
	ListByUser(ctx context.Context, userID string, kind relation.Kind) ([]relation.Entry, error)
}

// EventBatchGetter is satisfied by the postgres events repo.
type EventBatchGetter interface {
	GetByIDs(ctx context.Context, ids []string) ([]event.Event, error)
}

// Service resolves a user's saved-event relations into displayable
// event records: the wishlist/booked/liked aggregator.
type Service struct {
	entries EntryLister
	events  EventBatchGetter
	cache   *cache.EventsCache // nil disables caching
	log     *slog.Logger
}

func NewService(entries EntryLister, events EventBatchGetter, evCache *cache.EventsCache, log *slog.Logger) *Service {
	return &Service{
		entries: entries,
		events:  events,
		cache:   evCache,
		log:     log,
	}
}

// ListSaved returns the user's saved events for one relation kind in
// recency order (newest save first).
//
// Zero relation rows short-circuits before any event read. A relation
// row whose event no longer exists is dropped silently: a deleted
// event is not an error from the viewer's perspective. Any read error
// is logged and surfaces as an empty result plus the error, which
// handlers degrade to an empty list rather than a user-facing failure.
func (s *Service) ListSaved(ctx context.Context, userID string, kind relation.Kind) ([]relation.SavedEvent, error) {
	entries, err := s.entries.ListByUser(ctx, userID, kind)

	if err != nil {
		s.log.ErrorContext(ctx, "list saved relations failed", "user_id", userID, "kind", kind, "err", err)
		return []relation.SavedEvent{}, err
	}

	if len(entries) == 0 {
		return []relation.SavedEvent{}, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.EventID
	}

	byID, missing := s.cache.GetBatch(ctx, ids, "saved."+string(kind))

	if len(missing) > 0 {
		fetched, err := s.events.GetByIDs(ctx, missing)

		if err != nil {
			s.log.ErrorContext(ctx, "resolve saved events failed", "user_id", userID, "kind", kind, "err", err)
			return []relation.SavedEvent{}, err
		}

		for _, ev := range fetched {
			byID[ev.ID] = ev
		}

		s.cache.SetBatch(ctx, fetched)
	}

	out := make([]relation.SavedEvent, 0, len(entries))

	for _, entry := range entries {
		ev, ok := byID[entry.EventID]

		if !ok {
			// event deleted since it was saved; drop the row
			continue
		}

		out = append(out, relation.SavedEvent{
			Event:   ev,
			SavedAt: entry.CreatedAt,
		})
	}

	return out, nil
}
