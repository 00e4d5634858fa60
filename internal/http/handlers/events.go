package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stagehubhq/stagehub/internal/cache"
	"github.com/stagehubhq/stagehub/internal/config"
	"github.com/stagehubhq/stagehub/internal/domain/event"
	"github.com/stagehubhq/stagehub/internal/http/middlewares"
	"github.com/stagehubhq/stagehub/internal/utils"
)

const (
	defaultEventsLimit = 20
	maxEventsLimit     = 100
)

type EventsStore interface {
	Create(ctx context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error)
	GetByID(ctx context.Context, id string) (event.Event, error)
	ListCursor(ctx context.Context, filter event.ListEventsFilter, afterDate time.Time, afterID string) ([]event.Event, *string, bool, error)
	Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error)
	Delete(ctx context.Context, id string) error
}

type EventsHandler struct {
	repo    EventsStore
	evCache *cache.EventsCache
}

func NewEventsHandler(repo EventsStore, evCache *cache.EventsCache) *EventsHandler {
	return &EventsHandler{repo: repo, evCache: evCache}
}

func (h *EventsHandler) CreateEvent(ctx *gin.Context) {
	var req event.CreateEventRequest

	if !BindJSON(ctx, &req) {
		return
	}

	userID, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	e, err := h.repo.Create(cctx, req, userID)

	if err != nil {
		RespondInternal(ctx, "Could not create event")
		return
	}

	ctx.JSON(http.StatusCreated, e)
}

func (h *EventsHandler) ListEvents(ctx *gin.Context) {
	filter, afterDate, afterID, ok := parseListQuery(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	events, next, hasMore, err := h.repo.ListCursor(cctx, filter, afterDate, afterID)

	if err != nil {
		RespondInternal(ctx, "Could not list events")
		return
	}

	payload := gin.H{
		"items":   events,
		"count":   len(events),
		"hasMore": hasMore,
	}

	if next != nil {
		payload["nextCursor"] = *next
	}

	RespondJSONWithETag(ctx, http.StatusOK, payload)
}

func (h *EventsHandler) GetEventByID(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not fetch event")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, e)
}

func (h *EventsHandler) UpdateEvent(ctx *gin.Context) {
	id := ctx.Param("id")

	var req event.UpdateEventRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	e, err := h.repo.Update(cctx, id, req)

	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not update event")
		return
	}

	h.evCache.Invalidate(cctx, id)

	ctx.JSON(http.StatusOK, e)
}

func (h *EventsHandler) DeleteEvent(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.repo.Delete(cctx, id)

	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not delete event")
		return
	}

	h.evCache.Invalidate(cctx, id)

	ctx.Status(http.StatusNoContent)
}

func parseListQuery(ctx *gin.Context) (event.ListEventsFilter, time.Time, string, bool) {
	var filter event.ListEventsFilter
	var afterDate time.Time
	var afterID string

	filter.Limit = defaultEventsLimit

	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)

		if err != nil || n < 1 || n > maxEventsLimit {
			RespondBadRequest(ctx, "Invalid limit", gin.H{"limit": raw})
			return filter, afterDate, afterID, false
		}
		filter.Limit = n
	}

	if raw := ctx.Query("location"); raw != "" {
		filter.Location = &raw
	}

	if raw := ctx.Query("q"); raw != "" {
		filter.Query = &raw
	}

	if raw := ctx.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondBadRequest(ctx, "Invalid from timestamp", gin.H{"from": raw})
			return filter, afterDate, afterID, false
		}
		filter.From = &t
	}

	if raw := ctx.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondBadRequest(ctx, "Invalid to timestamp", gin.H{"to": raw})
			return filter, afterDate, afterID, false
		}
		filter.To = &t
	}

	if raw := ctx.Query("cursor"); raw != "" {
		c, err := utils.DecodeEventCursor(raw)
		if err != nil {
			RespondBadRequest(ctx, "Invalid cursor", nil)
			return filter, afterDate, afterID, false
		}
		afterDate = c.Date
		afterID = c.ID
	}

	return filter, afterDate, afterID, true
}
