package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stagehubhq/stagehub/internal/config"
	"github.com/stagehubhq/stagehub/internal/domain/event"
	"github.com/stagehubhq/stagehub/internal/domain/relation"
	"github.com/stagehubhq/stagehub/internal/http/middlewares"
)

// SavedLister is the aggregator surface: relation rows resolved into
// full event records.
type SavedLister interface {
	ListSaved(ctx context.Context, userID string, kind relation.Kind) ([]relation.SavedEvent, error)
}

type RelationWriter interface {
	Save(ctx context.Context, userID, eventID string, kind relation.Kind) (relation.Entry, error)
	Remove(ctx context.Context, userID, eventID string, kind relation.Kind) error
}

type SavedHandler struct {
	aggregator SavedLister
	relations  RelationWriter
	log        *slog.Logger
}

func NewSavedHandler(aggregator SavedLister, relations RelationWriter, log *slog.Logger) *SavedHandler {
	return &SavedHandler{
		aggregator: aggregator,
		relations:  relations,
		log:        log,
	}
}

// ListSaved serves the wishlist/booked/liked tabs. Aggregator failures
// degrade to an empty list; the diagnostic lives in the logs, not in
// the response.
func (h *SavedHandler) ListSaved(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	kind, err := relation.ParseKind(ctx.Param("kind"))

	if err != nil {
		RespondBadRequest(ctx, "Unknown relation kind", gin.H{"kind": ctx.Param("kind")})
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	items, err := h.aggregator.ListSaved(cctx, userID, kind)

	if err != nil {
		items = []relation.SavedEvent{}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *SavedHandler) Save(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	kind, err := relation.ParseKind(ctx.Param("kind"))

	if err != nil {
		RespondBadRequest(ctx, "Unknown relation kind", gin.H{"kind": ctx.Param("kind")})
		return
	}

	eventID := ctx.Param("id")

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	entry, err := h.relations.Save(cctx, userID, eventID, kind)

	if err != nil {
		switch {
		case errors.Is(err, relation.ErrAlreadySaved):
			RespondConflict(ctx, "already_saved", "Event is already saved.")
		case errors.Is(err, event.ErrNotFound):
			RespondNotFound(ctx, "Event not found")
		default:
			h.log.ErrorContext(cctx, "save relation failed", "user_id", userID, "event_id", eventID, "kind", kind, "err", err)
			RespondInternal(ctx, "Could not save event")
		}
		return
	}

	ctx.JSON(http.StatusCreated, entry)
}

func (h *SavedHandler) Remove(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	kind, err := relation.ParseKind(ctx.Param("kind"))

	if err != nil {
		RespondBadRequest(ctx, "Unknown relation kind", gin.H{"kind": ctx.Param("kind")})
		return
	}

	eventID := ctx.Param("id")

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err = h.relations.Remove(cctx, userID, eventID, kind)

	if err != nil {
		if errors.Is(err, relation.ErrNotSaved) {
			RespondNotFound(ctx, "Event is not saved")
			return
		}

		h.log.ErrorContext(cctx, "remove relation failed", "user_id", userID, "event_id", eventID, "kind", kind, "err", err)
		RespondInternal(ctx, "Could not remove saved event")
		return
	}

	ctx.Status(http.StatusNoContent)
}
