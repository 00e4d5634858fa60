package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stagehubhq/stagehub/internal/actorctx"
	"github.com/stagehubhq/stagehub/internal/config"
	"github.com/stagehubhq/stagehub/internal/domain/identity"
	"github.com/stagehubhq/stagehub/internal/domain/relation"
	"github.com/stagehubhq/stagehub/internal/http/middlewares"
	"github.com/stagehubhq/stagehub/internal/profile"
	"github.com/stagehubhq/stagehub/internal/session"
)

type SessionLoader interface {
	Load(ctx context.Context, userID string) (session.Snapshot, bool)
}

type ProfileUpdater interface {
	Update(ctx context.Context, userID string, req identity.UpdateProfileRequest, avatar *profile.AvatarUpload) (session.Snapshot, error)
}

type RelationCounter interface {
	CountByUser(ctx context.Context, userID string, kind relation.Kind) (int, error)
}

type MeHandler struct {
	sessions SessionLoader
	profiles ProfileUpdater
	counts   RelationCounter
	log      *slog.Logger
}

func NewMeHandler(sessions SessionLoader, profiles ProfileUpdater, counts RelationCounter, log *slog.Logger) *MeHandler {
	return &MeHandler{
		sessions: sessions,
		profiles: profiles,
		counts:   counts,
		log:      log,
	}
}

// Me returns the session snapshot plus the seeded profile form and the
// wishlist/booked counts the profile page shows.
func (h *MeHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	snap, ok := h.sessions.Load(cctx, userID)

	if !ok {
		// load degrades to logged-out on any failure
		RespondUnAuthorized(ctx, "no_session", "Session is not available")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"identity":      snap.Identity,
		"profile":       snap.Profile,
		"form":          session.FormFromSnapshot(snap),
		"wishlistCount": h.countOrZero(cctx, userID, relation.KindWishlist),
		"bookedCount":   h.countOrZero(cctx, userID, relation.KindBooked),
		"likedCount":    h.countOrZero(cctx, userID, relation.KindLiked),
	})
}

// UpdateProfile accepts JSON or multipart/form-data; the multipart
// shape carries the optional avatar file alongside the text fields.
func (h *MeHandler) UpdateProfile(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req identity.UpdateProfileRequest
	var avatar *profile.AvatarUpload

	if strings.HasPrefix(ctx.ContentType(), "multipart/form-data") {
		parsed, upload, ok := h.parseMultipart(ctx)
		if !ok {
			return
		}
		req = parsed
		avatar = upload
	} else {
		if !BindJSON(ctx, &req) {
			return
		}
	}

	if req.Empty() && avatar == nil {
		RespondBadRequest(ctx, "Nothing to update", nil)
		return
	}

	// upload + write + refetch; allow room for the object store
	cctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	cctx = actorctx.WithUserID(cctx, userID)

	snap, err := h.profiles.Update(cctx, userID, req, avatar)

	if err != nil {
		// the service wraps repo sentinels, so unwrap before matching
		if errors.Is(err, identity.ErrUsernameAlreadyUsed) {
			RespondConflict(ctx, "username_taken", "Username is already in use.")
			return
		}

		h.log.ErrorContext(cctx, "profile update failed", "user_id", userID, "err", err)
		RespondInternal(ctx, "Could not update profile")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"updated": true,
		"profile": snap.Profile,
		"form":    session.FormFromSnapshot(snap),
	})
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user creator organization"`
}

// ChangeRole is the settings flow that lets a user switch their own
// role. Ownership is the only check; see the policy note in DESIGN.md.
func (h *MeHandler) ChangeRole(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req ChangeRoleRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	cctx = actorctx.WithUserID(cctx, userID)

	snap, err := h.profiles.Update(cctx, userID, identity.UpdateProfileRequest{Role: &req.Role}, nil)

	if err != nil {
		h.log.ErrorContext(cctx, "role change failed", "user_id", userID, "err", err)
		RespondInternal(ctx, "Could not change role")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"updated": true,
		"profile": snap.Profile,
	})
}

func (h *MeHandler) countOrZero(ctx context.Context, userID string, kind relation.Kind) int {
	n, err := h.counts.CountByUser(ctx, userID, kind)

	if err != nil {
		h.log.WarnContext(ctx, "saved count failed", "user_id", userID, "kind", kind, "err", err)
		return 0
	}

	return n
}

func (h *MeHandler) parseMultipart(ctx *gin.Context) (identity.UpdateProfileRequest, *profile.AvatarUpload, bool) {
	var req identity.UpdateProfileRequest

	form, err := ctx.MultipartForm()

	if err != nil {
		RespondBadRequest(ctx, "Invalid multipart body", nil)
		return req, nil, false
	}

	// only fields present in the form become part of the update
	field := func(name string) *string {
		vals, ok := form.Value[name]
		if !ok || len(vals) == 0 {
			return nil
		}
		v := vals[0]
		return &v
	}

	req.FullName = field("fullName")
	req.Username = field("username")
	req.Phone = field("phone")
	req.Location = field("location")
	req.Bio = field("bio")

	if role := field("role"); role != nil {
		switch *role {
		case identity.RoleUser, identity.RoleCreator, identity.RoleOrganization:
			req.Role = role
		default:
			RespondBadRequest(ctx, "Invalid role", gin.H{"role": *role})
			return req, nil, false
		}
	}

	files, ok := form.File["avatar"]

	if !ok || len(files) == 0 {
		return req, nil, true
	}

	fh := files[0]

	f, err := fh.Open()

	if err != nil {
		RespondBadRequest(ctx, "Could not read avatar file", nil)
		return req, nil, false
	}

	defer f.Close()

	data, err := io.ReadAll(f)

	if err != nil {
		RespondBadRequest(ctx, "Could not read avatar file", nil)
		return req, nil, false
	}

	return req, &profile.AvatarUpload{
		Data:        data,
		Ext:         strings.TrimPrefix(filepath.Ext(fh.Filename), "."),
		ContentType: fh.Header.Get("Content-Type"),
	}, true
}
