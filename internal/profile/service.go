package profile

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stagehubhq/stagehub/internal/domain/identity"
	"github.com/stagehubhq/stagehub/internal/session"
	"github.com/stagehubhq/stagehub/internal/storage"
)

// ProfileWriter is satisfied by the postgres users repo.
type ProfileWriter interface {
	UpdateProfile(ctx context.Context, userID string, req identity.UpdateProfileRequest) error
}

// SessionRefresher is the slice of the session store the update flow needs.
type SessionRefresher interface {
	Generation(userID string) uint64
	Refresh(ctx context.Context, userID string, gen uint64) (session.Snapshot, bool)
}

// AvatarUpload carries the optional image accompanying an update.
type AvatarUpload struct {
	Data        []byte
	Ext         string // "png", "jpg", ... without the dot
	ContentType string
}

type Service struct {
	users    ProfileWriter
	sessions SessionRefresher
	objects  storage.Store
	log      *slog.Logger
	now      func() time.Time
}

func NewService(users ProfileWriter, sessions SessionRefresher, objects storage.Store, log *slog.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		objects:  objects,
		log:      log,
		now:      time.Now,
	}
}

// Update persists the edited fields and the optional new avatar, then
// refreshes the session store from the canonical row. The three steps
// run strictly in order: upload, metadata write, refetch.
//
// The session generation is captured before any work starts, so a
// logout racing this update leaves the store cleared: the final
// refresh is discarded as stale and the caller still gets the updated
// snapshot for its response, which dies with the response.
func (s *Service) Update(ctx context.Context, userID string, req identity.UpdateProfileRequest, avatar *AvatarUpload) (session.Snapshot, error) {
	gen := s.sessions.Generation(userID)

	var uploadedPath string

	if avatar != nil && len(avatar.Data) > 0 {
		path, url, err := s.uploadAvatar(ctx, userID, avatar)

		if err != nil {
			return session.Snapshot{}, fmt.Errorf("upload avatar: %w", err)
		}

		uploadedPath = path
		req.AvatarURL = &url
	}

	if err := s.users.UpdateProfile(ctx, userID, req); err != nil {
		if uploadedPath != "" {
			// the object was written but nothing references it now
			s.log.WarnContext(ctx, "orphaned avatar upload", "user_id", userID, "path", uploadedPath, "err", err)
		}
		return session.Snapshot{}, fmt.Errorf("update profile: %w", err)
	}

	snap, ok := s.sessions.Refresh(ctx, userID, gen)

	if !ok {
		// either the refetch failed or the session was logged out
		// mid-update; the write itself succeeded
		return session.Snapshot{}, fmt.Errorf("refresh session: stale or unavailable")
	}

	return snap, nil
}

// uploadAvatar stores the image under a per-user, timestamp-named key
// with overwrite allowed, and returns the key and its public URL.
func (s *Service) uploadAvatar(ctx context.Context, userID string, avatar *AvatarUpload) (string, string, error) {
	ext := strings.ToLower(strings.TrimPrefix(avatar.Ext, "."))

	if ext == "" {
		ext = "bin"
	}

	path := fmt.Sprintf("avatars/%s/%d.%s", userID, s.now().UnixNano(), ext)

	err := s.objects.Put(ctx, path, bytes.NewReader(avatar.Data), avatar.ContentType, true)

	if err != nil {
		return "", "", err
	}

	return path, s.objects.PublicURL(path), nil
}
