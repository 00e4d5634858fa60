package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stagehubhq/stagehub/internal/domain/identity"
)

// Snapshot is the session store's view of one signed-in user: the
// immutable identity joined with its mutable profile.
type Snapshot struct {
	Identity identity.Identity
	Profile  identity.Profile
}

// Reader is satisfied by the postgres users repo.
type Reader interface {
	GetWithProfile(ctx context.Context, userID string) (identity.Identity, identity.Profile, error)
}

// Store is the single source of truth for "who is logged in" on this
// process. A Load miss costs one database round trip; hits are served
// from memory until Logout or Refresh replaces the snapshot.
//
// Each user carries a generation counter. Logout bumps it, and Refresh
// only installs a snapshot whose caller still holds the current
// generation. That is what stops an in-flight profile update from
// repopulating a session that was logged out under it.
type Store struct {
	mu    sync.RWMutex
	users Reader
	log   *slog.Logger
	m     map[string]*userState
}

type userState struct {
	gen      uint64
	snapshot *Snapshot
}

func New(users Reader, log *slog.Logger) *Store {
	return &Store{
		users: users,
		log:   log,
		m:     make(map[string]*userState),
	}
}

// Load returns the cached snapshot, reading from the database on a
// miss. Read failures degrade to "not present": they are logged and
// never propagate to the caller.
func (s *Store) Load(ctx context.Context, userID string) (Snapshot, bool) {
	s.mu.RLock()
	st, ok := s.m[userID]
	if ok && st.snapshot != nil {
		snap := *st.snapshot
		s.mu.RUnlock()
		return snap, true
	}
	s.mu.RUnlock()

	gen := s.Generation(userID)

	id, p, err := s.users.GetWithProfile(ctx, userID)

	if err != nil {
		s.log.WarnContext(ctx, "session load failed", "user_id", userID, "err", err)
		return Snapshot{}, false
	}

	snap := Snapshot{Identity: id, Profile: p}

	s.install(userID, gen, snap)

	return snap, true
}

// Refresh re-reads the canonical identity+profile and installs it only
// if gen is still the user's current generation. Callers capture the
// generation with Generation() before starting slow work.
func (s *Store) Refresh(ctx context.Context, userID string, gen uint64) (Snapshot, bool) {
	id, p, err := s.users.GetWithProfile(ctx, userID)

	if err != nil {
		s.log.WarnContext(ctx, "session refresh failed", "user_id", userID, "err", err)
		return Snapshot{}, false
	}

	snap := Snapshot{Identity: id, Profile: p}

	if !s.install(userID, gen, snap) {
		s.log.InfoContext(ctx, "stale session refresh discarded", "user_id", userID)
		return Snapshot{}, false
	}

	return snap, true
}

// Logout bumps the generation and drops the snapshot. The user's state
// entry stays behind so stale refreshes still see the new generation.
func (s *Store) Logout(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.m[userID]

	if !ok {
		st = &userState{}
		s.m[userID] = st
	}

	st.gen++
	st.snapshot = nil
}

// Generation returns the user's current generation counter.
func (s *Store) Generation(userID string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.m[userID]; ok {
		return st.gen
	}

	return 0
}

func (s *Store) install(userID string, gen uint64, snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.m[userID]

	if !ok {
		st = &userState{}
		s.m[userID] = st
	}

	if st.gen != gen {
		return false
	}

	st.snapshot = &snap

	return true
}
