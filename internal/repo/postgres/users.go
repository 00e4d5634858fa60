package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stagehubhq/stagehub/internal/domain/identity"
	"github.com/stagehubhq/stagehub/internal/observability"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (identity.Identity, identity.Profile, error) {
	var id identity.Identity
	var p identity.Profile

	err := r.observe("users.get_by_email", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT u.id, u.email, u.password_hash, u.created_at, u.updated_at,
			        p.user_id, p.full_name, p.username, p.phone, p.location, p.bio, p.avatar_url, p.role, p.updated_at
			 FROM users u
			 JOIN profiles p ON p.user_id = u.id
			 WHERE u.email = $1`,
			email,
		).Scan(
			&id.ID, &id.Email, &id.PasswordHash, &id.CreatedAt, &id.UpdatedAt,
			&p.UserID, &p.FullName, &p.Username, &p.Phone, &p.Location, &p.Bio, &p.AvatarURL, &p.Role, &p.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.Identity{}, identity.Profile{}, identity.ErrNotFound
		}

		return identity.Identity{}, identity.Profile{}, err
	}
	return id, p, nil
}

// GetWithProfile is the canonical identity read: one round trip joining
// the identity row with its profile row.
func (r *UsersRepo) GetWithProfile(ctx context.Context, userID string) (identity.Identity, identity.Profile, error) {
	var id identity.Identity
	var p identity.Profile

	err := r.observe("users.get_with_profile", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT u.id, u.email, u.password_hash, u.created_at, u.updated_at,
			        p.user_id, p.full_name, p.username, p.phone, p.location, p.bio, p.avatar_url, p.role, p.updated_at
			 FROM users u
			 JOIN profiles p ON p.user_id = u.id
			 WHERE u.id = $1`,
			userID,
		).Scan(
			&id.ID, &id.Email, &id.PasswordHash, &id.CreatedAt, &id.UpdatedAt,
			&p.UserID, &p.FullName, &p.Username, &p.Phone, &p.Location, &p.Bio, &p.AvatarURL, &p.Role, &p.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.Identity{}, identity.Profile{}, identity.ErrNotFound
		}

		return identity.Identity{}, identity.Profile{}, err
	}
	return id, p, nil
}

// CreateWithProfile inserts the identity row and its profile row in one
// transaction; the profile exists for the whole life of the identity.
func (r *UsersRepo) CreateWithProfile(ctx context.Context, email, passwordHash, fullName, username string) (identity.Identity, identity.Profile, error) {
	now := time.Now().UTC()

	id := identity.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p := identity.Profile{
		UserID:    id.ID,
		FullName:  fullName,
		Username:  username,
		Role:      identity.RoleUser,
		UpdatedAt: now,
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return identity.Identity{}, identity.Profile{}, err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	err = r.observe("users.create", func() error {
		_, e := tx.Exec(ctx,
			`INSERT INTO users (id, email, password_hash, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5)`,
			id.ID, id.Email, id.PasswordHash, id.CreatedAt, id.UpdatedAt,
		)
		return e
	})

	if err != nil {
		return identity.Identity{}, identity.Profile{}, mapUserConstraint(err)
	}

	err = r.observe("profiles.create", func() error {
		_, e := tx.Exec(ctx,
			`INSERT INTO profiles (user_id, full_name, username, phone, location, bio, avatar_url, role, updated_at)
			 VALUES ($1,$2,$3,'','','','',$4,$5)`,
			p.UserID, p.FullName, p.Username, p.Role, p.UpdatedAt,
		)
		return e
	})

	if err != nil {
		return identity.Identity{}, identity.Profile{}, mapUserConstraint(err)
	}

	err = tx.Commit(ctx)

	if err != nil {
		return identity.Identity{}, identity.Profile{}, err
	}

	return id, p, nil
}

// UpdateProfile writes exactly the supplied fields in a single UPDATE.
// Nil pointers are left out of the SET list entirely.
func (r *UsersRepo) UpdateProfile(ctx context.Context, userID string, req identity.UpdateProfileRequest) error {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{userID}
	pos := 2

	add := func(col string, val *string) {
		if val == nil {
			return
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, pos))
		args = append(args, *val)
		pos++
	}

	add("full_name", req.FullName)
	add("username", req.Username)
	add("phone", req.Phone)
	add("location", req.Location)
	add("bio", req.Bio)
	add("role", req.Role)
	add("avatar_url", req.AvatarURL)

	query := "UPDATE profiles SET " + strings.Join(sets, ", ") + " WHERE user_id = $1"

	var tag pgconn.CommandTag

	err := r.observe("profiles.update", func() error {
		var e error
		tag, e = r.pool.Exec(ctx, query, args...)
		return e
	})

	if err != nil {
		return mapUserConstraint(err)
	}

	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}

	return nil
}

func mapUserConstraint(err error) error {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "users_email_uniq", "users_email_key":
			return identity.ErrEmailAlreadyUsed
		case "profiles_username_uniq", "profiles_username_key":
			return identity.ErrUsernameAlreadyUsed
		}
	}

	return err
}
