package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stagehubhq/stagehub/internal/config"
	"github.com/stagehubhq/stagehub/internal/domain/identity"
	"github.com/stagehubhq/stagehub/internal/security"
)

// EnsureAdminUser creates the configured admin identity and its
// profile row on first boot. No-op when the email already exists or
// the admin env vars are unset.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	// check if the user exists

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.AdminEmail).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	now := time.Now().UTC()
	id := uuid.NewString()

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		`,
		id, cfg.AdminEmail, hash, now, now,
	)

	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO profiles (user_id, full_name, username, phone, location, bio, avatar_url, role, updated_at)
		VALUES ($1,$2,$3,'','','','',$4,$5)
		`,
		id, cfg.AdminName, "admin", identity.RoleOrganization, now,
	)

	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
