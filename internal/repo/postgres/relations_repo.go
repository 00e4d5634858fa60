package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stagehubhq/stagehub/internal/domain/event"
	"github.com/stagehubhq/stagehub/internal/domain/relation"
	"github.com/stagehubhq/stagehub/internal/observability"
)

type RelationsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRelationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RelationsRepo {
	return &RelationsRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *RelationsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

// ListByUser returns the relation rows for one user and kind, newest
// first. Display order for saved events follows this ordering.
func (repo *RelationsRepo) ListByUser(ctx context.Context, userID string, kind relation.Kind) (entries []relation.Entry, err error) {
	var rows pgx.Rows

	err = repo.observe("saved_events.list_by_user", func() error {
		rows, err = repo.pool.Query(ctx,
			`SELECT user_id, event_id, kind, created_at
			 FROM saved_events
			 WHERE user_id = $1 AND kind = $2
			 ORDER BY created_at DESC, event_id DESC`,
			userID, kind,
		)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	entries = make([]relation.Entry, 0)

	for rows.Next() {
		var e relation.Entry

		scanErr := rows.Scan(&e.UserID, &e.EventID, &e.Kind, &e.CreatedAt)

		if scanErr != nil {
			err = scanErr
			return
		}
		entries = append(entries, e)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		if repo.prom != nil {
			repo.prom.DbErrorsTotal.WithLabelValues("saved_events.list_by_user", "rows_err").Inc()
		}
		err = rowsErr
		return
	}

	return
}

// Save inserts one relation row. The event's existence is checked
// inside the same transaction so a concurrent catalog delete cannot
// leave a row pointing at nothing at insert time.
func (repo *RelationsRepo) Save(ctx context.Context, userID, eventID string, kind relation.Kind) (entry relation.Entry, err error) {
	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool

	err = repo.observe("saved_events.save.event_check", func() error {
		return tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, eventID,
		).Scan(&exists)
	})

	if err != nil {
		return
	}

	if !exists {
		err = event.ErrNotFound
		return
	}

	entry = relation.Entry{
		UserID:    userID,
		EventID:   eventID,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}

	err = repo.observe("saved_events.save.insert", func() error {
		_, e := tx.Exec(ctx,
			`INSERT INTO saved_events (user_id, event_id, kind, created_at)
			 VALUES ($1,$2,$3,$4)`,
			entry.UserID, entry.EventID, entry.Kind, entry.CreatedAt,
		)
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			err = relation.ErrAlreadySaved
			return
		}
		return
	}

	err = tx.Commit(ctx)

	return
}

func (repo *RelationsRepo) Remove(ctx context.Context, userID, eventID string, kind relation.Kind) error {
	var affected int64

	err := repo.observe("saved_events.remove", func() error {
		tag, execErr := repo.pool.Exec(ctx,
			`DELETE FROM saved_events
			 WHERE user_id = $1 AND event_id = $2 AND kind = $3`,
			userID, eventID, kind,
		)
		affected = tag.RowsAffected()
		return execErr
	})

	if err != nil {
		return err
	}

	if affected == 0 {
		return relation.ErrNotSaved
	}

	return nil
}

func (repo *RelationsRepo) IsSaved(ctx context.Context, userID, eventID string, kind relation.Kind) (bool, error) {
	var exists bool

	err := repo.observe("saved_events.is_saved", func() error {
		return repo.pool.QueryRow(ctx,
			`SELECT EXISTS(
				SELECT 1 FROM saved_events
				WHERE user_id = $1 AND event_id = $2 AND kind = $3
			)`,
			userID, eventID, kind,
		).Scan(&exists)
	})

	return exists, err
}

func (repo *RelationsRepo) CountByUser(ctx context.Context, userID string, kind relation.Kind) (int, error) {
	var count int

	err := repo.observe("saved_events.count_by_user", func() error {
		return repo.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM saved_events WHERE user_id = $1 AND kind = $2`,
			userID, kind,
		).Scan(&count)
	})

	return count, err
}
