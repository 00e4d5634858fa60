package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stagehubhq/stagehub/internal/domain/event"
	"github.com/stagehubhq/stagehub/internal/observability"
	"github.com/stagehubhq/stagehub/internal/utils"
)

const eventColumns = `id, title, description, date, location, image_url, price, created_by, created_at, updated_at`

type EventsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewEventsRepo(pool *pgxpool.Pool, prom *observability.Prom) *EventsRepo {
	return &EventsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *EventsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanEvent(row pgx.Row, e *event.Event) error {
	return row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Date, &e.Location,
		&e.ImageURL, &e.Price, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
}

func (r *EventsRepo) Create(ctx context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error) {
	e := event.NewFromCreateRequest(req, createdBy)

	err := r.observe("events.create", func() error {
		_, execErr := r.pool.Exec(ctx,
			`INSERT INTO events (id, title, description, date, location, image_url, price, created_by, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			e.ID, e.Title, e.Description, e.Date, e.Location, e.ImageURL, e.Price, e.CreatedBy, e.CreatedAt, e.UpdatedAt,
		)
		return execErr
	})

	if err != nil {
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) GetByID(ctx context.Context, id string) (event.Event, error) {
	var e event.Event

	err := r.observe("events.get_by_id", func() error {
		return scanEvent(r.pool.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1`, id), &e)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}

// GetByIDs is the aggregator's batched read. Missing ids are simply
// absent from the result; the caller decides what that means.
func (r *EventsRepo) GetByIDs(ctx context.Context, ids []string) ([]event.Event, error) {
	if len(ids) == 0 {
		return []event.Event{}, nil
	}

	var rows pgx.Rows
	var err error

	err = r.observe("events.get_by_ids", func() error {
		rows, err = r.pool.Query(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = ANY($1)`, ids)
		return err
	})

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	out := make([]event.Event, 0, len(ids))

	for rows.Next() {
		var e event.Event

		if err := scanEvent(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// ListCursor pages the catalog by (date, id) ascending. A zero
// afterDate means "from the beginning".
func (r *EventsRepo) ListCursor(ctx context.Context, filter event.ListEventsFilter, afterDate time.Time, afterID string) ([]event.Event, *string, bool, error) {
	var conds []string
	var args []interface{}

	pos := 1

	if filter.Location != nil {
		conds = append(conds, fmt.Sprintf("location = $%d", pos))
		args = append(args, *filter.Location)
		pos++
	}

	if filter.From != nil {
		conds = append(conds, fmt.Sprintf("date >= $%d", pos))
		args = append(args, *filter.From)
		pos++
	}

	if filter.To != nil {
		conds = append(conds, fmt.Sprintf("date <= $%d", pos))
		args = append(args, *filter.To)
		pos++
	}

	if filter.Query != nil {
		conds = append(conds, fmt.Sprintf("title ILIKE '%%' || $%d || '%%'", pos))
		args = append(args, *filter.Query)
		pos++
	}

	if !afterDate.IsZero() {
		conds = append(conds, fmt.Sprintf("(date, id) > ($%d, $%d)", pos, pos+1))
		args = append(args, afterDate, afterID)
		pos += 2
	}

	query := `SELECT ` + eventColumns + ` FROM events`

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	// fetch one extra row to learn whether another page exists
	query += fmt.Sprintf(" ORDER BY date ASC, id ASC LIMIT $%d", pos)
	args = append(args, filter.Limit+1)

	var rows pgx.Rows
	var err error

	err = r.observe("events.list_cursor", func() error {
		rows, err = r.pool.Query(ctx, query, args...)
		return err
	})

	if err != nil {
		return nil, nil, false, err
	}

	defer rows.Close()

	out := make([]event.Event, 0, filter.Limit)

	for rows.Next() {
		var e event.Event

		if err := scanEvent(rows, &e); err != nil {
			return nil, nil, false, err
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, false, err
	}

	hasMore := len(out) > filter.Limit

	if hasMore {
		out = out[:filter.Limit]
	}

	var next *string

	if hasMore && len(out) > 0 {
		last := out[len(out)-1]
		cursor, encodeErr := utils.EncodeEventCursor(last.Date, last.ID)
		if encodeErr == nil {
			next = &cursor
		}
	}

	return out, next, hasMore, nil
}

func (r *EventsRepo) Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
	var e event.Event

	err := r.observe("events.update", func() error {
		return scanEvent(r.pool.QueryRow(
			ctx,
			`UPDATE events
				SET title = $2,
						description = $3,
						date = $4,
						location = $5,
						image_url = $6,
						price = $7,
						updated_at = NOW()
			WHERE id = $1
			RETURNING `+eventColumns,
			id, req.Title, req.Description, req.Date, req.Location, req.ImageURL, req.Price,
		), &e)
	})

	if err != nil {
		// if there are no rows matching the id
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		// if it is any other type of error
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) Delete(ctx context.Context, id string) error {
	var affected int64

	err := r.observe("events.delete", func() error {
		tag, execErr := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return execErr
	})

	if err != nil {
		return err
	}

	// if no rows were deleted as a result return a not found error
	if affected == 0 {
		return event.ErrNotFound
	}

	return nil
}
