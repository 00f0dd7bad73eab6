package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/lanparty/internal/model"
)

// EventRepo reads and writes the events table.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to db.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the handle so callers can open transactions spanning repos.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventColumns = `id, name, starts_at, ends_at, price_per_night, hardware_pricing_enabled, created_at`

func scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	if err := row.Scan(&e.ID, &e.Name, &e.StartsAt, &e.EndsAt, &e.PricePerNight, &e.HardwarePricingEnabled, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts an event and fills in its ID.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	const q = `INSERT INTO events (name, starts_at, ends_at, price_per_night, hardware_pricing_enabled)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, e.Name, e.StartsAt, e.EndsAt, e.PricePerNight, e.HardwarePricingEnabled)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// GetByID returns ErrEventNotFound when no row matches.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return e, err
}

// List returns all events, most recent first.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY starts_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
