package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/lanparty/internal/model"
)

// GuestRepo reads the guests table.  Registration happens elsewhere; the
// billing side only reads.
type GuestRepo struct {
	db *sql.DB
}

func NewGuestRepo(db *sql.DB) *GuestRepo { return &GuestRepo{db: db} }

const guestColumns = `id, event_id, name, nights_count, deposit, dietary_restrictions, created_at`

func scanGuest(row interface{ Scan(...any) error }) (*model.Guest, error) {
	var (
		g       model.Guest
		deposit decimal.NullDecimal
		diet    sql.NullString
	)
	if err := row.Scan(&g.ID, &g.EventID, &g.Name, &g.NightsCount, &deposit, &diet, &g.CreatedAt); err != nil {
		return nil, err
	}
	if deposit.Valid {
		d := deposit.Decimal
		g.Deposit = &d
	}
	if diet.Valid {
		s := diet.String
		g.DietaryRestrictions = &s
	}
	return &g, nil
}

// Create registers a guest.
func (r *GuestRepo) Create(ctx context.Context, g *model.Guest) error {
	var deposit decimal.NullDecimal
	if g.Deposit != nil {
		deposit = decimal.NewNullDecimal(*g.Deposit)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO guests (event_id, name, nights_count, deposit, dietary_restrictions) VALUES (?, ?, ?, ?, ?)`,
		g.EventID, g.Name, g.NightsCount, deposit, g.DietaryRestrictions)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	g.ID = uint64(id)
	return nil
}

// GetByID returns the guest only if it belongs to eventID.
func (r *GuestRepo) GetByID(ctx context.Context, eventID, guestID uint64) (*model.Guest, error) {
	g, err := scanGuest(r.db.QueryRowContext(ctx,
		`SELECT `+guestColumns+` FROM guests WHERE id = ? AND event_id = ?`, guestID, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGuestNotFound
	}
	return g, err
}

// ListByEvent returns the event's guests ordered by name.
func (r *GuestRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Guest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+guestColumns+` FROM guests WHERE event_id = ? ORDER BY name, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Guest
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}
