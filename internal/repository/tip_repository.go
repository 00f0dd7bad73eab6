package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/lanparty/internal/model"
)

// TipRepo stores at most one tip per guest and event.
type TipRepo struct {
	db *sql.DB
}

func NewTipRepo(db *sql.DB) *TipRepo { return &TipRepo{db: db} }

// Upsert creates or replaces the guest's tip.
func (r *TipRepo) Upsert(ctx context.Context, t *model.Tip) error {
	var pct decimal.NullDecimal
	if t.Percentage != nil {
		pct = decimal.NewNullDecimal(*t.Percentage)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tips (event_id, guest_id, amount, percentage) VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE amount = VALUES(amount), percentage = VALUES(percentage)`,
		t.EventID, t.GuestID, t.Amount, pct)
	if err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx,
		`SELECT updated_at FROM tips WHERE event_id = ? AND guest_id = ?`, t.EventID, t.GuestID).Scan(&t.UpdatedAt)
}

func scanTip(row interface{ Scan(...any) error }) (*model.Tip, error) {
	var (
		t   model.Tip
		pct decimal.NullDecimal
	)
	if err := row.Scan(&t.EventID, &t.GuestID, &t.Amount, &pct, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if pct.Valid {
		p := pct.Decimal
		t.Percentage = &p
	}
	return &t, nil
}

// Get returns the guest's tip or nil when none was recorded.
func (r *TipRepo) Get(ctx context.Context, eventID, guestID uint64) (*model.Tip, error) {
	t, err := scanTip(r.db.QueryRowContext(ctx,
		`SELECT event_id, guest_id, amount, percentage, updated_at FROM tips WHERE event_id = ? AND guest_id = ?`,
		eventID, guestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// ListByEvent returns the event's tips keyed by guest.
func (r *TipRepo) ListByEvent(ctx context.Context, eventID uint64) (map[uint64]model.Tip, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_id, guest_id, amount, percentage, updated_at FROM tips WHERE event_id = ?`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[uint64]model.Tip{}
	for rows.Next() {
		t, err := scanTip(rows)
		if err != nil {
			return nil, err
		}
		out[t.GuestID] = *t
	}
	return out, rows.Err()
}
