package repository // repository defines data access for the event seat map

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"errors"       // errors for sentinel matching

	"github.com/iliyamo/lanparty/internal/model"
)

// SeatRepo provides methods to work with the seats of an event.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// CreateBulk inserts multiple seats in a single statement.
func (r *SeatRepo) CreateBulk(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO seats (event_id, row_label, seat_number) VALUES `
	args := make([]interface{}, 0, len(seats)*3)
	for i, seat := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, seat.EventID, seat.RowLabel, seat.SeatNumber)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// ListByEvent retrieves all seats of an event ordered by row then number.
// Row labels sort by length first so that Z comes before AA.
func (r *SeatRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Seat, error) {
	const q = `SELECT id, event_id, row_label, seat_number, guest_id, updated_at
	           FROM seats
	           WHERE event_id = ?
	           ORDER BY CHAR_LENGTH(row_label), row_label, seat_number`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanSeat(row interface{ Scan(...any) error }) (*model.Seat, error) {
	var (
		s     model.Seat
		guest sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.EventID, &s.RowLabel, &s.SeatNumber, &guest, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if guest.Valid {
		g := uint64(guest.Int64)
		s.GuestID = &g
	}
	return &s, nil
}

// Assign gives seatID to guestID, or frees it when guestID is nil.  A
// guest holds at most one seat, so any previous seat of the guest is
// released in the same transaction.  Assigning a seat held by another
// guest returns ErrConflict.
func (r *SeatRepo) Assign(ctx context.Context, eventID, seatID uint64, guestID *uint64) (*model.Seat, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	seat, err := scanSeat(tx.QueryRowContext(ctx,
		`SELECT id, event_id, row_label, seat_number, guest_id, updated_at
		   FROM seats WHERE id = ? AND event_id = ? FOR UPDATE`, seatID, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeatNotFound
	} else if err != nil {
		return nil, err
	}

	if guestID != nil {
		if seat.GuestID != nil && *seat.GuestID != *guestID {
			return nil, ErrConflict
		}
		var one int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM guests WHERE id = ? AND event_id = ?`, *guestID, eventID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGuestNotFound
		} else if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE seats SET guest_id = NULL WHERE event_id = ? AND guest_id = ? AND id <> ?`,
			eventID, *guestID, seatID); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE seats SET guest_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, guestID, seatID); err != nil {
		return nil, err
	}
	seat, err = scanSeat(tx.QueryRowContext(ctx,
		`SELECT id, event_id, row_label, seat_number, guest_id, updated_at FROM seats WHERE id = ?`, seatID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return seat, nil
}

// DeleteByEvent removes the event's seat map so a new layout can be generated.
func (r *SeatRepo) DeleteByEvent(ctx context.Context, eventID uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM seats WHERE event_id = ?`, eventID)
	return err
}
