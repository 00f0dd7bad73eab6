package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/lanparty/internal/model"
)

// HardwareRepo manages rentable hardware and its reservations.
type HardwareRepo struct {
	db *sql.DB
}

func NewHardwareRepo(db *sql.DB) *HardwareRepo { return &HardwareRepo{db: db} }

// ListItems returns the hardware catalogue.
func (r *HardwareRepo) ListItems(ctx context.Context) ([]model.HardwareItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, price_per_night, quantity_available FROM hardware_items ORDER BY type, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HardwareItem
	for rows.Next() {
		var h model.HardwareItem
		if err := rows.Scan(&h.ID, &h.Name, &h.Type, &h.PricePerNight, &h.QuantityAvailable); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// CreateItem inserts a catalogue entry.
func (r *HardwareRepo) CreateItem(ctx context.Context, h *model.HardwareItem) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO hardware_items (name, type, price_per_night, quantity_available) VALUES (?, ?, ?, ?)`,
		h.Name, h.Type, h.PricePerNight, h.QuantityAvailable)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return nil
}

// CreateReservation books hardware for a guest.  The item row is locked
// so concurrent bookings cannot exceed QuantityAvailable for the event;
// exceeding it yields ErrConflict.  TotalPrice is computed here from the
// item's current nightly price and never recomputed afterwards.
func (r *HardwareRepo) CreateReservation(ctx context.Context, res *model.HardwareReservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM guests WHERE id = ? AND event_id = ?`, res.GuestID, res.EventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrGuestNotFound
	} else if err != nil {
		return err
	}

	var item model.HardwareItem
	err = tx.QueryRowContext(ctx,
		`SELECT id, name, type, price_per_night, quantity_available FROM hardware_items WHERE id = ? FOR UPDATE`,
		res.HardwareItemID).Scan(&item.ID, &item.Name, &item.Type, &item.PricePerNight, &item.QuantityAvailable)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrHardwareNotFound
	} else if err != nil {
		return err
	}

	var reserved int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM hardware_reservations WHERE hardware_item_id = ? AND event_id = ?`,
		res.HardwareItemID, res.EventID).Scan(&reserved); err != nil {
		return err
	}
	if reserved+res.Quantity > item.QuantityAvailable {
		return ErrConflict
	}

	res.TotalPrice = model.ReservationPrice(res.Quantity, res.NightsCount, item.PricePerNight)
	out, err := tx.ExecContext(ctx,
		`INSERT INTO hardware_reservations (guest_id, hardware_item_id, event_id, quantity, nights_count, total_price)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		res.GuestID, res.HardwareItemID, res.EventID, res.Quantity, res.NightsCount, res.TotalPrice)
	if err != nil {
		return err
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	if err := tx.QueryRowContext(ctx, `SELECT created_at FROM hardware_reservations WHERE id = ?`, res.ID).Scan(&res.CreatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// DeleteReservation removes a reservation.
func (r *HardwareRepo) DeleteReservation(ctx context.Context, id uint64) (*model.HardwareReservation, error) {
	var res model.HardwareReservation
	err := r.db.QueryRowContext(ctx,
		`SELECT id, guest_id, hardware_item_id, event_id, quantity, nights_count, total_price, created_at
		   FROM hardware_reservations WHERE id = ?`, id).
		Scan(&res.ID, &res.GuestID, &res.HardwareItemID, &res.EventID, &res.Quantity, &res.NightsCount, &res.TotalPrice, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	} else if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM hardware_reservations WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReservationDetail is a reservation joined with the item it books.
type ReservationDetail struct {
	model.HardwareReservation
	ItemName string `json:"item_name"`
	ItemType string `json:"item_type"`
}

// ListReservationsByEvent returns the event's reservations; when guestID is
// non-zero only that guest's.
func (r *HardwareRepo) ListReservationsByEvent(ctx context.Context, eventID, guestID uint64) ([]ReservationDetail, error) {
	q := `SELECT hr.id, hr.guest_id, hr.hardware_item_id, hr.event_id, hr.quantity, hr.nights_count,
	             hr.total_price, hr.created_at, hi.name, hi.type
	        FROM hardware_reservations hr
	        JOIN hardware_items hi ON hi.id = hr.hardware_item_id
	       WHERE hr.event_id = ?`
	args := []any{eventID}
	if guestID != 0 {
		q += ` AND hr.guest_id = ?`
		args = append(args, guestID)
	}
	q += ` ORDER BY hr.guest_id, hr.id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReservationDetail
	for rows.Next() {
		var d ReservationDetail
		if err := rows.Scan(&d.ID, &d.GuestID, &d.HardwareItemID, &d.EventID, &d.Quantity, &d.NightsCount,
			&d.TotalPrice, &d.CreatedAt, &d.ItemName, &d.ItemType); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
