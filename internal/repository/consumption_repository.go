package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/lanparty/internal/model"
)

// ConsumptionRepo stores purchases of products by guests.
type ConsumptionRepo struct {
	db *sql.DB
}

func NewConsumptionRepo(db *sql.DB) *ConsumptionRepo { return &ConsumptionRepo{db: db} }

// Create inserts a record after checking, in one transaction, that both
// the guest and the product belong to the record's event.
func (r *ConsumptionRepo) Create(ctx context.Context, rec *model.ConsumptionRecord) error {
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
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM guests WHERE id = ? AND event_id = ?`, rec.GuestID, rec.EventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrGuestNotFound
	} else if err != nil {
		return err
	}
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ? AND event_id = ?`, rec.ProductID, rec.EventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	} else if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO consumption (guest_id, product_id, event_id, quantity) VALUES (?, ?, ?, ?)`,
		rec.GuestID, rec.ProductID, rec.EventID, rec.Quantity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	if err := tx.QueryRowContext(ctx, `SELECT created_at FROM consumption WHERE id = ?`, rec.ID).Scan(&rec.CreatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Delete removes a record and returns it.
func (r *ConsumptionRepo) Delete(ctx context.Context, id uint64) (*model.ConsumptionRecord, error) {
	var rec model.ConsumptionRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT id, guest_id, product_id, event_id, quantity, created_at FROM consumption WHERE id = ?`, id).
		Scan(&rec.ID, &rec.GuestID, &rec.ProductID, &rec.EventID, &rec.Quantity, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConsumptionNotFound
	} else if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM consumption WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// deleted concurrently
		return nil, ErrConsumptionNotFound
	}
	return &rec, nil
}

// ListByEvent returns every record of the event in purchase order.
func (r *ConsumptionRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.ConsumptionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, guest_id, product_id, event_id, quantity, created_at
		   FROM consumption WHERE event_id = ? ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ConsumptionRecord
	for rows.Next() {
		var c model.ConsumptionRecord
		if err := rows.Scan(&c.ID, &c.GuestID, &c.ProductID, &c.EventID, &c.Quantity, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ConsumptionSummary is the consumption of one product by one guest,
// priced with the product's current price.
type ConsumptionSummary struct {
	GuestID   uint64
	ProductID uint64
	Name      string
	Qty       int
	UnitPrice decimal.Decimal
}

// SummaryByEvent groups the event's consumption per guest and product.
// When guestID is non-zero only that guest is returned.
func (r *ConsumptionRepo) SummaryByEvent(ctx context.Context, eventID, guestID uint64) ([]ConsumptionSummary, error) {
	q := `SELECT c.guest_id, c.product_id, p.name, SUM(c.quantity), p.price
	        FROM consumption c
	        JOIN products p ON p.id = c.product_id
	       WHERE c.event_id = ?`
	args := []any{eventID}
	if guestID != 0 {
		q += ` AND c.guest_id = ?`
		args = append(args, guestID)
	}
	q += ` GROUP BY c.guest_id, c.product_id, p.name, p.price, p.sort_order
	       ORDER BY c.guest_id, p.sort_order, p.name`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConsumptionSummary
	for rows.Next() {
		var s ConsumptionSummary
		if err := rows.Scan(&s.GuestID, &s.ProductID, &s.Name, &s.Qty, &s.UnitPrice); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
