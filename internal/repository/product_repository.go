package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/lanparty/internal/model"
)

// ProductRepo reads and writes the products table.
type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

const productColumns = `id, event_id, name, category, price, sort_order, is_active`

func scanProduct(row interface{ Scan(...any) error }) (*model.Product, error) {
	var p model.Product
	if err := row.Scan(&p.ID, &p.EventID, &p.Name, &p.Category, &p.Price, &p.SortOrder, &p.IsActive); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a product.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO products (event_id, name, category, price, sort_order, is_active) VALUES (?, ?, ?, ?, ?, ?)`,
		p.EventID, p.Name, p.Category, p.Price, p.SortOrder, p.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByID returns ErrProductNotFound unless the product belongs to eventID.
func (r *ProductRepo) GetByID(ctx context.Context, eventID, productID uint64) (*model.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ? AND event_id = ?`, productID, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	return p, err
}

// ListByEvent returns the products in display order.  Inactive products
// are included only when includeInactive is set; consumption already
// recorded against them must still resolve a price.
func (r *ProductRepo) ListByEvent(ctx context.Context, eventID uint64, includeInactive bool) ([]model.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE event_id = ?`
	if !includeInactive {
		q += ` AND is_active = 1`
	}
	q += ` ORDER BY sort_order, name`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
