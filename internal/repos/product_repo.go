package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"omnishop/internal/domain"
)

var ErrNotFound = errors.New("not found")

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

// Get loads an active product with its variants (by price) and images (by position).
func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`
	  SELECT id, name, description, active, COALESCE(created_at,'') AS created_at
	  FROM products
	  WHERE id = ? AND active = 1
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, ErrNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}

	if err := r.db.SelectContext(ctx, &p.Variants, r.db.Rebind(`
	  SELECT id, product_id, name, price, compare_at_price
	  FROM product_variants
	  WHERE product_id = ?
	  ORDER BY price, id
	`), id); err != nil {
		return domain.Product{}, fmt.Errorf("select variants: %w", err)
	}

	images, err := imagesByProduct(ctx, r.db, []string{id})
	if err != nil {
		return domain.Product{}, err
	}
	p.Images = images[id]
	return p, nil
}

type snapshotRow struct {
	ProductID      string          `db:"product_id"`
	ProductName    string          `db:"product_name"`
	VariantID      string          `db:"variant_id"`
	VariantName    string          `db:"variant_name"`
	Price          float64         `db:"price"`
	CompareAtPrice sql.NullFloat64 `db:"compare_at_price"`
}

// Snapshot builds the add-to-cart payload for a product variant: display name,
// primary image and the variant's current price. ErrNotFound when the variant
// does not belong to an active product.
func (r *ProductRepo) Snapshot(ctx context.Context, productID, variantID string) (domain.NewCartItem, error) {
	var row snapshotRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
	  SELECT p.id AS product_id, p.name AS product_name, v.id AS variant_id, v.name AS variant_name,
	         v.price, v.compare_at_price
	  FROM product_variants v
	  JOIN products p ON p.id = v.product_id
	  WHERE p.id = ? AND v.id = ? AND p.active = 1
	`), productID, variantID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewCartItem{}, ErrNotFound
	}
	if err != nil {
		return domain.NewCartItem{}, fmt.Errorf("snapshot: %w", err)
	}

	images, err := imagesByProduct(ctx, r.db, []string{productID})
	if err != nil {
		return domain.NewCartItem{}, err
	}
	item := domain.NewCartItem{
		ProductID:    row.ProductID,
		ProductName:  row.ProductName,
		ProductImage: domain.PrimaryImage(images[productID]),
		Variant:      domain.Variant{ID: row.VariantID, Name: row.VariantName, Price: row.Price},
	}
	if row.CompareAtPrice.Valid {
		p := row.CompareAtPrice.Float64
		item.Variant.CompareAtPrice = &p
	}
	return item, nil
}

func imagesByProduct(ctx context.Context, db *sqlx.DB, productIDs []string) (map[string][]domain.ProductImage, error) {
	out := map[string][]domain.ProductImage{}
	if len(productIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`
	  SELECT id, product_id, url, is_primary, position
	  FROM product_images
	  WHERE product_id IN (?)
	  ORDER BY product_id, position, id
	`, productIDs)
	if err != nil {
		return nil, err
	}
	var rows []domain.ProductImage
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select images: %w", err)
	}
	for _, img := range rows {
		out[img.ProductID] = append(out[img.ProductID], img)
	}
	return out, nil
}
