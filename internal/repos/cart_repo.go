package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/singleflight"

	"omnishop/internal/domain"
)

const CartStatusActive = "active"

// CartRepo is the remote per-user cart: the carts/cart_items tables joined with
// the catalog. It satisfies cart.Gateway.
type CartRepo struct {
	db    *sqlx.DB
	now   func() time.Time
	group singleflight.Group
}

func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db, now: time.Now} }

// NewCartRepoWithClock is useful for tests.
func NewCartRepoWithClock(db *sqlx.DB, now func() time.Time) *CartRepo {
	if now == nil {
		now = time.Now
	}
	return &CartRepo{db: db, now: now}
}

type cartItemRow struct {
	ID             string          `db:"id"`
	ProductID      string          `db:"product_id"`
	ProductName    string          `db:"product_name"`
	VariantID      string          `db:"variant_id"`
	VariantName    string          `db:"variant_name"`
	Price          float64         `db:"price"`
	CompareAtPrice sql.NullFloat64 `db:"compare_at_price"`
	Quantity       int             `db:"quantity"`
	AddedAt        int64           `db:"added_at"`
}

const activeCartTimeout = 10 * time.Second

// ActiveCartID returns the user's active cart, creating it when absent. The
// partial unique index on carts(user_id) keeps a second active row from being
// inserted; concurrent callers in this process share one lookup. The shared
// lookup is detached from any single caller's cancellation, and each caller
// stops waiting when its own ctx ends.
func (r *CartRepo) ActiveCartID(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ch := r.group.DoChan(userID, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), activeCartTimeout)
		defer cancel()
		return r.ensureActive(ctx, userID)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (r *CartRepo) ensureActive(ctx context.Context, userID string) (string, error) {
	id, err := r.lookupActive(ctx, userID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup active cart: %w", err)
	}
	ts := r.now().UTC().Format(time.RFC3339)
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO carts(id, user_id, status, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`), uuid.NewString(), userID, CartStatusActive, ts, ts); err != nil {
		return "", fmt.Errorf("create cart: %w", err)
	}
	// re-read: a concurrent writer may own the active row
	id, err = r.lookupActive(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("lookup active cart: %w", err)
	}
	return id, nil
}

func (r *CartRepo) lookupActive(ctx context.Context, userID string) (string, error) {
	var id string
	err := r.db.GetContext(ctx, &id, r.db.Rebind(`
		SELECT id FROM carts WHERE user_id = ? AND status = ? LIMIT 1
	`), userID, CartStatusActive)
	return id, err
}

// FetchCart returns the active cart's lines in the order they were added.
func (r *CartRepo) FetchCart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	cartID, err := r.ActiveCartID(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows := []cartItemRow{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
	  SELECT ci.id, ci.product_id, p.name AS product_name, ci.variant_id, v.name AS variant_name,
	         v.price, v.compare_at_price, ci.quantity, ci.added_at
	  FROM cart_items ci
	  JOIN products p ON p.id = ci.product_id
	  JOIN product_variants v ON v.id = ci.variant_id
	  WHERE ci.cart_id = ?
	  ORDER BY ci.added_at, ci.id
	`), cartID); err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	if len(rows) == 0 {
		return []domain.CartItem{}, nil
	}

	productIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		productIDs = append(productIDs, row.ProductID)
	}
	images, err := imagesByProduct(ctx, r.db, productIDs)
	if err != nil {
		return nil, err
	}

	out := make([]domain.CartItem, 0, len(rows))
	for _, row := range rows {
		it := domain.CartItem{
			ID:           domain.ItemID(row.ProductID, row.VariantID),
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			ProductImage: domain.PrimaryImage(images[row.ProductID]),
			Variant: domain.Variant{
				ID:    row.VariantID,
				Name:  row.VariantName,
				Price: row.Price,
			},
			Quantity: row.Quantity,
			AddedAt:  row.AddedAt,
		}
		if row.CompareAtPrice.Valid {
			p := row.CompareAtPrice.Float64
			it.Variant.CompareAtPrice = &p
		}
		out = append(out, it)
	}
	return out, nil
}

// AddItem increments the (cart, variant) line by quantity, inserting it when absent.
func (r *CartRepo) AddItem(ctx context.Context, userID, productID, variantID string, quantity int) error {
	cartID, err := r.ActiveCartID(ctx, userID)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO cart_items(id, cart_id, product_id, variant_id, quantity, added_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(cart_id, variant_id) DO UPDATE
		SET quantity = cart_items.quantity + excluded.quantity
	`), uuid.NewString(), cartID, productID, variantID, quantity, r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return r.touch(ctx, cartID)
}

// UpdateItem overwrites the line's quantity; below 1 deletes the line.
func (r *CartRepo) UpdateItem(ctx context.Context, userID, variantID string, quantity int) error {
	if quantity < 1 {
		return r.RemoveItem(ctx, userID, variantID)
	}
	cartID, err := r.ActiveCartID(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE cart_items SET quantity = ? WHERE cart_id = ? AND variant_id = ?
	`), quantity, cartID, variantID); err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	return r.touch(ctx, cartID)
}

func (r *CartRepo) RemoveItem(ctx context.Context, userID, variantID string) error {
	cartID, err := r.ActiveCartID(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM cart_items WHERE cart_id = ? AND variant_id = ?
	`), cartID, variantID); err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return r.touch(ctx, cartID)
}

func (r *CartRepo) ClearCart(ctx context.Context, userID string) error {
	cartID, err := r.ActiveCartID(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM cart_items WHERE cart_id = ?`), cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return r.touch(ctx, cartID)
}

func (r *CartRepo) touch(ctx context.Context, cartID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE carts SET updated_at = ? WHERE id = ?`),
		r.now().UTC().Format(time.RFC3339), cartID)
	return err
}
