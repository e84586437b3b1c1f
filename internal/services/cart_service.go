package services

import (
	"context"
	"errors"

	"omnishop/internal/cart"
	"omnishop/internal/domain"
	"omnishop/internal/repos"
)

var ErrUnknownVariant = errors.New("unknown product variant")

type CartService struct {
	Carts *cart.Registry
	Prods *repos.ProductRepo
}

func NewCartService(carts *cart.Registry, prods *repos.ProductRepo) *CartService {
	return &CartService{Carts: carts, Prods: prods}
}

type CartView struct {
	Items      []domain.CartItem `json:"items"`
	ItemCount  int               `json:"itemCount"`
	Subtotal   float64           `json:"subtotal"`
	SyncStatus cart.SyncStatus   `json:"syncStatus"`
}

func viewOf(st *cart.Store) CartView {
	items := st.Items()
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartView{Items: items, ItemCount: st.ItemCount(), Subtotal: st.Subtotal(), SyncStatus: st.Status()}
}

// Open binds the session's cart to userID ("" when anonymous). Logging in
// between two calls merges the anonymous cart into the user's.
func (s *CartService) Open(ctx context.Context, sessionID, userID string) *cart.Store {
	return s.Carts.Open(ctx, sessionID, userID)
}

func (s *CartService) View(ctx context.Context, sessionID, userID string) CartView {
	return viewOf(s.Open(ctx, sessionID, userID))
}

// Add snapshots the variant from the catalog and adds qty of it.
func (s *CartService) Add(ctx context.Context, sessionID, userID, productID, variantID string, qty int) (CartView, error) {
	if qty < 1 {
		qty = 1
	}
	item, err := s.Prods.Snapshot(ctx, productID, variantID)
	if errors.Is(err, repos.ErrNotFound) {
		return CartView{}, ErrUnknownVariant
	}
	if err != nil {
		return CartView{}, err
	}
	item.Quantity = qty
	st := s.Open(ctx, sessionID, userID)
	st.AddItem(item)
	return viewOf(st), nil
}

func (s *CartService) Update(ctx context.Context, sessionID, userID, itemID string, qty int) CartView {
	st := s.Open(ctx, sessionID, userID)
	st.UpdateQuantity(itemID, qty)
	return viewOf(st)
}

func (s *CartService) Remove(ctx context.Context, sessionID, userID, itemID string) CartView {
	st := s.Open(ctx, sessionID, userID)
	st.RemoveItem(itemID)
	return viewOf(st)
}

func (s *CartService) Clear(ctx context.Context, sessionID, userID string) CartView {
	st := s.Open(ctx, sessionID, userID)
	st.ClearCart()
	return viewOf(st)
}

func (s *CartService) Contains(ctx context.Context, sessionID, userID, productID, variantID string) bool {
	return s.Open(ctx, sessionID, userID).IsInCart(productID, variantID)
}
