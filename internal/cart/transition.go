package cart

import (
	"context"
	"fmt"

	"omnishop/internal/domain"
)

// Transition returns the authoritative items for a session whose identity moves
// from -> to. local is the anonymous list held in local storage.
//
// Anonymous -> user pushes the local items through gw.AddItem one at a time (the
// gateway increments rows that already exist) and then fetches the merged remote
// cart. After every accepted push, save receives the items still to push, so a
// failure part way leaves exactly the unmerged remainder behind; the last call
// gets an empty list. With nothing to push it only fetches.
func Transition(ctx context.Context, gw Gateway, from, to string, local []domain.CartItem, save func(ctx context.Context, remaining []domain.CartItem) error) ([]domain.CartItem, error) {
	if to == "" {
		return local, nil
	}
	if from == "" {
		for i, it := range local {
			if err := gw.AddItem(ctx, to, it.ProductID, it.Variant.ID, it.Quantity); err != nil {
				return nil, fmt.Errorf("merge item %s: %w", it.ID, err)
			}
			if save == nil {
				continue
			}
			if err := save(ctx, local[i+1:]); err != nil {
				return nil, fmt.Errorf("save merge remainder: %w", err)
			}
		}
	}
	items, err := gw.FetchCart(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}
	return items, nil
}
