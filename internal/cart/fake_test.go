package cart_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"omnishop/internal/domain"
)

var (
	shirtM = domain.NewCartItem{
		ProductID: "tee-001", ProductName: "Omni Tee", ProductImage: "tee.jpg",
		Variant:  domain.Variant{ID: "tee-001-m", Name: "M", Price: 12.5},
		Quantity: 2,
	}
	mugStd = domain.NewCartItem{
		ProductID: "mug-001", ProductName: "Omni Mug", ProductImage: "mug.jpg",
		Variant:  domain.Variant{ID: "mug-001-std", Name: "Standard", Price: 4.25},
		Quantity: 1,
	}
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// fakeGateway is an in-memory remote cart with the same increment-if-exists rule as the SQL gateway.
type fakeGateway struct {
	mu      sync.Mutex
	carts   map[string][]domain.CartItem
	catalog map[string]domain.NewCartItem
	calls   []string
	err     error
	block   chan struct{}

	// failAdd makes the n-th AddItem call (1-based) fail once.
	failAdd int
	adds    int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		carts: map[string][]domain.CartItem{},
		catalog: map[string]domain.NewCartItem{
			shirtM.Variant.ID: shirtM,
			mugStd.Variant.ID: mugStd,
		},
	}
}

func (g *fakeGateway) record(call string) error {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
	return g.err
}

func (g *fakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

func (g *fakeGateway) count(prefix string) int {
	n := 0
	for _, c := range g.Calls() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (g *fakeGateway) FetchCart(_ context.Context, userID string) ([]domain.CartItem, error) {
	if err := g.record("fetch"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.carts[userID]), nil
}

func (g *fakeGateway) AddItem(_ context.Context, userID, productID, variantID string, quantity int) error {
	if err := g.record(fmt.Sprintf("add:%s:%d", variantID, quantity)); err != nil {
		return err
	}
	g.mu.Lock()
	g.adds++
	if g.failAdd > 0 && g.adds == g.failAdd {
		g.failAdd = 0
		g.mu.Unlock()
		return errors.New("add rejected")
	}
	defer g.mu.Unlock()
	items := g.carts[userID]
	for i := range items {
		if items[i].Variant.ID == variantID {
			items[i].Quantity += quantity
			return nil
		}
	}
	tmpl := g.catalog[variantID]
	g.carts[userID] = append(items, domain.CartItem{
		ID: domain.ItemID(productID, variantID), ProductID: productID,
		ProductName: tmpl.ProductName, ProductImage: tmpl.ProductImage,
		Variant: tmpl.Variant, Quantity: quantity,
	})
	return nil
}

func (g *fakeGateway) UpdateItem(ctx context.Context, userID, variantID string, quantity int) error {
	if quantity < 1 {
		return g.RemoveItem(ctx, userID, variantID)
	}
	if err := g.record(fmt.Sprintf("update:%s:%d", variantID, quantity)); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.carts[userID] {
		if g.carts[userID][i].Variant.ID == variantID {
			g.carts[userID][i].Quantity = quantity
		}
	}
	return nil
}

func (g *fakeGateway) RemoveItem(_ context.Context, userID, variantID string) error {
	if err := g.record("remove:" + variantID); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.carts[userID] = slices.DeleteFunc(g.carts[userID], func(it domain.CartItem) bool { return it.Variant.ID == variantID })
	return nil
}

func (g *fakeGateway) ClearCart(_ context.Context, userID string) error {
	if err := g.record("clear"); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.carts[userID] = nil
	return nil
}
