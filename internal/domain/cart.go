package domain

// Variant is the price snapshot of a purchasable unit taken when it was added to a cart.
type Variant struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Price          float64  `json:"price"`
	CompareAtPrice *float64 `json:"compareAtPrice,omitempty"`
}

// CartItem is one cart line. ID is always ItemID(ProductID, Variant.ID).
type CartItem struct {
	ID           string  `json:"id"`
	ProductID    string  `json:"productId"`
	ProductName  string  `json:"productName"`
	ProductImage string  `json:"productImage"`
	Variant      Variant `json:"variant"`
	Quantity     int     `json:"quantity"`
	AddedAt      int64   `json:"addedAt"` // epoch millis
}

// NewCartItem is an add-to-cart request: a CartItem before id and addedAt are assigned.
type NewCartItem struct {
	ProductID    string
	ProductName  string
	ProductImage string
	Variant      Variant
	Quantity     int
}

func ItemID(productID, variantID string) string { return productID + variantID }

// ItemCount sums quantities.
func ItemCount(items []CartItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// Subtotal sums variant price times quantity. CompareAtPrice is display-only.
func Subtotal(items []CartItem) float64 {
	total := 0.0
	for _, it := range items {
		total += it.Variant.Price * float64(it.Quantity)
	}
	return total
}
