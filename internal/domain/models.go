package domain

type Product struct {
	ID          string           `db:"id" json:"id"`
	Name        string           `db:"name" json:"name"`
	Description string           `db:"description" json:"description"`
	Active      bool             `db:"active" json:"active"`
	CreatedAt   string           `db:"created_at" json:"createdAt"`
	Variants    []ProductVariant `db:"-" json:"variants"`
	Images      []ProductImage   `db:"-" json:"images"`
}

type ProductVariant struct {
	ID             string   `db:"id" json:"id"`
	ProductID      string   `db:"product_id" json:"productId"`
	Name           string   `db:"name" json:"name"`
	Price          float64  `db:"price" json:"price"`
	CompareAtPrice *float64 `db:"compare_at_price" json:"compareAtPrice,omitempty"`
}

type ProductImage struct {
	ID        string `db:"id" json:"id"`
	ProductID string `db:"product_id" json:"productId"`
	URL       string `db:"url" json:"url"`
	IsPrimary bool   `db:"is_primary" json:"isPrimary"`
	Position  int    `db:"position" json:"position"`
}

// PrimaryImage returns the URL of the image flagged primary, falling back to
// the first image. Empty when there are no images.
func PrimaryImage(images []ProductImage) string {
	for _, img := range images {
		if img.IsPrimary {
			return img.URL
		}
	}
	if len(images) > 0 {
		return images[0].URL
	}
	return ""
}
