package product

import (
	"github.com/xenking/marketplace/internal/domain"
)

// Collection is the document collection holding products.
const Collection = "product"

// Product is a catalog item sold by a shop. Price and stock may change after
// creation; the identifier stays stable even once the product is deleted.
type Product struct {
	ID          string       `json:"id,omitempty"`
	ShopID      string       `json:"shop_id"`
	VendorID    string       `json:"vendor_id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Price       domain.Money `json:"price"`
	Category    string       `json:"category,omitempty"`
	Images      []string     `json:"images"`
	Stock       int          `json:"stock"`
	Tags        []string     `json:"tags"`
}

// Validate checks the declared constraints of p.
func (p *Product) Validate() error {
	if err := domain.Required("product", "shop_id", p.ShopID); err != nil {
		return err
	}
	if err := domain.Required("product", "vendor_id", p.VendorID); err != nil {
		return err
	}
	if err := domain.Required("product", "title", p.Title); err != nil {
		return err
	}
	if p.Price.IsNegative() {
		return domain.Invalid("product", "price", "must not be negative")
	}
	if p.Stock < 0 {
		return domain.Invalid("product", "stock", "must not be negative")
	}
	return nil
}

// normalize replaces nil lists with empty ones so they are stored as [].
func (p *Product) normalize() {
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
}
