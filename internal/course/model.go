package course

import (
	"marketingclass-be/internal/cart"

	"github.com/shopspring/decimal"
)

type Course struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Category  string          `json:"category"`
	Type      string          `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Published bool            `json:"published"`
}

// CartItem snapshots the course for checkout.
func (c Course) CartItem() cart.Item {
	return cart.Item{
		CourseID: c.ID,
		Title:    c.Title,
		Category: c.Category,
		Type:     c.Type,
		Price:    c.Price,
	}
}
