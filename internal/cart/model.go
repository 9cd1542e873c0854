package cart

import "github.com/shopspring/decimal"

// Item is the snapshot of a course taken when it is put in a cart.
type Item struct {
	CourseID string          `json:"courseId"`
	Title    string          `json:"title"`
	Category string          `json:"category,omitempty"`
	Type     string          `json:"type,omitempty"`
	Price    decimal.Decimal `json:"price"`
}

func (i Item) validate() error {
	if i.CourseID == "" || i.Price.IsNegative() {
		return ErrInvalidItem
	}
	return nil
}
