package cart

import "github.com/shopspring/decimal"

// Cart holds at most one item per course, in insertion order.
// It is never persisted; an order copies its items.
type Cart struct {
	items []Item
	index map[string]int
}

func New(items ...Item) (*Cart, error) {
	c := &Cart{index: make(map[string]int)}
	for _, it := range items {
		if err := c.Add(it); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add inserts the item, or replaces the snapshot of a course already present.
func (c *Cart) Add(it Item) error {
	if err := it.validate(); err != nil {
		return err
	}
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if i, ok := c.index[it.CourseID]; ok {
		c.items[i] = it
		return nil
	}
	c.index[it.CourseID] = len(c.items)
	c.items = append(c.items, it)
	return nil
}

func (c *Cart) Remove(courseID string) error {
	i, ok := c.index[courseID]
	if !ok {
		return ErrCartItemNotFound
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	delete(c.index, courseID)
	for j := i; j < len(c.items); j++ {
		c.index[c.items[j].CourseID] = j
	}
	return nil
}

func (c *Cart) Contains(courseID string) bool {
	_, ok := c.index[courseID]
	return ok
}

// Items returns a copy.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) CourseIDs() []string {
	ids := make([]string, 0, len(c.items))
	for _, it := range c.items {
		ids = append(ids, it.CourseID)
	}
	return ids
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Price)
	}
	return total
}

func (c *Cart) Len() int {
	return len(c.items)
}
