// Package cart implements the single-restaurant shopping cart. A cart only
// ever holds items from one restaurant; adding an item from another one
// starts over.
package cart

import (
	"errors"
	"sort"
	"time"

	"storefront-bff/internal/models"
)

// MaxQuantity caps a single line.
const MaxQuantity = 99

var (
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 99")
	ErrItemNotInCart   = errors.New("item is not in the cart")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrItemUnavailable = errors.New("item is not available")
)

type Line struct {
	ItemID   string  `json:"itemId"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func (l Line) Total() float64 { return l.Price * float64(l.Quantity) }

type Cart struct {
	RestaurantID   string          `json:"restaurantId,omitempty"`
	RestaurantName string          `json:"restaurantName,omitempty"`
	Items          map[string]Line `json:"items"`
	UpdatedAt      time.Time       `json:"updatedAt,omitempty"`
}

func New() *Cart {
	return &Cart{Items: make(map[string]Line)}
}

// Add puts qty of item in the cart. If the cart belongs to another
// restaurant it is emptied first and switched reports true.
func (c *Cart) Add(item models.MenuItem, qty int) (switched bool, err error) {
	if qty <= 0 || qty > MaxQuantity {
		return false, ErrInvalidQuantity
	}
	if c.Items == nil {
		c.Items = make(map[string]Line)
	}
	if c.RestaurantID == item.RestaurantID && c.Items[item.ID].Quantity+qty > MaxQuantity {
		return false, ErrInvalidQuantity
	}

	if c.RestaurantID != item.RestaurantID {
		switched = len(c.Items) > 0
		c.Clear()
		c.RestaurantID = item.RestaurantID
	}

	line, ok := c.Items[item.ID]
	if !ok {
		line = Line{ItemID: item.ID}
	}
	line.Name = item.Name
	line.Price = item.Price
	line.Quantity += qty
	c.Items[item.ID] = line
	return switched, nil
}

// SetQuantity replaces a line's quantity; zero or less removes the line.
func (c *Cart) SetQuantity(itemID string, qty int) error {
	line, ok := c.Items[itemID]
	if !ok {
		return ErrItemNotInCart
	}
	if qty <= 0 {
		c.Remove(itemID)
		return nil
	}
	if qty > MaxQuantity {
		return ErrInvalidQuantity
	}
	line.Quantity = qty
	c.Items[itemID] = line
	return nil
}

// Remove drops a line. The restaurant is forgotten with the last line.
func (c *Cart) Remove(itemID string) bool {
	if _, ok := c.Items[itemID]; !ok {
		return false
	}
	delete(c.Items, itemID)
	if len(c.Items) == 0 {
		c.RestaurantID = ""
		c.RestaurantName = ""
	}
	return true
}

func (c *Cart) Clear() {
	c.Items = make(map[string]Line)
	c.RestaurantID = ""
	c.RestaurantName = ""
}

func (c *Cart) Empty() bool { return len(c.Items) == 0 }

// Count is the number of units, not lines.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.Items {
		n += l.Quantity
	}
	return n
}

func (c *Cart) Subtotal() float64 {
	var total float64
	for _, l := range c.Lines() {
		total += l.Total()
	}
	return total
}

// Lines returns the lines sorted by item id.
func (c *Cart) Lines() []Line {
	lines := make([]Line, 0, len(c.Items))
	for _, l := range c.Items {
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ItemID < lines[j].ItemID })
	return lines
}

// OrderItems converts the cart into order lines.
func (c *Cart) OrderItems() []models.OrderItem {
	lines := c.Lines()
	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.OrderItem{
			MenuItemID: l.ItemID,
			Name:       l.Name,
			Price:      l.Price,
			Quantity:   l.Quantity,
		})
	}
	return items
}

// normalize repairs a cart decoded from storage.
func (c *Cart) normalize() {
	if c.Items == nil {
		c.Items = make(map[string]Line)
	}
	for id, l := range c.Items {
		if l.Quantity <= 0 || l.Quantity > MaxQuantity || id == "" {
			delete(c.Items, id)
			continue
		}
		l.ItemID = id
		c.Items[id] = l
	}
	if len(c.Items) == 0 {
		c.RestaurantID = ""
		c.RestaurantName = ""
	}
}
