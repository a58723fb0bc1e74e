// Package cart holds the in-progress order for one ordering session.
// State is ephemeral and client-scoped; nothing here touches storage.
package cart

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/qr-efficient/api/internal/database"
	"github.com/qr-efficient/api/internal/service"
	"github.com/shopspring/decimal"
)

// Line is one menu item in the cart with the price captured when the
// item was first added. Later catalog changes do not reprice it.
type Line struct {
	MenuItemID  uuid.UUID
	Description string
	UnitPrice   decimal.Decimal
	Quantity    int32
}

// Subtotal is UnitPrice * Quantity, exact.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

// Cart aggregates lines per menu item, preserving first-add order.
// Not safe for concurrent use.
type Cart struct {
	lines []Line
	index map[uuid.UUID]int
}

func New() *Cart {
	return &Cart{index: make(map[uuid.UUID]int)}
}

// Add puts one unit of the item in the cart, or increments the existing
// line.
func (c *Cart) Add(item database.MenuItem) {
	if i, ok := c.index[item.ID]; ok {
		c.lines[i].Quantity++
		return
	}
	c.index[item.ID] = len(c.lines)
	c.lines = append(c.lines, Line{
		MenuItemID:  item.ID,
		Description: item.Description,
		UnitPrice:   numericToDecimal(item.Price),
		Quantity:    1,
	})
}

// SetQuantity pins a line's quantity. Zero or negative removes the line.
// Unknown items are ignored.
func (c *Cart) SetQuantity(menuItemID uuid.UUID, qty int32) {
	i, ok := c.index[menuItemID]
	if !ok {
		return
	}
	if qty <= 0 {
		c.remove(i)
		return
	}
	c.lines[i].Quantity = qty
}

// Increment adds one unit to an existing line.
func (c *Cart) Increment(menuItemID uuid.UUID) {
	if i, ok := c.index[menuItemID]; ok {
		c.lines[i].Quantity++
	}
}

// Decrement removes one unit; at one unit it removes the line.
func (c *Cart) Decrement(menuItemID uuid.UUID) {
	i, ok := c.index[menuItemID]
	if !ok {
		return
	}
	if c.lines[i].Quantity <= 1 {
		c.remove(i)
		return
	}
	c.lines[i].Quantity--
}

// Remove drops the line entirely.
func (c *Cart) Remove(menuItemID uuid.UUID) {
	if i, ok := c.index[menuItemID]; ok {
		c.remove(i)
	}
}

func (c *Cart) remove(i int) {
	delete(c.index, c.lines[i].MenuItemID)
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	for j := i; j < len(c.lines); j++ {
		c.index[c.lines[j].MenuItemID] = j
	}
}

// Lines returns the cart content in first-add order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Total is the exact decimal sum of line subtotals.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Count is the number of units across all lines.
func (c *Cart) Count() int32 {
	var n int32
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.lines) == 0
}

// Clear resets the cart.
func (c *Cart) Clear() {
	c.lines = nil
	c.index = make(map[uuid.UUID]int)
}

// Submission converts the cart into an order request with the captured
// prices frozen in.
func (c *Cart) Submission(visitID, personID uuid.UUID, notes string) service.CreateOrderRequest {
	req := service.CreateOrderRequest{
		VisitID:  visitID,
		PersonID: personID,
		Notes:    notes,
	}
	for _, l := range c.lines {
		req.Lines = append(req.Lines, service.CreateOrderLineRequest{
			MenuItemID: l.MenuItemID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
		})
	}
	return req
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}
