package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/krug-dev/krug-mcp/internal/domain/auth"
	"github.com/krug-dev/krug-mcp/internal/domain/tool"
)

// UnitPrice is the mock price of every product.
const UnitPrice = 99.99

// Order is a placed order.
type Order struct {
	ID            int     `json:"id"`
	CustomerEmail string  `json:"customer_email"`
	ProductID     int     `json:"product_id"`
	Quantity      int     `json:"quantity"`
	TotalAmount   float64 `json:"total_amount"`
	PlacedBy      string  `json:"placed_by"`
}

// OrderBook holds orders in memory. Ids start at 1.
type OrderBook struct {
	mu     sync.Mutex
	orders []Order
	nextID int
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	return &OrderBook{nextID: 1}
}

// Place records a new order and returns it.
func (b *OrderBook) Place(email string, productID, quantity int, placedBy string) Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	o := Order{
		ID:            b.nextID,
		CustomerEmail: email,
		ProductID:     productID,
		Quantity:      quantity,
		TotalAmount:   float64(quantity) * UnitPrice,
		PlacedBy:      placedBy,
	}
	b.orders = append(b.orders, o)
	b.nextID++
	return o
}

// Orders returns a copy of all orders.
func (b *OrderBook) Orders() []Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Order, len(b.orders))
	copy(out, b.orders)
	return out
}

// CreateOrderTool places orders in an OrderBook.
type CreateOrderTool struct {
	book *OrderBook
}

// NewCreateOrderTool creates the create_order tool.
func NewCreateOrderTool(book *OrderBook) *CreateOrderTool {
	return &CreateOrderTool{book: book}
}

// Descriptor implements tool.Tool.
func (t *CreateOrderTool) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        "create_order",
		Description: "Create a new order in the system",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"customer_email":{"type":"string"},"product_id":{"type":"integer"},"quantity":{"type":"integer","minimum":1}},"required":["customer_email","product_id"]}`),
	}
}

// Invoke implements tool.Tool.
func (t *CreateOrderTool) Invoke(_ context.Context, args map[string]any, caller *auth.AuthContext) (tool.Result, error) {
	email, err := stringArg(args, "customer_email", true)
	if err != nil {
		return tool.Result{}, err
	}
	productID, err := intArg(args, "product_id", true, 0)
	if err != nil {
		return tool.Result{}, err
	}
	quantity, err := intArg(args, "quantity", false, 1)
	if err != nil {
		return tool.Result{}, err
	}
	if quantity < 1 {
		return tool.Result{}, invalidArg("quantity must be at least 1")
	}

	var placedBy string
	if caller != nil {
		placedBy = caller.Subject
	}
	o := t.book.Place(email, productID, quantity, placedBy)
	return tool.TextResult(fmt.Sprintf("Order created successfully! Order ID: %d, Total: $%.2f", o.ID, o.TotalAmount)), nil
}
