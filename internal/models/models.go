package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Category    string          `db:"category" json:"category"`
	Description string          `db:"description" json:"description"`
	Keywords    []string        `db:"-" json:"keywords"`
	InStock     bool            `db:"in_stock" json:"in_stock"`
}

// CartLine is one product entry in a cart. Price is captured when the line
// is created and may drift from the catalog afterwards.
type CartLine struct {
	ProductID   string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Description string          `json:"description"`
	AddedAt     time.Time       `json:"added_at"`
}

// LineTotal returns price x quantity
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartSnapshot is a read-only view of a cart
type CartSnapshot struct {
	Items        []CartLine      `json:"items"`
	Total        decimal.Decimal `json:"total"`
	ItemCount    int             `json:"item_count"`
	LastModified time.Time       `json:"last_modified"`
}

// NewCartSnapshot computes totals over lines
func NewCartSnapshot(lines []CartLine, now time.Time) CartSnapshot {
	items := make([]CartLine, len(lines))
	copy(items, lines)

	total := decimal.Zero
	count := 0
	for _, l := range items {
		total = total.Add(l.LineTotal())
		count += l.Quantity
	}

	return CartSnapshot{
		Items:        items,
		Total:        total,
		ItemCount:    count,
		LastModified: now,
	}
}

// OrderStatus is the lifecycle state of an order
type OrderStatus string

// Order statuses
const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusFailed     OrderStatus = "failed"
)

// OrderLine is a cart line copied into an order
type OrderLine struct {
	ProductID   string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Description string          `json:"description"`
}

// Order represents a checkout in progress or just completed
type Order struct {
	ID        string          `json:"id"`
	Items     []OrderLine     `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	Status    OrderStatus     `json:"status"`
}

// ItemCount sums quantities over the order lines
func (o Order) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// Clone returns a deep copy of the order
func (o Order) Clone() Order {
	items := make([]OrderLine, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}

// Checkout step ids, in the order they are walked
const (
	StepReview   = "review"
	StepConfirm  = "confirm"
	StepPayment  = "payment"
	StepComplete = "complete"
)

// CheckoutStep is one stage of the checkout flow
type CheckoutStep struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// DefaultCheckoutSteps returns a fresh copy of the four checkout steps
func DefaultCheckoutSteps() []CheckoutStep {
	return []CheckoutStep{
		{ID: StepReview, Name: "Review Cart", Description: "Review your items and total"},
		{ID: StepConfirm, Name: "Confirm Order", Description: "Confirm your order details"},
		{ID: StepPayment, Name: "Process Payment", Description: "Process payment information"},
		{ID: StepComplete, Name: "Order Complete", Description: "Order confirmation and receipt"},
	}
}

// FormatUSD renders an amount as dollars with two decimals
func FormatUSD(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}
