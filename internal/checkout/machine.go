// Package checkout drives a cart through review, confirmation, simulated
// payment and receipt. One Machine serves one session and holds at most one
// active order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"shop-assistant/internal/models"
	"shop-assistant/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrEmptyCart          = errors.New("cannot checkout with an empty cart")
	ErrNoActiveOrder      = errors.New("no active order")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrUnknownStep        = errors.New("invalid checkout step")
	ErrStepCompleted      = errors.New("checkout step already completed")
	ErrStepOutOfOrder     = errors.New("checkout step out of order")
	ErrPaymentInProgress  = errors.New("payment already in progress")
	ErrAlreadyPaid        = errors.New("order already paid")
	ErrPaymentDeclined    = errors.New("payment declined")
)

const (
	DefaultTaxRate      = "0.08"
	DefaultPaymentDelay = 2 * time.Second
	DefaultSuccessRate  = 0.9
)

// Result is the outcome of a checkout operation. Message is meant to be spoken.
type Result struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Order   *models.Order `json:"order,omitempty"`
}

// Decider approves or declines a payment for order.
type Decider func(ctx context.Context, order models.Order) bool

// RandomDecider approves a payment with the given probability.
func RandomDecider(successRate float64) Decider {
	return func(context.Context, models.Order) bool {
		return rand.Float64() < successRate
	}
}

// Option configures a Machine.
type Option func(*Machine)

func WithTaxRate(rate decimal.Decimal) Option {
	return func(m *Machine) { m.taxRate = rate }
}

func WithPaymentDelay(d time.Duration) Option {
	return func(m *Machine) { m.delay = d }
}

func WithPaymentDecider(d Decider) Option {
	return func(m *Machine) { m.decide = d }
}

// WithStrictSteps makes CompleteStep reject a step while an earlier one is
// still open.
func WithStrictSteps(strict bool) Option {
	return func(m *Machine) { m.strict = strict }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine is the checkout state machine of one session.
type Machine struct {
	mu      sync.Mutex
	order   *models.Order
	steps   []models.CheckoutStep
	paying  bool
	gen     int
	taxRate decimal.Decimal
	delay   time.Duration
	decide  Decider
	strict  bool
	now     func() time.Time
	logger  *zap.Logger
}

// New creates an idle machine.
func New(opts ...Option) *Machine {
	m := &Machine{
		steps:   models.DefaultCheckoutSteps(),
		taxRate: decimal.RequireFromString(DefaultTaxRate),
		delay:   DefaultPaymentDelay,
		decide:  RandomDecider(DefaultSuccessRate),
		now:     time.Now,
		logger:  util.GetLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartCheckout creates a pending order from a snapshot of the cart lines.
// The cart itself is left untouched.
func (m *Machine) StartCheckout(ctx context.Context, lines []models.CartLine) (Result, error) {
	_, span := util.StartSpan(ctx, "Checkout.StartCheckout")
	defer span.End()

	if len(lines) == 0 {
		return Result{Message: "Cannot checkout with an empty cart."}, ErrEmptyCart
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.order != nil && m.order.Status != models.OrderStatusCompleted {
		return Result{
			Message: fmt.Sprintf("Checkout for order %s is already in progress.", m.order.ID),
		}, ErrCheckoutInProgress
	}

	items := make([]models.OrderLine, 0, len(lines))
	subtotal := decimal.Zero
	for _, l := range lines {
		items = append(items, models.OrderLine{
			ProductID:   l.ProductID,
			Name:        l.Name,
			Price:       l.Price,
			Quantity:    l.Quantity,
			Description: l.Description,
		})
		subtotal = subtotal.Add(l.LineTotal())
	}
	tax := subtotal.Mul(m.taxRate).Round(2)

	m.resetStepsLocked()
	m.gen++
	m.paying = false
	m.order = &models.Order{
		ID:        newOrderID(),
		Items:     items,
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     subtotal.Add(tax),
		CreatedAt: m.now(),
		Status:    models.OrderStatusPending,
	}

	util.CheckoutsStartedTotal.Inc()
	m.logger.Info("Checkout started",
		zap.String("order_id", m.order.ID),
		zap.Int("item_count", m.order.ItemCount()),
		zap.String("total", m.order.Total.StringFixed(2)))

	order := m.order.Clone()
	return Result{Success: true, Message: "Checkout started successfully.", Order: &order}, nil
}

// CompleteStep marks one step as done.
func (m *Machine) CompleteStep(id string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.stepIndexLocked(id)
	if i < 0 {
		return Result{Message: fmt.Sprintf("Invalid checkout step: %s", id)}, fmt.Errorf("%w: %s", ErrUnknownStep, id)
	}

	step := m.steps[i]
	if step.Completed {
		return Result{Message: fmt.Sprintf("Step %s is already completed.", step.Name)}, fmt.Errorf("%w: %s", ErrStepCompleted, id)
	}

	if m.strict {
		for _, prev := range m.steps[:i] {
			if !prev.Completed {
				return Result{
					Message: fmt.Sprintf("Please complete %s before %s.", prev.Name, step.Name),
				}, fmt.Errorf("%w: %s before %s", ErrStepOutOfOrder, prev.ID, id)
			}
		}
	}

	m.steps[i].Completed = true
	return Result{Success: true, Message: fmt.Sprintf("Completed step: %s", step.Name)}, nil
}

// ProcessPayment runs the simulated payment for the active order. The delay
// is spent without holding the lock, so the order can be cancelled meanwhile.
// A declined payment leaves the order failed and may be retried.
func (m *Machine) ProcessPayment(ctx context.Context) (Result, error) {
	ctx, span := util.StartSpan(ctx, "Checkout.ProcessPayment")
	defer span.End()

	m.mu.Lock()
	switch {
	case m.order == nil:
		m.mu.Unlock()
		return Result{Message: "No active order to process payment for."}, ErrNoActiveOrder
	case m.paying:
		m.mu.Unlock()
		return Result{Message: "Payment is already being processed. Please wait..."}, ErrPaymentInProgress
	case m.order.Status == models.OrderStatusCompleted:
		id := m.order.ID
		m.mu.Unlock()
		return Result{Message: fmt.Sprintf("Payment for order %s has already been processed.", id)}, ErrAlreadyPaid
	}
	m.paying = true
	m.order.Status = models.OrderStatusProcessing
	gen := m.gen
	order := m.order.Clone()
	m.mu.Unlock()

	util.PaymentAttemptsTotal.Inc()
	start := time.Now()
	defer func() {
		util.PaymentProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	m.logger.Info("Processing payment",
		zap.String("order_id", order.ID),
		zap.String("amount", order.Total.StringFixed(2)))

	if err := wait(ctx, m.delay); err != nil {
		m.mu.Lock()
		if gen == m.gen {
			m.paying = false
			m.order.Status = models.OrderStatusFailed
		}
		m.mu.Unlock()

		util.PaymentFailedTotal.Inc()
		m.logger.Warn("Payment interrupted", zap.String("order_id", order.ID), zap.Error(err))
		return Result{
			Message: "Payment processing failed. Please try again or use a different payment method.",
		}, fmt.Errorf("payment interrupted: %w", err)
	}

	approved := m.decide(ctx, order)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.order == nil {
		m.logger.Info("Checkout cancelled during payment", zap.String("order_id", order.ID))
		return Result{Message: "Checkout was cancelled during payment."}, ErrNoActiveOrder
	}
	m.paying = false

	if !approved {
		m.order.Status = models.OrderStatusFailed
		util.PaymentFailedTotal.Inc()
		m.logger.Warn("Payment declined", zap.String("order_id", order.ID))

		failed := m.order.Clone()
		return Result{
			Message: "Payment processing failed. Please try again or use a different payment method.",
			Order:   &failed,
		}, ErrPaymentDeclined
	}

	m.order.Status = models.OrderStatusCompleted
	for i := range m.steps {
		if m.steps[i].ID == models.StepPayment || m.steps[i].ID == models.StepComplete {
			m.steps[i].Completed = true
		}
	}
	util.PaymentSuccessTotal.Inc()
	m.logger.Info("Payment processed", zap.String("order_id", order.ID))

	paid := m.order.Clone()
	return Result{
		Success: true,
		Message: fmt.Sprintf("Payment processed successfully. Order %s is complete.", paid.ID),
		Order:   &paid,
	}, nil
}

// CancelCheckout discards the active order and resets every step.
func (m *Machine) CancelCheckout() (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.order == nil {
		return Result{Message: "No active checkout to cancel."}, ErrNoActiveOrder
	}

	cancelled := m.order.Clone()
	m.order = nil
	m.paying = false
	m.gen++
	m.resetStepsLocked()

	util.CheckoutsCancelledTotal.Inc()
	m.logger.Info("Checkout cancelled", zap.String("order_id", cancelled.ID))

	return Result{Success: true, Message: "Checkout cancelled successfully.", Order: &cancelled}, nil
}

// Finish discards a completed order and returns it.
func (m *Machine) Finish() (models.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.order == nil || m.order.Status != models.OrderStatusCompleted {
		return models.Order{}, false
	}

	done := m.order.Clone()
	m.order = nil
	m.gen++
	m.resetStepsLocked()

	util.CheckoutsCompletedTotal.Inc()
	return done, true
}

// Order returns a copy of the active order.
func (m *Machine) Order() (models.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.order == nil {
		return models.Order{}, false
	}
	return m.order.Clone(), true
}

// Steps returns a copy of the checkout steps.
func (m *Machine) Steps() []models.CheckoutStep {
	m.mu.Lock()
	defer m.mu.Unlock()

	steps := make([]models.CheckoutStep, len(m.steps))
	copy(steps, m.steps)
	return steps
}

// NextStep returns the first step not completed yet.
func (m *Machine) NextStep() (models.CheckoutStep, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.steps {
		if !s.Completed {
			return s, true
		}
	}
	return models.CheckoutStep{}, false
}

// InProgress reports whether an order exists that has not been paid yet.
func (m *Machine) InProgress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order != nil && m.order.Status != models.OrderStatusCompleted
}

func (m *Machine) OrderSummary() string {
	order, ok := m.Order()
	if !ok {
		return "No active order found."
	}

	items := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		name := item.Name
		if item.Quantity > 1 {
			name += "s"
		}
		items = append(items, fmt.Sprintf("%d %s", item.Quantity, name))
	}

	return fmt.Sprintf("Order %s: %d items (%s). Subtotal: %s, Tax: %s, Total: %s.",
		order.ID, order.ItemCount(), strings.Join(items, ", "),
		models.FormatUSD(order.Subtotal), models.FormatUSD(order.Tax), models.FormatUSD(order.Total))
}

// Receipt renders the receipt of a completed order.
func (m *Machine) Receipt() string {
	order, ok := m.Order()
	if !ok || order.Status != models.OrderStatusCompleted {
		return "No completed order found."
	}

	items := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		total := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		items = append(items, fmt.Sprintf("%dx %s - %s", item.Quantity, item.Name, models.FormatUSD(total)))
	}

	return fmt.Sprintf("Receipt for Order %s: %s. Subtotal: %s, Tax: %s, Total: %s. Order completed at %s. Thank you for your purchase!",
		order.ID, strings.Join(items, ", "),
		models.FormatUSD(order.Subtotal), models.FormatUSD(order.Tax), models.FormatUSD(order.Total),
		order.CreatedAt.Format("1/2/2006, 3:04:05 PM"))
}

func (m *Machine) stepIndexLocked(id string) int {
	for i, s := range m.steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (m *Machine) resetStepsLocked() {
	for i := range m.steps {
		m.steps[i].Completed = false
	}
}

func newOrderID() string {
	return "ORDER-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
