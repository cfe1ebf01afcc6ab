// Package cart implements the shopping cart of one assistant session.
//
// Every state change is saved through the Repository and then pushed to the
// subscribers before the mutating call returns.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"shop-assistant/internal/catalog"
	"shop-assistant/internal/models"
	"shop-assistant/internal/util"

	"go.uber.org/zap"
)

var (
	// ErrProductNotFound is returned by AddItem for names the catalog cannot resolve.
	ErrProductNotFound = catalog.ErrProductNotFound
	// ErrNotInCart is returned when no cart line matches the given name.
	ErrNotInCart = errors.New("item not in cart")
	// ErrNegativeQuantity is returned by UpdateQuantity for q < 0.
	ErrNegativeQuantity = errors.New("quantity cannot be negative")
)

// Result is the outcome of a cart operation. Message is meant to be spoken
// and is set on success and on failure.
type Result struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Line    *models.CartLine `json:"item,omitempty"`
}

// Listener receives a copy of the cart lines after every change. Calls are
// serialized and never go back in time: a change overtaken by a newer one
// before its listeners ran is skipped. A listener may read the store but
// must not mutate it.
type Listener func(lines []models.CartLine)

type subscription struct {
	id int
	fn Listener
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for AddedAt and snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is a mutable, ordered collection of cart lines.
type Store struct {
	mu        sync.Mutex
	key       string
	catalog   *catalog.Catalog
	repo      Repository
	lines     []models.CartLine
	listeners []subscription
	nextID    int
	version   uint64
	now       func() time.Time
	logger    *zap.Logger

	notifyMu  sync.Mutex
	delivered uint64
}

// Open creates a store for key and loads whatever repo holds for it. A
// failed load is logged and the cart starts empty.
func Open(ctx context.Context, key string, cat *catalog.Catalog, repo Repository, opts ...Option) *Store {
	s := &Store{
		key:     key,
		catalog: cat,
		repo:    repo,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if repo == nil {
		return s
	}

	lines, err := repo.Load(ctx, key)
	if err != nil {
		s.logger.Error("Failed to load cart, starting empty",
			zap.String("cart_key", key),
			zap.Error(err))
		return s
	}

	for _, l := range lines {
		if l.Quantity < 1 {
			continue
		}
		s.lines = append(s.lines, l)
	}

	s.logger.Debug("Cart loaded",
		zap.String("cart_key", key),
		zap.Int("lines", len(s.lines)))
	return s
}

// Key returns the repository key of this cart.
func (s *Store) Key() string {
	return s.key
}

// Subscribe registers fn for change notifications and returns a function
// that removes it again.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// AddItem resolves name through the catalog and adds one unit of it.
func (s *Store) AddItem(ctx context.Context, name string) (Result, error) {
	ctx, span := util.StartSpan(ctx, "CartStore.AddItem")
	defer span.End()

	product, ok := s.catalog.Find(name)
	if !ok {
		util.CartMutationsTotal.WithLabelValues("add", "not_found").Inc()
		return Result{
			Message: fmt.Sprintf("Product %q not found in database", name),
		}, fmt.Errorf("%w: %s", ErrProductNotFound, name)
	}

	s.mu.Lock()
	var res Result
	if i := s.indexLocked(product.Name); i >= 0 {
		s.lines[i].Quantity++
		line := s.lines[i]
		res = Result{
			Success: true,
			Message: fmt.Sprintf("Added another %s. You now have %d.", product.Name, line.Quantity),
			Line:    &line,
		}
	} else {
		line := models.CartLine{
			ProductID:   product.ID,
			Name:        product.Name,
			Price:       product.Price,
			Quantity:    1,
			Description: product.Description,
			AddedAt:     s.now(),
		}
		s.lines = append(s.lines, line)
		res = Result{
			Success: true,
			Message: fmt.Sprintf("Added %s to cart for %s.", product.Name, models.FormatUSD(product.Price)),
			Line:    &line,
		}
	}
	pending := s.commitLocked(ctx)
	s.mu.Unlock()

	s.notify(pending)
	util.CartMutationsTotal.WithLabelValues("add", "ok").Inc()
	return res, nil
}

// RemoveItem removes one unit of the named line, or the whole line when
// removeAll is set or only one unit is left.
func (s *Store) RemoveItem(ctx context.Context, name string, removeAll bool) (Result, error) {
	ctx, span := util.StartSpan(ctx, "CartStore.RemoveItem")
	defer span.End()

	s.mu.Lock()
	i := s.resolveLocked(name)
	if i < 0 {
		s.mu.Unlock()
		util.CartMutationsTotal.WithLabelValues("remove", "not_in_cart").Inc()
		return Result{
			Message: fmt.Sprintf("%s is not in your cart.", name),
		}, fmt.Errorf("%w: %s", ErrNotInCart, name)
	}

	line := s.lines[i]
	var res Result
	if removeAll || line.Quantity == 1 {
		s.lines = append(s.lines[:i:i], s.lines[i+1:]...)
		res = Result{
			Success: true,
			Message: fmt.Sprintf("Removed %s from your cart completely.", line.Name),
		}
	} else {
		s.lines[i].Quantity--
		line = s.lines[i]
		res = Result{
			Success: true,
			Message: fmt.Sprintf("Removed one %s. You now have %d.", line.Name, line.Quantity),
			Line:    &line,
		}
	}
	pending := s.commitLocked(ctx)
	s.mu.Unlock()

	s.notify(pending)
	util.CartMutationsTotal.WithLabelValues("remove", "ok").Inc()
	return res, nil
}

// UpdateQuantity sets the quantity of an existing line. Zero removes it.
func (s *Store) UpdateQuantity(ctx context.Context, name string, quantity int) (Result, error) {
	if quantity < 0 {
		util.CartMutationsTotal.WithLabelValues("update", "invalid").Inc()
		return Result{Message: "Quantity cannot be negative."}, ErrNegativeQuantity
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, name, true)
	}

	ctx, span := util.StartSpan(ctx, "CartStore.UpdateQuantity")
	defer span.End()

	s.mu.Lock()
	i := s.resolveLocked(name)
	if i < 0 {
		s.mu.Unlock()
		util.CartMutationsTotal.WithLabelValues("update", "not_in_cart").Inc()
		return Result{
			Message: fmt.Sprintf("%s is not in your cart.", name),
		}, fmt.Errorf("%w: %s", ErrNotInCart, name)
	}

	s.lines[i].Quantity = quantity
	line := s.lines[i]
	pending := s.commitLocked(ctx)
	s.mu.Unlock()

	s.notify(pending)
	util.CartMutationsTotal.WithLabelValues("update", "ok").Inc()
	return Result{
		Success: true,
		Message: fmt.Sprintf("Updated %s quantity to %d.", line.Name, quantity),
		Line:    &line,
	}, nil
}

// Clear empties the cart. It always succeeds.
func (s *Store) Clear(ctx context.Context) Result {
	ctx, span := util.StartSpan(ctx, "CartStore.Clear")
	defer span.End()

	s.mu.Lock()
	count := 0
	for _, l := range s.lines {
		count += l.Quantity
	}
	s.lines = nil
	pending := s.commitLocked(ctx)
	s.mu.Unlock()

	s.notify(pending)
	util.CartMutationsTotal.WithLabelValues("clear", "ok").Inc()
	return Result{
		Success: true,
		Message: fmt.Sprintf("Cleared %d items from your cart.", count),
	}
}

// Lines returns a copy of the cart lines in insertion order.
func (s *Store) Lines() []models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLines(s.lines)
}

// Snapshot returns the lines with freshly computed totals.
func (s *Store) Snapshot() models.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.NewCartSnapshot(s.lines, s.now())
}

// Summary renders the cart as a sentence for speech.
func (s *Store) Summary() string {
	snap := s.Snapshot()
	if len(snap.Items) == 0 {
		return "Your cart is empty."
	}

	parts := make([]string, 0, len(snap.Items))
	for _, l := range snap.Items {
		parts = append(parts, fmt.Sprintf("%d %s for %s", l.Quantity, plural(l.Name, l.Quantity), models.FormatUSD(l.LineTotal())))
	}

	return fmt.Sprintf("Your cart contains %d items: %s. Total: %s.",
		snap.ItemCount, strings.Join(parts, ", "), models.FormatUSD(snap.Total))
}

// FindLine returns the first line whose name contains name.
func (s *Store) FindLine(name string) (models.CartLine, bool) {
	needle := strings.ToLower(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lines {
		if strings.Contains(strings.ToLower(l.Name), needle) {
			return l, true
		}
	}
	return models.CartLine{}, false
}

// ByCategory groups the lines by the catalog category of their product.
// Lines whose product is gone are grouped under "other".
func (s *Store) ByCategory() map[string][]models.CartLine {
	out := make(map[string][]models.CartLine)
	for _, l := range s.Lines() {
		category := "other"
		if p, ok := s.lookup(l); ok {
			category = p.Category
		}
		out[category] = append(out[category], l)
	}
	return out
}

// Validation lists advisory problems found by Validate.
type Validation struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

// Validate cross-checks every line against the catalog. It reports missing
// products, products out of stock, and price drift, and corrects nothing.
func (s *Store) Validate() Validation {
	issues := []string{}
	for _, l := range s.Lines() {
		p, ok := s.lookup(l)
		switch {
		case !ok:
			issues = append(issues, fmt.Sprintf("Product %q no longer exists in database", l.Name))
		case !p.InStock:
			issues = append(issues, fmt.Sprintf("%s is currently out of stock", l.Name))
		case !p.Price.Equal(l.Price):
			issues = append(issues, fmt.Sprintf("Price for %s has changed from %s to %s",
				l.Name, models.FormatUSD(l.Price), models.FormatUSD(p.Price)))
		}
	}
	return Validation{Valid: len(issues) == 0, Issues: issues}
}

func (s *Store) lookup(l models.CartLine) (models.Product, bool) {
	if p, ok := s.catalog.Get(l.ProductID); ok {
		return p, true
	}
	return s.catalog.Find(l.Name)
}

func (s *Store) indexLocked(name string) int {
	for i, l := range s.lines {
		if strings.EqualFold(l.Name, name) {
			return i
		}
	}
	return -1
}

// resolveLocked matches name against line names first, then against the
// catalog name it resolves to.
func (s *Store) resolveLocked(name string) int {
	if i := s.indexLocked(strings.TrimSpace(name)); i >= 0 {
		return i
	}
	if p, ok := s.catalog.Find(name); ok {
		return s.indexLocked(p.Name)
	}
	return -1
}

// change is one committed cart state waiting to be delivered.
type change struct {
	version   uint64
	lines     []models.CartLine
	listeners []Listener
}

func (s *Store) commitLocked(ctx context.Context) change {
	s.version++
	lines := copyLines(s.lines)
	if s.repo != nil {
		if err := s.repo.Save(ctx, s.key, lines); err != nil {
			util.CartPersistFailuresTotal.Inc()
			s.logger.Error("Failed to save cart",
				zap.String("cart_key", s.key),
				zap.Error(err))
		}
	}

	listeners := make([]Listener, len(s.listeners))
	for i, sub := range s.listeners {
		listeners[i] = sub.fn
	}
	return change{version: s.version, lines: lines, listeners: listeners}
}

func (s *Store) notify(c change) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if c.version <= s.delivered {
		return
	}
	s.delivered = c.version
	for _, fn := range c.listeners {
		fn(copyLines(c.lines))
	}
}

func plural(name string, quantity int) string {
	if quantity > 1 {
		return name + "s"
	}
	return name
}
