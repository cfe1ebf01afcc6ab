package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shop-assistant/internal/catalog"
	"shop-assistant/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingRepo struct {
	saves  [][]models.CartLine
	events *[]string
	err    error
}

func (r *recordingRepo) Load(context.Context, string) ([]models.CartLine, error) {
	return nil, nil
}

func (r *recordingRepo) Save(_ context.Context, _ string, lines []models.CartLine) error {
	r.saves = append(r.saves, copyLines(lines))
	if r.events != nil {
		*r.events = append(*r.events, "save")
	}
	return r.err
}

type failingLoadRepo struct{}

func (failingLoadRepo) Load(context.Context, string) ([]models.CartLine, error) {
	return nil, errors.New("corrupt value")
}

func (failingLoadRepo) Save(context.Context, string, []models.CartLine) error {
	return nil
}

func newTestStore(t *testing.T, repo Repository) *Store {
	t.Helper()
	if repo == nil {
		repo = NewMemoryRepository()
	}
	return Open(context.Background(), SessionKey("test"), catalog.Default(), repo,
		WithClock(func() time.Time { return fixedNow }))
}

func usd(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAddItemTwiceIncrementsQuantity(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	res, err := s.AddItem(ctx, "apple")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Added apple to cart for $1.99.", res.Message)
	require.NotNil(t, res.Line)
	assert.Equal(t, fixedNow, res.Line.AddedAt)

	res, err = s.AddItem(ctx, "Apple")
	require.NoError(t, err)
	assert.Equal(t, "Added another apple. You now have 2.", res.Message)

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "fruit-001", lines[0].ProductID)
}

func TestAddItemUnknownProduct(t *testing.T) {
	s := newTestStore(t, nil)

	res, err := s.AddItem(context.Background(), "spaceship")
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.False(t, res.Success)
	assert.Equal(t, `Product "spaceship" not found in database`, res.Message)
	assert.Empty(t, s.Lines())
}

func TestRemoveItem(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	_, _ = s.AddItem(ctx, "apple")
	_, _ = s.AddItem(ctx, "apple")
	_, _ = s.AddItem(ctx, "banana")

	res, err := s.RemoveItem(ctx, "apple", false)
	require.NoError(t, err)
	assert.Equal(t, "Removed one apple. You now have 1.", res.Message)

	res, err = s.RemoveItem(ctx, "apple", false)
	require.NoError(t, err)
	assert.Equal(t, "Removed apple from your cart completely.", res.Message)

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "banana", lines[0].Name)

	res, err = s.RemoveItem(ctx, "apple", false)
	assert.ErrorIs(t, err, ErrNotInCart)
	assert.False(t, res.Success)
	assert.Equal(t, "apple is not in your cart.", res.Message)
}

func TestRemoveItemResolvesThroughCatalog(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	_, err := s.AddItem(ctx, "cola")
	require.NoError(t, err)
	require.Equal(t, "soda", s.Lines()[0].Name)

	res, err := s.RemoveItem(ctx, "cola", true)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, s.Lines())
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()

	t.Run("sets quantity", func(t *testing.T) {
		s := newTestStore(t, nil)
		_, _ = s.AddItem(ctx, "milk")

		res, err := s.UpdateQuantity(ctx, "milk", 5)
		require.NoError(t, err)
		assert.Equal(t, "Updated milk quantity to 5.", res.Message)
		assert.Equal(t, 5, s.Lines()[0].Quantity)
	})

	t.Run("zero removes the line", func(t *testing.T) {
		a := newTestStore(t, nil)
		b := newTestStore(t, nil)
		for _, s := range []*Store{a, b} {
			_, _ = s.AddItem(ctx, "milk")
			_, _ = s.AddItem(ctx, "milk")
			_, _ = s.AddItem(ctx, "bread")
		}

		resA, errA := a.UpdateQuantity(ctx, "milk", 0)
		resB, errB := b.RemoveItem(ctx, "milk", true)
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, resB, resA)
		assert.Equal(t, b.Lines(), a.Lines())
	})

	t.Run("negative is rejected", func(t *testing.T) {
		s := newTestStore(t, nil)
		_, _ = s.AddItem(ctx, "milk")

		res, err := s.UpdateQuantity(ctx, "milk", -1)
		assert.ErrorIs(t, err, ErrNegativeQuantity)
		assert.Equal(t, "Quantity cannot be negative.", res.Message)
		assert.Equal(t, 1, s.Lines()[0].Quantity)
	})

	t.Run("missing line", func(t *testing.T) {
		s := newTestStore(t, nil)
		_, err := s.UpdateQuantity(ctx, "milk", 2)
		assert.ErrorIs(t, err, ErrNotInCart)
	})
}

func TestSnapshotTotalsAndClear(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	_, _ = s.AddItem(ctx, "apple")
	_, _ = s.AddItem(ctx, "apple")
	_, _ = s.AddItem(ctx, "banana")

	snap := s.Snapshot()
	assert.True(t, usd("4.77").Equal(snap.Total), "total was %s", snap.Total)
	assert.Equal(t, 3, snap.ItemCount)
	assert.Len(t, snap.Items, 2)
	assert.Equal(t, fixedNow, snap.LastModified)

	assert.Equal(t,
		"Your cart contains 3 items: 2 apples for $3.98, 1 banana for $0.79. Total: $4.77.",
		s.Summary())

	res := s.Clear(ctx)
	assert.True(t, res.Success)
	assert.Equal(t, "Cleared 3 items from your cart.", res.Message)

	snap = s.Snapshot()
	assert.Empty(t, snap.Items)
	assert.True(t, snap.Total.IsZero())
	assert.Equal(t, 0, snap.ItemCount)
	assert.Equal(t, "Your cart is empty.", s.Summary())
}

func TestPersistsBeforeNotifying(t *testing.T) {
	var events []string
	repo := &recordingRepo{events: &events}
	s := newTestStore(t, repo)

	var seen []models.CartLine
	s.Subscribe(func(lines []models.CartLine) {
		events = append(events, "notify")
		seen = lines
	})

	_, err := s.AddItem(context.Background(), "bread")
	require.NoError(t, err)

	assert.Equal(t, []string{"save", "notify"}, events)
	require.Len(t, repo.saves, 1)
	assert.Equal(t, repo.saves[0], seen)
}

func TestPersistFailureIsNotAnOperationFailure(t *testing.T) {
	repo := &recordingRepo{err: errors.New("redis down")}
	s := newTestStore(t, repo)

	res, err := s.AddItem(context.Background(), "bread")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, s.Lines(), 1)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	calls := 0
	unsubscribe := s.Subscribe(func(lines []models.CartLine) {
		calls++
		if len(lines) > 0 {
			lines[0].Quantity = 99
		}
	})

	_, _ = s.AddItem(ctx, "pen")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, s.Lines()[0].Quantity, "listener must not alias cart state")

	unsubscribe()
	_, _ = s.AddItem(ctx, "pen")
	assert.Equal(t, 1, calls)
}

func TestNotificationsArriveInOrder(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var delivered []int
	s.Subscribe(func(lines []models.CartLine) {
		mu.Lock()
		first := len(delivered) == 0
		delivered = append(delivered, len(lines))
		mu.Unlock()
		if first {
			close(entered)
			<-release
		}
	})

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = s.AddItem(ctx, "apple")
	}()
	<-entered

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		_, _ = s.AddItem(ctx, "bread")
	}()

	// the second change is committed but its listeners wait for the first
	require.Eventually(t, func() bool { return len(s.Lines()) == 2 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []int{1}, delivered)
	mu.Unlock()

	close(release)
	<-firstDone
	<-secondDone

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, delivered)
}

func TestConcurrentMutationsNeverDeliverStaleCart(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	var mu sync.Mutex
	var totals []int
	s.Subscribe(func(lines []models.CartLine) {
		total := 0
		for _, l := range lines {
			total += l.Quantity
		}
		mu.Lock()
		totals = append(totals, total)
		mu.Unlock()
	})

	const adds = 20
	var wg sync.WaitGroup
	for i := 0; i < adds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.AddItem(ctx, "pen")
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, totals)
	for i := 1; i < len(totals); i++ {
		assert.Greater(t, totals[i], totals[i-1])
	}
	assert.Equal(t, adds, totals[len(totals)-1])
	assert.Equal(t, adds, s.Lines()[0].Quantity)
}

func TestOpenLoadsFromRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	first := newTestStore(t, repo)
	_, _ = first.AddItem(ctx, "rice")
	_, _ = first.AddItem(ctx, "rice")

	second := newTestStore(t, repo)
	lines := second.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "rice", lines[0].Name)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestOpenDropsInvalidLines(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Save(ctx, SessionKey("test"), []models.CartLine{
		{ProductID: "fruit-001", Name: "apple", Price: usd("1.99"), Quantity: 0},
		{ProductID: "fruit-002", Name: "banana", Price: usd("0.79"), Quantity: 1},
	}))

	s := newTestStore(t, repo)
	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "banana", lines[0].Name)
}

func TestOpenWithFailingLoadStartsEmpty(t *testing.T) {
	s := newTestStore(t, failingLoadRepo{})
	assert.Empty(t, s.Lines())
}

func TestValidateReportsDrift(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Save(ctx, SessionKey("test"), []models.CartLine{
		{ProductID: "fruit-001", Name: "apple", Price: usd("1.50"), Quantity: 1},
		{ProductID: "gone-001", Name: "hoverboard", Price: usd("99.00"), Quantity: 1},
		{ProductID: "fruit-002", Name: "banana", Price: usd("0.79"), Quantity: 1},
	}))

	s := newTestStore(t, repo)
	v := s.Validate()
	assert.False(t, v.Valid)
	assert.Equal(t, []string{
		"Price for apple has changed from $1.50 to $1.99",
		`Product "hoverboard" no longer exists in database`,
	}, v.Issues)

	// advisory only
	assert.True(t, usd("1.50").Equal(s.Lines()[0].Price))
}

func TestValidateReportsOutOfStock(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Save(ctx, SessionKey("test"), []models.CartLine{
		{ProductID: "fruit-001", Name: "apple", Price: usd("1.50"), Quantity: 2},
		{ProductID: "fruit-002", Name: "banana", Price: usd("0.79"), Quantity: 1},
	}))

	cat := catalog.New([]models.Product{
		// sold out and repriced: stock is reported, not the price
		{ID: "fruit-001", Name: "apple", Price: usd("1.99"), Category: "fruits", InStock: false},
		{ID: "fruit-002", Name: "banana", Price: usd("0.79"), Category: "fruits", InStock: true},
	})
	s := Open(ctx, SessionKey("test"), cat, repo, WithClock(func() time.Time { return fixedNow }))

	v := s.Validate()
	assert.False(t, v.Valid)
	assert.Equal(t, []string{"apple is currently out of stock"}, v.Issues)
	assert.Equal(t, 2, s.Lines()[0].Quantity)
}

func TestFindLineAndByCategory(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	_, _ = s.AddItem(ctx, "coffee mug")
	_, _ = s.AddItem(ctx, "apple")

	l, ok := s.FindLine("mug")
	require.True(t, ok)
	assert.Equal(t, "coffee mug", l.Name)

	_, ok = s.FindLine("laptop")
	assert.False(t, ok)

	groups := s.ByCategory()
	assert.Len(t, groups["household"], 1)
	assert.Len(t, groups["fruits"], 1)
}
