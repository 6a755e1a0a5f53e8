package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/healthshop/clerk/internal/domain"
)

// MockMatcher resolves queries from a fixed table
type MockMatcher struct {
	best    map[string]*domain.Product
	ranking map[string][]int64
	err     error
}

func (m *MockMatcher) BestMatch(ctx context.Context, query string) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.best[query], nil
}

func (m *MockMatcher) BestMatchAmong(ctx context.Context, query string, ids []int64) (int64, bool, error) {
	if m.err != nil {
		return 0, false, m.err
	}
	allowed := map[int64]bool{}
	for _, id := range ids {
		allowed[id] = true
	}
	for _, id := range m.ranking[query] {
		if allowed[id] {
			return id, true, nil
		}
	}
	return 0, false, nil
}

var (
	whey      = product(1, "Whey Protein Powder", "29.99")
	melatonin = product(2, "Melatonin Gummies", "9.50")
	longName  = product(3, "Ultra Premium Grass-Fed Whey Isolate Protein Powder With Added Enzymes", "54.00")
)

type cartFixture struct {
	svc     *CartService
	carts   *MemoryCarts
	matcher *MockMatcher
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	carts := NewMemoryCarts(whey, melatonin, longName)
	catalog := NewMockCatalog(whey, melatonin, longName)
	matcher := &MockMatcher{
		best: map[string]*domain.Product{
			"protein powder": &whey,
			"melatonin":      &melatonin,
		},
		ranking: map[string][]int64{
			"protein powder": {1, 3},
			"melatonin":      {2},
			"gummies":        {2, 1},
		},
	}
	svc := NewCartService(carts, catalog, matcher, zap.NewNop(), CartServiceConfig{DeliveryDays: 3})
	svc.now = func() time.Time { return time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC) }
	return &cartFixture{svc: svc, carts: carts, matcher: matcher}
}

func TestCartService_ShowCart(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		f := newCartFixture(t)
		assert.Equal(t, "Your shopping cart is empty.", f.svc.ShowCart(ctx, 1))
	})

	t.Run("lists lines and total", func(t *testing.T) {
		f := newCartFixture(t)
		f.svc.AddProduct(ctx, 1, "protein powder", 2)
		f.svc.AddProduct(ctx, 1, "melatonin", 1)

		got := f.svc.ShowCart(ctx, 1)
		assert.Contains(t, got, "Product: Whey Protein Powder, Price: 29.99, Quantity: 2, Total: 59.98\n")
		assert.Contains(t, got, "Product: Melatonin Gummies, Price: 9.50, Quantity: 1, Total: 9.50\n")
		assert.True(t, strings.HasSuffix(got, "\nTotal Price: 69.48"))
	})

	t.Run("truncates long names to fifty characters", func(t *testing.T) {
		f := newCartFixture(t)
		_, err := f.carts.AddQuantity(ctx, 1, longName.ID, 1)
		require.NoError(t, err)

		got := f.svc.ShowCart(ctx, 1)
		assert.Contains(t, got, "Product: "+longName.Name[:50]+", ")
	})

	t.Run("store failure becomes error result", func(t *testing.T) {
		f := newCartFixture(t)
		f.carts.err = errors.New("connection refused")
		assert.Equal(t, "Error: connection refused", f.svc.ShowCart(ctx, 1))
	})
}

func TestCartService_AddProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts then increments", func(t *testing.T) {
		f := newCartFixture(t)

		assert.Equal(t, "Done. The product is in the shopping cart.", f.svc.AddProduct(ctx, 1, "protein powder", 2))
		assert.Equal(t, "Done. Added more of the product to the shopping cart.", f.svc.AddProduct(ctx, 1, "protein powder", 3))

		items, _ := f.carts.CartItems(ctx, 1)
		require.Len(t, items, 1)
		assert.Equal(t, 5, items[0].Quantity)
	})

	t.Run("no match", func(t *testing.T) {
		f := newCartFixture(t)
		assert.Equal(t, "No matched products", f.svc.AddProduct(ctx, 1, "unicorn", 1))
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		f := newCartFixture(t)
		assert.Equal(t, "Please provide a quantity greater than zero.", f.svc.AddProduct(ctx, 1, "protein powder", 0))
		assert.Equal(t, "Please provide a quantity greater than zero.", f.svc.AddProduct(ctx, 1, "protein powder", -2))
		items, _ := f.carts.CartItems(ctx, 1)
		assert.Empty(t, items)
	})

	t.Run("resolution failure becomes error result", func(t *testing.T) {
		f := newCartFixture(t)
		f.matcher.err = errors.New("embedding request failed: quota")
		assert.Equal(t, "Error: embedding request failed: quota", f.svc.AddProduct(ctx, 1, "protein powder", 1))
	})
}

func TestCartService_RemoveProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the matched cart line", func(t *testing.T) {
		f := newCartFixture(t)
		f.svc.AddProduct(ctx, 1, "protein powder", 1)
		f.svc.AddProduct(ctx, 1, "melatonin", 1)

		assert.Equal(t, "Done", f.svc.RemoveProduct(ctx, 1, "gummies"))

		items, _ := f.carts.CartItems(ctx, 1)
		require.Len(t, items, 1)
		assert.Equal(t, whey.ID, items[0].ProductID)
	})

	t.Run("match outside the cart deletes nothing", func(t *testing.T) {
		f := newCartFixture(t)
		f.svc.AddProduct(ctx, 1, "protein powder", 1)

		assert.Equal(t, "The product isn't in the cart.", f.svc.RemoveProduct(ctx, 1, "melatonin"))

		items, _ := f.carts.CartItems(ctx, 1)
		assert.Len(t, items, 1)
	})

	t.Run("paid lines are not candidates", func(t *testing.T) {
		f := newCartFixture(t)
		f.svc.AddProduct(ctx, 1, "melatonin", 1)
		f.svc.PayCart(ctx, 1)

		assert.Equal(t, "The product isn't in the cart.", f.svc.RemoveProduct(ctx, 1, "melatonin"))
	})
}

func TestCartService_UpdateQuantity(t *testing.T) {
	ctx := context.Background()

	t.Run("sets quantity", func(t *testing.T) {
		f := newCartFixture(t)
		f.svc.AddProduct(ctx, 1, "protein powder", 1)

		assert.Equal(t, "Done", f.svc.UpdateQuantity(ctx, 1, "protein powder", 4))

		items, _ := f.carts.CartItems(ctx, 1)
		assert.Equal(t, 4, items[0].Quantity)
	})

	t.Run("same quantity is rejected", func(t *testing.T) {
		f := newCartFixture(t)
		f.svc.AddProduct(ctx, 1, "protein powder", 3)

		assert.Equal(t, "Please validate your quantity. They are same.", f.svc.UpdateQuantity(ctx, 1, "protein powder", 3))
	})

	t.Run("not in cart", func(t *testing.T) {
		f := newCartFixture(t)
		assert.Equal(t, "The product isn't in the cart.", f.svc.UpdateQuantity(ctx, 1, "protein powder", 3))
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		f := newCartFixture(t)
		f.svc.AddProduct(ctx, 1, "protein powder", 3)
		assert.Equal(t, "Please provide a quantity greater than zero.", f.svc.UpdateQuantity(ctx, 1, "protein powder", 0))
	})
}

func TestCartService_PayCart(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cart transitions nothing", func(t *testing.T) {
		f := newCartFixture(t)
		assert.Equal(t, "There are no products in the shopping cart.", f.svc.PayCart(ctx, 1))
	})

	t.Run("stamps paid date and arrival three days out", func(t *testing.T) {
		f := newCartFixture(t)
		f.svc.AddProduct(ctx, 1, "protein powder", 2)

		assert.Equal(t, "Done", f.svc.PayCart(ctx, 1))

		lines, err := f.svc.Orders(ctx, 1)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, domain.StatusPaid, lines[0].Status)
		require.NotNil(t, lines[0].EstimatedArrival)
		assert.Equal(t, "2024-05-13", lines[0].EstimatedArrival.Format("2006-01-02"))
	})

	t.Run("paid lines are left alone by a later checkout", func(t *testing.T) {
		f := newCartFixture(t)
		f.svc.AddProduct(ctx, 1, "protein powder", 1)
		f.svc.PayCart(ctx, 1)

		f.svc.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }
		f.svc.AddProduct(ctx, 1, "melatonin", 1)
		f.svc.PayCart(ctx, 1)

		lines, _ := f.svc.Orders(ctx, 1)
		require.Len(t, lines, 2)
		assert.Equal(t, "2024-05-13", lines[0].EstimatedArrival.Format("2006-01-02"))
		assert.Equal(t, "2024-06-04", lines[1].EstimatedArrival.Format("2006-01-02"))
	})

	t.Run("dates follow the UTC calendar day", func(t *testing.T) {
		f := newCartFixture(t)
		f.svc.AddProduct(ctx, 1, "protein powder", 1)

		// 23:30 on May 31 in UTC-5 is already June 1 in UTC
		zone := time.FixedZone("UTC-5", -5*60*60)
		f.svc.now = func() time.Time { return time.Date(2024, 5, 31, 23, 30, 0, 0, zone) }
		f.svc.PayCart(ctx, 1)

		lines, _ := f.svc.Orders(ctx, 1)
		require.Len(t, lines, 1)
		require.NotNil(t, lines[0].EstimatedArrival)
		assert.Equal(t, "2024-06-04", lines[0].EstimatedArrival.Format("2006-01-02"))
	})
}

func TestCartService_CheckStatus(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture(t)

	assert.Equal(t, "There are no products.", f.svc.CheckStatus(ctx, 1))

	f.svc.AddProduct(ctx, 1, "protein powder", 2)
	f.svc.PayCart(ctx, 1)
	f.svc.AddProduct(ctx, 1, "melatonin", 1)

	got := f.svc.CheckStatus(ctx, 1)
	assert.Contains(t, got, "Product: Whey Protein Powder, Quantity: 2, Status: paid, Estimated Date Arrival: 2024-05-13\n")
	assert.Contains(t, got, "Product: Melatonin Gummies, Quantity: 1, Status: in cart, Estimated Date Arrival: not scheduled\n")
}

func TestCartService_AddProductByID(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture(t)

	outcome, err := f.svc.AddProductByID(ctx, 1, whey.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LineInserted, outcome)

	outcome, err = f.svc.AddProductByID(ctx, 1, whey.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LineIncremented, outcome)

	_, err = f.svc.AddProductByID(ctx, 1, 999)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestCartService_CartSummary(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture(t)

	summary, err := f.svc.CartSummary(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, summary.Rows)
	assert.True(t, summary.Total.IsZero())

	f.svc.AddProduct(ctx, 1, "protein powder", 2)
	_, err = f.carts.AddQuantity(ctx, 1, longName.ID, 1)
	require.NoError(t, err)

	summary, err = f.svc.CartSummary(ctx, 1)
	require.NoError(t, err)
	require.Len(t, summary.Rows, 2)
	assert.Equal(t, "Whey Protein Powder", summary.Rows[0].Product)
	assert.True(t, summary.Rows[0].Price.Equal(decimal.RequireFromString("59.98")))
	assert.Len(t, []rune(summary.Rows[1].Product), 40)
	assert.True(t, summary.Total.Equal(decimal.RequireFromString("113.98")))

	f.carts.err = errors.New("boom")
	_, err = f.svc.CartSummary(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrStoreFailure)
}
