package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kinara/internal/domain"
	"kinara/internal/session"
)

func newCartService(store *memStore) (*CartService, *session.MemoryStore) {
	sessions := session.NewMemoryStore()
	svc := NewCartService(sessions, NewCatalogService(store, store))
	svc.now = func() time.Time { return fixedNow }
	return svc, sessions
}

func TestCartService_AddFetchesUnknownProduct(t *testing.T) {
	store := newMemStore(productA, productB)
	svc, sessions := newCartService(store)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "sid", "A", 2))
	require.NoError(t, svc.Add(ctx, "sid", "B", 1))
	require.NoError(t, svc.Add(ctx, "sid", "A", 1))
	assert.Equal(t, 2, countCalls(store, "GetProduct"), "known products are not refetched")

	v, err := svc.View(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, 4, v.ItemCount)
	assert.Equal(t, int64(5500), v.Total)
	require.Len(t, v.Lines, 2)
	assert.Equal(t, "A", v.Lines[0].ProductID)
	assert.Equal(t, int64(3000), v.Lines[0].Subtotal)
	assert.Equal(t, "a.jpg", v.Lines[0].ImageRef)

	sess, _ := sessions.Load(ctx, "sid")
	assert.Equal(t, fixedNow, sess.Catalog.FetchedAt)
}

func TestCartService_AddUnknownIDFails(t *testing.T) {
	svc, _ := newCartService(newMemStore())
	err := svc.Add(context.Background(), "sid", "nope", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, svc.ItemCount(context.Background(), "sid"))
}

func TestCartService_PricesAgainstSessionSnapshot(t *testing.T) {
	store := newMemStore(productA)
	svc, _ := newCartService(store)
	ctx := context.Background()
	require.NoError(t, svc.Add(ctx, "sid", "A", 1))

	// price changes in the store do not reach the cart until the session sees a new listing
	p := productA
	p.Price = 1200
	store.products["A"] = p
	v, _ := svc.View(ctx, "sid")
	assert.Equal(t, int64(1000), v.Total)

	require.NoError(t, svc.RememberCatalog(ctx, "sid", []domain.Product{p}))
	v, _ = svc.View(ctx, "sid")
	assert.Equal(t, int64(1200), v.Total)
}

func TestCartService_RemoveAndSetQuantity(t *testing.T) {
	svc, _ := newCartService(newMemStore(productA, productB))
	ctx := context.Background()
	require.NoError(t, svc.Add(ctx, "sid", "A", 1))
	require.NoError(t, svc.Add(ctx, "sid", "B", 1))

	require.NoError(t, svc.SetQuantity(ctx, "sid", "B", 4))
	require.NoError(t, svc.SetQuantity(ctx, "sid", "ghost", 4))
	v, _ := svc.View(ctx, "sid")
	assert.Equal(t, 5, v.ItemCount)
	assert.Len(t, v.Lines, 2)

	require.NoError(t, svc.SetQuantity(ctx, "sid", "B", 0))
	require.NoError(t, svc.Remove(ctx, "sid", "A"))
	require.NoError(t, svc.Remove(ctx, "sid", "A"))
	v, _ = svc.View(ctx, "sid")
	assert.True(t, v.IsEmpty())
	assert.Equal(t, int64(0), v.Total)
}

func TestBuildCartView_FlagsMissing(t *testing.T) {
	svc, sessions := newCartService(newMemStore())
	ctx := context.Background()
	sess, _ := sessions.Load(ctx, "sid")
	sess.Cart.Add("ghost")
	require.NoError(t, sessions.Save(ctx, sess))

	v, err := svc.View(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, v.Lines, 1)
	assert.True(t, v.Lines[0].Missing)
	assert.Equal(t, []string{"ghost"}, v.Missing)
	assert.Equal(t, int64(0), v.Total)
}

func TestCartService_LastOrder(t *testing.T) {
	svc, sessions := newCartService(newMemStore())
	ctx := context.Background()
	sess, _ := sessions.Load(ctx, "sid")
	sess.LastOrder = &session.PlacedOrder{OrderID: "ord-9", Total: 4500}
	require.NoError(t, sessions.Save(ctx, sess))

	po, err := svc.LastOrder(ctx, "sid", "ord-9")
	require.NoError(t, err)
	assert.Equal(t, int64(4500), po.Total)

	_, err = svc.LastOrder(ctx, "sid", "ord-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.LastOrder(ctx, "other", "ord-9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func countCalls(s *memStore, name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == name {
			n++
		}
	}
	return n
}

type slowReader struct {
	calls int32
	gate  chan struct{}
}

func (r *slowReader) ListProducts(context.Context, domain.ProductFilter) ([]domain.Product, error) {
	atomic.AddInt32(&r.calls, 1)
	<-r.gate
	return []domain.Product{productA}, nil
}

func (r *slowReader) ListCategories(context.Context) ([]domain.Category, error) { return nil, nil }

func TestCatalogService_CoalescesConcurrentQueries(t *testing.T) {
	reader := &slowReader{gate: make(chan struct{})}
	svc := NewCatalogService(reader, nil)

	var wg sync.WaitGroup
	results := make([][]domain.Product, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.ListProducts(context.Background(), domain.ProductFilter{CategoryID: "all"})
		}(i)
	}
	// let the goroutines pile up behind the first call
	time.Sleep(50 * time.Millisecond)
	close(reader.gate)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&reader.calls), int32(5))
	for _, r := range results {
		require.Len(t, r, 1)
	}
	results[0][0].Name = "mutated"
	assert.Equal(t, "Mono Panel 400W", results[1][0].Name, "callers get their own slice")

	// a later call is a fresh query
	before := atomic.LoadInt32(&reader.calls)
	_, err := svc.ListProducts(context.Background(), domain.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, before+1, atomic.LoadInt32(&reader.calls))
}

func TestCatalogService_FilterAndSummary(t *testing.T) {
	old := productB
	old.CreatedAt = fixedNow.AddDate(0, 0, -45)
	old.Stock = 0
	fresh := productA
	fresh.CreatedAt = fixedNow.AddDate(0, 0, -2)
	fresh.CategoryID = "panels"
	store := newMemStore(fresh, old)
	svc := NewCatalogService(store, store)
	svc.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	all, err := svc.ListProducts(ctx, domain.ProductFilter{CategoryID: "all"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].ID, "newest first")

	panels, _ := svc.ListProducts(ctx, domain.ProductFilter{CategoryID: "panels"})
	assert.Len(t, panels, 1)
	found, _ := svc.ListProducts(ctx, domain.ProductFilter{Query: "  CONTROLLER "})
	require.Len(t, found, 1)
	assert.Equal(t, "B", found[0].ID)

	sum := svc.Summarize(all, []domain.Category{{ID: "panels"}})
	assert.Equal(t, ShopSummary{Total: 2, Available: 1, NewArrivals: 1, Categories: 1}, sum)
}

func TestCartService_SnapshotKeepsImagesOutOfSession(t *testing.T) {
	inline := "data:image/png;base64," + strings.Repeat("A", 600<<10)
	var listing []domain.Product
	for i := 0; i < 20; i++ {
		listing = append(listing, domain.Product{
			ID: fmt.Sprintf("p%02d", i), Name: "Panel", Price: 1000,
			Images: []domain.ProductImage{{Data: inline, Type: "image/png"}},
		})
	}
	svc, sessions := newCartService(newMemStore())
	ctx := context.Background()
	require.NoError(t, svc.RememberCatalog(ctx, "sid", listing))

	sess, err := sessions.Load(ctx, "sid")
	require.NoError(t, err)
	b, err := session.Encode(sess)
	require.NoError(t, err)
	assert.Less(t, len(b), 8<<10, "session payload should not carry image bytes")

	e, ok := sess.Catalog.Lookup("p03")
	require.True(t, ok)
	assert.Equal(t, "/product/p03/image?i=0", e.ImageRef)
}
