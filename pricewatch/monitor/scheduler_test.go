package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hadef-dev/pricewatch/pricewatch/aliexpress"
	"github.com/hadef-dev/pricewatch/pricewatch/database/models"
)

type fakeProductRepo struct {
	mu       sync.Mutex
	products []*models.Product
	updates  []priceUpdate
}

type priceUpdate struct {
	userID    string
	productID string
	price     float64
	country   string
	url       string
}

func (r *fakeProductRepo) key(userID, productID string) int {
	for i, p := range r.products {
		if p.UserID == userID && p.ProductID == productID {
			return i
		}
	}
	return -1
}

func (r *fakeProductRepo) Upsert(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.key(product.UserID, product.ProductID); i >= 0 {
		r.products[i] = product
		return nil
	}
	r.products = append(r.products, product)
	return nil
}

func (r *fakeProductRepo) GetByID(_ context.Context, userID, productID string) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.key(userID, productID); i >= 0 {
		return r.products[i], nil
	}
	return nil, nil
}

func (r *fakeProductRepo) GetByUser(_ context.Context, userID string) ([]*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Product
	for _, p := range r.products {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) GetProductsToCheck(_ context.Context, limit int) ([]*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.products) {
		limit = len(r.products)
	}
	return r.products[:limit], nil
}

func (r *fakeProductRepo) UpdatePrice(_ context.Context, userID, productID string, newPrice float64, country, productURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, priceUpdate{userID, productID, newPrice, country, productURL})
	if i := r.key(userID, productID); i >= 0 {
		r.products[i].CurrentPrice = newPrice
		now := time.Now()
		r.products[i].LastChecked = &now
	}
	return nil
}

func (r *fakeProductRepo) UpdateCountryForUser(_ context.Context, userID, country string) (int64, error) {
	return 0, nil
}

func (r *fakeProductRepo) Delete(_ context.Context, userID, productID string) (bool, error) {
	return false, nil
}

func (r *fakeProductRepo) CountByUser(_ context.Context, userID string) (int, error) {
	products, _ := r.GetByUser(context.Background(), userID)
	return len(products), nil
}

type fakeUserRepo struct {
	countries map[string]string
}

func (r *fakeUserRepo) Save(context.Context, *models.User) error           { return nil }
func (r *fakeUserRepo) GetByID(context.Context, string) (*models.User, error) {
	return nil, nil
}
func (r *fakeUserRepo) GetCountry(_ context.Context, userID string) (string, error) {
	return r.countries[userID], nil
}
func (r *fakeUserRepo) SetCountry(context.Context, string, string) error { return nil }
func (r *fakeUserRepo) GetUsersNeedingReminder(context.Context, time.Duration) ([]string, error) {
	return nil, nil
}
func (r *fakeUserRepo) GetUsersPastDeadline(context.Context) ([]string, error) { return nil, nil }
func (r *fakeUserRepo) SetReminder(context.Context, string, time.Duration) error {
	return nil
}
func (r *fakeUserRepo) ClearReminder(context.Context, string) error     { return nil }
func (r *fakeUserRepo) DeleteAllUserData(context.Context, string) error { return nil }

type fakeHistoryRepo struct {
	mu      sync.Mutex
	records []*models.PriceHistory
}

func (r *fakeHistoryRepo) Append(_ context.Context, record *models.PriceHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *fakeHistoryRepo) GetByProduct(context.Context, string, string, int) ([]*models.PriceHistory, error) {
	return nil, nil
}

func (r *fakeHistoryRepo) GetAllByUser(context.Context, string) ([]*models.PriceHistory, error) {
	return nil, nil
}

type fakeFetcher struct {
	mu        sync.Mutex
	snapshots map[string]*aliexpress.ProductSnapshot
	errs      map[string]error
	countries []string
}

func (f *fakeFetcher) FetchDetails(_ context.Context, productID, country string) (*aliexpress.ProductSnapshot, error) {
	f.mu.Lock()
	f.countries = append(f.countries, country)
	f.mu.Unlock()
	if err, ok := f.errs[productID]; ok {
		return nil, err
	}
	if snapshot, ok := f.snapshots[productID]; ok {
		return snapshot, nil
	}
	return nil, fmt.Errorf("no snapshot configured for %s", productID)
}

func (f *fakeFetcher) GenerateAffiliateLink(_ context.Context, productURL, _ string) string {
	return "https://s.click.aliexpress.com/e/_tracked"
}

type fakeNotifier struct {
	mu      sync.Mutex
	changes []*PriceChange
}

func (n *fakeNotifier) NotifyPriceChange(_ context.Context, change *PriceChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
}

func trackedProduct(userID, productID string, price float64) *models.Product {
	return &models.Product{
		UserID:       userID,
		ProductID:    productID,
		Title:        "Widget " + productID,
		CurrentPrice: price,
		Currency:     "USD",
		Country:      "US",
		ProductURL:   "https://www.aliexpress.com/item/" + productID + ".html",
		DateAdded:    time.Now(),
	}
}

func TestRunCycle_PriceDropEndToEnd(t *testing.T) {
	products := &fakeProductRepo{products: []*models.Product{
		trackedProduct("user-1", "100", 20.00),
	}}
	history := &fakeHistoryRepo{}
	fetcher := &fakeFetcher{snapshots: map[string]*aliexpress.ProductSnapshot{
		"100": {
			ProductID:  "100",
			Title:      "Widget 100",
			Price:      17.50,
			Currency:   "USD",
			ImageURL:   "https://cdn.example.com/100.jpg",
			ProductURL: "https://www.aliexpress.com/item/100.html",
		},
	}}
	notifier := &fakeNotifier{}

	s := NewScheduler(products, &fakeUserRepo{}, history, fetcher, notifier, SchedulerConfig{})
	require.NoError(t, s.RunCycle(context.Background()))

	require.Len(t, history.records, 1)
	record := history.records[0]
	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, "100", record.ProductID)
	assert.InDelta(t, 20.00, record.OldPrice, 1e-9)
	assert.InDelta(t, 17.50, record.NewPrice, 1e-9)
	assert.InDelta(t, -2.50, record.ChangeAmount, 1e-9)
	assert.InDelta(t, -12.5, record.ChangePercent, 1e-9)

	require.Len(t, notifier.changes, 1)
	change := notifier.changes[0]
	assert.Equal(t, "user-1", change.UserID)
	assert.InDelta(t, -2.50, change.Delta, 1e-9)
	assert.Equal(t, "https://s.click.aliexpress.com/e/_tracked", change.AffiliateLink)
	assert.Equal(t, "https://cdn.example.com/100.jpg", change.ImageURL)

	assert.InDelta(t, 17.50, products.products[0].CurrentPrice, 1e-9)
	assert.NotNil(t, products.products[0].LastChecked)
}

func TestRunCycle_NoChangeStaysQuiet(t *testing.T) {
	products := &fakeProductRepo{products: []*models.Product{
		trackedProduct("user-1", "100", 9.99),
	}}
	history := &fakeHistoryRepo{}
	fetcher := &fakeFetcher{snapshots: map[string]*aliexpress.ProductSnapshot{
		"100": {ProductID: "100", Price: 9.99, Currency: "USD"},
	}}
	notifier := &fakeNotifier{}

	s := NewScheduler(products, &fakeUserRepo{}, history, fetcher, notifier, SchedulerConfig{})
	require.NoError(t, s.RunCycle(context.Background()))

	assert.Empty(t, history.records)
	assert.Empty(t, notifier.changes)
	// The check itself is still recorded.
	require.Len(t, products.updates, 1)
	assert.NotNil(t, products.products[0].LastChecked)
}

func TestRunCycle_FetchFailureKeepsStalePrice(t *testing.T) {
	products := &fakeProductRepo{products: []*models.Product{
		trackedProduct("user-1", "100", 12.00),
	}}
	history := &fakeHistoryRepo{}
	fetcher := &fakeFetcher{errs: map[string]error{
		"100": fmt.Errorf("upstream is down"),
	}}
	notifier := &fakeNotifier{}

	s := NewScheduler(products, &fakeUserRepo{}, history, fetcher, notifier, SchedulerConfig{})
	require.NoError(t, s.RunCycle(context.Background()))

	assert.Empty(t, history.records)
	assert.Empty(t, notifier.changes)

	// Stale price written back so last_checked advances without inventing a
	// change.
	require.Len(t, products.updates, 1)
	assert.InDelta(t, 12.00, products.updates[0].price, 1e-9)
	assert.InDelta(t, 12.00, products.products[0].CurrentPrice, 1e-9)
	assert.NotNil(t, products.products[0].LastChecked)
}

func TestRunCycle_OneFailureLeavesBatchSiblingsIntact(t *testing.T) {
	repo := &fakeProductRepo{}
	fetcher := &fakeFetcher{
		snapshots: map[string]*aliexpress.ProductSnapshot{},
		errs: map[string]error{
			"3002": &aliexpress.APIError{Kind: aliexpress.KindTimeout, Message: "request timed out"},
		},
	}
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("%d", 3000+i)
		repo.products = append(repo.products, trackedProduct("user-1", id, 10.00))
		if id != "3002" {
			fetcher.snapshots[id] = &aliexpress.ProductSnapshot{ProductID: id, Price: 9.00, Currency: "USD"}
		}
	}
	history := &fakeHistoryRepo{}
	notifier := &fakeNotifier{}

	// All five products land in a single batch.
	s := NewScheduler(repo, &fakeUserRepo{}, history, fetcher, notifier, SchedulerConfig{BatchSize: 10})
	require.NoError(t, s.RunCycle(context.Background()))

	// Every product got a write: four new prices plus the stale write for the
	// timed-out one.
	require.Len(t, repo.updates, 5)
	for _, p := range repo.products {
		if p.ProductID == "3002" {
			assert.InDelta(t, 10.00, p.CurrentPrice, 1e-9)
		} else {
			assert.InDelta(t, 9.00, p.CurrentPrice, 1e-9)
		}
		assert.NotNil(t, p.LastChecked)
	}

	require.Len(t, notifier.changes, 4)
	require.Len(t, history.records, 4)
	for _, change := range notifier.changes {
		assert.NotEqual(t, "3002", change.ProductID)
	}
}

func TestRunCycle_UserCountryOverridesProduct(t *testing.T) {
	products := &fakeProductRepo{products: []*models.Product{
		trackedProduct("user-1", "100", 5.00),
	}}
	fetcher := &fakeFetcher{snapshots: map[string]*aliexpress.ProductSnapshot{
		"100": {ProductID: "100", Price: 5.00, Currency: "USD"},
	}}
	users := &fakeUserRepo{countries: map[string]string{"user-1": "DE"}}

	s := NewScheduler(products, users, &fakeHistoryRepo{}, fetcher, &fakeNotifier{}, SchedulerConfig{})
	require.NoError(t, s.RunCycle(context.Background()))

	require.Len(t, fetcher.countries, 1)
	assert.Equal(t, "DE", fetcher.countries[0])
}

func TestRunCycle_BatchesWithInterBatchDelay(t *testing.T) {
	repo := &fakeProductRepo{}
	fetcher := &fakeFetcher{snapshots: map[string]*aliexpress.ProductSnapshot{}}
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("%d", 1000+i)
		repo.products = append(repo.products, trackedProduct("user-1", id, 1.00))
		fetcher.snapshots[id] = &aliexpress.ProductSnapshot{ProductID: id, Price: 1.00, Currency: "USD"}
	}

	s := NewScheduler(repo, &fakeUserRepo{}, &fakeHistoryRepo{}, fetcher, &fakeNotifier{}, SchedulerConfig{
		ProductsPerRun:  100,
		BatchSize:       10,
		InterBatchDelay: time.Second,
	})

	var slept []time.Duration
	s.sleep = func(d time.Duration) { slept = append(slept, d) }

	require.NoError(t, s.RunCycle(context.Background()))

	// 25 products in batches of 10: delay after the first two batches only.
	assert.Equal(t, []time.Duration{time.Second, time.Second}, slept)
	assert.Len(t, repo.updates, 25)
}

func TestRunCycle_HonorsProductsPerRunLimit(t *testing.T) {
	repo := &fakeProductRepo{}
	fetcher := &fakeFetcher{snapshots: map[string]*aliexpress.ProductSnapshot{}}
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("%d", 2000+i)
		repo.products = append(repo.products, trackedProduct("user-1", id, 1.00))
		fetcher.snapshots[id] = &aliexpress.ProductSnapshot{ProductID: id, Price: 1.00, Currency: "USD"}
	}

	s := NewScheduler(repo, &fakeUserRepo{}, &fakeHistoryRepo{}, fetcher, &fakeNotifier{}, SchedulerConfig{
		ProductsPerRun: 5,
		BatchSize:      10,
	})
	require.NoError(t, s.RunCycle(context.Background()))

	assert.Len(t, repo.updates, 5)
}
