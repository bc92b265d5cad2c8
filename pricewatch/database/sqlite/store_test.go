package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hadef-dev/pricewatch/pricewatch/database/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	// Every pooled connection to :memory: is its own database.
	s.db.SetMaxOpenConns(1)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedProduct(t *testing.T, s *Store, userID, productID string) {
	t.Helper()
	err := s.Products().Upsert(context.Background(), &models.Product{
		UserID:       userID,
		ProductID:    productID,
		ProductURL:   "https://www.aliexpress.com/item/" + productID + ".html",
		Title:        "Widget " + productID,
		CurrentPrice: 10.00,
		Currency:     "USD",
		Country:      "US",
	})
	require.NoError(t, err)
}

func stampLastChecked(t *testing.T, s *Store, productID string, at time.Time) {
	t.Helper()
	_, err := s.db.Exec(`UPDATE products SET last_checked = ? WHERE product_id = ?`, at, productID)
	require.NoError(t, err)
}

func TestGetProductsToCheck_StalestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Users().Save(ctx, &models.User{UserID: "user-1", Username: "tester"}))
	seedProduct(t, s, "user-1", "100") // never checked
	seedProduct(t, s, "user-1", "200")
	seedProduct(t, s, "user-1", "300")
	stampLastChecked(t, s, "200", time.Now().Add(-2*time.Hour))
	stampLastChecked(t, s, "300", time.Now().Add(-1*time.Hour))

	// Never-checked products jump the queue, then oldest check wins.
	selected, err := s.Products().GetProductsToCheck(ctx, 2)
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "100", selected[0].ProductID)
	assert.Nil(t, selected[0].LastChecked)
	assert.Equal(t, "200", selected[1].ProductID)

	all, err := s.Products().GetProductsToCheck(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "300", all[2].ProductID)
}

func TestUpdatePrice_AdvancesLastChecked(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Users().Save(ctx, &models.User{UserID: "user-1", Username: "tester"}))
	seedProduct(t, s, "user-1", "100")

	require.NoError(t, s.Products().UpdatePrice(ctx, "user-1", "100", 8.50, "", ""))

	p, err := s.Products().GetByID(ctx, "user-1", "100")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.InDelta(t, 8.50, p.CurrentPrice, 1e-9)
	require.NotNil(t, p.LastChecked)

	// A freshly-checked product drops to the back of the queue.
	selected, err := s.Products().GetProductsToCheck(ctx, 10)
	require.NoError(t, err)
	require.Len(t, selected, 1)
}
