package commands

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hadef-dev/pricewatch/pricewatch"
	"github.com/hadef-dev/pricewatch/pricewatch/database/models"
)

type stubProductRepo struct {
	tracked map[string]bool
	deleted []string
	err     error
}

func (r *stubProductRepo) Upsert(context.Context, *models.Product) error { return nil }
func (r *stubProductRepo) GetByID(context.Context, string, string) (*models.Product, error) {
	return nil, nil
}
func (r *stubProductRepo) GetByUser(context.Context, string) ([]*models.Product, error) {
	return nil, nil
}
func (r *stubProductRepo) GetProductsToCheck(context.Context, int) ([]*models.Product, error) {
	return nil, nil
}
func (r *stubProductRepo) UpdatePrice(context.Context, string, string, float64, string, string) error {
	return nil
}
func (r *stubProductRepo) UpdateCountryForUser(context.Context, string, string) (int64, error) {
	return 0, nil
}
func (r *stubProductRepo) Delete(_ context.Context, _, productID string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	if !r.tracked[productID] {
		return false, nil
	}
	delete(r.tracked, productID)
	r.deleted = append(r.deleted, productID)
	return true, nil
}
func (r *stubProductRepo) CountByUser(context.Context, string) (int, error) { return 0, nil }

type stubImageStore struct {
	removed []string
	err     error
}

func (s *stubImageStore) MirrorProductImage(_ context.Context, productID, sourceURL string) (string, error) {
	return sourceURL, nil
}

func (s *stubImageStore) DeleteProductImage(_ context.Context, productID string) error {
	s.removed = append(s.removed, productID)
	return s.err
}

func TestRemoveProduct_CleansUpMirroredImage(t *testing.T) {
	repo := &stubProductRepo{tracked: map[string]bool{"100": true}}
	images := &stubImageStore{}
	b := &pricewatch.Bot{ProductRepository: repo, ImageService: images}

	deleted, err := removeProduct(context.Background(), b, "user-1", "100")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []string{"100"}, repo.deleted)
	assert.Equal(t, []string{"100"}, images.removed)
}

func TestRemoveProduct_UntrackedProductSkipsImage(t *testing.T) {
	repo := &stubProductRepo{tracked: map[string]bool{}}
	images := &stubImageStore{}
	b := &pricewatch.Bot{ProductRepository: repo, ImageService: images}

	deleted, err := removeProduct(context.Background(), b, "user-1", "100")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Empty(t, images.removed)
}

func TestRemoveProduct_ImageFailureDoesNotSurface(t *testing.T) {
	repo := &stubProductRepo{tracked: map[string]bool{"100": true}}
	images := &stubImageStore{err: fmt.Errorf("bucket unreachable")}
	b := &pricewatch.Bot{ProductRepository: repo, ImageService: images}

	deleted, err := removeProduct(context.Background(), b, "user-1", "100")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestRemoveProduct_NoImageStoreConfigured(t *testing.T) {
	repo := &stubProductRepo{tracked: map[string]bool{"100": true}}
	b := &pricewatch.Bot{ProductRepository: repo}

	deleted, err := removeProduct(context.Background(), b, "user-1", "100")
	require.NoError(t, err)
	assert.True(t, deleted)
}
