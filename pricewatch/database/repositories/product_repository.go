package repositories

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/hadef-dev/pricewatch/pricewatch/database/models"
	"github.com/uptrace/bun"
)

type ProductRepository interface {
	Upsert(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, userID, productID string) (*models.Product, error)
	GetByUser(ctx context.Context, userID string) ([]*models.Product, error)
	// GetProductsToCheck returns up to limit products ordered oldest-checked
	// first, never-checked products ahead of everything else.
	GetProductsToCheck(ctx context.Context, limit int) ([]*models.Product, error)
	UpdatePrice(ctx context.Context, userID, productID string, newPrice float64, country, productURL string) error
	UpdateCountryForUser(ctx context.Context, userID, country string) (int64, error)
	Delete(ctx context.Context, userID, productID string) (bool, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

type productRepository struct {
	db *bun.DB
}

func NewProductRepository(db *bun.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Upsert(ctx context.Context, product *models.Product) error {
	if product.DateAdded.IsZero() {
		product.DateAdded = time.Now()
	}
	_, err := r.db.NewInsert().
		Model(product).
		On("CONFLICT (user_id, product_id) DO UPDATE").
		Set("product_url = EXCLUDED.product_url").
		Set("title = EXCLUDED.title").
		Set("current_price = EXCLUDED.current_price").
		Set("original_price = EXCLUDED.original_price").
		Set("currency = EXCLUDED.currency").
		Set("image_url = EXCLUDED.image_url").
		Set("country = EXCLUDED.country").
		Exec(ctx)
	return err
}

func (r *productRepository) GetByID(ctx context.Context, userID, productID string) (*models.Product, error) {
	product := new(models.Product)
	err := r.db.NewSelect().
		Model(product).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return product, nil
}

func (r *productRepository) GetByUser(ctx context.Context, userID string) ([]*models.Product, error) {
	var products []*models.Product
	err := r.db.NewSelect().
		Model(&products).
		Where("user_id = ?", userID).
		Order("date_added ASC").
		Scan(ctx)
	return products, err
}

func (r *productRepository) GetProductsToCheck(ctx context.Context, limit int) ([]*models.Product, error) {
	slog.Debug("ProductRepository.GetProductsToCheck called",
		slog.String("type", "db"),
		slog.String("operation", "GetProductsToCheck"),
		slog.Int("limit", limit))

	var products []*models.Product
	err := r.db.NewSelect().
		Model(&products).
		OrderExpr("last_checked ASC NULLS FIRST").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		slog.Error("Database error when selecting products to check",
			slog.String("type", "db"),
			slog.String("operation", "GetProductsToCheck"),
			slog.String("error", err.Error()))
		return nil, err
	}
	return products, nil
}

func (r *productRepository) UpdatePrice(ctx context.Context, userID, productID string, newPrice float64, country, productURL string) error {
	q := r.db.NewUpdate().
		Model((*models.Product)(nil)).
		Set("current_price = ?", newPrice).
		Set("last_checked = ?", time.Now()).
		Where("user_id = ? AND product_id = ?", userID, productID)

	if country != "" {
		q = q.Set("country = ?", country)
	}
	if productURL != "" {
		q = q.Set("product_url = ?", productURL)
	}

	_, err := q.Exec(ctx)
	return err
}

func (r *productRepository) UpdateCountryForUser(ctx context.Context, userID, country string) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*models.Product)(nil)).
		Set("country = ?", country).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (r *productRepository) Delete(ctx context.Context, userID, productID string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*models.Product)(nil)).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (r *productRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	return r.db.NewSelect().
		Model((*models.Product)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)
}
