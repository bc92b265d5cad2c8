package repositories

import (
	"context"
	"time"

	"github.com/hadef-dev/pricewatch/pricewatch/database/models"
	"github.com/uptrace/bun"
)

type HistoryRepository interface {
	// Append stores one price-change record. Callers enforce the change
	// epsilon; the repository stores whatever it is given.
	Append(ctx context.Context, record *models.PriceHistory) error
	GetByProduct(ctx context.Context, userID, productID string, months int) ([]*models.PriceHistory, error)
	GetAllByUser(ctx context.Context, userID string) ([]*models.PriceHistory, error)
}

type historyRepository struct {
	db *bun.DB
}

func NewHistoryRepository(db *bun.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Append(ctx context.Context, record *models.PriceHistory) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	_, err := r.db.NewInsert().Model(record).Exec(ctx)
	return err
}

func (r *historyRepository) GetByProduct(ctx context.Context, userID, productID string, months int) ([]*models.PriceHistory, error) {
	var records []*models.PriceHistory
	q := r.db.NewSelect().
		Model(&records).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Order("timestamp DESC")

	if months > 0 {
		q = q.Where("timestamp > ?", time.Now().AddDate(0, -months, 0))
	}

	err := q.Scan(ctx)
	return records, err
}

func (r *historyRepository) GetAllByUser(ctx context.Context, userID string) ([]*models.PriceHistory, error) {
	var records []*models.PriceHistory
	err := r.db.NewSelect().
		Model(&records).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Scan(ctx)
	return records, err
}
