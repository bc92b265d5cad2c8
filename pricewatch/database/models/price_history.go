package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PriceHistory is an append-only record of one observed price change.
type PriceHistory struct {
	bun.BaseModel `bun:"table:price_history,alias:ph"`

	ID            int64     `bun:"id,pk,autoincrement"`
	UserID        string    `bun:"user_id,notnull"`
	ProductID     string    `bun:"product_id,notnull"`
	Title         string    `bun:"title,notnull"`
	OldPrice      float64   `bun:"old_price,notnull"`
	NewPrice      float64   `bun:"new_price,notnull"`
	ChangeAmount  float64   `bun:"change_amount,notnull"`
	ChangePercent float64   `bun:"change_percent,notnull"`
	Currency      string    `bun:"currency,notnull,default:'USD'"`
	Timestamp     time.Time `bun:"timestamp,notnull,default:current_timestamp"`
}
