package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Product is one tracked marketplace item. The same product id may be tracked
// by any number of users independently, so the key is (user_id, product_id).
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	UserID    string `bun:"user_id,pk"`
	ProductID string `bun:"product_id,pk"`

	ProductURL    string  `bun:"product_url,notnull"`
	Title         string  `bun:"title,notnull"`
	CurrentPrice  float64 `bun:"current_price,notnull"`
	OriginalPrice float64 `bun:"original_price,notnull"`
	Currency      string  `bun:"currency,notnull,default:'USD'"`
	ImageURL      string  `bun:"image_url"`
	Country       string  `bun:"country,notnull,default:'US'"`

	DateAdded time.Time `bun:"date_added,notnull,default:current_timestamp"`
	// Nil until the first monitoring cycle touches the product; never moves
	// backwards after that.
	LastChecked *time.Time `bun:"last_checked"`
}
