// Package sqlite is the embedded single-file storage variant. It implements
// the same repository interfaces as the Postgres store so the monitoring
// engine never knows which backend it is running against.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/hadef-dev/pricewatch/pricewatch/database/models"
	"github.com/hadef-dev/pricewatch/pricewatch/database/repositories"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	country TEXT NOT NULL DEFAULT 'US',
	date_added TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_update_reminder TIMESTAMP,
	update_deadline TIMESTAMP,
	needs_update_response INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS products (
	user_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	product_url TEXT NOT NULL,
	title TEXT NOT NULL,
	current_price REAL NOT NULL,
	original_price REAL NOT NULL,
	currency TEXT NOT NULL DEFAULT 'USD',
	image_url TEXT,
	country TEXT NOT NULL DEFAULT 'US',
	date_added TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_checked TIMESTAMP,
	PRIMARY KEY (user_id, product_id),
	FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS price_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	title TEXT NOT NULL,
	old_price REAL NOT NULL,
	new_price REAL NOT NULL,
	change_amount REAL NOT NULL,
	change_percent REAL NOT NULL,
	currency TEXT NOT NULL DEFAULT 'USD',
	timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_products_last_checked ON products(last_checked ASC);
CREATE INDEX IF NOT EXISTS idx_price_history_user_product ON price_history(user_id, product_id);
`

type Store struct {
	db *sqlx.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Products() repositories.ProductRepository { return &productRepository{db: s.db} }
func (s *Store) Users() repositories.UserRepository       { return &userRepository{db: s.db} }
func (s *Store) History() repositories.HistoryRepository  { return &historyRepository{db: s.db} }

type productRepository struct {
	db *sqlx.DB
}

func scanProduct(rows *sqlx.Rows) (*models.Product, error) {
	var p models.Product
	var lastChecked sql.NullTime
	err := rows.Scan(&p.UserID, &p.ProductID, &p.ProductURL, &p.Title,
		&p.CurrentPrice, &p.OriginalPrice, &p.Currency, &p.ImageURL,
		&p.Country, &p.DateAdded, &lastChecked)
	if err != nil {
		return nil, err
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		p.LastChecked = &t
	}
	return &p, nil
}

const productColumns = `user_id, product_id, product_url, title, current_price,
	original_price, currency, image_url, country, date_added, last_checked`

func (r *productRepository) Upsert(ctx context.Context, product *models.Product) error {
	if product.DateAdded.IsZero() {
		product.DateAdded = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (user_id, product_id, product_url, title, current_price,
			original_price, currency, image_url, country, date_added)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			product_url = excluded.product_url,
			title = excluded.title,
			current_price = excluded.current_price,
			original_price = excluded.original_price,
			currency = excluded.currency,
			image_url = excluded.image_url,
			country = excluded.country`,
		product.UserID, product.ProductID, product.ProductURL, product.Title,
		product.CurrentPrice, product.OriginalPrice, product.Currency,
		product.ImageURL, product.Country, product.DateAdded)
	return err
}

func (r *productRepository) GetByID(ctx context.Context, userID, productID string) (*models.Product, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE user_id = ? AND product_id = ?`,
		userID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanProduct(rows)
}

func (r *productRepository) GetByUser(ctx context.Context, userID string) ([]*models.Product, error) {
	return r.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE user_id = ? ORDER BY date_added ASC`,
		userID)
}

func (r *productRepository) GetProductsToCheck(ctx context.Context, limit int) ([]*models.Product, error) {
	// SQLite sorts NULL first on ASC, which is exactly the fairness order.
	return r.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY last_checked ASC LIMIT ?`,
		limit)
}

func (r *productRepository) queryProducts(ctx context.Context, query string, args ...interface{}) ([]*models.Product, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *productRepository) UpdatePrice(ctx context.Context, userID, productID string, newPrice float64, country, productURL string) error {
	query := `UPDATE products SET current_price = ?, last_checked = ?`
	args := []interface{}{newPrice, time.Now()}

	if country != "" {
		query += `, country = ?`
		args = append(args, country)
	}
	if productURL != "" {
		query += `, product_url = ?`
		args = append(args, productURL)
	}
	query += ` WHERE user_id = ? AND product_id = ?`
	args = append(args, userID, productID)

	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *productRepository) UpdateCountryForUser(ctx context.Context, userID, country string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET country = ? WHERE user_id = ?`, country, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *productRepository) Delete(ctx context.Context, userID, productID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM products WHERE user_id = ? AND product_id = ?`, userID, productID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *productRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM products WHERE user_id = ?`, userID)
	return count, err
}

type userRepository struct {
	db *sqlx.DB
}

func (r *userRepository) Save(ctx context.Context, user *models.User) error {
	if user.DateAdded.IsZero() {
		user.DateAdded = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, country, date_added)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			username = excluded.username,
			country = excluded.country`,
		user.UserID, user.Username, user.Country, user.DateAdded)
	return err
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT user_id, username, country, date_added, last_update_reminder,
			update_deadline, needs_update_response
		FROM users WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var u models.User
	var reminder, deadline sql.NullTime
	if err := rows.Scan(&u.UserID, &u.Username, &u.Country, &u.DateAdded,
		&reminder, &deadline, &u.NeedsUpdateResponse); err != nil {
		return nil, err
	}
	if reminder.Valid {
		t := reminder.Time
		u.LastUpdateReminder = &t
	}
	if deadline.Valid {
		t := deadline.Time
		u.UpdateDeadline = &t
	}
	return &u, nil
}

func (r *userRepository) GetCountry(ctx context.Context, userID string) (string, error) {
	var country string
	err := r.db.GetContext(ctx, &country,
		`SELECT country FROM users WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return country, err
}

func (r *userRepository) SetCountry(ctx context.Context, userID, country string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET country = ? WHERE user_id = ?`, country, userID)
	return err
}

func (r *userRepository) GetUsersNeedingReminder(ctx context.Context, staleness time.Duration) ([]string, error) {
	var userIDs []string
	err := r.db.SelectContext(ctx, &userIDs, `
		SELECT u.user_id FROM users u
		WHERE (u.last_update_reminder IS NULL OR u.last_update_reminder < ?)
		AND EXISTS (SELECT 1 FROM products p WHERE p.user_id = u.user_id)`,
		time.Now().Add(-staleness))
	return userIDs, err
}

func (r *userRepository) GetUsersPastDeadline(ctx context.Context) ([]string, error) {
	var userIDs []string
	err := r.db.SelectContext(ctx, &userIDs, `
		SELECT user_id FROM users
		WHERE needs_update_response = 1
		AND update_deadline IS NOT NULL AND update_deadline < ?`,
		time.Now())
	return userIDs, err
}

func (r *userRepository) SetReminder(ctx context.Context, userID string, deadline time.Duration) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_update_reminder = ?, update_deadline = ?,
			needs_update_response = 1
		WHERE user_id = ?`,
		now, now.Add(deadline), userID)
	return err
}

func (r *userRepository) ClearReminder(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET needs_update_response = 0, update_deadline = NULL
		WHERE user_id = ?`, userID)
	return err
}

func (r *userRepository) DeleteAllUserData(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM price_history WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete price history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM products WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete products: %w", err)
	}
	return tx.Commit()
}

type historyRepository struct {
	db *sqlx.DB
}

func (r *historyRepository) Append(ctx context.Context, record *models.PriceHistory) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO price_history (user_id, product_id, title, old_price, new_price,
			change_amount, change_percent, currency, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.UserID, record.ProductID, record.Title, record.OldPrice,
		record.NewPrice, record.ChangeAmount, record.ChangePercent,
		record.Currency, record.Timestamp)
	return err
}

func (r *historyRepository) GetByProduct(ctx context.Context, userID, productID string, months int) ([]*models.PriceHistory, error) {
	query := `
		SELECT id, user_id, product_id, title, old_price, new_price, change_amount,
			change_percent, currency, timestamp
		FROM price_history WHERE user_id = ? AND product_id = ?`
	args := []interface{}{userID, productID}

	if months > 0 {
		query += ` AND timestamp > ?`
		args = append(args, time.Now().AddDate(0, -months, 0))
	}
	query += ` ORDER BY timestamp DESC`

	return r.queryHistory(ctx, query, args...)
}

func (r *historyRepository) GetAllByUser(ctx context.Context, userID string) ([]*models.PriceHistory, error) {
	return r.queryHistory(ctx, `
		SELECT id, user_id, product_id, title, old_price, new_price, change_amount,
			change_percent, currency, timestamp
		FROM price_history WHERE user_id = ? ORDER BY timestamp DESC`, userID)
}

func (r *historyRepository) queryHistory(ctx context.Context, query string, args ...interface{}) ([]*models.PriceHistory, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.PriceHistory
	for rows.Next() {
		var h models.PriceHistory
		if err := rows.Scan(&h.ID, &h.UserID, &h.ProductID, &h.Title,
			&h.OldPrice, &h.NewPrice, &h.ChangeAmount, &h.ChangePercent,
			&h.Currency, &h.Timestamp); err != nil {
			return nil, err
		}
		records = append(records, &h)
	}
	return records, rows.Err()
}
