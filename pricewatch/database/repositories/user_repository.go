package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hadef-dev/pricewatch/pricewatch/database/models"
	"github.com/uptrace/bun"
)

type UserRepository interface {
	Save(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetCountry(ctx context.Context, userID string) (string, error)
	SetCountry(ctx context.Context, userID, country string) error
	// GetUsersNeedingReminder returns users owning at least one product whose
	// last reminder is unset or older than staleness.
	GetUsersNeedingReminder(ctx context.Context, staleness time.Duration) ([]string, error)
	GetUsersPastDeadline(ctx context.Context) ([]string, error)
	SetReminder(ctx context.Context, userID string, deadline time.Duration) error
	ClearReminder(ctx context.Context, userID string) error
	DeleteAllUserData(ctx context.Context, userID string) error
}

type userRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Save(ctx context.Context, user *models.User) error {
	if user.DateAdded.IsZero() {
		user.DateAdded = time.Now()
	}
	_, err := r.db.NewInsert().
		Model(user).
		On("CONFLICT (user_id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("country = EXCLUDED.country").
		Exec(ctx)
	return err
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Warn("User not found in database",
				slog.String("type", "db"),
				slog.String("operation", "GetByID"),
				slog.String("user_id", userID))
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepository) GetCountry(ctx context.Context, userID string) (string, error) {
	var country string
	err := r.db.NewSelect().
		Model((*models.User)(nil)).
		Column("country").
		Where("user_id = ?", userID).
		Scan(ctx, &country)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return country, nil
}

func (r *userRepository) SetCountry(ctx context.Context, userID, country string) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("country = ?", country).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

func (r *userRepository) GetUsersNeedingReminder(ctx context.Context, staleness time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-staleness)

	var userIDs []string
	err := r.db.NewSelect().
		Model((*models.User)(nil)).
		Column("u.user_id").
		Where("u.last_update_reminder IS NULL OR u.last_update_reminder < ?", cutoff).
		Where("EXISTS (SELECT 1 FROM products p WHERE p.user_id = u.user_id)").
		Scan(ctx, &userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to select users needing reminder: %w", err)
	}
	return userIDs, nil
}

func (r *userRepository) GetUsersPastDeadline(ctx context.Context) ([]string, error) {
	var userIDs []string
	err := r.db.NewSelect().
		Model((*models.User)(nil)).
		Column("user_id").
		Where("needs_update_response = TRUE").
		Where("update_deadline IS NOT NULL AND update_deadline < ?", time.Now()).
		Scan(ctx, &userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to select users past deadline: %w", err)
	}
	return userIDs, nil
}

func (r *userRepository) SetReminder(ctx context.Context, userID string, deadline time.Duration) error {
	now := time.Now()
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("last_update_reminder = ?", now).
		Set("update_deadline = ?", now.Add(deadline)).
		Set("needs_update_response = TRUE").
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

func (r *userRepository) ClearReminder(ctx context.Context, userID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("needs_update_response = FALSE").
		Set("update_deadline = NULL").
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

// DeleteAllUserData removes the user's products and price history in one
// transaction. The user row itself stays so they can start tracking again.
func (r *userRepository) DeleteAllUserData(ctx context.Context, userID string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.PriceHistory)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete price history: %w", err)
		}
		if _, err := tx.NewDelete().
			Model((*models.Product)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete products: %w", err)
		}
		return nil
	})
}
