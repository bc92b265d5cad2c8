// Package engagement runs the per-user reminder lifecycle: users who keep
// consuming monitoring capacity are periodically asked whether they still
// care, and the tracked products of those who never answer are reclaimed.
package engagement

import (
	"context"
	"log/slog"
	"time"

	"github.com/hadef-dev/pricewatch/pricewatch/database/repositories"
)

// Notifier is the slice of the dispatcher the lifecycle needs. Both calls are
// best-effort; implementations swallow delivery failures.
type Notifier interface {
	NotifyUpdateReminder(ctx context.Context, userID string, productCount int, window time.Duration)
	NotifyRemoval(ctx context.Context, userID string)
}

type ManagerConfig struct {
	SweepInterval  time.Duration
	ReminderAfter  time.Duration
	ResponseWindow time.Duration
}

type Manager struct {
	users    repositories.UserRepository
	products repositories.ProductRepository
	notifier Notifier
	cfg      ManagerConfig

	shutdown chan struct{}

	// pause between outgoing reminders, swapped out in tests
	sleep func(time.Duration)
}

func NewManager(
	users repositories.UserRepository,
	products repositories.ProductRepository,
	notifier Notifier,
	cfg ManagerConfig,
) *Manager {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 24 * time.Hour
	}
	if cfg.ReminderAfter <= 0 {
		cfg.ReminderAfter = 30 * 24 * time.Hour
	}
	if cfg.ResponseWindow <= 0 {
		cfg.ResponseWindow = 3 * 24 * time.Hour
	}

	return &Manager{
		users:    users,
		products: products,
		notifier: notifier,
		cfg:      cfg,
		shutdown: make(chan struct{}),
		sleep:    time.Sleep,
	}
}

// Start launches the sweep ticker. The loop stops on Shutdown or when ctx is
// cancelled.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
				m.RunSweep(sweepCtx)
				cancel()
			case <-m.shutdown:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) Shutdown() {
	close(m.shutdown)
}

// RunSweep executes one reminder pass followed by one deadline pass. A failed
// reminder never prevents the deadline sweep from running.
func (m *Manager) RunSweep(ctx context.Context) {
	slog.Info("Engagement sweep started", slog.String("type", "sys"))

	m.sendReminders(ctx)
	m.enforceDeadlines(ctx)
}

func (m *Manager) sendReminders(ctx context.Context) {
	userIDs, err := m.users.GetUsersNeedingReminder(ctx, m.cfg.ReminderAfter)
	if err != nil {
		slog.Error("Failed to select users needing reminder",
			slog.String("type", "db"),
			slog.Any("error", err))
		return
	}

	for _, userID := range userIDs {
		count, err := m.products.CountByUser(ctx, userID)
		if err != nil {
			slog.Error("Failed to count products for reminder",
				slog.String("type", "db"),
				slog.String("user_id", userID),
				slog.Any("error", err))
			continue
		}
		if count == 0 {
			continue
		}

		if err := m.users.SetReminder(ctx, userID, m.cfg.ResponseWindow); err != nil {
			slog.Error("Failed to set reminder flags",
				slog.String("type", "db"),
				slog.String("user_id", userID),
				slog.Any("error", err))
			continue
		}

		m.notifier.NotifyUpdateReminder(ctx, userID, count, m.cfg.ResponseWindow)

		slog.Info("Update reminder sent",
			slog.String("type", "sys"),
			slog.String("user_id", userID),
			slog.Int("products", count))

		// Pace outgoing DMs so a large sweep does not burst the gateway.
		m.sleep(2 * time.Second)
	}
}

func (m *Manager) enforceDeadlines(ctx context.Context) {
	userIDs, err := m.users.GetUsersPastDeadline(ctx)
	if err != nil {
		slog.Error("Failed to select users past deadline",
			slog.String("type", "db"),
			slog.Any("error", err))
		return
	}

	for _, userID := range userIDs {
		slog.Info("Reclaiming tracked products, deadline passed",
			slog.String("type", "sys"),
			slog.String("user_id", userID))

		m.notifier.NotifyRemoval(ctx, userID)

		if err := m.users.DeleteAllUserData(ctx, userID); err != nil {
			slog.Error("Failed to delete user data",
				slog.String("type", "db"),
				slog.String("user_id", userID),
				slog.Any("error", err))
			continue
		}

		// Back to the Active baseline: the user can start tracking again.
		if err := m.users.ClearReminder(ctx, userID); err != nil {
			slog.Error("Failed to reset reminder flags",
				slog.String("type", "db"),
				slog.String("user_id", userID),
				slog.Any("error", err))
		}
	}
}

// RespondContinue handles an explicit "keep monitoring" response. It clears
// the reminder flags synchronously so the user is excluded from the next
// deadline sweep no matter when it runs.
func (m *Manager) RespondContinue(ctx context.Context, userID string) error {
	return m.users.ClearReminder(ctx, userID)
}
