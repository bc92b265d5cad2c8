package engagement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hadef-dev/pricewatch/pricewatch/database/models"
)

type fakeUsers struct {
	needingReminder []string
	pastDeadline    []string

	setReminderErr error

	reminders map[string]time.Duration
	cleared   []string
	deleted   []string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{reminders: map[string]time.Duration{}}
}

func (r *fakeUsers) Save(context.Context, *models.User) error { return nil }
func (r *fakeUsers) GetByID(context.Context, string) (*models.User, error) {
	return nil, nil
}
func (r *fakeUsers) GetCountry(context.Context, string) (string, error) { return "", nil }
func (r *fakeUsers) SetCountry(context.Context, string, string) error   { return nil }

func (r *fakeUsers) GetUsersNeedingReminder(context.Context, time.Duration) ([]string, error) {
	return r.needingReminder, nil
}

func (r *fakeUsers) GetUsersPastDeadline(context.Context) ([]string, error) {
	return r.pastDeadline, nil
}

func (r *fakeUsers) SetReminder(_ context.Context, userID string, deadline time.Duration) error {
	if r.setReminderErr != nil {
		return r.setReminderErr
	}
	r.reminders[userID] = deadline
	return nil
}

func (r *fakeUsers) ClearReminder(_ context.Context, userID string) error {
	r.cleared = append(r.cleared, userID)
	return nil
}

func (r *fakeUsers) DeleteAllUserData(_ context.Context, userID string) error {
	r.deleted = append(r.deleted, userID)
	return nil
}

type fakeProducts struct {
	counts map[string]int
}

func (r *fakeProducts) Upsert(context.Context, *models.Product) error { return nil }
func (r *fakeProducts) GetByID(context.Context, string, string) (*models.Product, error) {
	return nil, nil
}
func (r *fakeProducts) GetByUser(context.Context, string) ([]*models.Product, error) {
	return nil, nil
}
func (r *fakeProducts) GetProductsToCheck(context.Context, int) ([]*models.Product, error) {
	return nil, nil
}
func (r *fakeProducts) UpdatePrice(context.Context, string, string, float64, string, string) error {
	return nil
}
func (r *fakeProducts) UpdateCountryForUser(context.Context, string, string) (int64, error) {
	return 0, nil
}
func (r *fakeProducts) Delete(context.Context, string, string) (bool, error) { return false, nil }
func (r *fakeProducts) CountByUser(_ context.Context, userID string) (int, error) {
	return r.counts[userID], nil
}

type reminderCall struct {
	userID string
	count  int
	window time.Duration
}

type fakeLifecycleNotifier struct {
	reminders []reminderCall
	removals  []string
}

func (n *fakeLifecycleNotifier) NotifyUpdateReminder(_ context.Context, userID string, productCount int, window time.Duration) {
	n.reminders = append(n.reminders, reminderCall{userID, productCount, window})
}

func (n *fakeLifecycleNotifier) NotifyRemoval(_ context.Context, userID string) {
	n.removals = append(n.removals, userID)
}

func newTestManager(users *fakeUsers, products *fakeProducts, notifier *fakeLifecycleNotifier) *Manager {
	m := NewManager(users, products, notifier, ManagerConfig{
		ReminderAfter:  30 * 24 * time.Hour,
		ResponseWindow: 3 * 24 * time.Hour,
	})
	m.sleep = func(time.Duration) {}
	return m
}

func TestRunSweep_RemindsOnlyUsersWithProducts(t *testing.T) {
	users := newFakeUsers()
	users.needingReminder = []string{"user-with-products", "user-without-products"}
	products := &fakeProducts{counts: map[string]int{"user-with-products": 4}}
	notifier := &fakeLifecycleNotifier{}

	m := newTestManager(users, products, notifier)
	m.RunSweep(context.Background())

	require.Len(t, notifier.reminders, 1)
	assert.Equal(t, "user-with-products", notifier.reminders[0].userID)
	assert.Equal(t, 4, notifier.reminders[0].count)
	assert.Equal(t, 3*24*time.Hour, notifier.reminders[0].window)

	assert.Contains(t, users.reminders, "user-with-products")
	assert.NotContains(t, users.reminders, "user-without-products",
		"a user with no products must keep a clean reminder state")
}

func TestRunSweep_ReminderFlagsSetBeforeNotify(t *testing.T) {
	users := newFakeUsers()
	users.needingReminder = []string{"user-1"}
	users.setReminderErr = fmt.Errorf("db unavailable")
	products := &fakeProducts{counts: map[string]int{"user-1": 1}}
	notifier := &fakeLifecycleNotifier{}

	m := newTestManager(users, products, notifier)
	m.RunSweep(context.Background())

	assert.Empty(t, notifier.reminders,
		"no reminder may go out unless the deadline is durably recorded first")
}

func TestRunSweep_DeadlinePurgesAndResets(t *testing.T) {
	users := newFakeUsers()
	users.pastDeadline = []string{"expired-user"}
	products := &fakeProducts{counts: map[string]int{}}
	notifier := &fakeLifecycleNotifier{}

	m := newTestManager(users, products, notifier)
	m.RunSweep(context.Background())

	assert.Equal(t, []string{"expired-user"}, notifier.removals)
	assert.Equal(t, []string{"expired-user"}, users.deleted)
	assert.Equal(t, []string{"expired-user"}, users.cleared,
		"state returns to the active baseline after the purge")
}

func TestRespondContinue_ClearsReminderSynchronously(t *testing.T) {
	users := newFakeUsers()
	m := newTestManager(users, &fakeProducts{counts: map[string]int{}}, &fakeLifecycleNotifier{})

	require.NoError(t, m.RespondContinue(context.Background(), "user-1"))
	assert.Equal(t, []string{"user-1"}, users.cleared)
}
