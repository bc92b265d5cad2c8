package monitor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/hadef-dev/pricewatch/pricewatch/aliexpress"
	"github.com/hadef-dev/pricewatch/pricewatch/database/models"
	"github.com/hadef-dev/pricewatch/pricewatch/database/repositories"
)

// Fetcher is the slice of the API client the scheduler drives.
type Fetcher interface {
	FetchDetails(ctx context.Context, productID, country string) (*aliexpress.ProductSnapshot, error)
	GenerateAffiliateLink(ctx context.Context, productURL, country string) string
}

// Notifier delivers price-change messages. Implementations are best-effort
// and must never return delivery problems to the scheduler.
type Notifier interface {
	NotifyPriceChange(ctx context.Context, change *PriceChange)
}

// PriceChange carries everything the dispatcher needs to render one
// notification.
type PriceChange struct {
	UserID        string
	ProductID     string
	Title         string
	OldPrice      float64
	NewPrice      float64
	Delta         float64
	Percent       float64
	Currency      string
	AffiliateLink string
	ImageURL      string
}

// CycleStats summarizes one monitoring cycle. Logging only; nothing branches
// on it.
type CycleStats struct {
	StartTime time.Time
	Selected  int
	Checked   int32
	Changed   int32
	Errors    int32
}

type SchedulerConfig struct {
	Interval        time.Duration
	ProductsPerRun  int
	BatchSize       int
	InterBatchDelay time.Duration
}

// Scheduler drives the periodic monitoring cycles: select the stalest
// products, check them in bounded-concurrency batches, persist outcomes and
// hand changes to the notifier.
type Scheduler struct {
	products repositories.ProductRepository
	users    repositories.UserRepository
	history  repositories.HistoryRepository
	api      Fetcher
	notifier Notifier
	cfg      SchedulerConfig

	isRunning atomic.Bool

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func NewScheduler(
	products repositories.ProductRepository,
	users repositories.UserRepository,
	history repositories.HistoryRepository,
	api Fetcher,
	notifier Notifier,
	cfg SchedulerConfig,
) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.ProductsPerRun <= 0 {
		cfg.ProductsPerRun = 100
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.InterBatchDelay < 0 {
		cfg.InterBatchDelay = 0
	}

	return &Scheduler{
		products: products,
		users:    users,
		history:  history,
		api:      api,
		notifier: notifier,
		cfg:      cfg,
		sleep:    time.Sleep,
	}
}

// Start launches the ticker loop. It returns immediately; the loop stops when
// ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.RunCycle(ctx); err != nil {
					slog.Error("Monitoring cycle failed",
						slog.String("type", "sys"),
						slog.Any("error", err))
				}
			}
		}
	}()
}

// RunCycle executes one full select/batch/drain pass. A cycle that would
// overlap a still-draining predecessor is skipped rather than queued.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	if !s.isRunning.CompareAndSwap(false, true) {
		slog.Warn("Previous monitoring cycle still draining, skipping",
			slog.String("type", "sys"))
		return nil
	}
	defer s.isRunning.Store(false)

	cycleID := xid.New().String()

	selected, err := s.products.GetProductsToCheck(ctx, s.cfg.ProductsPerRun)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		slog.Debug("No products to check",
			slog.String("type", "sys"),
			slog.String("cycle_id", cycleID))
		return nil
	}

	stats := &CycleStats{
		StartTime: time.Now(),
		Selected:  len(selected),
	}

	slog.Info("Monitoring cycle started",
		slog.String("type", "sys"),
		slog.String("cycle_id", cycleID),
		slog.Int("products", len(selected)))

	for i := 0; i < len(selected); i += s.cfg.BatchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := i + s.cfg.BatchSize
		if end > len(selected) {
			end = len(selected)
		}

		s.processBatch(ctx, selected[i:end], stats)

		if end < len(selected) && s.cfg.InterBatchDelay > 0 {
			s.sleep(s.cfg.InterBatchDelay)
		}
	}

	slog.Info("Monitoring cycle completed",
		slog.String("type", "sys"),
		slog.String("cycle_id", cycleID),
		slog.Int("checked", int(atomic.LoadInt32(&stats.Checked))),
		slog.Int("changed", int(atomic.LoadInt32(&stats.Changed))),
		slog.Int("errors", int(atomic.LoadInt32(&stats.Errors))),
		slog.Duration("took", time.Since(stats.StartTime)))

	return nil
}

// processBatch checks one chunk of products concurrently and joins on the
// whole chunk before returning. A failing product never takes its siblings
// down with it.
func (s *Scheduler) processBatch(ctx context.Context, batch []*models.Product, stats *CycleStats) {
	g := new(errgroup.Group)
	for _, product := range batch {
		product := product
		g.Go(func() error {
			changed, err := s.checkProduct(ctx, product)
			if err != nil {
				atomic.AddInt32(&stats.Errors, 1)
				return nil
			}
			atomic.AddInt32(&stats.Checked, 1)
			if changed {
				atomic.AddInt32(&stats.Changed, 1)
			}
			return nil
		})
	}
	g.Wait()
}

// checkProduct performs one price check end to end. All failures stay inside
// this product's check: the stale price is kept, last_checked advances, no
// error propagates beyond the returned value.
func (s *Scheduler) checkProduct(ctx context.Context, product *models.Product) (bool, error) {
	// Locale preference may have changed since the product row was written.
	country := product.Country
	if userCountry, err := s.users.GetCountry(ctx, product.UserID); err == nil && userCountry != "" {
		country = userCountry
	}

	snapshot, err := s.api.FetchDetails(ctx, product.ProductID, country)
	if err != nil {
		// Keep the stale price, only advance last_checked. The client has
		// already spent the retry budget.
		if updateErr := s.products.UpdatePrice(ctx, product.UserID, product.ProductID, product.CurrentPrice, country, ""); updateErr != nil {
			slog.Error("Failed to stamp last_checked after failed check",
				slog.String("type", "db"),
				slog.String("product_id", product.ProductID),
				slog.Any("error", updateErr))
		}
		slog.Warn("Product check failed",
			slog.String("type", "api"),
			slog.String("product_id", product.ProductID),
			slog.String("user_id", product.UserID),
			slog.Any("error", err))
		return false, err
	}

	oldPrice := product.CurrentPrice

	if err := s.products.UpdatePrice(ctx, product.UserID, product.ProductID, snapshot.Price, country, snapshot.ProductURL); err != nil {
		slog.Error("Failed to persist price update",
			slog.String("type", "db"),
			slog.String("product_id", product.ProductID),
			slog.Any("error", err))
		return false, err
	}

	if !IsChange(oldPrice, snapshot.Price) {
		return false, nil
	}

	delta, percent := Change(oldPrice, snapshot.Price)

	record := &models.PriceHistory{
		UserID:        product.UserID,
		ProductID:     product.ProductID,
		Title:         product.Title,
		OldPrice:      oldPrice,
		NewPrice:      snapshot.Price,
		ChangeAmount:  delta,
		ChangePercent: percent,
		Currency:      product.Currency,
		Timestamp:     time.Now(),
	}
	if record.Currency == "" {
		record.Currency = snapshot.Currency
	}
	if err := s.history.Append(ctx, record); err != nil {
		slog.Error("Failed to append price history",
			slog.String("type", "db"),
			slog.String("product_id", product.ProductID),
			slog.Any("error", err))
		return false, err
	}

	affiliateLink := s.api.GenerateAffiliateLink(ctx, snapshot.ProductURL, country)

	imageURL := snapshot.ImageURL
	if imageURL == "" {
		imageURL = product.ImageURL
	}

	s.notifier.NotifyPriceChange(ctx, &PriceChange{
		UserID:        product.UserID,
		ProductID:     product.ProductID,
		Title:         product.Title,
		OldPrice:      oldPrice,
		NewPrice:      snapshot.Price,
		Delta:         delta,
		Percent:       percent,
		Currency:      record.Currency,
		AffiliateLink: affiliateLink,
		ImageURL:      imageURL,
	})

	return true, nil
}
