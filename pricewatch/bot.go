package pricewatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"

	"github.com/hadef-dev/pricewatch/pricewatch/aliexpress"
	"github.com/hadef-dev/pricewatch/pricewatch/database"
	"github.com/hadef-dev/pricewatch/pricewatch/database/repositories"
	"github.com/hadef-dev/pricewatch/pricewatch/engagement"
	"github.com/hadef-dev/pricewatch/pricewatch/monitor"
	"github.com/hadef-dev/pricewatch/pricewatch/notifications"
	"github.com/hadef-dev/pricewatch/pricewatch/services"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
	}
}

type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string

	// DB is set only when the postgres driver is active.
	DB *database.DB

	ProductRepository repositories.ProductRepository
	UserRepository    repositories.UserRepository
	HistoryRepository repositories.HistoryRepository

	API           *aliexpress.Client
	Scheduler     *monitor.Scheduler
	Engagement    *engagement.Manager
	Dispatcher    *notifications.Dispatcher
	ImageService  services.ImageStore
	SearchService *services.ProductSearchService
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds, gateway.IntentDirectMessages)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	if b.Dispatcher != nil {
		b.Dispatcher.SetClient(client)
	}
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("PriceWatch Bot is now ready",
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithWatchingActivity("AliExpress prices"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.Any("error", err))
	}
}

// DefaultCountry returns the ship-to country applied when a user has not set
// one.
func (b *Bot) DefaultCountry() string {
	if b.Cfg.Monitor.DefaultCountry != "" {
		return b.Cfg.Monitor.DefaultCountry
	}
	return "US"
}
