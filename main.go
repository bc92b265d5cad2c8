package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"

	"github.com/hadef-dev/pricewatch/pricewatch"
	"github.com/hadef-dev/pricewatch/pricewatch/aliexpress"
	"github.com/hadef-dev/pricewatch/pricewatch/commands"
	"github.com/hadef-dev/pricewatch/pricewatch/database"
	"github.com/hadef-dev/pricewatch/pricewatch/database/mongodb"
	"github.com/hadef-dev/pricewatch/pricewatch/database/repositories"
	"github.com/hadef-dev/pricewatch/pricewatch/database/sqlite"
	"github.com/hadef-dev/pricewatch/pricewatch/engagement"
	"github.com/hadef-dev/pricewatch/pricewatch/handlers"
	"github.com/hadef-dev/pricewatch/pricewatch/logger"
	"github.com/hadef-dev/pricewatch/pricewatch/monitor"
	"github.com/hadef-dev/pricewatch/pricewatch/notifications"
	"github.com/hadef-dev/pricewatch/pricewatch/services"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	logger.LogSystem("Starting PriceWatch Bot",
		slog.String("version", version),
		slog.String("commit", commit))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	runCycleOnStart := flag.Bool("run-cycle", false, "Run one monitoring cycle immediately on startup")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := pricewatch.LoadConfig(*path)
	if err != nil {
		logger.LogError("Failed to load configuration", err)
		os.Exit(-1)
	}
	logger.LogSystem("Configuration loaded successfully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	b := pricewatch.New(*cfg, version, commit)

	storeCleanup, err := setupStore(ctx, b, cfg)
	if err != nil {
		logger.LogError("Storage initialization failed", err,
			slog.String("driver", cfg.DB.Driver))
		os.Exit(-1)
	}
	defer storeCleanup()

	if cfg.Spaces.Enabled() {
		imageService, err := services.NewImageService(
			cfg.Spaces.Key,
			cfg.Spaces.Secret,
			cfg.Spaces.Region,
			cfg.Spaces.Bucket,
			cfg.Spaces.ImageRoot,
		)
		if err != nil {
			logger.LogError("Failed to initialize image mirror", err)
			os.Exit(-1)
		}
		b.ImageService = imageService
	}

	b.SearchService = services.NewProductSearchService()
	b.API = aliexpress.New(cfg.AliExpress.ClientConfig())
	b.Dispatcher = notifications.NewDispatcher(nil, b.ImageService)

	b.Scheduler = monitor.NewScheduler(
		b.ProductRepository,
		b.UserRepository,
		b.HistoryRepository,
		b.API,
		b.Dispatcher,
		cfg.Monitor.SchedulerConfig(),
	)
	b.Engagement = engagement.NewManager(
		b.UserRepository,
		b.ProductRepository,
		b.Dispatcher,
		cfg.Engagement.ManagerConfig(),
	)

	h := handler.New()

	h.Command("/start", handlers.WrapWithLogging("start", commands.StartHandler(b)))
	h.Command("/track", handlers.WrapWithLogging("track", commands.TrackHandler(b)))
	h.Command("/products", handlers.WrapWithLogging("products", commands.ProductsHandler(b)))
	h.Command("/untrack", handlers.WrapWithLogging("untrack", commands.UntrackHandler(b)))
	h.Command("/history", handlers.WrapWithLogging("history", commands.HistoryHandler(b)))
	h.Command("/country", handlers.WrapWithLogging("country", commands.CountryHandler(b)))
	h.Command("/help", handlers.WrapWithLogging("help", commands.HelpHandler(b)))
	h.Command("/version", commands.VersionHandler(b))

	h.Component(notifications.ComponentContinue, handlers.WrapComponentWithLogging("update-continue", commands.ContinueHandler(b)))
	h.Component(notifications.ComponentAdd, handlers.WrapComponentWithLogging("add-product", commands.AddProductHandler(b)))
	h.Component(notifications.ComponentManage, handlers.WrapComponentWithLogging("manage-products", commands.ManageProductsHandler(b)))
	h.Component(notifications.ComponentHistory, handlers.WrapComponentWithLogging("view-history", commands.ViewHistoryHandler(b)))
	h.Component("/delete/", handlers.WrapComponentWithLogging("delete-product", commands.UntrackButtonHandler(b)))

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("error_details", fmt.Sprintf("%+v", err)),
			slog.String("component", "bot_setup"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds),
		)
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err),
				slog.String("component", "command_sync"),
				slog.String("status", "failed"),
			)
		}
	}

	gatewayCtx, gatewayCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gatewayCancel()
	if err = b.Client.OpenGateway(gatewayCtx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("component", "gateway"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}

	engineCtx, engineCancel := context.WithCancel(context.Background())
	defer engineCancel()

	b.Scheduler.Start(engineCtx)
	b.Engagement.Start(engineCtx)
	logger.LogSystem("Monitoring engine started",
		slog.String("driver", cfg.DB.Driver))

	if *runCycleOnStart {
		go func() {
			if err := b.Scheduler.RunCycle(engineCtx); err != nil {
				slog.Error("Startup monitoring cycle failed",
					slog.String("type", "sys"),
					slog.Any("error", err))
			}
		}()
	}

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	logger.LogSystem("Shutting down bot...")
	b.Engagement.Shutdown()
}

// setupStore connects the configured storage backend and hangs its
// repositories on the bot. The returned func closes the backend.
func setupStore(ctx context.Context, b *pricewatch.Bot, cfg *pricewatch.Config) (func(), error) {
	start := time.Now()

	switch cfg.DB.Driver {
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		b.ProductRepository = store.Products()
		b.UserRepository = store.Users()
		b.HistoryRepository = store.History()

		slog.Info("SQLite store opened",
			slog.String("path", cfg.SQLite.Path),
			slog.Duration("took", time.Since(start)))
		return func() { store.Close() }, nil

	case "mongodb":
		store, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		b.ProductRepository = store.Products()
		b.UserRepository = store.Users()
		b.HistoryRepository = store.History()

		slog.Info("MongoDB store connected",
			slog.String("database", cfg.Mongo.Database),
			slog.Duration("took", time.Since(start)))
		return func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			store.Close(ctx)
		}, nil

	case "postgres", "":
		db, err := database.New(ctx, cfg.DB.DBConfig)
		if err != nil {
			return nil, err
		}
		if err := db.InitializeSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		b.DB = db
		b.ProductRepository = repositories.NewProductRepository(db.BunDB())
		b.UserRepository = repositories.NewUserRepository(db.BunDB())
		b.HistoryRepository = repositories.NewHistoryRepository(db.BunDB())

		slog.Info("Database connected successfully",
			slog.String("database", cfg.DB.Database),
			slog.Duration("took", time.Since(start)))
		return db.Close, nil

	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DB.Driver)
	}
}
