package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"cryptoCrossBot/config"
	"cryptoCrossBot/internal/adapters/exchangeclient"
	"cryptoCrossBot/internal/adapters/logger"
	"cryptoCrossBot/internal/adapters/sqlite"
	"cryptoCrossBot/internal/adapters/talib"
	"cryptoCrossBot/internal/adapters/telegram"
	"cryptoCrossBot/internal/alert"
	"cryptoCrossBot/internal/app"
	"cryptoCrossBot/internal/executor"
	"cryptoCrossBot/internal/position"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Exchange Client
	exchange, err := exchangeclient.New(exchangeclient.Config{
		APIKey:    cfg.APIKey,
		SecretKey: cfg.SecretKey,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.HTTPTimeout,
		SymbolTTL: cfg.SymbolCacheTTL,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize exchange client")
		log.Fatalf("FATAL: Failed to initialize exchange client: %v", err)
	}
	appLogger.Info(context.Background(), "Exchange client initialized")

	// 5. Initialize Telegram Notifier
	notifier, err := telegram.New(telegram.Config{
		BotToken: cfg.TelegramBotToken,
		ChatID:   cfg.TelegramChatID,
		Logger:   appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Telegram notifier")
		log.Fatalf("FATAL: Failed to initialize Telegram notifier: %v", err)
	}
	appLogger.Info(context.Background(), "Telegram notifier initialized")

	// 6. Initialize Signal Evaluator
	evaluator, err := talib.New(talib.Config{
		ShortPeriod: cfg.ShortMAPeriod,
		LongPeriod:  cfg.LongMAPeriod,
	}, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize signal evaluator")
		log.Fatalf("FATAL: Failed to initialize signal evaluator: %v", err)
	}
	appLogger.Info(context.Background(), "Signal evaluator initialized")

	// 7. Initialize Executor, Tracker and Alert Dispatcher
	exec, err := executor.New(exchange, appLogger, executor.Config{
		FeeFactor:      cfg.FeeFactor,
		MaxSellRetries: cfg.MaxSellRetries,
		SellReduction:  cfg.SellRetryReduction,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize order executor")
		log.Fatalf("FATAL: Failed to initialize order executor: %v", err)
	}

	alerts, err := alert.NewDispatcher(notifier, cfg.Cooldown, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize alert dispatcher")
		log.Fatalf("FATAL: Failed to initialize alert dispatcher: %v", err)
	}

	tracker := position.NewTracker()

	// 8. Initialize Application Service
	tradingService, err := app.NewTradingService(
		cfg,
		appLogger,
		exchange,
		exec,
		tracker,
		alerts,
		notifier,
		evaluator,
		repo,
	)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}

	// 9. Run until a shutdown signal arrives; the cancel stops the Telegram
	// poll loop once the service returns.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifier.Start(ctx)

	if err := tradingService.Start(ctx); err != nil {
		appLogger.Error(context.Background(), err, "Trading service terminated with error")
		log.Fatalf("FATAL: Trading service terminated: %v", err)
	}
	appLogger.Info(context.Background(), "Trading service shut down cleanly")
}
