package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cryptoCrossBot/internal/adapters/logger"
)

// Config holds all application configuration.
type Config struct {
	// Exchange API
	APIKey    string
	SecretKey string
	BaseURL   string

	// Trading Parameters
	Symbols            []string // Symbols to scan, e.g. ["BTCUSDT", "ETHUSDT"]
	NotionalPerTrade   float64  // Quote-asset amount per entry (clamped to exchange minimum)
	FeeFactor          float64  // Fill-estimate adjustment, e.g. 0.995
	MaxSellRetries     int      // Total SELL attempts before permanent failure
	SellRetryReduction float64  // Fractional quantity reduction per retry, e.g. 0.0015
	ConfirmBeforeEntry bool     // Prompt via chat before entering instead of entering autonomously
	TakeProfitPct      float64  // Paired limit exit target, e.g. 0.01 for 1%

	// Scheduler
	PollInterval time.Duration
	Cooldown     time.Duration // Alert debounce window per symbol

	// Signal Parameters
	ShortMAPeriod int
	LongMAPeriod  int
	KlineInterval string
	KlineLimit    int

	// Telegram
	TelegramBotToken string
	TelegramChatID   int64

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel

	// Connection Settings
	HTTPTimeout    time.Duration
	SymbolCacheTTL time.Duration
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Exchange API
	cfg.APIKey = getEnv("EXCHANGE_API_KEY", "")
	cfg.SecretKey = getEnv("EXCHANGE_API_SECRET", "")
	cfg.BaseURL = getEnv("EXCHANGE_BASE_URL", "")

	if cfg.APIKey == "" {
		errs = append(errs, "EXCHANGE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "EXCHANGE_API_SECRET must be set")
	}
	if cfg.BaseURL == "" {
		errs = append(errs, "EXCHANGE_BASE_URL must be set")
	}

	// Trading Parameters
	symbolsStr := getEnv("SYMBOLS", "BTCUSDT")
	for _, s := range strings.Split(symbolsStr, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			cfg.Symbols = append(cfg.Symbols, s)
		}
	}
	if len(cfg.Symbols) == 0 {
		errs = append(errs, "SYMBOLS must list at least one symbol")
	}

	cfg.NotionalPerTrade, err = getEnvAsFloatRequired("NOTIONAL_PER_TRADE", 50.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid NOTIONAL_PER_TRADE: %v", err))
	} else if cfg.NotionalPerTrade <= 0 {
		errs = append(errs, "NOTIONAL_PER_TRADE must be positive")
	}

	cfg.FeeFactor, err = getEnvAsFloatRequired("FEE_FACTOR", 0.995)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FEE_FACTOR: %v", err))
	} else if cfg.FeeFactor <= 0 || cfg.FeeFactor > 1.0 {
		errs = append(errs, "FEE_FACTOR must be between 0.0 (exclusive) and 1.0 (inclusive)")
	}

	cfg.MaxSellRetries, err = getEnvAsIntRequired("MAX_SELL_RETRIES", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_SELL_RETRIES: %v", err))
	} else if cfg.MaxSellRetries <= 0 {
		errs = append(errs, "MAX_SELL_RETRIES must be positive")
	}

	cfg.SellRetryReduction, err = getEnvAsFloatRequired("SELL_RETRY_REDUCTION", 0.0015)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SELL_RETRY_REDUCTION: %v", err))
	} else if cfg.SellRetryReduction <= 0 || cfg.SellRetryReduction >= 1.0 {
		errs = append(errs, "SELL_RETRY_REDUCTION must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.ConfirmBeforeEntry = getEnvAsBool("CONFIRM_BEFORE_ENTRY", true)

	cfg.TakeProfitPct, err = getEnvAsFloatRequired("TAKE_PROFIT_PCT", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKE_PROFIT_PCT: %v", err))
	} else if cfg.TakeProfitPct <= 0 {
		errs = append(errs, "TAKE_PROFIT_PCT must be positive")
	}

	// Scheduler
	pollSeconds := getEnvAsInt("POLL_INTERVAL_SECONDS", 60)
	if pollSeconds <= 0 {
		errs = append(errs, "POLL_INTERVAL_SECONDS must be positive")
	}
	cfg.PollInterval = time.Duration(pollSeconds) * time.Second

	cooldownMinutes := getEnvAsInt("COOLDOWN_MINUTES", 60)
	if cooldownMinutes <= 0 {
		errs = append(errs, "COOLDOWN_MINUTES must be positive")
	}
	cfg.Cooldown = time.Duration(cooldownMinutes) * time.Minute

	// Signal Parameters (using defaults if not set)
	cfg.ShortMAPeriod = getEnvAsInt("SHORT_MA_PERIOD", 20)
	cfg.LongMAPeriod = getEnvAsInt("LONG_MA_PERIOD", 50)
	cfg.KlineInterval = getEnv("KLINE_INTERVAL", "15m")
	cfg.KlineLimit = getEnvAsInt("KLINE_LIMIT", 100)

	if cfg.ShortMAPeriod <= 0 || cfg.LongMAPeriod <= 0 {
		errs = append(errs, "MA periods must be positive")
	}
	if cfg.ShortMAPeriod >= cfg.LongMAPeriod {
		errs = append(errs, "SHORT_MA_PERIOD must be less than LONG_MA_PERIOD")
	}
	if cfg.KlineLimit <= cfg.LongMAPeriod {
		errs = append(errs, "KLINE_LIMIT must exceed LONG_MA_PERIOD")
	}

	// Telegram
	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	if cfg.TelegramBotToken == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN must be set")
	}
	chatIDStr := getEnv("TELEGRAM_CHAT_ID", "")
	if chatIDStr == "" {
		errs = append(errs, "TELEGRAM_CHAT_ID must be set")
	} else {
		cfg.TelegramChatID, err = strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid TELEGRAM_CHAT_ID: %v", err))
		}
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/cross_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	// Connection Settings
	httpTimeoutSeconds := getEnvAsInt("HTTP_TIMEOUT_SECONDS", 10)
	if httpTimeoutSeconds <= 0 {
		errs = append(errs, "HTTP_TIMEOUT_SECONDS must be positive")
	}
	cfg.HTTPTimeout = time.Duration(httpTimeoutSeconds) * time.Second

	symbolTTLMinutes := getEnvAsInt("SYMBOL_CACHE_TTL_MINUTES", 30)
	if symbolTTLMinutes <= 0 {
		errs = append(errs, "SYMBOL_CACHE_TTL_MINUTES must be positive")
	}
	cfg.SymbolCacheTTL = time.Duration(symbolTTLMinutes) * time.Minute

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
