package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"

	"cryptoCrossBot/internal/domain"
	"cryptoCrossBot/internal/ports"
)

const (
	defaultFeeFactor      = 0.995
	defaultMaxSellRetries = 10
	defaultSellReduction  = 0.0015 // 0.15% shaved off the quantity per retry
)

// Executor turns trading intents into confirmed orders, handling the
// exchange's unit conventions (BUY sized in quote notional, SELL sized in
// base quantity), precision rules and the sell-retry policy. It holds the
// per-symbol idempotency guard as its only mutable state.
type Executor struct {
	exchange ports.ExchangeClient
	logger   ports.Logger

	feeFactor      float64
	maxSellRetries int
	sellReduction  float64
	minBackoff     time.Duration
	maxBackoff     time.Duration

	mu          sync.Mutex
	lastOrderID map[string]string

	sleep func(ctx context.Context, d time.Duration) error
}

// Config holds executor tuning parameters; zero values take the defaults.
type Config struct {
	FeeFactor      float64       // Fill-estimate adjustment (e.g., 0.995)
	MaxSellRetries int           // Total SELL attempts before permanent failure
	SellReduction  float64       // Fractional quantity reduction per retry (e.g., 0.0015)
	MinBackoff     time.Duration // First retry delay
	MaxBackoff     time.Duration // Retry delay ceiling
}

// EntryResult reports a confirmed entry: the exchange order id and the
// estimated filled quantity the engine will track.
type EntryResult struct {
	OrderID  string
	Quantity float64 // Fee-adjusted estimate, NOT an exchange-reported fill
	Notional float64 // Quote amount actually submitted (after clamping)
	AskPrice float64 // Best ask used for the estimate
}

// ExitResult reports a confirmed exit.
type ExitResult struct {
	OrderID  string
	Quantity float64 // Base quantity of the accepted SELL, after any reductions
	Attempts int
}

// New creates an executor.
func New(exchange ports.ExchangeClient, logger ports.Logger, cfg Config) (*Executor, error) {
	if exchange == nil || logger == nil {
		return nil, fmt.Errorf("exchange client and logger are required for executor")
	}
	e := &Executor{
		exchange:       exchange,
		logger:         logger,
		feeFactor:      cfg.FeeFactor,
		maxSellRetries: cfg.MaxSellRetries,
		sellReduction:  cfg.SellReduction,
		minBackoff:     cfg.MinBackoff,
		maxBackoff:     cfg.MaxBackoff,
		lastOrderID:    make(map[string]string),
	}
	if e.feeFactor <= 0 || e.feeFactor > 1 {
		e.feeFactor = defaultFeeFactor
	}
	if e.maxSellRetries <= 0 {
		e.maxSellRetries = defaultMaxSellRetries
	}
	if e.sellReduction <= 0 || e.sellReduction >= 1 {
		e.sellReduction = defaultSellReduction
	}
	if e.minBackoff <= 0 {
		e.minBackoff = 500 * time.Millisecond
	}
	if e.maxBackoff <= 0 {
		e.maxBackoff = 10 * time.Second
	}
	e.sleep = func(ctx context.Context, d time.Duration) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
	return e, nil
}

// formatDecimal truncates v to prec decimal digits. Truncation, not rounding:
// rounding up a quantity can push it above the available balance.
func formatDecimal(v float64, prec int) string {
	return decimal.NewFromFloat(v).Truncate(int32(prec)).String()
}

// symbolInfo fetches tradable metadata; a missing or untradable symbol is a
// configuration failure for the caller's cycle.
func (e *Executor) symbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	info, err := e.exchange.GetSymbolInfo(ctx, symbol)
	if err != nil {
		if errors.Is(err, ports.ErrSymbolNotFound) {
			return nil, fmt.Errorf("%w: no metadata for %s", ports.ErrConfiguration, symbol)
		}
		return nil, err
	}
	if !info.Tradable {
		return nil, fmt.Errorf("%w: %s is not tradable", ports.ErrConfiguration, symbol)
	}
	return info, nil
}

// guardOrderID applies the idempotency check: the exchange echoing the
// symbol's most recent recorded order id means a transport-level retry
// returned a stale cached response, not a new fill.
func (e *Executor) guardOrderID(symbol, orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastOrderID[symbol] == orderID && orderID != "" {
		return fmt.Errorf("%w: %s for %s", ports.ErrDuplicateOrder, orderID, symbol)
	}
	e.lastOrderID[symbol] = orderID
	return nil
}

// Enter submits a MARKET BUY for the given quote-asset notional target,
// clamped up to the symbol's minimum amount. The returned quantity is an
// estimate (notional / best ask, adjusted by the fee factor), not an
// exchange-reported fill; the protocol does not report fills on this call.
// BUY failures are not retried with a reduced amount.
func (e *Executor) Enter(ctx context.Context, symbol string, notionalTarget float64) (*EntryResult, error) {
	info, err := e.symbolInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}

	notional := notionalTarget
	if notional < info.MinAmount {
		e.logger.Info(ctx, "Clamping notional to exchange minimum", map[string]interface{}{
			"symbol": symbol, "target": notionalTarget, "minAmount": info.MinAmount,
		})
		notional = info.MinAmount
	}

	// An entry the account cannot fund must never reach the exchange.
	balance, err := e.exchange.GetBalance(ctx, info.QuoteAsset)
	if err != nil {
		return nil, fmt.Errorf("cannot check funds for %s: %w", symbol, err)
	}
	if balance < notional {
		return nil, fmt.Errorf("%w: entry needs %s %s, have %s",
			ports.ErrInsufficientFunds, formatDecimal(notional, info.QuotePrecision),
			info.QuoteAsset, formatDecimal(balance, info.QuotePrecision))
	}

	book, err := e.exchange.GetTopOfBook(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("cannot size entry for %s: %w", symbol, err)
	}
	if book.BestAsk <= 0 {
		return nil, fmt.Errorf("%w: zero ask price for %s", ports.ErrConfiguration, symbol)
	}

	estQuantity := notional / book.BestAsk * e.feeFactor
	if estQuantity < info.MinQuantity {
		return nil, fmt.Errorf("%w: estimated quantity %s below minimum %s for %s",
			ports.ErrOrderTooSmall, formatDecimal(estQuantity, info.BasePrecision),
			formatDecimal(info.MinQuantity, info.BasePrecision), symbol)
	}

	req := domain.OrderRequest{
		Symbol:        symbol,
		Side:          domain.Buy,
		Type:          domain.Market,
		Amount:        formatDecimal(notional, info.QuotePrecision),
		ClientOrderID: uuid.NewString(),
	}
	res, err := e.exchange.PlaceOrder(ctx, req)
	if err != nil {
		if errors.Is(err, ports.ErrExchangeRejected) {
			// Stale precision/amount metadata is one of the known causes;
			// force a refresh before the next cycle.
			e.exchange.InvalidateSymbolInfo(symbol)
		}
		return nil, fmt.Errorf("entry order failed for %s: %w", symbol, err)
	}
	if err := e.guardOrderID(symbol, res.OrderID); err != nil {
		return nil, err
	}

	e.logger.Info(ctx, "Entry order confirmed", map[string]interface{}{
		"symbol": symbol, "orderID": res.OrderID, "notional": notional, "estQuantity": estQuantity,
	})
	return &EntryResult{
		OrderID:  res.OrderID,
		Quantity: estQuantity,
		Notional: notional,
		AskPrice: book.BestAsk,
	}, nil
}

// Exit submits a MARKET SELL for the tracked quantity. When no quantity is
// tracked it falls back to the live base-asset balance. A rejected or failed
// attempt is retried with the quantity reduced by a small fixed fraction,
// sleeping with backoff in between; the budget models the exchange rejecting
// sells that round above the truly available balance. After the budget is
// exhausted the failure is permanent and the caller must leave its position
// state untouched for manual resolution.
func (e *Executor) Exit(ctx context.Context, symbol string, quantity float64) (*ExitResult, error) {
	info, err := e.symbolInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if quantity <= 0 {
		balance, err := e.exchange.GetBalance(ctx, info.BaseAsset)
		if err != nil {
			return nil, fmt.Errorf("cannot size exit for %s: %w", symbol, err)
		}
		e.logger.Warn(ctx, "No tracked quantity, falling back to live balance", map[string]interface{}{
			"symbol": symbol, "balance": balance,
		})
		quantity = balance
	}

	b := &backoff.Backoff{
		Min:    e.minBackoff,
		Max:    e.maxBackoff,
		Factor: 2,
		Jitter: true,
	}

	minQuantity := decimal.NewFromFloat(info.MinQuantity)
	var lastErr error
	for attempt := 1; attempt <= e.maxSellRetries; attempt++ {
		// The minimum check runs on the truncated value: a raw quantity can
		// sit above MinQuantity yet truncate to a sub-minimum wire quantity.
		qty := decimal.NewFromFloat(quantity).Truncate(int32(info.BasePrecision))
		qtyStr := qty.String()
		if qty.LessThan(minQuantity) {
			return nil, fmt.Errorf("%w: exit quantity %s below minimum for %s (after %d attempts)",
				ports.ErrOrderTooSmall, qtyStr, symbol, attempt-1)
		}

		req := domain.OrderRequest{
			Symbol:        symbol,
			Side:          domain.Sell,
			Type:          domain.Market,
			Quantity:      qtyStr,
			ClientOrderID: uuid.NewString(),
		}
		res, err := e.exchange.PlaceOrder(ctx, req)
		if err == nil {
			if guardErr := e.guardOrderID(symbol, res.OrderID); guardErr != nil {
				return nil, guardErr
			}
			e.logger.Info(ctx, "Exit order confirmed", map[string]interface{}{
				"symbol": symbol, "orderID": res.OrderID, "quantity": qtyStr, "attempt": attempt,
			})
			return &ExitResult{OrderID: res.OrderID, Quantity: quantity, Attempts: attempt}, nil
		}

		lastErr = err
		e.logger.Warn(ctx, "Exit attempt failed, reducing quantity", map[string]interface{}{
			"symbol": symbol, "attempt": attempt, "quantity": qtyStr, "error": err.Error(),
		})
		quantity *= 1 - e.sellReduction

		if attempt < e.maxSellRetries {
			if err := e.sleep(ctx, b.Duration()); err != nil {
				return nil, fmt.Errorf("exit retry aborted for %s: %w", symbol, err)
			}
		}
	}

	return nil, fmt.Errorf("%w: exit failed for %s after %d attempts: %v",
		ports.ErrRetriesExhausted, symbol, e.maxSellRetries, lastErr)
}

// PlaceLimitExit places a protective LIMIT SELL above market, with price and
// quantity rounded to the symbol's precisions. Used to pair a fresh entry
// with a resting take-profit order.
func (e *Executor) PlaceLimitExit(ctx context.Context, symbol string, quantity, price float64) (string, error) {
	info, err := e.symbolInfo(ctx, symbol)
	if err != nil {
		return "", err
	}

	qty := decimal.NewFromFloat(quantity).Truncate(int32(info.BasePrecision))
	qtyStr := qty.String()
	priceStr := formatDecimal(price, info.QuotePrecision)
	if qty.LessThan(decimal.NewFromFloat(info.MinQuantity)) || qty.InexactFloat64()*price < info.MinAmount {
		return "", fmt.Errorf("%w: limit exit %s @ %s below minimums for %s",
			ports.ErrOrderTooSmall, qtyStr, priceStr, symbol)
	}

	req := domain.OrderRequest{
		Symbol:        symbol,
		Side:          domain.Sell,
		Type:          domain.Limit,
		Quantity:      qtyStr,
		Price:         priceStr,
		ClientOrderID: uuid.NewString(),
	}
	res, err := e.exchange.PlaceOrder(ctx, req)
	if err != nil {
		if errors.Is(err, ports.ErrExchangeRejected) {
			e.exchange.InvalidateSymbolInfo(symbol)
		}
		return "", fmt.Errorf("limit exit failed for %s: %w", symbol, err)
	}
	if err := e.guardOrderID(symbol, res.OrderID); err != nil {
		return "", err
	}

	e.logger.Info(ctx, "Limit exit placed", map[string]interface{}{
		"symbol": symbol, "orderID": res.OrderID, "quantity": qtyStr, "price": priceStr,
	})
	return res.OrderID, nil
}

// CancelOrder cancels a resting order, tolerating orders that are already gone.
func (e *Executor) CancelOrder(ctx context.Context, symbol, orderID string) error {
	cancelled, err := e.exchange.CancelOrder(ctx, symbol, orderID)
	if err != nil {
		return fmt.Errorf("cancel failed for %s order %s: %w", symbol, orderID, err)
	}
	if !cancelled {
		e.logger.Warn(ctx, "Order already gone before cancel", map[string]interface{}{
			"symbol": symbol, "orderID": orderID,
		})
	}
	return nil
}
