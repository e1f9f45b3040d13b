package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cryptoCrossBot/config"
	"cryptoCrossBot/internal/alert"
	"cryptoCrossBot/internal/chart"
	"cryptoCrossBot/internal/domain"
	"cryptoCrossBot/internal/executor"
	"cryptoCrossBot/internal/ports"
	"cryptoCrossBot/internal/position"
)

// orderExecutor is the slice of the executor the service drives. Declared
// here so tests can substitute a mock.
type orderExecutor interface {
	Enter(ctx context.Context, symbol string, notionalTarget float64) (*executor.EntryResult, error)
	Exit(ctx context.Context, symbol string, quantity float64) (*executor.ExitResult, error)
	PlaceLimitExit(ctx context.Context, symbol string, quantity, price float64) (string, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}

// TradingService orchestrates the scan loop and the user-action channel. All
// decisions for one symbol happen under that symbol's mutex, so a tick and a
// chat confirmation can never interleave their read-then-transition sequences.
type TradingService struct {
	cfg       *config.Config
	logger    ports.Logger
	exchange  ports.ExchangeClient
	exec      orderExecutor
	tracker   *position.Tracker
	alerts    *alert.Dispatcher
	notifier  ports.Notifier
	evaluator ports.SignalEvaluator
	tradeRepo ports.TradeRepository

	mu       sync.Mutex
	symLocks map[string]*sync.Mutex
	active   map[string]bool // Symbols that passed startup validation
}

// NewTradingService creates a new application service instance.
func NewTradingService(
	cfg *config.Config,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	exec orderExecutor,
	tracker *position.Tracker,
	alerts *alert.Dispatcher,
	notifier ports.Notifier,
	evaluator ports.SignalEvaluator,
	tradeRepo ports.TradeRepository,
) (*TradingService, error) {
	if cfg == nil || logger == nil || exchange == nil || exec == nil || tracker == nil ||
		alerts == nil || notifier == nil || evaluator == nil || tradeRepo == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("configuration must list at least one symbol")
	}
	if cfg.NotionalPerTrade <= 0 {
		return nil, fmt.Errorf("configuration NotionalPerTrade must be positive")
	}
	if cfg.TakeProfitPct <= 0 {
		return nil, fmt.Errorf("configuration TakeProfitPct must be positive")
	}

	return &TradingService{
		cfg:       cfg,
		logger:    logger,
		exchange:  exchange,
		exec:      exec,
		tracker:   tracker,
		alerts:    alerts,
		notifier:  notifier,
		evaluator: evaluator,
		tradeRepo: tradeRepo,
		symLocks:  make(map[string]*sync.Mutex),
		active:    make(map[string]bool),
	}, nil
}

// symbolLock returns the mutex serializing all decisions for one symbol.
func (s *TradingService) symbolLock(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.symLocks[symbol]
	if !ok {
		l = &sync.Mutex{}
		s.symLocks[symbol] = l
	}
	return l
}

func (s *TradingService) isActive(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[symbol]
}

// Start validates the configured symbols, then runs the scan loop until the
// context is cancelled or a shutdown signal arrives.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting trading service", map[string]interface{}{
		"symbols": s.cfg.Symbols, "pollInterval": s.cfg.PollInterval.String(),
		"confirmBeforeEntry": s.cfg.ConfirmBeforeEntry,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.validateSymbols(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.actionLoop(ctx)
	}()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.scanAll(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Trading service stopping")
			wg.Wait()
			return nil
		case <-ticker.C:
			s.scanAll(ctx)
		}
	}
}

// validateSymbols fetches metadata for every configured symbol once. Missing
// or untradable symbols are excluded for the whole run; the service only
// refuses to start when nothing remains.
func (s *TradingService) validateSymbols(ctx context.Context) error {
	for _, symbol := range s.cfg.Symbols {
		info, err := s.exchange.GetSymbolInfo(ctx, symbol)
		if err != nil {
			s.logger.Error(ctx, err, "Excluding symbol with no metadata", map[string]interface{}{"symbol": symbol})
			continue
		}
		if !info.Tradable {
			s.logger.Warn(ctx, "Excluding untradable symbol", map[string]interface{}{"symbol": symbol})
			continue
		}
		s.mu.Lock()
		s.active[symbol] = true
		s.mu.Unlock()
	}

	s.mu.Lock()
	n := len(s.active)
	s.mu.Unlock()
	if n == 0 {
		return fmt.Errorf("%w: no tradable symbols after validation", ports.ErrConfiguration)
	}
	s.logger.Info(ctx, "Symbol validation complete", map[string]interface{}{"tradable": n})
	return nil
}

// actionLoop consumes user confirmations until the channel closes or the
// context is cancelled.
func (s *TradingService) actionLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case action, ok := <-s.notifier.Actions():
			if !ok {
				return
			}
			s.handleAction(ctx, action)
		}
	}
}

// scanAll runs one evaluation pass over every active symbol. Failures are
// per-symbol; one bad symbol never aborts the pass.
func (s *TradingService) scanAll(ctx context.Context) {
	for _, symbol := range s.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}
		if !s.isActive(symbol) {
			continue
		}
		if err := s.scanSymbol(ctx, symbol); err != nil {
			s.logger.Error(ctx, err, "Scan failed", map[string]interface{}{"symbol": symbol})
		}
	}
}

// scanSymbol evaluates one symbol and acts on the outcome.
func (s *TradingService) scanSymbol(ctx context.Context, symbol string) error {
	klines, err := s.exchange.GetKlines(ctx, symbol, s.cfg.KlineInterval, s.cfg.KlineLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch klines: %w", err)
	}
	closes := domain.Closes(klines)
	if len(closes) < s.evaluator.RequiredDataPoints() {
		s.logger.Warn(ctx, "Not enough kline data to evaluate", map[string]interface{}{
			"symbol": symbol, "got": len(closes), "need": s.evaluator.RequiredDataPoints(),
		})
		return nil
	}

	sig, err := s.evaluator.Evaluate(ctx, closes)
	if err != nil {
		return fmt.Errorf("signal evaluation failed: %w", err)
	}

	lock := s.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	pos := s.tracker.Get(symbol)
	switch pos.State {
	case domain.StateFlat:
		if sig.Kind != domain.SignalEntry {
			return nil
		}
		if s.cfg.ConfirmBeforeEntry {
			return s.promptEntry(ctx, symbol, sig.ClosePrice, closes)
		}
		return s.enter(ctx, symbol, sig.ClosePrice)

	case domain.StateOpen:
		reason, ok, err := s.exitDue(ctx, symbol, sig, &pos)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return s.exit(ctx, symbol, &pos, reason, sig.ClosePrice)

	default:
		// ENTERING or EXITING: a transition is in flight, leave it alone.
		s.logger.Debug(ctx, "Skipping symbol with transition in flight", map[string]interface{}{
			"symbol": symbol, "state": string(pos.State),
		})
		return nil
	}
}

// exitDue decides whether an OPEN position should be closed this cycle.
func (s *TradingService) exitDue(ctx context.Context, symbol string, sig domain.Signal, pos *domain.Position) (domain.CloseReason, bool, error) {
	if sig.Kind == domain.SignalExit {
		return domain.CloseReasonSignal, true, nil
	}
	if pos.ExitPrice <= 0 {
		return domain.CloseReasonUnknown, false, nil
	}
	book, err := s.exchange.GetTopOfBook(ctx, symbol)
	if err != nil {
		return domain.CloseReasonUnknown, false, fmt.Errorf("failed to check exit target: %w", err)
	}
	if book.BestBid >= pos.ExitPrice {
		return domain.CloseReasonTakeProfit, true, nil
	}
	return domain.CloseReasonUnknown, false, nil
}

// promptEntry asks the user to confirm an entry instead of entering
// autonomously. The dispatcher's cooldown keeps one crossover from spamming
// the chat on every poll.
func (s *TradingService) promptEntry(ctx context.Context, symbol string, refPrice float64, closes []float64) error {
	caption := fmt.Sprintf("%s entry signal at %.8g", symbol, refPrice)
	if !s.alerts.ShouldSend(symbol, caption) {
		return nil
	}

	image, err := chart.Sparkline(closes, 600, 200)
	if err != nil {
		return fmt.Errorf("failed to render prompt chart: %w", err)
	}
	actions := []ports.Action{s.notifier.ConfirmAction(symbol, refPrice)}
	sent, err := s.alerts.DispatchPhoto(ctx, symbol, image, caption, actions)
	if err != nil {
		return err
	}
	if sent {
		s.logger.Info(ctx, "Entry prompt sent", map[string]interface{}{"symbol": symbol, "refPrice": refPrice})
	}
	return nil
}

// handleAction executes a user-confirmed entry. The reference price quoted in
// the prompt, not the current market price, anchors the take-profit target.
func (s *TradingService) handleAction(ctx context.Context, action ports.UserAction) {
	if !s.isActive(action.Symbol) {
		s.logger.Warn(ctx, "Ignoring action for inactive symbol", map[string]interface{}{"symbol": action.Symbol})
		return
	}

	lock := s.symbolLock(action.Symbol)
	lock.Lock()
	defer lock.Unlock()

	pos := s.tracker.Get(action.Symbol)
	if !pos.IsFlat() {
		s.logger.Warn(ctx, "Ignoring confirmation, symbol is not flat", map[string]interface{}{
			"symbol": action.Symbol, "state": string(pos.State),
		})
		return
	}

	if err := s.enter(ctx, action.Symbol, action.ReferencePrice); err != nil {
		s.logger.Error(ctx, err, "Confirmed entry failed", map[string]interface{}{"symbol": action.Symbol})
	}
}

// enter opens a position and pairs it with a protective limit exit. Callers
// must hold the symbol lock.
func (s *TradingService) enter(ctx context.Context, symbol string, refPrice float64) error {
	if err := s.tracker.BeginEntry(symbol); err != nil {
		return err
	}

	res, err := s.exec.Enter(ctx, symbol, s.cfg.NotionalPerTrade)
	if err != nil {
		if failErr := s.tracker.FailEntry(symbol); failErr != nil {
			s.logger.Error(ctx, failErr, "Failed to revert entry state", map[string]interface{}{"symbol": symbol})
		}
		s.notifyFundsFailure(ctx, symbol, fmt.Sprintf("%s entry FAILED: %v", symbol, err))
		return fmt.Errorf("entry failed: %w", err)
	}

	if err := s.tracker.ConfirmEntry(symbol, res.Quantity, res.OrderID, res.AskPrice); err != nil {
		return err
	}

	// The paired exit is best-effort: the position is live either way, and
	// the evaluator's exit signal still covers it.
	target := refPrice * (1 + s.cfg.TakeProfitPct)
	exitOrderID, err := s.exec.PlaceLimitExit(ctx, symbol, res.Quantity, target)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to place paired limit exit", map[string]interface{}{
			"symbol": symbol, "target": target,
		})
		s.notifyFundsFailure(ctx, symbol, fmt.Sprintf("%s entered but paired exit FAILED: %v", symbol, err))
	} else if err := s.tracker.SetExitOrder(symbol, exitOrderID, target); err != nil {
		s.logger.Error(ctx, err, "Failed to record paired exit", map[string]interface{}{"symbol": symbol})
	}

	msg := fmt.Sprintf("%s entered: %.8g @ %.8g (order %s), target %.8g",
		symbol, res.Quantity, res.AskPrice, res.OrderID, target)
	if _, err := s.alerts.Dispatch(ctx, symbol, msg); err != nil {
		s.logger.Error(ctx, err, "Failed to send entry notification", map[string]interface{}{"symbol": symbol})
	}
	return nil
}

// exit closes an OPEN position, journaling the trade on success. Callers must
// hold the symbol lock. A permanent exit failure leaves the position EXITING
// for manual resolution.
func (s *TradingService) exit(ctx context.Context, symbol string, pos *domain.Position, reason domain.CloseReason, closePrice float64) error {
	if err := s.tracker.BeginExit(symbol); err != nil {
		return err
	}

	// A resting limit exit and a market exit for the same quantity cannot
	// coexist; the cancel tolerates an order that already filled or expired,
	// but a failed cancel leaves the limit possibly live, and selling on top
	// of it could fill both. Abort and leave the position EXITING for manual
	// resolution, like any other exit failure.
	if pos.ExitOrderID != "" {
		if err := s.exec.CancelOrder(ctx, symbol, pos.ExitOrderID); err != nil {
			if failErr := s.tracker.FailExit(symbol); failErr != nil {
				s.logger.Error(ctx, failErr, "Failed to record exit failure", map[string]interface{}{"symbol": symbol})
			}
			s.notifyFundsFailure(ctx, symbol, fmt.Sprintf("%s exit aborted, resting limit %s may still be live: %v",
				symbol, pos.ExitOrderID, err))
			return fmt.Errorf("aborting exit, cancel of resting limit failed: %w", err)
		}
	}

	res, err := s.exec.Exit(ctx, symbol, pos.Quantity)
	if err != nil {
		if failErr := s.tracker.FailExit(symbol); failErr != nil {
			s.logger.Error(ctx, failErr, "Failed to record exit failure", map[string]interface{}{"symbol": symbol})
		}
		s.notifyFundsFailure(ctx, symbol, fmt.Sprintf("%s exit FAILED, manual intervention needed: %v", symbol, err))
		return fmt.Errorf("exit failed: %w", err)
	}

	closed, err := s.tracker.ConfirmExit(symbol)
	if err != nil {
		return err
	}

	exitPrice := closePrice
	if reason == domain.CloseReasonTakeProfit && closed.ExitPrice > 0 {
		exitPrice = closed.ExitPrice
	}
	s.journalTrade(ctx, &closed, res.Quantity, exitPrice, reason)

	msg := fmt.Sprintf("%s exited: %.8g @ ~%.8g (%s, order %s)",
		symbol, res.Quantity, exitPrice, string(reason), res.OrderID)
	if _, err := s.alerts.Dispatch(ctx, symbol, msg); err != nil {
		s.logger.Error(ctx, err, "Failed to send exit notification", map[string]interface{}{"symbol": symbol})
	}
	return nil
}

// journalTrade persists a closed trade. Journaling is bookkeeping; a failure
// is logged but never propagated into the trading path.
func (s *TradingService) journalTrade(ctx context.Context, closed *domain.Position, soldQuantity, exitPrice float64, reason domain.CloseReason) {
	trade := &domain.Trade{
		Symbol:      closed.Symbol,
		EntryPrice:  closed.EntryPrice,
		ExitPrice:   exitPrice,
		Quantity:    soldQuantity,
		PNL:         (exitPrice - closed.EntryPrice) * soldQuantity,
		EntryTime:   closed.EntryTime,
		ExitTime:    time.Now(),
		CloseReason: reason,
	}
	if _, err := s.tradeRepo.CreateTrade(ctx, trade); err != nil {
		s.logger.Error(ctx, err, "Failed to journal trade", map[string]interface{}{"symbol": closed.Symbol})
	}
}

// notifyFundsFailure reports an order failure affecting funds. These bypass
// nothing: the dispatcher may still debounce repeats of the same failure.
func (s *TradingService) notifyFundsFailure(ctx context.Context, symbol, msg string) {
	if _, err := s.alerts.Dispatch(ctx, symbol, msg); err != nil {
		s.logger.Error(ctx, err, "Failed to send failure notification", map[string]interface{}{"symbol": symbol})
	}
}
