package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptoCrossBot/internal/ports"
)

// Dispatcher debounces notifications per symbol: a candidate message goes out
// only if no record exists for the symbol, the message changed, or the
// cooldown elapsed since the same message was last sent. It is not a queue;
// suppressed or failed sends are not buffered or retried.
type Dispatcher struct {
	notifier ports.Notifier
	cooldown time.Duration
	logger   ports.Logger

	mu      sync.Mutex
	records map[string]alertRecord
	now     func() time.Time
}

type alertRecord struct {
	message string
	sentAt  time.Time
}

// NewDispatcher creates a dispatcher with the given cooldown window.
func NewDispatcher(notifier ports.Notifier, cooldown time.Duration, logger ports.Logger) (*Dispatcher, error) {
	if notifier == nil || logger == nil {
		return nil, fmt.Errorf("notifier and logger are required for alert dispatcher")
	}
	if cooldown <= 0 {
		return nil, fmt.Errorf("%w: alert cooldown must be positive", ports.ErrConfiguration)
	}
	return &Dispatcher{
		notifier: notifier,
		cooldown: cooldown,
		logger:   logger,
		records:  make(map[string]alertRecord),
		now:      time.Now,
	}, nil
}

// ShouldSend reports whether the message passes the debounce for the symbol.
// It does not record anything; call RecordSend after a successful delivery.
func (d *Dispatcher) ShouldSend(symbol, message string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shouldSend(symbol, message)
}

func (d *Dispatcher) shouldSend(symbol, message string) bool {
	rec, ok := d.records[symbol]
	if !ok {
		return true
	}
	if rec.message != message {
		return true
	}
	return d.now().Sub(rec.sentAt) >= d.cooldown
}

// RecordSend marks the message as delivered for the symbol.
func (d *Dispatcher) RecordSend(symbol, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[symbol] = alertRecord{message: message, sentAt: d.now()}
}

// Dispatch sends the message through the notifier if the debounce allows it.
// It returns whether the message actually went out. The record is updated
// only on a successful send, so a failed delivery stays eligible.
func (d *Dispatcher) Dispatch(ctx context.Context, symbol, message string) (bool, error) {
	d.mu.Lock()
	ok := d.shouldSend(symbol, message)
	d.mu.Unlock()
	if !ok {
		d.logger.Debug(ctx, "Alert suppressed by cooldown", map[string]interface{}{"symbol": symbol})
		return false, nil
	}

	if err := d.notifier.SendMessage(ctx, message); err != nil {
		return false, fmt.Errorf("failed to send alert for %s: %w", symbol, err)
	}
	d.RecordSend(symbol, message)
	return true, nil
}

// DispatchPhoto behaves like Dispatch for an image with actionable buttons.
func (d *Dispatcher) DispatchPhoto(ctx context.Context, symbol string, image []byte, caption string, actions []ports.Action) (bool, error) {
	d.mu.Lock()
	ok := d.shouldSend(symbol, caption)
	d.mu.Unlock()
	if !ok {
		d.logger.Debug(ctx, "Alert suppressed by cooldown", map[string]interface{}{"symbol": symbol})
		return false, nil
	}

	if err := d.notifier.SendPhoto(ctx, image, caption, actions); err != nil {
		return false, fmt.Errorf("failed to send photo alert for %s: %w", symbol, err)
	}
	d.RecordSend(symbol, caption)
	return true, nil
}
