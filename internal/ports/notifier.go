package ports

import "context"

// UserAction is an inbound confirmation from the chat interface: the user
// accepted an actionable prompt for a symbol at the quoted reference price.
type UserAction struct {
	Symbol         string
	ReferencePrice float64
}

// Action is a tappable choice attached to an outbound prompt.
type Action struct {
	Label string // Text shown on the button
	ID    string // Opaque id echoed back when the user taps it
}

// Notifier defines the outbound chat interface and the inbound action source.
// The engine treats it purely as an event sink/source; transport, polling and
// message formatting beyond plain text live in the adapter.
type Notifier interface {
	// SendMessage sends a plain text message to the configured chat.
	SendMessage(ctx context.Context, text string) error

	// SendPhoto sends an image with a caption and optional actionable buttons.
	SendPhoto(ctx context.Context, image []byte, caption string, actions []Action) error

	// ConfirmAction builds the entry-confirmation button whose id the
	// implementation will recognize when the user taps it.
	ConfirmAction(symbol string, referencePrice float64) Action

	// Actions returns the channel on which user confirmations arrive.
	// The channel is closed when the notifier shuts down.
	Actions() <-chan UserAction
}
