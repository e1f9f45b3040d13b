package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptoCrossBot/internal/ports"
)

const (
	apiBaseURL      = "https://api.telegram.org"
	longPollSeconds = 30

	confirmPrefix = "confirm"
)

// Client implements ports.Notifier over the Telegram Bot API. Outbound
// messages go to a single configured chat; inbound confirmations arrive as
// callback queries on a long-poll loop and are surfaced on the Actions channel.
type Client struct {
	botToken   string
	chatID     int64
	baseURL    string
	httpClient *http.Client
	logger     ports.Logger
	actions    chan ports.UserAction
}

// Config holds configuration specific to the Telegram adapter.
type Config struct {
	BotToken string
	ChatID   int64
	BaseURL  string // Overridable for tests; defaults to the Telegram API host
	Logger   ports.Logger
}

// New creates a new Telegram notifier adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Telegram client")
	}
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("%w: Telegram bot token and chat id are required", ports.ErrConfiguration)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = apiBaseURL
	}
	return &Client{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		baseURL:  baseURL,
		// Long polling holds the connection open, so the client timeout
		// must exceed the poll window.
		httpClient: &http.Client{Timeout: (longPollSeconds + 10) * time.Second},
		logger:     cfg.Logger,
		actions:    make(chan ports.UserAction, 16),
	}, nil
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botToken, method)
}

// ConfirmAction builds the actionable button for an entry prompt. The id is
// parsed back into a ports.UserAction when the user taps it.
func ConfirmAction(symbol string, referencePrice float64) ports.Action {
	return ports.Action{
		Label: fmt.Sprintf("Buy %s", symbol),
		ID:    fmt.Sprintf("%s|%s|%s", confirmPrefix, symbol, strconv.FormatFloat(referencePrice, 'f', -1, 64)),
	}
}

// ConfirmAction implements ports.Notifier.
func (c *Client) ConfirmAction(symbol string, referencePrice float64) ports.Action {
	return ConfirmAction(symbol, referencePrice)
}

// parseAction decodes a callback data string produced by ConfirmAction.
func parseAction(data string) (ports.UserAction, bool) {
	parts := strings.Split(data, "|")
	if len(parts) != 3 || parts[0] != confirmPrefix {
		return ports.UserAction{}, false
	}
	price, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return ports.UserAction{}, false
	}
	return ports.UserAction{Symbol: parts[1], ReferencePrice: price}, true
}

// apiResponse is Telegram's standard response wrapper.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (c *Client) post(ctx context.Context, method string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method)
}

func (c *Client) do(req *http.Request, method string) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: telegram %s: %v", ports.ErrTransport, method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading telegram %s response: %v", ports.ErrTransport, method, err)
	}
	var api apiResponse
	if err := json.Unmarshal(respBody, &api); err != nil {
		return nil, fmt.Errorf("%w: malformed telegram %s response: %v", ports.ErrTransport, method, err)
	}
	if !api.OK {
		return nil, fmt.Errorf("telegram %s failed: %s", method, api.Description)
	}
	return api.Result, nil
}

// SendMessage sends a plain text message to the configured chat.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	_, err := c.post(ctx, "sendMessage", map[string]interface{}{
		"chat_id": c.chatID,
		"text":    text,
	})
	return err
}

// SendPhoto sends an image with a caption and optional actionable buttons.
func (c *Client) SendPhoto(ctx context.Context, image []byte, caption string, actions []ports.Action) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("chat_id", strconv.FormatInt(c.chatID, 10)); err != nil {
		return fmt.Errorf("failed to write chat_id field: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return fmt.Errorf("failed to write caption field: %w", err)
		}
	}
	if len(actions) > 0 {
		keyboard := buildInlineKeyboard(actions)
		kb, err := json.Marshal(keyboard)
		if err != nil {
			return fmt.Errorf("failed to encode reply markup: %w", err)
		}
		if err := writer.WriteField("reply_markup", string(kb)); err != nil {
			return fmt.Errorf("failed to write reply_markup field: %w", err)
		}
	}
	part, err := writer.CreateFormFile("photo", "chart.png")
	if err != nil {
		return fmt.Errorf("failed to create photo part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return fmt.Errorf("failed to write photo bytes: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendPhoto"), &buf)
	if err != nil {
		return fmt.Errorf("failed to build sendPhoto request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	_, err = c.do(req, "sendPhoto")
	return err
}

func buildInlineKeyboard(actions []ports.Action) map[string]interface{} {
	row := make([]map[string]string, len(actions))
	for i, a := range actions {
		row[i] = map[string]string{"text": a.Label, "callback_data": a.ID}
	}
	return map[string]interface{}{"inline_keyboard": [][]map[string]string{row}}
}

// Actions returns the channel on which user confirmations arrive.
func (c *Client) Actions() <-chan ports.UserAction {
	return c.actions
}

// Start runs the callback long-poll loop until the context is cancelled,
// then closes the Actions channel.
func (c *Client) Start(ctx context.Context) {
	go c.pollLoop(ctx)
}

func (c *Client) pollLoop(ctx context.Context) {
	defer close(c.actions)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := c.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn(ctx, "Telegram poll failed, backing off", map[string]interface{}{"error": err.Error()})
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			if upd.CallbackQuery == nil {
				continue
			}
			c.acknowledgeCallback(ctx, upd.CallbackQuery.ID)

			action, ok := parseAction(upd.CallbackQuery.Data)
			if !ok {
				c.logger.Warn(ctx, "Dropping unrecognized callback data", map[string]interface{}{"data": upd.CallbackQuery.Data})
				continue
			}
			select {
			case c.actions <- action:
			case <-ctx.Done():
				return
			}
		}
	}
}

type update struct {
	UpdateID      int64 `json:"update_id"`
	CallbackQuery *struct {
		ID   string `json:"id"`
		Data string `json:"data"`
	} `json:"callback_query"`
}

func (c *Client) getUpdates(ctx context.Context, offset int64) ([]update, error) {
	result, err := c.post(ctx, "getUpdates", map[string]interface{}{
		"offset":          offset,
		"timeout":         longPollSeconds,
		"allowed_updates": []string{"callback_query"},
	})
	if err != nil {
		return nil, err
	}
	var updates []update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("failed to parse updates: %w", err)
	}
	return updates, nil
}

// acknowledgeCallback stops the client-side spinner; failure is not fatal.
func (c *Client) acknowledgeCallback(ctx context.Context, callbackID string) {
	if _, err := c.post(ctx, "answerCallbackQuery", map[string]interface{}{"callback_query_id": callbackID}); err != nil {
		c.logger.Debug(ctx, "Failed to acknowledge callback", map[string]interface{}{"error": err.Error()})
	}
}
