package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoCrossBot/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestNotifier(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{
		BotToken: "test-token",
		ChatID:   42,
		BaseURL:  srv.URL,
		Logger:   nopLogger{},
	})
	require.NoError(t, err)
	return client
}

func TestConfirmAction_RoundTrip(t *testing.T) {
	action := ConfirmAction("BTCUSDT", 64000.5)
	assert.Equal(t, "Buy BTCUSDT", action.Label)

	got, ok := parseAction(action.ID)
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, 64000.5, got.ReferencePrice)

	_, ok = parseAction("something-else")
	assert.False(t, ok)
	_, ok = parseAction("confirm|BTCUSDT|not-a-price")
	assert.False(t, ok)
}

func TestClient_SendMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	client := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		json.Unmarshal(b, &gotBody)
		w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	err := client.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, "hello", gotBody["text"])
	assert.Equal(t, float64(42), gotBody["chat_id"])
}

func TestClient_SendMessage_APIError(t *testing.T) {
	client := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	})
	err := client.SendMessage(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestClient_SendPhoto(t *testing.T) {
	var gotContentType, gotMarkup string
	client := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotMarkup = r.FormValue("reply_markup")
		assert.Equal(t, "42", r.FormValue("chat_id"))
		assert.Equal(t, "caption text", r.FormValue("caption"))
		w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	err := client.SendPhoto(context.Background(), []byte{1, 2, 3}, "caption text",
		[]ports.Action{ConfirmAction("BTCUSDT", 100)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gotContentType, "multipart/form-data"))
	assert.Contains(t, gotMarkup, "inline_keyboard")
	assert.Contains(t, gotMarkup, "confirm|BTCUSDT|100")
}

func TestClient_PollLoop_DeliversActions(t *testing.T) {
	polls := 0
	client := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/answerCallbackQuery") {
			w.Write([]byte(`{"ok":true,"result":true}`))
			return
		}
		polls++
		if polls == 1 {
			w.Write([]byte(`{"ok":true,"result":[
				{"update_id":7,"callback_query":{"id":"cb1","data":"confirm|ETHUSDT|3500.25"}},
				{"update_id":8,"callback_query":{"id":"cb2","data":"garbage"}}]}`))
			return
		}
		// Subsequent polls return nothing.
		w.Write([]byte(`{"ok":true,"result":[]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)

	select {
	case action := <-client.Actions():
		assert.Equal(t, "ETHUSDT", action.Symbol)
		assert.Equal(t, 3500.25, action.ReferencePrice)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for user action")
	}

	// The malformed callback was dropped, not delivered.
	select {
	case action := <-client.Actions():
		t.Fatalf("unexpected action delivered: %+v", action)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	// Channel closes on shutdown.
	select {
	case _, open := <-client.Actions():
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for actions channel to close")
	}
}
