package exchangeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"cryptoCrossBot/internal/domain"
	"cryptoCrossBot/internal/ports"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultSymbolTTL = 5 * time.Minute

	pathSymbolInfo = "/v1/market/symbol"
	pathBalances   = "/v1/account/balances"
	pathDepth      = "/v1/market/depth"
	pathKlines     = "/v1/market/kline"
	pathOrder      = "/v1/order"
)

// Client implements ports.ExchangeClient against the exchange REST API.
// Every request is signed; the API key and signature travel as headers.
// The only mutable state is a short-lived symbol metadata cache.
type Client struct {
	apiKey     string
	signer     *Signer
	baseURL    string
	httpClient *http.Client
	logger     ports.Logger

	mu          sync.RWMutex
	symbolCache map[string]symbolCacheEntry
	symbolTTL   time.Duration
}

type symbolCacheEntry struct {
	info      *domain.SymbolInfo
	fetchedAt time.Time
}

// Config holds configuration specific to the exchange client adapter.
type Config struct {
	APIKey    string
	SecretKey string
	BaseURL   string
	Timeout   time.Duration // Request-level timeout bounding hung calls
	SymbolTTL time.Duration // How long symbol metadata may be served from cache
	Logger    ports.Logger
}

// New creates a new exchange client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for exchange client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: API key and secret are required", ports.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: exchange base URL is required", ports.ErrConfiguration)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ttl := cfg.SymbolTTL
	if ttl <= 0 {
		ttl = defaultSymbolTTL
	}
	return &Client{
		apiKey:      cfg.APIKey,
		signer:      NewSigner(cfg.SecretKey),
		baseURL:     cfg.BaseURL,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      cfg.Logger,
		symbolCache: make(map[string]symbolCacheEntry),
		symbolTTL:   ttl,
	}, nil
}

// envelope is the exchange's standard response wrapper.
type envelope struct {
	Result  bool            `json:"result"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// doRequest executes one signed request and returns the decoded data payload.
// A network or HTTP-level failure maps to ErrTransport; a well-formed
// result=false response maps to a RejectionError carrying the raw body.
func (c *Client) doRequest(ctx context.Context, method, path string, params map[string]string, body interface{}) (json.RawMessage, error) {
	if params == nil {
		params = map[string]string{}
	}

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	signature, _ := c.signer.Sign(method, path, params, bodyBytes)

	// The signing scheme covers the unencoded query string, so the request
	// must carry it byte-for-byte as signed.
	reqURL := c.baseURL + path + "?" + CanonicalQuery(params)

	var reader io.Reader
	if bodyBytes != nil {
		reader = bytes.NewReader(bodyBytes)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("X-SIGNATURE", signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ports.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response for %s %s: %v", ports.ErrTransport, method, path, err)
	}

	var env envelope
	if jsonErr := json.Unmarshal(respBody, &env); jsonErr == nil {
		if !env.Result {
			return nil, &ports.RejectionError{Operation: method + " " + path, RawBody: string(respBody)}
		}
		if resp.StatusCode == http.StatusOK {
			return env.Data, nil
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s %s returned HTTP %d: %s", ports.ErrTransport, method, path, resp.StatusCode, string(respBody))
	}
	return nil, fmt.Errorf("%w: %s %s returned malformed envelope: %s", ports.ErrTransport, method, path, string(respBody))
}

// GetSymbolInfo retrieves trading constraints for a symbol, serving from the
// cache while the entry is fresh.
func (c *Client) GetSymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	c.mu.RLock()
	entry, ok := c.symbolCache[symbol]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < c.symbolTTL {
		return entry.info, nil
	}

	data, err := c.doRequest(ctx, http.MethodGet, pathSymbolInfo, map[string]string{"symbol": symbol}, nil)
	if err != nil {
		var rej *ports.RejectionError
		if errors.As(err, &rej) {
			return nil, fmt.Errorf("%w: %s", ports.ErrSymbolNotFound, symbol)
		}
		return nil, fmt.Errorf("symbol info request failed for %s: %w", symbol, err)
	}

	var raw struct {
		Symbol         string `json:"symbol"`
		BaseAsset      string `json:"baseAsset"`
		QuoteAsset     string `json:"quoteAsset"`
		BasePrecision  int    `json:"basePrecision"`
		QuotePrecision int    `json:"quotePrecision"`
		MinAmount      string `json:"minAmount"`
		MinQuantity    string `json:"minQuantity"`
		Tradable       bool   `json:"tradable"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse symbol info for %s: %w", symbol, err)
	}
	if raw.Symbol == "" {
		return nil, fmt.Errorf("%w: %s", ports.ErrSymbolNotFound, symbol)
	}

	minAmount, _ := strconv.ParseFloat(raw.MinAmount, 64)
	minQuantity, _ := strconv.ParseFloat(raw.MinQuantity, 64)
	info := &domain.SymbolInfo{
		Symbol:         raw.Symbol,
		BaseAsset:      raw.BaseAsset,
		QuoteAsset:     raw.QuoteAsset,
		BasePrecision:  raw.BasePrecision,
		QuotePrecision: raw.QuotePrecision,
		MinAmount:      minAmount,
		MinQuantity:    minQuantity,
		Tradable:       raw.Tradable,
	}

	c.mu.Lock()
	c.symbolCache[symbol] = symbolCacheEntry{info: info, fetchedAt: time.Now()}
	c.mu.Unlock()

	return info, nil
}

// InvalidateSymbolInfo drops the cached metadata for a symbol.
func (c *Client) InvalidateSymbolInfo(symbol string) {
	c.mu.Lock()
	delete(c.symbolCache, symbol)
	c.mu.Unlock()
}

// GetBalance retrieves the available balance for the given asset.
func (c *Client) GetBalance(ctx context.Context, asset string) (float64, error) {
	data, err := c.doRequest(ctx, http.MethodGet, pathBalances, map[string]string{"asset": asset}, nil)
	if err != nil {
		return 0, fmt.Errorf("balance request failed for %s: %w", asset, err)
	}

	var raw struct {
		Asset     string `json:"asset"`
		Available string `json:"available"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("failed to parse balance for %s: %w", asset, err)
	}
	available, err := strconv.ParseFloat(raw.Available, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse balance value %q for %s: %w", raw.Available, asset, err)
	}
	return available, nil
}

// GetTopOfBook retrieves the current best bid and ask from the depth endpoint.
func (c *Client) GetTopOfBook(ctx context.Context, symbol string) (*ports.TopOfBook, error) {
	params := map[string]string{"symbol": symbol, "limit": "1"}
	data, err := c.doRequest(ctx, http.MethodGet, pathDepth, params, nil)
	if err != nil {
		return nil, fmt.Errorf("depth request failed for %s: %w", symbol, err)
	}

	var raw struct {
		Bids [][2]string `json:"bids"`
		Asks [][2]string `json:"asks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse depth for %s: %w", symbol, err)
	}
	if len(raw.Bids) == 0 || len(raw.Asks) == 0 {
		return nil, fmt.Errorf("%w: empty order book side for %s", ports.ErrTransport, symbol)
	}

	bestBid, err := strconv.ParseFloat(raw.Bids[0][0], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse best bid for %s: %w", symbol, err)
	}
	bestAsk, err := strconv.ParseFloat(raw.Asks[0][0], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse best ask for %s: %w", symbol, err)
	}
	return &ports.TopOfBook{BestBid: bestBid, BestAsk: bestAsk}, nil
}

// GetKlines retrieves recent candlesticks for the symbol, oldest first.
func (c *Client) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]domain.Kline, error) {
	params := map[string]string{
		"symbol":   symbol,
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	}
	data, err := c.doRequest(ctx, http.MethodGet, pathKlines, params, nil)
	if err != nil {
		return nil, fmt.Errorf("kline request failed for %s: %w", symbol, err)
	}

	// Each row is [openTimeMs, open, high, low, close, volume] with prices as strings.
	var rows [][6]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse klines for %s: %w", symbol, err)
	}

	klines := make([]domain.Kline, 0, len(rows))
	for _, row := range rows {
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, fmt.Errorf("failed to parse kline open time for %s: %w", symbol, err)
		}
		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			var s string
			if err := json.Unmarshal(row[i+1], &s); err != nil {
				return nil, fmt.Errorf("failed to parse kline field for %s: %w", symbol, err)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse kline value %q for %s: %w", s, symbol, err)
			}
			vals[i] = v
		}
		klines = append(klines, domain.Kline{
			OpenTime: time.Unix(0, openTime*int64(time.Millisecond)),
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
		})
	}
	return klines, nil
}

// PlaceOrder submits an order. The request body carries the order fields; the
// symbol rides in the query string so it is part of the signed parameters.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	body := map[string]string{
		"symbol": req.Symbol,
		"side":   string(req.Side),
		"type":   string(req.Type),
	}
	if req.Quantity != "" {
		body["quantity"] = req.Quantity
	}
	if req.Amount != "" {
		body["amount"] = req.Amount
	}
	if req.Price != "" {
		body["price"] = req.Price
	}
	if req.ClientOrderID != "" {
		body["clientOrderId"] = req.ClientOrderID
	}

	params := map[string]string{"symbol": req.Symbol}
	data, err := c.doRequest(ctx, http.MethodPost, pathOrder, params, body)
	if err != nil {
		return nil, fmt.Errorf("order placement failed [symbol: %s, side: %s, type: %s]: %w",
			req.Symbol, req.Side, req.Type, err)
	}

	var raw struct {
		OrderID string `json:"orderId"`
		Symbol  string `json:"symbol"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse order response for %s: %w", req.Symbol, err)
	}
	return &domain.OrderResult{OrderID: raw.OrderID, Symbol: raw.Symbol, Status: raw.Status}, nil
}

// CancelOrder cancels an open order. A rejection naming a missing order is not
// an error; the order was already filled or cancelled.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID string) (bool, error) {
	params := map[string]string{"symbol": symbol, "orderId": orderID}
	_, err := c.doRequest(ctx, http.MethodDelete, pathOrder, params, nil)
	if err != nil {
		var rej *ports.RejectionError
		if errors.As(err, &rej) {
			c.logger.Warn(ctx, "Cancel rejected, order likely already gone", map[string]interface{}{
				"symbol": symbol, "orderID": orderID, "response": rej.RawBody,
			})
			return false, nil
		}
		return false, fmt.Errorf("order cancel failed [symbol: %s, orderID: %s]: %w", symbol, orderID, err)
	}
	return true, nil
}
