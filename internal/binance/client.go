// File: internal/binance/client.go
// ============================================
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"binance-tape-bot/pkg/types"
)

type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, secretKey string, testnet bool) *Client {
	baseURL := "https://api.binance.com"
	if testnet {
		baseURL = "https://testnet.binance.vision"
	}

	return &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) sign(params string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(params))
	return hex.EncodeToString(mac.Sum(nil))
}

// OrderRejectionError is returned when the exchange refuses an order
// (e.g. below minimum size). Callers treat it as "no action taken".
type OrderRejectionError struct {
	Code    int
	Message string
}

func (e *OrderRejectionError) Error() string {
	return fmt.Sprintf("order rejected by exchange (code %d): %s", e.Code, e.Message)
}

func (c *Client) get(ctx context.Context, url string, signed bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance API error (%d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// GetOrderBook returns the top depth bid/ask levels, best price first.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, depth int) (types.OrderBook, error) {
	url := fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=%d", c.baseURL, symbol, depth)

	body, err := c.get(ctx, url, false)
	if err != nil {
		return types.OrderBook{}, err
	}

	var raw struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return types.OrderBook{}, fmt.Errorf("failed to parse depth: %v", err)
	}

	book := types.OrderBook{}
	for _, b := range raw.Bids {
		level, err := parseLevel(b)
		if err != nil {
			return types.OrderBook{}, err
		}
		book.Bids = append(book.Bids, level)
	}
	for _, a := range raw.Asks {
		level, err := parseLevel(a)
		if err != nil {
			return types.OrderBook{}, err
		}
		book.Asks = append(book.Asks, level)
	}

	return book, nil
}

func parseLevel(raw []string) (types.BookLevel, error) {
	if len(raw) < 2 {
		return types.BookLevel{}, fmt.Errorf("malformed book level: %v", raw)
	}
	price, err := strconv.ParseFloat(raw[0], 64)
	if err != nil {
		return types.BookLevel{}, err
	}
	qty, err := strconv.ParseFloat(raw[1], 64)
	if err != nil {
		return types.BookLevel{}, err
	}
	return types.BookLevel{Price: price, Quantity: qty}, nil
}

func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		c.baseURL, symbol, interval, limit)

	body, err := c.get(ctx, url, false)
	if err != nil {
		return nil, err
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("failed to parse klines: %v", err)
	}

	var candles []types.Candle
	for _, k := range rawKlines {
		if len(k) < 7 {
			return nil, fmt.Errorf("malformed kline: %v", k)
		}
		open, _ := strconv.ParseFloat(k[1].(string), 64)
		high, _ := strconv.ParseFloat(k[2].(string), 64)
		low, _ := strconv.ParseFloat(k[3].(string), 64)
		closePrice, _ := strconv.ParseFloat(k[4].(string), 64)
		volume, _ := strconv.ParseFloat(k[5].(string), 64)

		candles = append(candles, types.Candle{
			OpenTime:  time.UnixMilli(int64(k[0].(float64))),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			CloseTime: time.UnixMilli(int64(k[6].(float64))),
		})
	}

	return candles, nil
}

// GetLatestCandle returns the most recent closed bar for the interval.
func (c *Client) GetLatestCandle(ctx context.Context, symbol, interval string) (types.Candle, error) {
	candles, err := c.GetKlines(ctx, symbol, interval, 1)
	if err != nil {
		return types.Candle{}, err
	}
	if len(candles) == 0 {
		return types.Candle{}, fmt.Errorf("no candles returned for %s %s", symbol, interval)
	}
	return candles[len(candles)-1], nil
}

func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.baseURL, symbol)

	body, err := c.get(ctx, url, false)
	if err != nil {
		return 0, err
	}

	var priceResp struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &priceResp); err != nil {
		return 0, fmt.Errorf("failed to parse ticker price: %v", err)
	}

	return strconv.ParseFloat(priceResp.Price, 64)
}

// GetBalances returns the free balances for the two assets of the pair.
func (c *Client) GetBalances(ctx context.Context, baseAsset, quoteAsset string) (types.Balances, error) {
	timestamp := time.Now().UnixMilli()
	params := fmt.Sprintf("timestamp=%d", timestamp)
	signature := c.sign(params)

	url := fmt.Sprintf("%s/api/v3/account?%s&signature=%s", c.baseURL, params, signature)

	body, err := c.get(ctx, url, true)
	if err != nil {
		return types.Balances{}, err
	}

	var account struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &account); err != nil {
		return types.Balances{}, fmt.Errorf("failed to parse account: %v", err)
	}

	var balances types.Balances
	for _, b := range account.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		switch b.Asset {
		case baseAsset:
			balances.Base = free
		case quoteAsset:
			balances.Quote = free
		}
	}

	return balances, nil
}

// GetLotSizeRule fetches the LOT_SIZE and NOTIONAL filters for the symbol.
func (c *Client) GetLotSizeRule(ctx context.Context, symbol string) (types.LotSizeRule, error) {
	url := fmt.Sprintf("%s/api/v3/exchangeInfo?symbol=%s", c.baseURL, symbol)

	body, err := c.get(ctx, url, false)
	if err != nil {
		return types.LotSizeRule{}, err
	}

	var info struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType  string `json:"filterType"`
				StepSize    string `json:"stepSize"`
				MinQty      string `json:"minQty"`
				MinNotional string `json:"minNotional"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return types.LotSizeRule{}, fmt.Errorf("failed to parse exchange info: %v", err)
	}
	if len(info.Symbols) == 0 {
		return types.LotSizeRule{}, fmt.Errorf("symbol %s missing from exchange info", symbol)
	}

	var rule types.LotSizeRule
	for _, f := range info.Symbols[0].Filters {
		switch f.FilterType {
		case "LOT_SIZE":
			rule.StepSize, _ = strconv.ParseFloat(f.StepSize, 64)
			rule.MinQty, _ = strconv.ParseFloat(f.MinQty, 64)
		case "NOTIONAL", "MIN_NOTIONAL":
			rule.MinNotional, _ = strconv.ParseFloat(f.MinNotional, 64)
		}
	}
	return rule, nil
}

// PlaceMarketOrder submits a MARKET order. Quantities must already respect
// the symbol's lot-size step.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol, side string, quantity float64, step float64) (*types.Trade, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", "MARKET")
	params.Set("quantity", FormatQuantity(quantity, step))
	params.Set("newClientOrderId", uuid.NewString())
	params.Set("timestamp", fmt.Sprintf("%d", time.Now().UnixMilli()))

	signature := c.sign(params.Encode())
	params.Set("signature", signature)

	reqURL := fmt.Sprintf("%s/api/v3/order?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Code != 0 {
			return nil, &OrderRejectionError{Code: apiErr.Code, Message: apiErr.Msg}
		}
		return nil, fmt.Errorf("order failed (%d): %s", resp.StatusCode, string(body))
	}

	var orderResp struct {
		OrderID     int64  `json:"orderId"`
		ExecutedQty string `json:"executedQty"`
		Fills       []struct {
			Price string `json:"price"`
			Qty   string `json:"qty"`
		} `json:"fills"`
	}
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return nil, fmt.Errorf("failed to parse order response: %v", err)
	}

	executedQty, _ := strconv.ParseFloat(orderResp.ExecutedQty, 64)

	// Market orders report the real price per fill; average it.
	var avgPrice float64
	if len(orderResp.Fills) > 0 {
		var notional, filled float64
		for _, f := range orderResp.Fills {
			p, _ := strconv.ParseFloat(f.Price, 64)
			q, _ := strconv.ParseFloat(f.Qty, 64)
			notional += p * q
			filled += q
		}
		if filled > 0 {
			avgPrice = notional / filled
		}
	}

	return &types.Trade{
		Symbol:    symbol,
		Side:      side,
		Quantity:  executedQty,
		Price:     avgPrice,
		Timestamp: time.Now(),
		OrderID:   fmt.Sprintf("%d", orderResp.OrderID),
	}, nil
}

// QuantizeQuantity floors quantity to the lot-size step.
func QuantizeQuantity(quantity, step float64) float64 {
	if step <= 0 {
		return quantity
	}
	// The division is epsilon-padded so exact multiples of the step do not
	// floor one whole step down on float error.
	steps := math.Floor(quantity/step + 1e-6)
	return steps * step
}

// FormatQuantity renders a quantity with the step's decimal precision.
func FormatQuantity(quantity, step float64) string {
	decimals := 0
	for step > 0 && step < 1 && decimals < 8 {
		step *= 10
		decimals++
	}
	return strconv.FormatFloat(quantity, 'f', decimals, 64)
}
