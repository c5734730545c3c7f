// File: internal/binance/client_test.go
// ============================================
package binance

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQuantizeQuantity(t *testing.T) {
	tests := []struct {
		quantity float64
		step     float64
		want     float64
	}{
		{0.5, 0.1, 0.5},
		{0.123456, 0.001, 0.123},
		{10, 0.0001, 10},       // exact multiple must not floor a step down
		{0.00009, 0.0001, 0},   // below one step
		{1.999999, 0.5, 1.5},
		{7, 1, 7},
		{3.2, 0, 3.2}, // degenerate step leaves quantity untouched
	}

	for _, tt := range tests {
		got := QuantizeQuantity(tt.quantity, tt.step)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("QuantizeQuantity(%v, %v) = %v, want %v", tt.quantity, tt.step, got, tt.want)
		}
	}
}

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		quantity float64
		step     float64
		want     string
	}{
		{0.123, 0.001, "0.123"},
		{10, 1, "10"},
		{0.5, 0.1, "0.5"},
		{0.00012, 0.00001, "0.00012"},
	}

	for _, tt := range tests {
		if got := FormatQuantity(tt.quantity, tt.step); got != tt.want {
			t.Errorf("FormatQuantity(%v, %v) = %q, want %q", tt.quantity, tt.step, got, tt.want)
		}
	}
}

func TestGetOrderBookParsesDepth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/depth" {
			t.Errorf("path = %s, want /api/v3/depth", r.URL.Path)
		}
		w.Write([]byte(`{
			"bids": [["64000.10","0.5"],["64000.00","1.2"]],
			"asks": [["64001.00","0.3"],["64002.50","0.9"]]
		}`))
	}))
	defer srv.Close()

	c := NewClient("", "", false)
	c.baseURL = srv.URL

	book, err := c.GetOrderBook(context.Background(), "BTCUSDT", 5)
	if err != nil {
		t.Fatalf("GetOrderBook() error: %v", err)
	}
	if len(book.Bids) != 2 || len(book.Asks) != 2 {
		t.Fatalf("levels = %d/%d, want 2/2", len(book.Bids), len(book.Asks))
	}
	if book.Bids[0].Price != 64000.10 || book.Bids[0].Quantity != 0.5 {
		t.Errorf("best bid = %+v", book.Bids[0])
	}
	if got := book.TotalAskQty(); math.Abs(got-1.2) > 1e-9 {
		t.Errorf("TotalAskQty() = %v, want 1.2", got)
	}
}

func TestGetLatestCandleParsesKline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1700000000000,"100.0","104.0","80.0","101.0","12.5",1700000059999]]`))
	}))
	defer srv.Close()

	c := NewClient("", "", false)
	c.baseURL = srv.URL

	candle, err := c.GetLatestCandle(context.Background(), "BTCUSDT", "1m")
	if err != nil {
		t.Fatalf("GetLatestCandle() error: %v", err)
	}
	if candle.Open != 100 || candle.High != 104 || candle.Low != 80 || candle.Close != 101 {
		t.Errorf("candle = %+v", candle)
	}
	if !candle.Valid() {
		t.Errorf("fixture candle reported invalid")
	}
}

func TestGetLotSizeRuleParsesFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbols":[{"symbol":"BTCUSDT","filters":[
			{"filterType":"LOT_SIZE","stepSize":"0.00001000","minQty":"0.00001000"},
			{"filterType":"NOTIONAL","minNotional":"5.00000000"}
		]}]}`))
	}))
	defer srv.Close()

	c := NewClient("", "", false)
	c.baseURL = srv.URL

	rule, err := c.GetLotSizeRule(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetLotSizeRule() error: %v", err)
	}
	if rule.StepSize != 0.00001 || rule.MinQty != 0.00001 || rule.MinNotional != 5 {
		t.Errorf("rule = %+v", rule)
	}
}

func TestPlaceMarketOrderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1013,"msg":"Filter failure: LOT_SIZE"}`))
	}))
	defer srv.Close()

	c := NewClient("key", "secret", false)
	c.baseURL = srv.URL

	_, err := c.PlaceMarketOrder(context.Background(), "BTCUSDT", "BUY", 0.001, 0.001)

	var rej *OrderRejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("err = %v, want *OrderRejectionError", err)
	}
	if rej.Code != -1013 {
		t.Errorf("code = %d, want -1013", rej.Code)
	}
}

func TestPlaceMarketOrderAveragesFills(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Write([]byte(`{"orderId":42,"executedQty":"0.004","fills":[
			{"price":"64000.0","qty":"0.003"},
			{"price":"64010.0","qty":"0.001"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("key", "secret", false)
	c.baseURL = srv.URL

	trade, err := c.PlaceMarketOrder(context.Background(), "BTCUSDT", "SELL", 0.004, 0.001)
	if err != nil {
		t.Fatalf("PlaceMarketOrder() error: %v", err)
	}
	if trade.Quantity != 0.004 {
		t.Errorf("quantity = %v, want 0.004", trade.Quantity)
	}
	// (64000*0.003 + 64010*0.001) / 0.004 = 64002.5
	if math.Abs(trade.Price-64002.5) > 1e-6 {
		t.Errorf("avg price = %v, want 64002.5", trade.Price)
	}
	if trade.OrderID != "42" {
		t.Errorf("order id = %q, want \"42\"", trade.OrderID)
	}
}
