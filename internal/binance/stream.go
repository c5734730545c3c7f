// File: internal/binance/stream.go
// ============================================
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// PriceFeed keeps the last trade price hot off the exchange trade stream so
// a cycle can read it without a REST round trip. Callers fall back to REST
// when the feed is stale or disconnected.
type PriceFeed struct {
	wsURL  string
	symbol string
	logger *zap.SugaredLogger

	mu        sync.RWMutex
	lastPrice float64
	updatedAt time.Time
}

type tradeEvent struct {
	EventType string `json:"e"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"`
}

func NewPriceFeed(symbol string, testnet bool, logger *zap.SugaredLogger) *PriceFeed {
	host := "wss://stream.binance.com:9443"
	if testnet {
		host = "wss://stream.testnet.binance.vision"
	}
	return &PriceFeed{
		wsURL:  fmt.Sprintf("%s/ws/%s@trade", host, strings.ToLower(symbol)),
		symbol: symbol,
		logger: logger,
	}
}

// Start blocks, reconnecting until ctx is cancelled.
func (f *PriceFeed) Start(ctx context.Context) {
	for {
		if err := f.connectAndRead(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warnf("⚠️  Trade stream dropped, reconnecting in 5s: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (f *PriceFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.logger.Infof("📡 Trade stream connected: %s", f.wsURL)

	// Unblock ReadMessage on shutdown.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev tradeEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			continue
		}
		if ev.EventType != "trade" {
			continue
		}

		price, err := strconv.ParseFloat(ev.Price, 64)
		if err != nil || price <= 0 {
			continue
		}

		f.mu.Lock()
		f.lastPrice = price
		f.updatedAt = time.UnixMilli(ev.TradeTime)
		f.mu.Unlock()
	}
}

// LastPrice returns the most recent trade price and its timestamp.
// ok is false until the first trade arrives.
func (f *PriceFeed) LastPrice() (price float64, at time.Time, ok bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastPrice, f.updatedAt, f.lastPrice > 0
}
