// File: cmd/bot/main.go
// ============================================
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"binance-tape-bot/internal/binance"
	"binance-tape-bot/internal/engine"
	"binance-tape-bot/internal/fx"
	"binance-tape-bot/internal/metrics"
	"binance-tape-bot/internal/risk"
	"binance-tape-bot/internal/strategy"
	"binance-tape-bot/internal/telegram"
	"binance-tape-bot/pkg/types"
)

type Bot struct {
	config   *types.Config
	logger   *zap.SugaredLogger
	client   *binance.Client
	feed     *binance.PriceFeed
	market   *binance.Market
	engine   *engine.Engine
	state    *engine.State
	risk     *risk.Manager
	telegram *telegram.Notifier

	cycles         uint64
	lastReportTime time.Time
}

func NewBot(configPath string) (*Bot, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using config values")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %v", err)
	}

	var config types.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	// Override secrets with environment variables
	if apiKey := os.Getenv("BINANCE_API_KEY"); apiKey != "" {
		config.Binance.APIKey = apiKey
	}
	if secretKey := os.Getenv("BINANCE_SECRET_KEY"); secretKey != "" {
		config.Binance.SecretKey = secretKey
	}
	if testnet := os.Getenv("BINANCE_TESTNET"); testnet == "false" {
		config.Binance.Testnet = false
	}
	if botToken := os.Getenv("TELEGRAM_BOT_TOKEN"); botToken != "" {
		config.Telegram.BotToken = botToken
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		config.Telegram.ChatID = chatID
	}

	config.ApplyDefaults()

	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %v", err)
	}

	client := binance.NewClient(
		config.Binance.APIKey,
		config.Binance.SecretKey,
		config.Binance.Testnet,
	)

	var feed *binance.PriceFeed
	if config.Stream.Enabled {
		feed = binance.NewPriceFeed(config.Strategy.Symbol, config.Binance.Testnet, logger)
	}

	market := binance.NewMarket(
		client,
		feed,
		config.Strategy.Symbol,
		config.Strategy.BaseAsset,
		config.Strategy.QuoteAsset,
		config.Strategy.CandleInterval,
		config.Strategy.BookDepth,
		time.Duration(config.Stream.StaleSeconds)*time.Second,
	)

	rates := fx.NewCachedSource(
		fx.NewPairSource(client, config.FX.Symbol),
		time.Duration(config.FX.TTLMinutes)*time.Minute,
		logger,
	)

	classifier := strategy.NewClassifier(config.Strategy.ImbalanceRatio)
	riskMgr := risk.NewManager(config.Risk.Tiers)

	notifier := telegram.NewNotifier(
		config.Telegram.BotToken,
		config.Telegram.ChatID,
		config.Telegram.Enabled,
		config.Strategy.Symbol,
		config.FX.LocalCurrency,
		logger,
	)

	eng := engine.New(market, market, notifier, rates, classifier, riskMgr, engine.Config{
		QuoteMinimum:  config.Strategy.QuoteMinimum,
		DustThreshold: config.Strategy.DustThreshold,
		FeePercent:    config.Strategy.FeePercent,
	}, logger)

	return &Bot{
		config:         &config,
		logger:         logger,
		client:         client,
		feed:           feed,
		market:         market,
		engine:         eng,
		state:          engine.NewState(),
		risk:           riskMgr,
		telegram:       notifier,
		lastReportTime: time.Now(),
	}, nil
}

func newLogger() (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "time"

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func (b *Bot) Run(ctx context.Context) {
	s := b.config.Strategy
	b.logger.Infof("🚀 Tape Reading Bot started on %s", s.Symbol)
	b.logger.Infof("⚙️  Cycle: %ds | Imbalance ratio: %.2f | Fee: %.2f%% | Local currency: %s",
		s.CycleSeconds, s.ImbalanceRatio, s.FeePercent, b.config.FX.LocalCurrency)

	if b.config.Metrics.Enabled {
		go metrics.Serve(b.config.Metrics.Addr, b.logger)
	}
	if b.feed != nil {
		go b.feed.Start(ctx)
	}

	b.startupReport(ctx)
	b.telegram.NotifyStart()

	ticker := time.NewTicker(time.Duration(s.CycleSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("👋 Shutting down")
			return
		case <-ticker.C:
			b.runCycle()
			b.checkSessionReport()
		}
	}
}

// startupReport mirrors the operator console on boot: pair price in local
// currency and the free balances on both sides of the pair.
func (b *Bot) startupReport(ctx context.Context) {
	price, err := b.market.Price(ctx)
	if err != nil {
		b.logger.Warnf("⚠️  Could not fetch startup price: %v", err)
		return
	}
	b.logger.Infof("💵 %s price: %.2f %s", b.config.Strategy.Symbol, price, b.config.Strategy.QuoteAsset)

	bal, err := b.market.Balances(ctx)
	if err != nil {
		b.logger.Warnf("⚠️  Could not fetch startup balances: %v", err)
		return
	}
	b.logger.Infof("💰 Balances: %.8f %s | %.2f %s",
		bal.Base, b.config.Strategy.BaseAsset, bal.Quote, b.config.Strategy.QuoteAsset)
}

func (b *Bot) runCycle() {
	// Shutdown is honored between cycles only: a cycle that may submit an
	// order always runs to completion, bounded by its own timeout.
	cycleCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(b.config.Strategy.CycleSeconds)*time.Second)
	defer cancel()

	b.cycles++
	metrics.Cycles.Inc()

	outcome, err := b.engine.Evaluate(cycleCtx, b.state)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrDataIntegrity):
			metrics.CycleErrors.WithLabelValues("integrity").Inc()
			b.logger.Warnf("⚠️  Cycle aborted: %v", err)
		default:
			metrics.CycleErrors.WithLabelValues("transient").Inc()
			b.logger.Warnf("❌ Cycle skipped, retrying next tick: %v", err)
		}
		return
	}

	metrics.Decisions.WithLabelValues(string(outcome.Decision)).Inc()
	switch outcome.Decision {
	case engine.DecisionBuy:
		metrics.Orders.WithLabelValues("BUY").Inc()
	case engine.DecisionSell, engine.DecisionTakeProfit, engine.DecisionStopLoss, engine.DecisionTrailingStop:
		metrics.Orders.WithLabelValues("SELL").Inc()
		metrics.ExitReasons.WithLabelValues(string(outcome.Decision)).Inc()
	}
	metrics.SessionPnL.Set(b.risk.SessionPnL())
	if b.state.Side == engine.SideLong {
		metrics.PositionLong.Set(1)
	} else {
		metrics.PositionLong.Set(0)
	}

	if outcome.Decision == engine.DecisionNone {
		b.logger.Infof("📊 No action | pressure=%s side=%s", outcome.Pressure, b.state.Side)
	} else {
		b.logger.Infof("🔔 Decision=%s price=%.2f qty=%.8f side=%s",
			outcome.Decision, outcome.Price, outcome.Quantity, b.state.Side)
	}
}

func (b *Bot) checkSessionReport() {
	interval := time.Duration(b.config.Strategy.ReportMinutes) * time.Minute
	if time.Since(b.lastReportTime) < interval {
		return
	}

	b.telegram.NotifySessionReport(string(b.state.Side), b.risk.SessionPnL(), b.cycles)
	b.lastReportTime = time.Now()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := NewBot("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	bot.Run(ctx)
}
