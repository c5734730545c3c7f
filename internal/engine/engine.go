// File: internal/engine/engine.go
// ============================================
package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"binance-tape-bot/internal/binance"
	"binance-tape-bot/internal/risk"
	"binance-tape-bot/internal/strategy"
	"binance-tape-bot/pkg/types"
)

type Side string

const (
	SideFlat Side = "FLAT"
	SideLong Side = "LONG"
)

// Exit thresholds are inclusive. The percent math runs on float64, so an
// exact boundary like (109.12-110)/110*100 lands a hair short of -0.8;
// the comparisons are epsilon-padded so those boundaries still fire.
const pctEpsilon = 1e-9

// Action tracks the last order direction submitted, independent of Side.
// The engine never submits the same direction twice without an opposing
// order in between.
type Action string

const (
	ActionNone Action = "none"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// State is the only entity whose lifetime spans cycles. The driver owns it
// and threads it through successive Evaluate calls; the engine itself keeps
// no position state.
type State struct {
	Side           Side
	EntryPrice     float64
	PeakPrice      float64
	Quantity       float64
	CostBasisLocal float64
	CostBasisSet   bool
	LastAction     Action
	Risk           types.RiskParams
}

func NewState() *State {
	return &State{Side: SideFlat, LastAction: ActionNone}
}

type Decision string

const (
	DecisionNone         Decision = "none"
	DecisionBuy          Decision = "buy"
	DecisionSell         Decision = "sell"
	DecisionTakeProfit   Decision = "take_profit"
	DecisionStopLoss     Decision = "stop_loss"
	DecisionTrailingStop Decision = "trailing_stop"
	DecisionBelowMin     Decision = "below_minimum"
	DecisionRejected     Decision = "rejected"
)

// Outcome reports what a cycle decided, for logging, metrics and reports.
type Outcome struct {
	Decision Decision
	Pressure strategy.Pressure
	Price    float64
	Quantity float64
	PnLLocal float64
	PnLKnown bool
	Reason   string
}

// MarketData is the read side of the exchange for the traded pair.
type MarketData interface {
	OrderBook(ctx context.Context) (types.OrderBook, error)
	LatestCandle(ctx context.Context) (types.Candle, error)
	Price(ctx context.Context) (float64, error)
	Balances(ctx context.Context) (types.Balances, error)
	LotSizeRule(ctx context.Context) (types.LotSizeRule, error)
}

// Trader submits market orders. Quantities passed in already respect the
// lot-size step.
type Trader interface {
	MarketBuy(ctx context.Context, quantity float64) (*types.Trade, error)
	MarketSell(ctx context.Context, quantity float64) (*types.Trade, error)
}

// Notifier delivers operator messages. Best-effort: implementations swallow
// their own failures and must never block the decision path.
type Notifier interface {
	NotifyEntry(price, quantity, costBasisLocal float64)
	NotifyExit(reason string, price, pnlLocal float64, pnlKnown bool)
}

// RateSource converts quote currency to local currency.
type RateSource interface {
	Rate(ctx context.Context) (float64, error)
}

type Config struct {
	QuoteMinimum  float64
	DustThreshold float64
	FeePercent    float64
}

// Engine is the strategy evaluator: one evaluation per cycle, at most one
// order per cycle.
type Engine struct {
	market     MarketData
	trader     Trader
	notifier   Notifier
	rates      RateSource
	classifier *strategy.Classifier
	risk       *risk.Manager
	cfg        Config
	logger     *zap.SugaredLogger
}

func New(market MarketData, trader Trader, notifier Notifier, rates RateSource,
	classifier *strategy.Classifier, riskMgr *risk.Manager, cfg Config, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		market:     market,
		trader:     trader,
		notifier:   notifier,
		rates:      rates,
		classifier: classifier,
		risk:       riskMgr,
		cfg:        cfg,
		logger:     logger,
	}
}

// Evaluate runs one full cycle: resolve all reads, recalibrate thresholds,
// run the exit rules in fixed priority while LONG, then the entry/flip
// evaluation. Errors wrap ErrTransient or ErrDataIntegrity; in both cases no
// order was submitted and the state is untouched.
func (e *Engine) Evaluate(ctx context.Context, st *State) (Outcome, error) {
	book, err := e.market.OrderBook(ctx)
	if err != nil {
		return Outcome{}, transientf("order book: %v", err)
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return Outcome{}, integrityf("order book has an empty side")
	}

	candle, err := e.market.LatestCandle(ctx)
	if err != nil {
		return Outcome{}, transientf("latest candle: %v", err)
	}
	if !candle.Valid() {
		return Outcome{}, integrityf("candle violates low<=min(o,c)<=max(o,c)<=high: o=%v h=%v l=%v c=%v",
			candle.Open, candle.High, candle.Low, candle.Close)
	}

	price, err := e.market.Price(ctx)
	if err != nil {
		return Outcome{}, transientf("current price: %v", err)
	}
	if price <= 0 {
		return Outcome{}, integrityf("non-positive price %v", price)
	}

	bal, err := e.market.Balances(ctx)
	if err != nil {
		return Outcome{}, transientf("balances: %v", err)
	}

	// Thresholds adapt to the latest bar's volatility every cycle,
	// regardless of position side.
	st.Risk = e.risk.Recalibrate(candle.Range())

	if st.Side == SideLong {
		gainPct := (price - st.EntryPrice) / st.EntryPrice * 100

		// 1. Take-profit. Fires first; nothing else is evaluated after it.
		if gainPct >= st.Risk.TakeProfitPct-pctEpsilon && bal.Base > e.cfg.DustThreshold {
			e.logger.Infof("🎯 Take-profit: +%.2f%% >= %.2f%%", gainPct, st.Risk.TakeProfitPct)
			return e.liquidate(ctx, st, bal, price, DecisionTakeProfit,
				fmt.Sprintf("take-profit at +%.2f%%", gainPct))
		}

		// 2. Peak update.
		if price > st.PeakPrice {
			st.PeakPrice = price
		}

		// 3. Stop-loss.
		if gainPct <= -st.Risk.StopLossPct+pctEpsilon {
			e.logger.Infof("🛑 Stop-loss: %.2f%% <= -%.2f%%", gainPct, st.Risk.StopLossPct)
			return e.liquidate(ctx, st, bal, price, DecisionStopLoss,
				fmt.Sprintf("stop-loss at %.2f%%", gainPct))
		}

		// 4. Trailing stop from the peak since entry.
		drawdownPct := (price - st.PeakPrice) / st.PeakPrice * 100
		if drawdownPct <= -st.Risk.TrailingStopPct+pctEpsilon {
			e.logger.Infof("📉 Trailing stop: %.2f%% from peak %.2f", drawdownPct, st.PeakPrice)
			return e.liquidate(ctx, st, bal, price, DecisionTrailingStop,
				fmt.Sprintf("trailing stop, %.2f%% off peak", drawdownPct))
		}
	}

	sig := e.classifier.Classify(book, candle)

	switch {
	case sig.Pressure == strategy.PressureBuy && sig.Reversal:
		// Duplicate-action guard, checked before any balance or quantity
		// computation. Entering LONG set LastAction=buy, so this also
		// blocks pyramiding onto an open position.
		if st.LastAction == ActionBuy {
			e.logger.Info("🚫 Buy skipped (last action was already a buy)")
			return Outcome{Decision: DecisionNone, Pressure: sig.Pressure, Price: price,
				Reason: "duplicate buy blocked"}, nil
		}
		if bal.Quote <= e.cfg.QuoteMinimum {
			return Outcome{Decision: DecisionNone, Pressure: sig.Pressure, Price: price,
				Reason: fmt.Sprintf("quote balance %.2f below minimum %.2f", bal.Quote, e.cfg.QuoteMinimum)}, nil
		}
		return e.enterLong(ctx, st, bal, price, sig)

	case sig.Pressure == strategy.PressureSell && sig.Reversal:
		if st.LastAction == ActionSell {
			e.logger.Info("🚫 Sell skipped (last action was already a sell)")
			return Outcome{Decision: DecisionNone, Pressure: sig.Pressure, Price: price,
				Reason: "duplicate sell blocked"}, nil
		}
		if bal.Base <= e.cfg.DustThreshold {
			return Outcome{Decision: DecisionNone, Pressure: sig.Pressure, Price: price,
				Reason: "base balance below dust threshold"}, nil
		}
		return e.liquidate(ctx, st, bal, price, DecisionSell, "sell pressure with reversal candle")
	}

	return Outcome{Decision: DecisionNone, Pressure: sig.Pressure, Price: price}, nil
}

func (e *Engine) enterLong(ctx context.Context, st *State, bal types.Balances, price float64, sig strategy.Signal) (Outcome, error) {
	rule, err := e.market.LotSizeRule(ctx)
	if err != nil {
		return Outcome{}, transientf("trading rules: %v", err)
	}
	if rule.StepSize <= 0 {
		return Outcome{}, integrityf("lot-size step missing from trading rules")
	}

	quantity := binance.QuantizeQuantity(bal.Quote/price, rule.StepSize)
	if quantity < rule.MinQty || quantity*price < rule.MinNotional {
		e.logger.Infof("⚠️  Buy of %.8f below exchange minimum, no order sent", quantity)
		return Outcome{Decision: DecisionBelowMin, Pressure: sig.Pressure, Price: price,
			Reason: "buy quantity below exchange minimum"}, nil
	}

	// The cost basis is recorded in local currency at entry; without a rate
	// the fill would be unaccountable, so the rate is resolved before the
	// order goes out.
	rate, err := e.rates.Rate(ctx)
	if err != nil {
		return Outcome{}, transientf("fx rate: %v", err)
	}

	trade, err := e.trader.MarketBuy(ctx, quantity)
	if err != nil {
		var rej *binance.OrderRejectionError
		if errors.As(err, &rej) {
			e.logger.Warnf("🚫 Buy rejected by exchange: %v", rej)
			return Outcome{Decision: DecisionRejected, Pressure: sig.Pressure, Price: price,
				Reason: rej.Error()}, nil
		}
		return Outcome{}, transientf("buy order: %v", err)
	}

	entryPrice := price
	if trade.Price > 0 {
		entryPrice = trade.Price
	}
	fillQty := quantity
	if trade.Quantity > 0 {
		fillQty = trade.Quantity
	}

	st.Side = SideLong
	st.EntryPrice = entryPrice
	st.PeakPrice = entryPrice
	st.Quantity = fillQty
	st.CostBasisLocal = fillQty * entryPrice * rate
	st.CostBasisSet = true
	st.LastAction = ActionBuy

	e.logger.Infof("✅ BUY executed: %.8f @ %.2f (cost basis %.2f local)", fillQty, entryPrice, st.CostBasisLocal)
	e.notifier.NotifyEntry(entryPrice, fillQty, st.CostBasisLocal)

	return Outcome{Decision: DecisionBuy, Pressure: sig.Pressure, Price: entryPrice, Quantity: fillQty}, nil
}

// liquidate sells the full base balance at market and clears the position.
// Every full liquidation records LastAction=sell, which is what re-arms the
// duplicate-action guard for the next entry.
func (e *Engine) liquidate(ctx context.Context, st *State, bal types.Balances, price float64, decision Decision, reason string) (Outcome, error) {
	rule, err := e.market.LotSizeRule(ctx)
	if err != nil {
		return Outcome{}, transientf("trading rules: %v", err)
	}
	if rule.StepSize <= 0 {
		return Outcome{}, integrityf("lot-size step missing from trading rules")
	}

	quantity := binance.QuantizeQuantity(bal.Base, rule.StepSize)
	if quantity < rule.MinQty || quantity*price < rule.MinNotional {
		e.logger.Infof("⚠️  Sell of %.8f below exchange minimum, no order sent", quantity)
		return Outcome{Decision: DecisionBelowMin, Price: price,
			Reason: "sell quantity below exchange minimum"}, nil
	}

	trade, err := e.trader.MarketSell(ctx, quantity)
	if err != nil {
		var rej *binance.OrderRejectionError
		if errors.As(err, &rej) {
			e.logger.Warnf("🚫 Sell rejected by exchange: %v", rej)
			return Outcome{Decision: DecisionRejected, Price: price, Reason: rej.Error()}, nil
		}
		return Outcome{}, transientf("sell order: %v", err)
	}

	exitPrice := price
	if trade.Price > 0 {
		exitPrice = trade.Price
	}
	exitQty := quantity
	if trade.Quantity > 0 {
		exitQty = trade.Quantity
	}

	var pnl float64
	pnlKnown := false
	if st.CostBasisSet {
		rate, err := e.rates.Rate(ctx)
		if err != nil {
			// The sell already went through; report the exit without PnL
			// rather than failing the cycle.
			e.logger.Warnf("⚠️  Realized PnL unavailable, FX rate missing: %v", err)
		} else {
			pnl = RealizedPnL(exitQty, exitPrice, rate, st.CostBasisLocal, e.cfg.FeePercent)
			pnlKnown = true
			e.risk.AddRealizedPnL(pnl)
		}
	}

	// Cost basis is consumed at most once.
	st.Side = SideFlat
	st.EntryPrice = 0
	st.PeakPrice = 0
	st.Quantity = 0
	st.CostBasisLocal = 0
	st.CostBasisSet = false
	st.LastAction = ActionSell

	if pnlKnown {
		e.logger.Infof("✅ SELL executed: %.8f @ %.2f | PnL %.2f local | %s", exitQty, exitPrice, pnl, reason)
	} else {
		e.logger.Infof("✅ SELL executed: %.8f @ %.2f | %s", exitQty, exitPrice, reason)
	}
	e.notifier.NotifyExit(reason, exitPrice, pnl, pnlKnown)

	return Outcome{Decision: decision, Price: exitPrice, Quantity: exitQty,
		PnLLocal: pnl, PnLKnown: pnlKnown, Reason: reason}, nil
}
