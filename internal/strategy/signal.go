// File: internal/strategy/signal.go
// ============================================
package strategy

import (
	"binance-tape-bot/pkg/types"
)

type Pressure string

const (
	PressureBuy     Pressure = "BUY"
	PressureSell    Pressure = "SELL"
	PressureNeutral Pressure = "NEUTRAL"
)

// Signal is derived fresh every cycle from the order book and the latest
// closed candle. It is never persisted.
type Signal struct {
	Pressure Pressure
	Reversal bool
	TotalBid float64
	TotalAsk float64
}

type Classifier struct {
	imbalanceRatio float64
}

func NewClassifier(imbalanceRatio float64) *Classifier {
	return &Classifier{imbalanceRatio: imbalanceRatio}
}

// Classify runs the tape-reading and price-action checks on one snapshot.
// Inputs are assumed already validated; pure arithmetic, no error paths.
func (c *Classifier) Classify(book types.OrderBook, candle types.Candle) Signal {
	totalBid := book.TotalBidQty()
	totalAsk := book.TotalAskQty()

	pressure := PressureNeutral
	switch {
	case totalBid > totalAsk*c.imbalanceRatio:
		pressure = PressureBuy
	case totalAsk > totalBid*c.imbalanceRatio:
		pressure = PressureSell
	}

	return Signal{
		Pressure: pressure,
		Reversal: isReversalCandle(candle),
		TotalBid: totalBid,
		TotalAsk: totalAsk,
	}
}

// isReversalCandle detects the hammer/pin-bar shape: small body under the
// upper shadow with a lower shadow longer than twice the body. Both
// comparisons are strict.
func isReversalCandle(c types.Candle) bool {
	body := c.Close - c.Open
	if body < 0 {
		body = -body
	}

	maxOC := c.Open
	minOC := c.Close
	if c.Close > c.Open {
		maxOC = c.Close
		minOC = c.Open
	}

	upperShadow := c.High - maxOC
	lowerShadow := minOC - c.Low

	return body < upperShadow && lowerShadow > 2*body
}
