// File: internal/risk/manager_test.go
// ============================================
package risk

import (
	"testing"

	"binance-tape-bot/pkg/types"
)

func TestRecalibrateTiers(t *testing.T) {
	tests := []struct {
		name        string
		candleRange float64
		want        types.RiskParams
	}{
		{"high volatility", 150, types.RiskParams{TakeProfitPct: 2.0, StopLossPct: 1.5, TrailingStopPct: 1.0}},
		{"boundary 100 falls to mid tier", 100, types.RiskParams{TakeProfitPct: 1.5, StopLossPct: 1.0, TrailingStopPct: 0.8}},
		{"mid volatility", 70, types.RiskParams{TakeProfitPct: 1.5, StopLossPct: 1.0, TrailingStopPct: 0.8}},
		{"boundary 50 falls to calm tier", 50, types.RiskParams{TakeProfitPct: 1.0, StopLossPct: 0.7, TrailingStopPct: 0.5}},
		{"calm", 12, types.RiskParams{TakeProfitPct: 1.0, StopLossPct: 0.7, TrailingStopPct: 0.5}},
		{"zero range", 0, types.RiskParams{TakeProfitPct: 1.0, StopLossPct: 0.7, TrailingStopPct: 0.5}},
	}

	m := NewManager(nil) // default tiers

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Recalibrate(tt.candleRange)
			if got != tt.want {
				t.Errorf("Recalibrate(%v) = %+v, want %+v", tt.candleRange, got, tt.want)
			}
			if m.Params() != got {
				t.Errorf("Params() = %+v, want the recalibrated %+v", m.Params(), got)
			}
		})
	}
}

func TestRecalibrateSortsUnorderedTiers(t *testing.T) {
	m := NewManager([]types.VolatilityTier{
		{MinRange: 0, TakeProfitPct: 1.0, StopLossPct: 0.7, TrailingStopPct: 0.5},
		{MinRange: 100, TakeProfitPct: 2.0, StopLossPct: 1.5, TrailingStopPct: 1.0},
		{MinRange: 50, TakeProfitPct: 1.5, StopLossPct: 1.0, TrailingStopPct: 0.8},
	})

	got := m.Recalibrate(200)
	if got.TakeProfitPct != 2.0 {
		t.Errorf("Recalibrate(200) picked TP %v, want 2.0", got.TakeProfitPct)
	}
}

func TestSessionPnL(t *testing.T) {
	m := NewManager(nil)

	m.AddRealizedPnL(47.95)
	m.AddRealizedPnL(-10.5)

	if got := m.SessionPnL(); got != 37.45 {
		t.Errorf("SessionPnL() = %v, want 37.45", got)
	}

	m.ResetSessionPnL()
	if got := m.SessionPnL(); got != 0 {
		t.Errorf("SessionPnL() after reset = %v, want 0", got)
	}
}
