// File: internal/risk/manager.go
// ============================================
package risk

import (
	"sort"

	"binance-tape-bot/pkg/types"
)

// Manager owns the active exit thresholds and the session's realized PnL.
// Thresholds are recalibrated every cycle from the latest candle range and
// are not persisted across restarts.
type Manager struct {
	tiers      []types.VolatilityTier
	params     types.RiskParams
	sessionPnL float64
}

func NewManager(tiers []types.VolatilityTier) *Manager {
	if len(tiers) == 0 {
		tiers = types.DefaultVolatilityTiers()
	}

	sorted := make([]types.VolatilityTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinRange > sorted[j].MinRange
	})

	m := &Manager{tiers: sorted}
	// Start on the calmest tier until the first candle arrives.
	m.Recalibrate(0)
	return m
}

// Recalibrate picks the thresholds for the given candle range. The first
// tier whose MinRange is strictly exceeded wins; the last tier is the
// catch-all.
func (m *Manager) Recalibrate(candleRange float64) types.RiskParams {
	for i, tier := range m.tiers {
		if candleRange > tier.MinRange || i == len(m.tiers)-1 {
			m.params = types.RiskParams{
				TakeProfitPct:   tier.TakeProfitPct,
				StopLossPct:     tier.StopLossPct,
				TrailingStopPct: tier.TrailingStopPct,
			}
			break
		}
	}
	return m.params
}

func (m *Manager) Params() types.RiskParams {
	return m.params
}

func (m *Manager) AddRealizedPnL(pnl float64) {
	m.sessionPnL += pnl
}

func (m *Manager) SessionPnL() float64 {
	return m.sessionPnL
}

func (m *Manager) ResetSessionPnL() {
	m.sessionPnL = 0
}
