// File: internal/engine/accounting_test.go
// ============================================
package engine

import (
	"math"
	"testing"
)

func TestRealizedPnL(t *testing.T) {
	tests := []struct {
		name           string
		quantity       float64
		exitPrice      float64
		fxRate         float64
		costBasisLocal float64
		feePct         float64
		want           float64
	}{
		{
			// gross = 1050; 1050 - 1000 - 1.0 - 1.05 = 47.95
			name:           "profitable round trip",
			quantity:       0.5,
			exitPrice:      105,
			fxRate:         20,
			costBasisLocal: 1000,
			feePct:         0.1,
			want:           47.95,
		},
		{
			// gross = 900; fees still charged on both legs.
			name:           "losing round trip",
			quantity:       0.5,
			exitPrice:      90,
			fxRate:         20,
			costBasisLocal: 1000,
			feePct:         0.1,
			want:           900 - 1000 - 1.0 - 0.9,
		},
		{
			name:           "zero fee",
			quantity:       1,
			exitPrice:      110,
			fxRate:         1,
			costBasisLocal: 100,
			feePct:         0,
			want:           10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RealizedPnL(tt.quantity, tt.exitPrice, tt.fxRate, tt.costBasisLocal, tt.feePct)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RealizedPnL() = %v, want %v", got, tt.want)
			}
		})
	}
}
