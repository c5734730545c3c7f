// File: internal/engine/accounting.go
// ============================================
package engine

// RealizedPnL computes the fee-adjusted result of a full exit in local
// currency. Fees are charged on both legs: on the recorded cost basis and on
// the gross proceeds.
func RealizedPnL(quantity, exitPrice, fxRate, costBasisLocal, feePct float64) float64 {
	gross := quantity * exitPrice * fxRate
	entryFee := costBasisLocal * feePct / 100
	exitFee := gross * feePct / 100
	return gross - costBasisLocal - entryFee - exitFee
}
