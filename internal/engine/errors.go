// File: internal/engine/errors.go
// ============================================
package engine

import (
	"errors"
	"fmt"
)

// The engine never has a fatal error category. A transient failure skips the
// remainder of the current cycle and is retried on the next scheduled one; a
// data-integrity failure aborts the cycle's decision step and is logged.
var (
	ErrTransient     = errors.New("transient collaborator failure")
	ErrDataIntegrity = errors.New("malformed market data")
)

func transientf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrTransient, fmt.Sprintf(format, args...))
}

func integrityf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrDataIntegrity, fmt.Sprintf(format, args...))
}
