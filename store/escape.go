package store

import (
	"errors"
	"log/slog"

	"github.com/tailored-agentic-units/statebox/deferred"
)

// EscapeFunc receives continuation errors after they have left the side
// effect's continuation. It runs outside the store's turn lock.
type EscapeFunc func(err *ContinuationError)

// EscapePanic re-raises err on a fresh goroutine. Nothing can recover it
// there, so a defect in action logic takes the process down.
func EscapePanic(err *ContinuationError) {
	go func() {
		panic(err)
	}()
}

// EscapeLog reports err at error level and keeps running. Recovered panics
// include their stack.
func EscapeLog(logger *slog.Logger) EscapeFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err *ContinuationError) {
		attrs := []any{
			slog.String("chain_id", err.ChainID),
			slog.String("subtree", err.Subtree),
			slog.String("action", err.Action),
			slog.String("branch", err.Branch),
			slog.String("error", err.Err.Error()),
		}
		var pe *deferred.PanicError
		if errors.As(err.Err, &pe) {
			attrs = append(attrs, slog.String("stack", string(pe.Stack)))
		}
		logger.Error("continuation failed", attrs...)
	}
}
