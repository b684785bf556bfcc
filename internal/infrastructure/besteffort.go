package infra

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// BestEffort run a persistence call whose failure must not reach the caller.
//
// The error is logged and swallowed, cancellation is logged at debug level only.
// It reports whether fn succeeded so callers can keep local bookkeeping in sync.
func BestEffort(logger *zap.Logger, op string, fn func() error) bool {
	err := fn()
	if err == nil {
		return true
	}
	if logger == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Debug("best-effort persistence abandoned", zap.String("op", op), zap.Error(err))
	} else {
		logger.Warn("best-effort persistence failed", zap.String("op", op), zap.Error(err))
	}
	return false
}
