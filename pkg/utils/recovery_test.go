package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
)

// setupTestLogger sets up a test logger and returns a function to restore the original logger
func setupTestLogger(t *testing.T) func() {
	testLogger := zaptest.NewLogger(t)
	originalLogger := logger.Log
	logger.Log = testLogger
	return func() {
		logger.Log = originalLogger
	}
}

func TestRecoverWithLog(t *testing.T) {
	cleanup := setupTestLogger(t)
	defer cleanup()

	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	// The deferred recovery swallows the panic entirely.
	func() {
		defer RecoverWithLog(ctx, "test operation")
		panic("boom")
	}()
}

func TestWrapWithContextRecovery(t *testing.T) {
	cleanup := setupTestLogger(t)
	defer cleanup()

	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	t.Run("passes through the return value", func(t *testing.T) {
		sentinel := errors.New("expected failure")
		wrapped := WrapWithContextRecovery(func(ctx context.Context) error {
			return sentinel
		})
		assert.ErrorIs(t, wrapped(ctx), sentinel)
	})

	t.Run("converts a panic into an error", func(t *testing.T) {
		wrapped := WrapWithContextRecovery(func(ctx context.Context) error {
			panic("unexpected state")
		})
		err := wrapped(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic recovered")
		assert.Contains(t, err.Error(), "unexpected state")
	})
}
