package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("stores and retrieves request ID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-123")
		assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		assert.Equal(t, "", RequestIDFromContext(context.Background()))
	})
}

func TestRunIDContext(t *testing.T) {
	t.Run("stores and retrieves run ID", func(t *testing.T) {
		ctx := WithRunID(context.Background(), "run-1")
		assert.Equal(t, "run-1", RunIDFromContext(ctx))
	})

	t.Run("keys do not collide", func(t *testing.T) {
		ctx := WithRunID(context.Background(), "run-1")
		ctx = WithRequestID(ctx, "req-1")

		assert.Equal(t, "run-1", RunIDFromContext(ctx))
		assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	})

	t.Run("ignores foreign values under a plain string key", func(t *testing.T) {
		//nolint:staticcheck // deliberately uses a plain string key
		ctx := context.WithValue(context.Background(), "run_id", "other")
		assert.Equal(t, "", RunIDFromContext(ctx))
	})
}
