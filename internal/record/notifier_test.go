package record

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier(t *testing.T) {
	ctx := context.Background()

	t.Run("handlers run in registration order", func(t *testing.T) {
		n := NewNotifier()

		var order []string
		require.NoError(t, n.Register("first", func(ctx context.Context, id int64, rec *Record) {
			order = append(order, "first")
		}))
		require.NoError(t, n.Register("second", func(ctx context.Context, id int64, rec *Record) {
			order = append(order, "second")
		}))

		n.Dispatch(ctx, 1, &Record{})
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("duplicate registration is rejected", func(t *testing.T) {
		n := NewNotifier()
		require.NoError(t, n.Register("publisher", func(ctx context.Context, id int64, rec *Record) {}))

		err := n.Register("publisher", func(ctx context.Context, id int64, rec *Record) {})
		assert.ErrorIs(t, err, ErrHandlerRegistered)
	})

	t.Run("dispatch with no handlers is a no-op", func(t *testing.T) {
		n := NewNotifier()
		n.Dispatch(ctx, 1, &Record{})
	})
}
