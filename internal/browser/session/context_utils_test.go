// internal/browser/session/context_utils_test.go
package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey string

const tabKey ctxKey = "tab"

func TestCombineContext(t *testing.T) {
	t.Run("keeps primary values", func(t *testing.T) {
		primary := context.WithValue(context.Background(), tabKey, "target-1")
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		assert.Equal(t, "target-1", combined.Value(tabKey))
		assert.NoError(t, combined.Err())
	})

	t.Run("primary cancellation propagates", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		cancelPrimary()
		assert.Eventually(t, func() bool { return combined.Err() != nil }, time.Second, 5*time.Millisecond)
	})

	t.Run("secondary cancellation propagates", func(t *testing.T) {
		secondary, cancelSecondary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(context.Background(), secondary)
		defer cancel()

		cancelSecondary()
		assert.Eventually(t, func() bool { return combined.Err() != nil }, time.Second, 5*time.Millisecond)
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("secondary deadline ends the combined context", func(t *testing.T) {
		primary, cancelPrimary := context.WithTimeout(context.Background(), time.Minute)
		defer cancelPrimary()
		secondary, cancelSecondary := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancelSecondary()

		combined, cancel := CombineContext(primary, secondary)
		defer cancel()

		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context outlived the secondary deadline")
		}
		assert.NoError(t, primary.Err())
	})
}

func TestDetach(t *testing.T) {
	parent, cancelParent := context.WithTimeout(context.WithValue(context.Background(), tabKey, "target-2"), 10*time.Millisecond)
	detached := Detach(parent)
	cancelParent()
	<-parent.Done()

	assert.Equal(t, "target-2", detached.Value(tabKey))
	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	_, hasDeadline := detached.Deadline()
	assert.False(t, hasDeadline)

	derived, cancel := context.WithTimeout(detached, 10*time.Millisecond)
	defer cancel()
	<-derived.Done()
	require.ErrorIs(t, derived.Err(), context.DeadlineExceeded)
}
