package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowStoreAllowsUpToLimit(t *testing.T) {
	store := NewFixedWindowStore(3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, err := store.Allow("10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i+1)
	}

	ok, err := store.Allow("10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok, "4th request within the window should be rejected")
}

func TestFixedWindowStoreTracksIdentifiersIndependently(t *testing.T) {
	store := NewFixedWindowStore(1, time.Minute)

	ok, err := store.Allow("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Allow("10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok, "a different identifier must have its own budget")
}

func TestFixedWindowStoreResetsAfterWindow(t *testing.T) {
	store := NewFixedWindowStore(1, 20*time.Millisecond)

	ok, err := store.Allow("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Allow("10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(30 * time.Millisecond)

	ok, err = store.Allow("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok, "window should have reset")
}
