package huehttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiredhome/huebridge/internal/dispatch"
)

func TestParseOrderedStatePreservesKeyOrder(t *testing.T) {
	state, order, err := parseOrderedState([]byte(`{"bri":128,"on":true}`))
	require.NoError(t, err)
	require.Equal(t, []string{"bri", "on"}, order)
	require.NotNil(t, state.Bri)
	require.NotNil(t, state.On)
	assert.InDelta(t, 128.0, *state.Bri, 0.001)
	assert.True(t, *state.On)
}

func TestParseOrderedStateRejectsNonObject(t *testing.T) {
	_, _, err := parseOrderedState([]byte(`[1,2,3]`))
	assert.Error(t, err)
}

func TestParseOrderedStateRejectsGarbage(t *testing.T) {
	_, _, err := parseOrderedState([]byte(`not json`))
	assert.Error(t, err)
}

func TestOrderMutatedKeysFollowsRequestOrder(t *testing.T) {
	mutated := []dispatch.MutatedKey{
		{Key: "sat", Value: 254},
		{Key: "hue", Value: 100},
	}
	ordered := orderMutatedKeys([]string{"hue", "sat"}, mutated)
	require.Len(t, ordered, 2)
	assert.Equal(t, "hue", ordered[0].Key)
	assert.Equal(t, "sat", ordered[1].Key)
}

func TestOrderMutatedKeysIgnoresKeysNotMutated(t *testing.T) {
	mutated := []dispatch.MutatedKey{{Key: "on", Value: true}}
	ordered := orderMutatedKeys([]string{"bri", "on"}, mutated)
	require.Len(t, ordered, 1)
	assert.Equal(t, "on", ordered[0].Key)
}
