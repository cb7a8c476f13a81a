package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDetectsCategoryFromMessage(t *testing.T) {
	err := New(errors.New("udp bind failed: address already in use")).Build()
	assert.Equal(t, CategoryTransportBind, err.Category)
}

func TestBuilderRespectsExplicitCategory(t *testing.T) {
	err := New(errors.New("boom")).Category(CategoryDispatch).Build()
	assert.Equal(t, CategoryDispatch, err.Category)
}

func TestComponentDetection(t *testing.T) {
	// Frames inside this package, its tests included, are skipped during
	// detection, so the first frame considered is the test runner's.
	RegisterComponent("testing.tRunner", "errors")
	err := New(errors.New("boom")).Build()
	assert.Equal(t, "errors", err.Component())
}

func TestUnwrapAndIs(t *testing.T) {
	base := errors.New("base")
	wrapped := New(base).Build()
	require.ErrorIs(t, wrapped, base)
}

func TestContextRoundTrip(t *testing.T) {
	err := New(errors.New("boom")).Context("device", "d1").Build()
	ctx := err.WithContext()
	require.Equal(t, "d1", ctx["device"])
}
