package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lipengyu/lsyncd/internal/event"
)

func TestConfig_Validate_RequiresAtLeastOneHandler(t *testing.T) {
	err := Config{}.Validate()
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestConfig_Validate_AcceptsOnlyAction(t *testing.T) {
	err := Config{Action: noopAction}.Validate()
	assert.NoError(t, err)
}

func TestConfig_HandlerFor_PerKindOverridesAction(t *testing.T) {
	var calledModify, calledAction bool
	cfg := Config{
		Action:   func(*Inlet) int { calledAction = true; return 0 },
		OnModify: func(*Inlet) int { calledModify = true; return 0 },
	}

	h, ok := cfg.HandlerFor(event.Modify)
	require.True(t, ok)
	h(nil)
	assert.True(t, calledModify)
	assert.False(t, calledAction)
}

func TestConfig_HandlerFor_FallsBackToAction(t *testing.T) {
	cfg := Config{Action: noopAction}
	h, ok := cfg.HandlerFor(event.Attrib)
	require.True(t, ok)
	assert.NotNil(t, h)
}

func TestConfig_HandlerFor_CreateAndMoveToShareHandler(t *testing.T) {
	var calls int
	cfg := Config{OnCreate: func(*Inlet) int { calls++; return 0 }}

	h1, ok := cfg.HandlerFor(event.Create)
	require.True(t, ok)
	h2, ok := cfg.HandlerFor(event.MoveTo)
	require.True(t, ok)

	h1(nil)
	h2(nil)
	assert.Equal(t, 2, calls, "Create and MoveTo must route to the same on_create handler")
}

func TestConfig_HandlerFor_NoHandlerConfigured(t *testing.T) {
	_, ok := Config{}.HandlerFor(event.Modify)
	assert.False(t, ok)
}
