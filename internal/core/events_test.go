package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTarotEvent(t *testing.T) {
	ev, ok := DecodeTarotEvent("card_drawn", []byte(`{"position":"past","card":{"name":"The Fool"}}`))
	require.True(t, ok)
	drawn, isDrawn := ev.(TarotCardDrawn)
	require.True(t, isDrawn)
	assert.Equal(t, "past", drawn.Position)
	assert.Equal(t, "The Fool", drawn.Card["name"])

	// Unknown types decode to nil with ok, the caller ignores them.
	ev, ok = DecodeTarotEvent("card_shuffled", []byte(`{}`))
	assert.True(t, ok)
	assert.Nil(t, ev)

	// A known type with a broken or incomplete payload is a rejection.
	_, ok = DecodeTarotEvent("card_drawn", []byte(`{broken`))
	assert.False(t, ok)
	_, ok = DecodeTarotEvent("card_drawn", []byte(`{"card":{}}`))
	assert.False(t, ok)
	_, ok = DecodeTarotEvent("interpretation_added", []byte(`{"text":"x"}`))
	assert.False(t, ok)

	// spread_completed carries no payload at all.
	ev, ok = DecodeTarotEvent("spread_completed", nil)
	require.True(t, ok)
	assert.IsType(t, TarotSpreadCompleted{}, ev)
}

func TestDecodeNumerologyEvent(t *testing.T) {
	ev, ok := DecodeNumerologyEvent("personal_calculation", []byte(`{"profile":{"life_path":7}}`))
	require.True(t, ok)
	calc, isCalc := ev.(NumerologyPersonalCalculation)
	require.True(t, isCalc)
	assert.EqualValues(t, 7, calc.Profile["life_path"])

	ev, ok = DecodeNumerologyEvent("chakra_alignment", []byte(`{}`))
	assert.True(t, ok)
	assert.Nil(t, ev)

	_, ok = DecodeNumerologyEvent("group_compatibility", []byte(`not json`))
	assert.False(t, ok)
}

func TestDecodeCosmosEvent(t *testing.T) {
	ev, ok := DecodeCosmosEvent("avatar_movement", []byte(`{"position":{"x":1},"rotation":{"yaw":90}}`))
	require.True(t, ok)
	move, isMove := ev.(CosmosAvatarMovement)
	require.True(t, isMove)
	assert.Equal(t, 1.0, move.Position["x"])

	// Object creation without an object is meaningless.
	_, ok = DecodeCosmosEvent("object_creation", []byte(`{}`))
	assert.False(t, ok)

	ev, ok = DecodeCosmosEvent("wormhole_opened", nil)
	assert.True(t, ok)
	assert.Nil(t, ev)
}

func TestCopyDocIsDeep(t *testing.T) {
	src := map[string]any{"a": map[string]any{"b": 1}}
	dst := CopyDoc(src)
	require.NotNil(t, dst)

	dst["a"].(map[string]any)["b"] = 2
	assert.EqualValues(t, 1, src["a"].(map[string]any)["b"])

	assert.Nil(t, CopyDoc(nil))
}
