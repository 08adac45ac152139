package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAleaKnownSequence(t *testing.T) {
	a := NewAlea("hello.")

	assert.InDelta(t, 0.4783254903741181, a.Float64(), 1e-16)
	assert.InDelta(t, 0.8297006865032017, a.Float64(), 1e-16)
	assert.InDelta(t, 0.46924330526962876, a.Float64(), 1e-16)

	assert.InDelta(t, 0.4033949493896216, NewAlea("TICK").Float64(), 1e-16)
}

func TestAleaDeterministic(t *testing.T) {
	a, b := NewAlea("event-42"), NewAlea("event-42")
	for i := 0; i < 1000; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestAleaSeedsDiverge(t *testing.T) {
	a, b := NewAlea("a"), NewAlea("b")
	assert.NotEqual(t, a.Float64(), b.Float64())
}

func TestAleaRange(t *testing.T) {
	a := NewAlea("range")
	for i := 0; i < 10000; i++ {
		v := a.Float64()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestAleaNonASCIISeed(t *testing.T) {
	a, b := NewAlea("😀 widget"), NewAlea("😀 widget")
	assert.Equal(t, a.Float64(), b.Float64())
	assert.NotEqual(t, NewAlea("😀").Float64(), NewAlea("😁").Float64())
}
