package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_ParseRoundTrip(t *testing.T) {
	for k := SwitchOn; k < kindCount; k++ {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
		assert.True(t, k.Valid())
	}
	_, err := ParseKind("Explode")
	assert.Error(t, err)
	assert.False(t, KindUnknown.Valid())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestEvent_CopiesAreIndependent(t *testing.T) {
	ev := NewEvent(SwitchOn, 3*Second, Payload{Value: 180})
	moved := ev.At(5 * Second)
	converted := ev.As(SetTemperature)

	assert.Equal(t, 3*Second, ev.Time())
	assert.Equal(t, SwitchOn, ev.Kind())
	assert.Equal(t, 5*Second, moved.Time())
	assert.Equal(t, SetTemperature, converted.Kind())
	assert.Equal(t, 180.0, converted.Value(), "payload survives conversion")
	assert.Equal(t, "SwitchOn(180)@3s", ev.String())
	assert.Equal(t, "SetProgram(eco)@0s", NewEvent(SetProgram, 0, Payload{Label: "eco"}).String())
}

func TestTime_Conversions(t *testing.T) {
	assert.Equal(t, 100*Millisecond, Seconds(0.1))
	assert.Equal(t, Infinity, Seconds(1e300))
	assert.Equal(t, 1.5, (90 * Minute).Hours())
	assert.Equal(t, Infinity, Infinity.Add(Second))
	assert.Equal(t, Infinity, (Infinity - 1).Add(Hour))
	assert.Equal(t, 3*Second, Second.Add(2*Second))
	assert.Equal(t, "inf", Infinity.String())
	assert.Equal(t, "12.5s", Seconds(12.5).String())
	assert.Equal(t, 2*Minute, FromDuration(Minute.Duration()*2))
}
