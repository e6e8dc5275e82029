package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_BalanceCommandSet(t *testing.T) {
	want := map[Command]string{
		GetID:               "?ID",
		GetSerialNumber:     "?SN",
		GetModelName:        "?TN",
		GetWeightStable:     "S",
		GetWeightImmediate:  "SI",
		GetWeightContinuous: "SIR",
		GetTare:             "?PT",
		SetTare:             "PT",
		Tare:                "T",
		On:                  "ON",
		Off:                 "OFF",
		ReadTemperature:     "read()",
	}
	for c, payload := range want {
		assert.Equal(t, payload, string(Encode(c)), "payload for %v", c)
	}
}

func TestEncode_TotalOverEnum(t *testing.T) {
	for c := Command(0); c < numCommands; c++ {
		assert.NotEmpty(t, Encode(c), "command %d has no payload", int(c))
		assert.NotEmpty(t, c.String())
	}
}

func TestEncode_WithBalanceTerminator(t *testing.T) {
	frame := func(c Command) string { return string(Encode(c)) + "\r\n" }
	assert.Equal(t, "S\r\n", frame(GetWeightStable))
	assert.Equal(t, "T\r\n", frame(Tare))
}

func TestEncode_ReturnsCopy(t *testing.T) {
	b := Encode(On)
	b[0] = 'X'
	assert.Equal(t, "ON", string(Encode(On)))
}

func TestEncode_PanicsOutsideEnum(t *testing.T) {
	assert.Panics(t, func() { Encode(numCommands) })
	assert.Panics(t, func() { Encode(-1) })
}

func TestLookup(t *testing.T) {
	c, ok := Lookup("get_tare")
	require.True(t, ok)
	assert.Equal(t, GetTare, c)

	_, ok = Lookup("?PT")
	assert.False(t, ok, "wire payloads are not command names")

	_, ok = Lookup("reboot")
	assert.False(t, ok)
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Len(t, names, int(numCommands))
	assert.IsIncreasing(t, names)
	for _, name := range names {
		c, ok := Lookup(name)
		require.True(t, ok)
		assert.Equal(t, name, c.String())
	}
}

func TestString_Unknown(t *testing.T) {
	assert.Equal(t, "Command(42)", Command(42).String())
}
