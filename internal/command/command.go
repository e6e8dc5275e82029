// Package command maps semantic instrument commands to the ASCII payloads the
// instruments understand. Payloads are never built from free text; operator
// surfaces look commands up by name and get one of the enumerated values.
package command

import (
	"fmt"
	"sort"
)

// Command identifies one instrument request.
type Command int

const (
	GetID Command = iota
	GetSerialNumber
	GetModelName
	GetWeightStable
	GetWeightImmediate
	GetWeightContinuous
	GetTare
	SetTare
	Tare
	On
	Off
	ReadTemperature

	numCommands
)

type entry struct {
	name    string
	payload string
}

// Payloads for the A&D FX-i/FX-iN command set plus the probe's REPL call.
var table = [numCommands]entry{
	GetID:               {"get_id", "?ID"},
	GetSerialNumber:     {"get_serial_number", "?SN"},
	GetModelName:        {"get_model_name", "?TN"},
	GetWeightStable:     {"get_weight", "S"},
	GetWeightImmediate:  {"get_immediate_weight", "SI"},
	GetWeightContinuous: {"get_continuous_weight", "SIR"},
	GetTare:             {"get_tare", "?PT"},
	SetTare:             {"set_tare", "PT"},
	Tare:                {"tare", "T"},
	On:                  {"on", "ON"},
	Off:                 {"off", "OFF"},
	ReadTemperature:     {"read", "read()"},
}

var byName = func() map[string]Command {
	m := make(map[string]Command, numCommands)
	for c := Command(0); c < numCommands; c++ {
		m[table[c].name] = c
	}
	return m
}()

// Encode returns the wire payload for c, without any line ending.
func Encode(c Command) []byte {
	if !c.Valid() {
		panic(fmt.Sprintf("command: encode of unknown %v", c))
	}
	return []byte(table[c].payload)
}

// Valid reports whether c is one of the enumerated commands.
func (c Command) Valid() bool {
	return c >= 0 && c < numCommands
}

// String returns the semantic name of c, e.g. "get_tare".
func (c Command) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Command(%d)", int(c))
	}
	return table[c].name
}

// Lookup finds the command with the given semantic name.
func Lookup(name string) (Command, bool) {
	c, ok := byName[name]
	return c, ok
}

// Names returns the semantic names of all commands in sorted order.
func Names() []string {
	names := make([]string, 0, numCommands)
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
