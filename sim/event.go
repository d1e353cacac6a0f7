package sim

import "fmt"

// Kind discriminates the closed set of events exchanged between models.
// Every transition function switches on Kind; there is no other dispatch.
type Kind int

const (
	KindUnknown Kind = iota
	SwitchOn
	SwitchOff
	SetTemperature
	SetProgram
	ProgramDone
	MineOn
	MineOff
	Refill
	StartCharging
	StartDischarging
	Standby
	kindCount
)

var kindNames = [...]string{
	KindUnknown:      "Unknown",
	SwitchOn:         "SwitchOn",
	SwitchOff:        "SwitchOff",
	SetTemperature:   "SetTemperature",
	SetProgram:       "SetProgram",
	ProgramDone:      "ProgramDone",
	MineOn:           "MineOn",
	MineOff:          "MineOff",
	Refill:           "Refill",
	StartCharging:    "StartCharging",
	StartDischarging: "StartDischarging",
	Standby:          "Standby",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k > KindUnknown && k < kindCount
}

// ParseKind returns the Kind named s.
func ParseKind(s string) (Kind, error) {
	for k := SwitchOn; k < kindCount; k++ {
		if kindNames[k] == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown event kind %q", s)
}

// Payload carries the optional data of an event, e.g. a target temperature in
// Value or a program name in Label.
type Payload struct {
	Value float64
	Label string
}

// Event is an immutable, timestamped message between models. The zero value
// is not a valid event; use NewEvent.
type Event struct {
	kind    Kind
	time    Time
	payload Payload
}

// NewEvent creates an event of the given kind occurring at simulated time at.
func NewEvent(kind Kind, at Time, payload ...Payload) Event {
	ev := Event{kind: kind, time: at}
	if len(payload) > 0 {
		ev.payload = payload[0]
	}
	return ev
}

// Kind returns the event's type tag.
func (e Event) Kind() Kind { return e.kind }

// Time returns the simulated time of occurrence.
func (e Event) Time() Time { return e.time }

// Payload returns the event's payload.
func (e Event) Payload() Payload { return e.payload }

// Value is shorthand for Payload().Value.
func (e Event) Value() float64 { return e.payload.Value }

// Label is shorthand for Payload().Label.
func (e Event) Label() string { return e.payload.Label }

// As returns a copy of e with its kind replaced. Routing uses it when a sink
// declares a different kind than the source.
func (e Event) As(kind Kind) Event {
	e.kind = kind
	return e
}

// At returns a copy of e occurring at t.
func (e Event) At(t Time) Event {
	e.time = t
	return e
}

func (e Event) String() string {
	switch {
	case e.payload.Label != "":
		return fmt.Sprintf("%s(%s)@%s", e.kind, e.payload.Label, e.time)
	case e.payload.Value != 0:
		return fmt.Sprintf("%s(%g)@%s", e.kind, e.payload.Value, e.time)
	default:
		return fmt.Sprintf("%s@%s", e.kind, e.time)
	}
}
