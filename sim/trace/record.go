// Package trace records what happened during a simulation run: transitions,
// outputs, routed deliveries and host injections.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// TransitionRecord captures one internal or external transition of an atomic model.
type TransitionRecord struct {
	Model    string
	Clock    int64
	Internal bool   // false for external transitions
	Kind     string // kind of the received event (external only)
	Next     int64  // next scheduled internal transition after this one
}

// OutputRecord captures an event emitted by an atomic model's output function.
type OutputRecord struct {
	Model string
	Clock int64
	Kind  string
}

// DeliveryRecord captures one routed delivery inside a coupled model.
type DeliveryRecord struct {
	Coupled  string
	Source   string
	Sink     string
	Kind     string // kind emitted by the source
	SinkKind string // kind received by the sink
	Clock    int64
}

// InjectionRecord captures an event injected by the host into a named model.
type InjectionRecord struct {
	Target string
	Kind   string
	Clock  int64
}
