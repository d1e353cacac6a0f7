// Package sim provides the discrete-event co-simulation kernel of hemsim.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - event.go: the closed set of event kinds and the immutable Event value
//   - model.go: the Atomic contract and the Base every model embeds (dirty flag, ports, owner)
//   - coupled.go: compositions, event routes and variable bindings
//   - simulator.go: the root coordinator, host injections and queries
//
// # Architecture
//
// The sim package defines the model contract and the kernel; models and
// pacing live in sub-packages:
//   - sim/realtime/: wall-clock pacing with an acceleration factor, cross-simulation links
//   - sim/scenario/: randomised user models driving equipment
//   - sim/equipment/: electrical models of household appliances, their controllers and the meter
//   - sim/household/: MIL and SIL assemblies built from a YAML household description
//   - sim/telemetry/: periodic meter publication over MQTT
//   - sim/trace/: transition and delivery trace recording
//
// # Time
//
// Simulated time is a Time counted in microseconds from an arbitrary origin.
// Infinity is the time advance of a passive model. Equipment parameters are
// expressed per hour and converted with Time.Hours.
//
// # Contract violations
//
// Composition errors found while building (unknown submodel, undeclared
// kind, unbound import) are returned as errors. Violations found while
// running (an event a model cannot handle in its current mode, a read before
// publication, a negative time advance) panic with *ContractViolation.
package sim
