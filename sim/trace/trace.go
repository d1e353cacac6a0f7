package trace

// TraceLevel controls the verbosity of simulation tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEvents captures outputs, routed deliveries and injections.
	TraceLevelEvents TraceLevel = "events"
	// TraceLevelTransitions additionally captures every model transition.
	TraceLevelTransitions TraceLevel = "transitions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:        true,
	TraceLevelEvents:      true,
	TraceLevelTransitions: true,
	"":                    true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	RunID string
}

// SimulationTrace collects records during a simulation run. All Record
// methods are safe on a nil trace and drop records the level excludes.
// Records are appended by the simulation thread only.
type SimulationTrace struct {
	Config      TraceConfig
	Transitions []TransitionRecord
	Outputs     []OutputRecord
	Deliveries  []DeliveryRecord
	Injections  []InjectionRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:      config,
		Transitions: make([]TransitionRecord, 0),
		Outputs:     make([]OutputRecord, 0),
		Deliveries:  make([]DeliveryRecord, 0),
		Injections:  make([]InjectionRecord, 0),
	}
}

func (st *SimulationTrace) events() bool {
	return st != nil && (st.Config.Level == TraceLevelEvents || st.Config.Level == TraceLevelTransitions)
}

// RecordTransition appends a transition record.
func (st *SimulationTrace) RecordTransition(record TransitionRecord) {
	if st == nil || st.Config.Level != TraceLevelTransitions {
		return
	}
	st.Transitions = append(st.Transitions, record)
}

// RecordOutput appends an output record.
func (st *SimulationTrace) RecordOutput(record OutputRecord) {
	if st.events() {
		st.Outputs = append(st.Outputs, record)
	}
}

// RecordDelivery appends a delivery record.
func (st *SimulationTrace) RecordDelivery(record DeliveryRecord) {
	if st.events() {
		st.Deliveries = append(st.Deliveries, record)
	}
}

// RecordInjection appends an injection record.
func (st *SimulationTrace) RecordInjection(record InjectionRecord) {
	if st.events() {
		st.Injections = append(st.Injections, record)
	}
}
