package trace

import "sort"

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalTransitions   int
	InternalCount      int
	ExternalCount      int
	TotalOutputs       int
	TotalDeliveries    int
	TotalInjections    int
	OutputsByKind      map[string]int // event kind → number of outputs
	DeliveriesBySink   map[string]int // sink model → number of deliveries
	TransitionsByModel map[string]int // model → number of transitions
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		OutputsByKind:      make(map[string]int),
		DeliveriesBySink:   make(map[string]int),
		TransitionsByModel: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalTransitions = len(st.Transitions)
	for _, tr := range st.Transitions {
		if tr.Internal {
			summary.InternalCount++
		} else {
			summary.ExternalCount++
		}
		summary.TransitionsByModel[tr.Model]++
	}

	summary.TotalOutputs = len(st.Outputs)
	for _, o := range st.Outputs {
		summary.OutputsByKind[o.Kind]++
	}

	summary.TotalDeliveries = len(st.Deliveries)
	for _, d := range st.Deliveries {
		summary.DeliveriesBySink[d.Sink]++
	}

	summary.TotalInjections = len(st.Injections)

	return summary
}

// SortedKeys returns the keys of a count map in lexical order, for stable printing.
func SortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
