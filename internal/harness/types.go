package harness

import "github.com/roach88/weave/internal/ir"

// Trace entry types.
const (
	TraceTypeEvent = "event"
	TraceTypeDelta = "delta"
	TraceTypeError = "error"
)

// TraceEvent is one entry of a scenario trace: an interface event, a delta
// produced by a recompute pass, or an event the session rejected.
type TraceEvent struct {
	Type   string     `json:"type"` // "event", "delta", or "error"
	Seq    int64      `json:"seq"`
	Target string     `json:"target,omitempty"`
	Value  ir.IRValue `json:"value,omitempty"`
	Error  string     `json:"error,omitempty"` // Delta error message
	Code   string     `json:"code,omitempty"`  // Runtime error code of a rejected event
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expectations and assertions hold.
	Pass bool `json:"pass"`

	// Trace contains the events, deltas and rejections in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Outputs holds the last rendered value of every render target.
	Outputs map[string]ir.IRValue `json:"outputs,omitempty"`

	// Replay summarizes the determinism check run against the journal.
	Replay *ReplaySummary `json:"replay,omitempty"`
}

// ReplaySummary is the part of an engine replay result a scenario reports.
type ReplaySummary struct {
	Events     int  `json:"events"`
	Deltas     int  `json:"deltas"`
	Rejected   int  `json:"rejected"`
	Mismatches int  `json:"mismatches"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Outputs: make(map[string]ir.IRValue),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEventTrace adds a dispatched event to the trace.
func (r *Result) AddEventTrace(seq int64, target string, value ir.IRValue) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   TraceTypeEvent,
		Seq:    seq,
		Target: target,
		Value:  value,
	})
}

// AddDeltaTraces adds the deltas of one recompute pass to the trace.
func (r *Result) AddDeltaTraces(deltas []ir.Delta) {
	for _, d := range deltas {
		r.Trace = append(r.Trace, TraceEvent{
			Type:   TraceTypeDelta,
			Seq:    d.Seq,
			Target: d.Target,
			Value:  d.Value,
			Error:  d.Error,
		})
	}
}

// AddErrorTrace records an event the session rejected.
func (r *Result) AddErrorTrace(seq int64, target, code string) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   TraceTypeError,
		Seq:    seq,
		Target: target,
		Code:   code,
	})
}

// Deltas returns the delta entries of the trace.
func (r *Result) Deltas() []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type == TraceTypeDelta {
			out = append(out, e)
		}
	}
	return out
}
