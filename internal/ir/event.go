package ir

// Event is an external interaction delivered to a session: the control with
// qualified identifier Target now has Value.
//
// Seq is stamped by the composition root's logical clock when the event is
// dispatched; producers leave it zero.
type Event struct {
	ID      string  `json:"id,omitempty"`
	Session string  `json:"session"`
	Seq     int64   `json:"seq"`
	Target  string  `json:"target"`
	Value   IRValue `json:"value"`
}

// Delta is a change to a render target produced by one recompute pass.
// Seq is the seq of the event whose pass produced the delta.
type Delta struct {
	Seq    int64   `json:"seq"`
	Target string  `json:"target"`
	Value  IRValue `json:"value"`
	Error  string  `json:"error,omitempty"`
}

// SessionRecord summarizes one journaled session.
type SessionRecord struct {
	ID        string `json:"id"`
	App       string `json:"app"`
	AppHash   string `json:"app_hash"`
	TreeHash  string `json:"tree_hash"`
	OpenedSeq int64  `json:"opened_seq"`
	ClosedSeq int64  `json:"closed_seq,omitempty"`
	Closed    bool   `json:"closed"`
}

// SessionLog is everything journaled for one session, in seq order.
type SessionLog struct {
	Session SessionRecord `json:"session"`
	Events  []Event       `json:"events"`
	Deltas  []Delta       `json:"deltas"`
}
