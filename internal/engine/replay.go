package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/weave/internal/ir"
)

// Replay and determinism
//
// A session is a pure function of its application and its event stream:
// the clock is logical, observers settle in creation order, and deltas are
// sorted by target. Replaying the journaled events of a session into a
// fresh root built from the same application must therefore reproduce the
// journaled deltas byte for byte (canonical JSON). Replay is the same code
// path as live dispatch; there is no replay mode.
//
//	journal ──events──▶ fresh Root (same seq origin) ──deltas──▶ compare
//	   └──────────────────────deltas──────────────────────────────┘

// Mismatch is a delta that differs between the journal and the replay.
type Mismatch struct {
	Seq    int64  `json:"seq"`
	Target string `json:"target"`
	Want   string `json:"want"` // Canonical journaled delta, "" if absent
	Got    string `json:"got"`  // Canonical replayed delta, "" if absent
}

// ReplayResult summarizes one replayed session.
type ReplayResult struct {
	Session    string     `json:"session"`
	Events     int        `json:"events"`
	Deltas     int        `json:"deltas"`
	Rejected   int        `json:"rejected"` // Events the replay rejected
	Mismatches []Mismatch `json:"mismatches,omitempty"`
}

// Deterministic reports whether replay reproduced the journal exactly.
func (r *ReplayResult) Deterministic() bool {
	return len(r.Mismatches) == 0
}

// Replay rebuilds a session with setup, re-dispatches its journaled events
// and compares the produced deltas with the journaled ones.
func Replay(ctx context.Context, setup SetupFunc, log ir.SessionLog, opts ...Option) (*ReplayResult, error) {
	opts = append(opts, WithClock(resumeClock(log.Session.OpenedSeq)))
	r := New(log.Session.ID, opts...)
	defer r.Close(ctx)

	if setup != nil {
		if err := setup(r); err != nil {
			return nil, fmt.Errorf("replay setup: %w", err)
		}
	}

	var got []ir.Delta
	initial, err := r.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay open: %w", err)
	}
	got = append(got, initial...)

	res := &ReplayResult{Session: log.Session.ID, Events: len(log.Events)}
	events := append([]ir.Event(nil), log.Events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })

	for _, ev := range events {
		if want := r.clock.Current() + 1; ev.Seq != want {
			return nil, fmt.Errorf("replay: journal seq gap: event %s has seq %d, expected %d", ev.ID, ev.Seq, want)
		}
		deltas, err := r.Dispatch(ctx, ir.Event{Target: ev.Target, Value: ev.Value})
		if err != nil {
			res.Rejected++
			if r.Closed() {
				break
			}
			continue
		}
		got = append(got, deltas...)
	}

	res.Deltas = len(got)
	res.Mismatches, err = compareDeltas(log.Deltas, got)
	if err != nil {
		return nil, err
	}
	return res, nil
}

type deltaKey struct {
	seq    int64
	target string
}

// compareDeltas diffs two delta lists by (seq, target) on canonical form.
func compareDeltas(want, got []ir.Delta) ([]Mismatch, error) {
	index := func(ds []ir.Delta) (map[deltaKey]string, error) {
		out := make(map[deltaKey]string, len(ds))
		for _, d := range ds {
			b, err := ir.MarshalCanonical(ir.IRObject{
				"target": ir.IRString(d.Target),
				"value":  nullIfNil(d.Value),
				"error":  ir.IRString(d.Error),
			})
			if err != nil {
				return nil, fmt.Errorf("canonicalize delta %d/%s: %w", d.Seq, d.Target, err)
			}
			out[deltaKey{d.Seq, d.Target}] = string(b)
		}
		return out, nil
	}

	w, err := index(want)
	if err != nil {
		return nil, err
	}
	g, err := index(got)
	if err != nil {
		return nil, err
	}

	keys := make(map[deltaKey]bool, len(w)+len(g))
	for k := range w {
		keys[k] = true
	}
	for k := range g {
		keys[k] = true
	}
	sorted := make([]deltaKey, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].seq != sorted[j].seq {
			return sorted[i].seq < sorted[j].seq
		}
		return sorted[i].target < sorted[j].target
	})

	var out []Mismatch
	for _, k := range sorted {
		if w[k] != g[k] {
			out = append(out, Mismatch{Seq: k.seq, Target: k.target, Want: w[k], Got: g[k]})
		}
	}
	return out, nil
}

func nullIfNil(v ir.IRValue) ir.IRValue {
	if v == nil {
		return ir.IRNull{}
	}
	return v
}
