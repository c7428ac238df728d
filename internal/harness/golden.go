package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/weave/internal/ir"
)

// goldenDir is where RunWithGolden keeps fixtures, relative to the test's
// package directory. Regenerate with: go test ./internal/harness -update
const goldenDir = "testdata/golden"

// TraceSnapshot is the golden-file form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Session      string       `json:"session,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// Snapshot captures the trace of result under the session the scenario ran.
func Snapshot(scenario *Scenario, result *Result) *TraceSnapshot {
	session := scenario.Session
	if session == "" {
		session = DefaultSession
	}
	return &TraceSnapshot{ScenarioName: scenario.Name, Session: session, Trace: result.Trace}
}

// Canonical returns the snapshot as canonical JSON. Empty optional fields
// are omitted so that a golden file only changes when the trace does.
func (s *TraceSnapshot) Canonical() ([]byte, error) {
	trace := make([]any, 0, len(s.Trace))
	for _, ev := range s.Trace {
		trace = append(trace, ev.fields())
	}
	doc := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
	}
	if s.Session != "" {
		doc["session"] = s.Session
	}
	return ir.MarshalCanonical(doc)
}

func (ev TraceEvent) fields() map[string]any {
	m := map[string]any{"type": ev.Type, "seq": ev.Seq}
	for key, val := range map[string]string{"target": ev.Target, "error": ev.Error, "code": ev.Code} {
		if val != "" {
			m[key] = val
		}
	}
	if ev.Value != nil {
		m["value"] = ev.Value
	}
	return m
}

// RunWithGolden runs scenario and asserts its snapshot against
// testdata/golden/<name>.golden. A mismatch fails t through goldie; the
// returned error is reserved for scenarios that could not run at all.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	data, err := Snapshot(scenario, result).Canonical()
	if err != nil {
		return nil, err
	}
	goldie.New(t,
		goldie.WithFixtureDir(goldenDir),
		goldie.WithNameSuffix(".golden"),
	).Assert(t, scenario.Name, data)
	return result, nil
}
