package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/ir"
)

func sampleTrace() []TraceEvent {
	r := NewResult()
	r.AddDeltaTraces([]ir.Delta{
		{Seq: 1, Target: "a.out", Value: ir.IRString("x")},
		{Seq: 1, Target: "b.out", Value: ir.IRString("x")},
	})
	r.AddEventTrace(2, "b.choice", ir.IRString("y"))
	r.AddDeltaTraces([]ir.Delta{{Seq: 2, Target: "b.out", Value: ir.IRString("y")}})
	r.AddEventTrace(3, "c.choice", ir.IRString("y"))
	r.AddErrorTrace(3, "c.choice", "INVALID_IDENTIFIER")
	return r.Trace
}

func TestAssertDeltaContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertDeltaContains(trace, Assertion{Target: "b.out"}))
	assert.NoError(t, assertDeltaContains(trace, Assertion{Target: "b.out", Value: "y"}))

	// Events are not deltas.
	err := assertDeltaContains(trace, Assertion{Target: "b.choice"})
	var ae *AssertionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, AssertDeltaContains, ae.Type)

	err = assertDeltaContains(trace, Assertion{Target: "a.out", Value: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `delta to a.out with value "y"`)
	assert.Contains(t, err.Error(), "seq=3 error c.choice rejected: INVALID_IDENTIFIER")
}

func TestAssertDeltaOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertDeltaOrder(trace, Assertion{Targets: []string{"a.out", "b.out"}}))

	err := assertDeltaOrder(trace, Assertion{Targets: []string{"b.out", "a.out"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.out rendered before b.out")

	err = assertDeltaOrder(trace, Assertion{Targets: []string{"a.out", "z.out"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "z.out never rendered")
}

func TestAssertDeltaCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertDeltaCount(trace, Assertion{Target: "b.out", Count: 2}))
	assert.NoError(t, assertDeltaCount(trace, Assertion{Target: "z.out", Count: 0}))

	err := assertDeltaCount(trace, Assertion{Target: "a.out", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rendered 1 times")
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{Trace: sampleTrace()}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertDeltaCount, Target: "b.out", Count: 2},
		{Type: AssertDeltaContains, Target: "nope"},
		{Type: "bogus"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "Assertion failed: delta_contains")
	assert.Equal(t, `assertion[2]: unknown assertion type "bogus"`, errs[1])
}

func TestResult_Deltas(t *testing.T) {
	result := &Result{Trace: sampleTrace()}
	deltas := result.Deltas()
	require.Len(t, deltas, 3)
	for _, d := range deltas {
		assert.Equal(t, TraceTypeDelta, d.Type)
	}
}

func TestTraceSnapshot_Canonical(t *testing.T) {
	snap := &TraceSnapshot{
		ScenarioName: "s",
		Session:      "t",
		Trace: []TraceEvent{
			{Type: TraceTypeDelta, Seq: 1, Target: "a.out", Value: ir.IRNull{}, Error: "boom"},
			{Type: TraceTypeError, Seq: 2, Target: "a.b", Code: "INVALID_IDENTIFIER"},
		},
	}
	data, err := snap.Canonical()
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"s","session":"t","trace":[`+
			`{"error":"boom","seq":1,"target":"a.out","type":"delta","value":null},`+
			`{"code":"INVALID_IDENTIFIER","seq":2,"target":"a.b","type":"error"}]}`,
		string(data))
}
