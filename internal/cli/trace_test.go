package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/ir"
)

func TestTraceTimeline(t *testing.T) {
	db := seedJournal(t, "s-1")

	out, _, err := execute(t, "trace", "--db", db, "--session", "s-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Session: s-1")
	assert.Contains(t, out, "App: explorer@")
	assert.Contains(t, out, "Seq: 1-2 (closed)")
	assert.Contains(t, out, `[1] → clicks.display = "Count: 0"`)
	assert.Contains(t, out, `[2] ← dataset.choice = "mtcars"`)
	assert.Contains(t, out, `[2] → view.summary = {"length":6,"title":"Current","value":"mtcars"}`)
	assert.Contains(t, out, "Stats: 1 event(s), 3 delta(s) across 2 target(s)")
}

func TestTraceJSONOrdersEventBeforeItsDeltas(t *testing.T) {
	db := seedJournal(t, "s-1")

	out, _, err := execute(t, "trace", "--db", db, "--session", "s-1", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	var steps []string
	for _, e := range resp.Data.Timeline {
		steps = append(steps, e.Type+":"+e.Target)
	}
	assert.Equal(t, []string{
		"delta:clicks.display",
		"delta:view.summary",
		"event:dataset.choice",
		"delta:view.summary",
	}, steps)
	assert.Equal(t, []string{"clicks.display", "view.summary"}, resp.Data.Stats.Targets)
	assert.True(t, resp.Data.Stats.Closed)
}

func TestTraceTargetFilter(t *testing.T) {
	db := seedJournal(t, "s-1")

	out, _, err := execute(t, "trace", "--db", db, "--session", "s-1", "--target", "view.summary")
	require.NoError(t, err)
	assert.Contains(t, out, "view.summary")
	assert.NotContains(t, out, "clicks.display")
	assert.NotContains(t, out, "dataset.choice")
	assert.Contains(t, out, "Stats: 0 event(s), 2 delta(s) across 1 target(s)")
}

func TestTraceUnknownSession(t *testing.T) {
	db := seedJournal(t, "s-1")

	out, _, err := execute(t, "trace", "--db", db, "--session", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E011]: session not found: ghost")
}

func TestBuildTrace_ErrorDelta(t *testing.T) {
	result := buildTrace(ir.SessionLog{
		Session: ir.SessionRecord{ID: "s"},
		Events:  []ir.Event{{Seq: 2, Target: "a.in", Value: ir.IRInt(1)}},
		Deltas: []ir.Delta{
			{Seq: 1, Target: "b.out", Value: ir.IRNull{}},
			{Seq: 2, Target: "b.out", Value: ir.IRNull{}, Error: "boom"},
		},
	})
	require.Len(t, result.Timeline, 3)
	assert.Equal(t, "delta", result.Timeline[0].Type)
	assert.Equal(t, "event", result.Timeline[1].Type)
	assert.Equal(t, "boom", result.Timeline[2].Error)
	assert.Nil(t, result.Timeline[2].Value)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, `"x"`, formatValue("x"))
	assert.Equal(t, "null", formatValue(nil))
	assert.Equal(t, `[1,"a"]`, formatValue([]any{int64(1), "a"}))
	assert.Equal(t, "1.5", formatValue(1.5))
}
