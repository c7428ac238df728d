package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/ir"
)

func TestMemJournal_Log(t *testing.T) {
	ctx := context.Background()
	j := NewMemJournal()

	require.NoError(t, j.OpenSession(ctx, ir.SessionRecord{ID: "s", OpenedSeq: 1}))
	require.NoError(t, j.WriteEvent(ctx, ir.Event{Session: "s", Seq: 2, Target: "a.x", Value: ir.IRInt(1)}))
	require.NoError(t, j.WriteDeltas(ctx, "s", []ir.Delta{{Seq: 2, Target: "a.out", Value: ir.IRInt(1)}}))
	require.NoError(t, j.CloseSession(ctx, "s", 2))

	log, ok := j.Log("s")
	require.True(t, ok)
	assert.Equal(t, int64(1), log.Session.OpenedSeq)
	assert.Len(t, log.Events, 1)
	assert.Len(t, log.Deltas, 1)

	seq, ok := j.ClosedAt("s")
	assert.True(t, ok)
	assert.Equal(t, int64(2), seq)
	assert.Equal(t, []string{"s"}, j.Sessions())

	_, ok = j.Log("missing")
	assert.False(t, ok)
}

func TestMemJournal_FailEvents(t *testing.T) {
	j := NewMemJournal()
	j.FailEvents = true
	err := j.WriteEvent(context.Background(), ir.Event{Session: "s"})
	assert.ErrorIs(t, err, ErrJournalFailure)
}

func TestMemJournal_FailDeltas(t *testing.T) {
	j := NewMemJournal()
	j.FailDeltas = true
	err := j.WriteDeltas(context.Background(), "s", []ir.Delta{{Seq: 1, Target: "a.out"}})
	assert.ErrorIs(t, err, ErrJournalFailure)
	assert.Empty(t, j.Deltas("s"))
}
