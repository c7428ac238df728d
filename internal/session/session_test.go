package session

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/module"
	"github.com/roach88/weave/internal/namespace"
	"github.com/roach88/weave/internal/reactive"
)

func newTestSession(id string) *Session {
	return New(id, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// chooser declares a "choice" control and renders its value to "out".
var chooser = &module.Module{
	Name: "chooser",
	UI: func(ns *module.NS, _ ir.IRObject) (*ir.Element, error) {
		return module.Panel("",
			module.SelectInput(ns.ID("choice"), "Choice", ir.Strings("x", "y", "z"), nil),
			module.Output(ns.ID("out")),
		), nil
	},
	Server: func(c *module.Context, _ module.Args) (module.Outputs, error) {
		choice, err := c.Input("choice")
		if err != nil {
			return nil, err
		}
		if err := c.Render("out", choice.Get); err != nil {
			return nil, err
		}
		return module.Outputs{"value": choice}, nil
	},
}

// mountPair mounts the "a" and "b" siblings and settles the first render.
func mountPair(t *testing.T) *Session {
	t.Helper()
	s := newTestSession("s1")
	_, err := s.Mount(chooser, "a", nil)
	require.NoError(t, err)
	_, err = s.Mount(chooser, "b", nil)
	require.NoError(t, err)
	deltas, err := s.Flush(1)
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	return s
}

func TestSession_SiblingEventsStayIsolated(t *testing.T) {
	s := mountPair(t)

	assert.Equal(t, []string{"a.choice", "b.choice"}, s.InputIDs())
	assert.Equal(t, []string{"a.out", "b.out"}, s.TargetIDs())

	require.NoError(t, s.Set("a.choice", ir.IRString("z")))
	deltas, err := s.Flush(2)
	require.NoError(t, err)

	assert.Equal(t, []ir.Delta{{Seq: 2, Target: "a.out", Value: ir.IRString("z")}}, deltas)

	vb, err := s.Value("b.choice")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("x"), vb)
}

func TestSession_FirstFlushRendersEveryTargetSorted(t *testing.T) {
	s := newTestSession("s1")
	_, err := s.Mount(chooser, "zeta", nil)
	require.NoError(t, err)
	_, err = s.Mount(chooser, "alpha", nil)
	require.NoError(t, err)

	deltas, err := s.Flush(1)
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.Equal(t, "alpha.out", deltas[0].Target)
	assert.Equal(t, "zeta.out", deltas[1].Target)
	assert.Equal(t, ir.IRString("x"), deltas[0].Value)
}

func TestSession_EqualValueProducesNoDelta(t *testing.T) {
	s := mountPair(t)
	require.NoError(t, s.Set("a.choice", ir.IRString("x")))
	deltas, err := s.Flush(2)
	require.NoError(t, err)
	assert.Empty(t, deltas)
}

func TestSession_UnknownTarget(t *testing.T) {
	s := mountPair(t)

	err := s.Set("c.choice", ir.IRString("x"))
	assert.ErrorIs(t, err, namespace.ErrInvalidIdentifier)

	err = s.Set("not valid!", ir.IRString("x"))
	assert.ErrorIs(t, err, namespace.ErrInvalidIdentifier)

	// Render targets are not writable.
	err = s.Set("a.out", ir.IRString("x"))
	assert.ErrorIs(t, err, namespace.ErrInvalidIdentifier)
}

func TestSession_DuplicateMount(t *testing.T) {
	s := mountPair(t)
	_, err := s.Mount(chooser, "a", nil)
	assert.ErrorIs(t, err, namespace.ErrDuplicateIdentifier)
	assert.Len(t, s.Instances(), 2)
}

func TestSession_TreeHasUniqueQualifiedIDs(t *testing.T) {
	s := mountPair(t)
	tree, err := s.Tree()
	require.NoError(t, err)

	assert.Equal(t, RootTag, tree.Tag)
	require.NoError(t, tree.CheckUnique())
	assert.NotNil(t, tree.Find("a.choice"))
	assert.NotNil(t, tree.Find("b.out"))
}

func TestSession_Unmount(t *testing.T) {
	s := mountPair(t)
	require.NoError(t, s.Unmount("a"))

	tree, err := s.Tree()
	require.NoError(t, err)
	assert.Nil(t, tree.Find("a.choice"))
	assert.Equal(t, []string{"b.choice"}, s.InputIDs())

	assert.ErrorIs(t, s.Unmount("a"), namespace.ErrInvalidIdentifier)

	// The id is free again.
	_, err = s.Mount(chooser, "a", nil)
	require.NoError(t, err)
}

func TestSession_HiddenTargetSkipsRecompute(t *testing.T) {
	s := mountPair(t)
	require.NoError(t, s.SetVisible("a.out", false))

	require.NoError(t, s.Set("a.choice", ir.IRString("y")))
	deltas, err := s.Flush(2)
	require.NoError(t, err)
	assert.Empty(t, deltas)

	require.NoError(t, s.SetVisible("a.out", true))
	deltas, err = s.Flush(3)
	require.NoError(t, err)
	assert.Equal(t, []ir.Delta{{Seq: 3, Target: "a.out", Value: ir.IRString("y")}}, deltas)

	assert.ErrorIs(t, s.SetVisible("a.nope", true), namespace.ErrInvalidIdentifier)
}

func TestSession_RenderErrorBecomesDeltaError(t *testing.T) {
	failing := &module.Module{
		Name: "failing",
		UI: func(ns *module.NS, _ ir.IRObject) (*ir.Element, error) {
			return module.Panel("", module.Checkbox(ns.ID("on"), "On", false), module.Output(ns.ID("out"))), nil
		},
		Server: func(c *module.Context, _ module.Args) (module.Outputs, error) {
			on, err := c.Input("on")
			if err != nil {
				return nil, err
			}
			return nil, c.Render("out", func() (ir.IRValue, error) {
				v, err := on.Get()
				if err != nil {
					return nil, err
				}
				if v == ir.IRBool(true) {
					return nil, errors.New("switched on")
				}
				return ir.IRString("off"), nil
			})
		},
	}
	s := newTestSession("s1")
	_, err := s.Mount(failing, "f", nil)
	require.NoError(t, err)
	_, err = s.Flush(1)
	require.NoError(t, err)

	require.NoError(t, s.Set("f.on", ir.IRBool(true)))
	deltas, err := s.Flush(2)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, "switched on", deltas[0].Error)
	assert.Equal(t, ir.IRNull{}, deltas[0].Value)
}

func TestSession_CycleFaultsFlush(t *testing.T) {
	loop := &module.Module{
		Name: "loop",
		UI: func(ns *module.NS, _ ir.IRObject) (*ir.Element, error) {
			return module.Output(ns.ID("out")), nil
		},
		Server: func(c *module.Context, _ module.Args) (module.Outputs, error) {
			var a, b *reactive.Cell
			var err error
			a, err = c.Reactive("a", func() (ir.IRValue, error) { return b.Get() })
			if err != nil {
				return nil, err
			}
			b, err = c.Reactive("b", func() (ir.IRValue, error) { return a.Get() })
			if err != nil {
				return nil, err
			}
			return nil, c.Render("out", a.Get)
		},
	}
	s := newTestSession("s1")
	_, err := s.Mount(loop, "l", nil)
	require.NoError(t, err)

	_, err = s.Flush(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, reactive.ErrCyclicDependency)
}

func TestSession_CloseReleasesEverything(t *testing.T) {
	s := mountPair(t)
	a, ok := s.Instance("a")
	require.True(t, ok)
	value, _ := a.Output("value")

	s.Close()
	s.Close()

	assert.True(t, s.Closed())
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, s.Stats().Cells)

	assert.ErrorIs(t, s.Set("a.choice", ir.IRString("y")), ErrSessionClosed)
	_, err := s.Flush(2)
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.Mount(chooser, "c", nil)
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.Tree()
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.Value("a.choice")
	assert.ErrorIs(t, err, ErrSessionClosed)

	// Handles held past teardown are dead.
	_, err = value.Get()
	assert.ErrorIs(t, err, reactive.ErrDisposed)

	assert.False(t, s.Enqueue(ir.Event{Target: "a.choice"}))
}

func TestSession_SeparateSessionsShareNothing(t *testing.T) {
	s1 := newTestSession("one")
	s2 := newTestSession("two")
	_, err := s1.Mount(chooser, "a", nil)
	require.NoError(t, err)
	_, err = s2.Mount(chooser, "a", nil)
	require.NoError(t, err)
	_, _ = s1.Flush(1)
	_, _ = s2.Flush(1)

	require.NoError(t, s1.Set("a.choice", ir.IRString("y")))
	_, err = s1.Flush(2)
	require.NoError(t, err)

	v, err := s2.Value("a.out")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("x"), v)

	s1.Close()
	v, err = s2.Value("a.choice")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("x"), v)
}

func TestSession_Rendered(t *testing.T) {
	s := mountPair(t)
	require.NoError(t, s.Set("b.choice", ir.IRString("z")))
	_, err := s.Flush(2)
	require.NoError(t, err)

	got, err := s.Rendered()
	require.NoError(t, err)
	assert.Equal(t, map[string]ir.IRValue{
		"a.out": ir.IRString("x"),
		"b.out": ir.IRString("z"),
	}, got)
}
