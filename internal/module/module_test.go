package module

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/namespace"
	"github.com/roach88/weave/internal/reactive"
)

// testHost is a minimal Host backed by a real graph.
type testHost struct {
	graph    *reactive.Graph
	logger   *slog.Logger
	inputs   map[string]*reactive.Cell
	targets  map[string]*reactive.Cell
	rendered map[string]ir.IRValue
}

func newTestHost() *testHost {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testHost{
		graph:    reactive.NewGraph(reactive.WithLogger(logger)),
		logger:   logger,
		inputs:   make(map[string]*reactive.Cell),
		targets:  make(map[string]*reactive.Cell),
		rendered: make(map[string]ir.IRValue),
	}
}

func (h *testHost) Graph() *reactive.Graph { return h.graph }
func (h *testHost) Logger() *slog.Logger   { return h.logger }

func (h *testHost) AddInput(id string, cell *reactive.Cell) error {
	if _, ok := h.inputs[id]; ok {
		return &namespace.IdentifierError{Code: namespace.ErrDuplicateIdentifier, Name: id}
	}
	h.inputs[id] = cell
	return nil
}

func (h *testHost) RemoveInput(id string) { delete(h.inputs, id) }

func (h *testHost) AddTarget(id string, fn reactive.ComputeFunc) (*reactive.Cell, error) {
	cell, err := h.graph.Observe(id, fn, func(u reactive.Update) {
		if u.Changed {
			h.rendered[id] = u.Value
		}
	})
	if err != nil {
		return nil, err
	}
	h.targets[id] = cell
	return cell, nil
}

func (h *testHost) RemoveTarget(id string) { delete(h.targets, id) }

// send writes a control value and flushes, like one dispatched event.
func (h *testHost) send(t *testing.T, id string, v ir.IRValue) {
	t.Helper()
	cell, ok := h.inputs[id]
	require.True(t, ok, "no input %q", id)
	require.NoError(t, cell.Set(v))
	require.NoError(t, h.graph.Flush())
}

// picker is a select control that echoes its choice.
var picker = &Module{
	Name: "picker",
	Params: []Param{
		{Name: "label", Kind: Static, Default: ir.IRString("Pick")},
		{Name: "choices", Kind: Static, Required: true},
	},
	UI: func(ns *NS, cfg ir.IRObject) (*ir.Element, error) {
		choices, ok := cfg["choices"].(ir.IRArray)
		if !ok {
			return nil, fmt.Errorf("choices must be an array")
		}
		label := string(cfg["label"].(ir.IRString))
		return Panel(label,
			SelectInput(ns.ID("choice"), label, choices, nil),
			Output(ns.ID("shown")),
		), nil
	},
	Server: func(c *Context, _ Args) (Outputs, error) {
		choice, err := c.Input("choice")
		if err != nil {
			return nil, err
		}
		value, err := c.Reactive("value", func() (ir.IRValue, error) { return choice.Get() })
		if err != nil {
			return nil, err
		}
		if err := c.Render("shown", value.Get); err != nil {
			return nil, err
		}
		return Outputs{"value": value}, nil
	},
}

// wrapper embeds a picker and echoes its output under its own target.
var wrapper = &Module{
	Name:   "wrapper",
	Params: []Param{{Name: "choices", Kind: Static, Required: true}},
	UI: func(ns *NS, cfg ir.IRObject) (*ir.Element, error) {
		return Panel("",
			ns.Embed(picker, "pick", ir.IRObject{"choices": cfg["choices"]}),
			Output(ns.ID("echo")),
		), nil
	},
	Server: func(c *Context, _ Args) (Outputs, error) {
		child, err := c.Module(picker, "pick", nil)
		if err != nil {
			return nil, err
		}
		value, _ := child.Output("value")
		if err := c.Render("echo", value.Get); err != nil {
			return nil, err
		}
		return Outputs{"picked": value}, nil
	},
}

// scaler multiplies a reactive input by a static factor.
var scaler = &Module{
	Name: "scaler",
	Params: []Param{
		{Name: "factor", Kind: Static, Default: ir.IRInt(2)},
		{Name: "input", Kind: Reactive, Required: true},
	},
	Server: func(c *Context, args Args) (Outputs, error) {
		factor := args.Static("factor").(ir.IRInt)
		out, err := c.Reactive("scaled", func() (ir.IRValue, error) {
			v, err := args.Value("input")
			if err != nil {
				return nil, err
			}
			n, _ := v.(ir.IRInt)
			return n * factor, nil
		})
		if err != nil {
			return nil, err
		}
		return Outputs{"scaled": out}, nil
	},
}

func choicesArg(ss ...string) Args {
	return Args{"choices": StaticArg(ir.Strings(ss...))}
}

func TestSiblingInstancesAreIsolated(t *testing.T) {
	h := newTestHost()
	root := namespace.NewRoot()

	a, err := Instantiate(h, root, picker, "a", choicesArg("x", "y"))
	require.NoError(t, err)
	b, err := Instantiate(h, root, picker, "b", choicesArg("x", "y"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a.choice"}, a.Inputs())
	assert.Equal(t, []string{"b.choice"}, b.Inputs())
	assert.NotNil(t, a.Tree().Find("a.choice"))
	assert.Nil(t, a.Tree().Find("b.choice"))

	require.NoError(t, h.graph.Flush())
	h.send(t, "a.choice", ir.IRString("y"))

	va, err := a.Value("value")
	require.NoError(t, err)
	vb, err := b.Value("value")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("y"), va)
	assert.Equal(t, ir.IRString("x"), vb)
	assert.Equal(t, ir.IRString("y"), h.rendered["a.shown"])
	assert.Equal(t, ir.IRString("x"), h.rendered["b.shown"])
}

func TestDuplicateSiblingRejected(t *testing.T) {
	h := newTestHost()
	root := namespace.NewRoot()

	_, err := Instantiate(h, root, picker, "a", choicesArg("x"))
	require.NoError(t, err)
	_, err = Instantiate(h, root, picker, "a", choicesArg("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, namespace.ErrDuplicateIdentifier)
	assert.Len(t, h.inputs, 1)
}

func TestInvalidInstanceID(t *testing.T) {
	h := newTestHost()
	_, err := Instantiate(h, namespace.NewRoot(), picker, "bad-id", choicesArg("x"))
	assert.ErrorIs(t, err, namespace.ErrInvalidIdentifier)
}

func TestArgumentKindMismatch(t *testing.T) {
	h := newTestHost()
	root := namespace.NewRoot()
	src, err := h.graph.Source("src", ir.Strings("x"))
	require.NoError(t, err)

	_, err = Instantiate(h, root, picker, "p", Args{"choices": ReactiveArg(src)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArgumentKindMismatch))

	var argErr *ArgumentError
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, "choices", argErr.Param)
	assert.Equal(t, "picker", argErr.Module)

	// Nothing was left behind, so a corrected retry reuses the id.
	assert.Empty(t, h.inputs)
	_, err = Instantiate(h, root, picker, "p", choicesArg("x"))
	require.NoError(t, err)
}

func TestStaticWhereReactiveRequired(t *testing.T) {
	h := newTestHost()
	_, err := Instantiate(h, namespace.NewRoot(), scaler, "s", Args{"input": StaticArg(ir.IRInt(3))})
	assert.ErrorIs(t, err, ErrArgumentKindMismatch)
}

func TestMissingAndUnknownArguments(t *testing.T) {
	h := newTestHost()
	root := namespace.NewRoot()

	_, err := Instantiate(h, root, picker, "p", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Instantiate(h, root, picker, "p", Args{
		"choices": StaticArg(ir.Strings("x")),
		"colour":  StaticArg(ir.IRString("red")),
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.True(t, IsArgumentError(err))

	_, err = Instantiate(h, root, scaler, "s", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReactiveArgumentReadThroughAccessor(t *testing.T) {
	h := newTestHost()
	root := namespace.NewRoot()
	src, _ := h.graph.Source("src", ir.IRInt(5))

	inst, err := Instantiate(h, root, scaler, "s", Args{
		"input":  ReactiveArg(src),
		"factor": StaticArg(ir.IRInt(3)),
	})
	require.NoError(t, err)
	assert.Nil(t, inst.Tree())

	v, err := inst.Value("scaled")
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(15), v)

	require.NoError(t, src.Set(ir.IRInt(7)))
	v, err = inst.Value("scaled")
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(21), v)

	assert.Equal(t, ir.IRInt(3), inst.Args().Static("factor"))
	assert.Equal(t, []string{"scaled"}, inst.OutputNames())
}

func TestStaticDefaultApplied(t *testing.T) {
	h := newTestHost()
	src, _ := h.graph.Source("src", ir.IRInt(5))
	inst, err := Instantiate(h, namespace.NewRoot(), scaler, "s", Args{"input": ReactiveArg(src)})
	require.NoError(t, err)
	v, err := inst.Value("scaled")
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(10), v)
}

func TestEmbeddedChildGetsNestedScope(t *testing.T) {
	h := newTestHost()
	root := namespace.NewRoot()

	w1, err := Instantiate(h, root, wrapper, "w1", choicesArg("red", "blue"))
	require.NoError(t, err)
	w2, err := Instantiate(h, root, wrapper, "w2", choicesArg("red", "blue"))
	require.NoError(t, err)

	assert.NotNil(t, w1.Tree().Find("w1.pick.choice"))
	assert.NotNil(t, w1.Tree().Find("w1.echo"))
	require.Len(t, w1.Children(), 1)
	assert.Equal(t, "w1.pick", w1.Children()[0].ID())
	assert.Equal(t, w1, w1.Children()[0].Parent())

	require.NoError(t, h.graph.Flush())
	h.send(t, "w2.pick.choice", ir.IRString("blue"))

	assert.Equal(t, ir.IRString("red"), h.rendered["w1.echo"])
	assert.Equal(t, ir.IRString("blue"), h.rendered["w2.echo"])
	assert.Equal(t, ir.IRString("blue"), h.rendered["w2.pick.shown"])

	v, err := w2.Value("picked")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("blue"), v)
}

func TestEmbeddedChildServedWithoutExplicitModuleCall(t *testing.T) {
	lazy := &Module{
		Name: "lazy",
		UI: func(ns *NS, _ ir.IRObject) (*ir.Element, error) {
			return Panel("", ns.Embed(picker, "pick", ir.IRObject{"choices": ir.Strings("only")})), nil
		},
	}
	h := newTestHost()
	inst, err := Instantiate(h, namespace.NewRoot(), lazy, "l", nil)
	require.NoError(t, err)
	require.Len(t, inst.Children(), 1)
	assert.Contains(t, h.inputs, "l.pick.choice")
}

func TestUndeclaredElementIDRejected(t *testing.T) {
	rogue := &Module{
		Name: "rogue",
		UI: func(ns *NS, _ ir.IRObject) (*ir.Element, error) {
			return Panel("", Output("somewhere.else")), nil
		},
	}
	h := newTestHost()
	_, err := Instantiate(h, namespace.NewRoot(), rogue, "r", nil)
	assert.ErrorIs(t, err, namespace.ErrInvalidIdentifier)
}

func TestDescriptorDuplicateLocalName(t *testing.T) {
	twice := &Module{
		Name: "twice",
		UI: func(ns *NS, _ ir.IRObject) (*ir.Element, error) {
			return Panel("", Output(ns.ID("out")), Output(ns.ID("out"))), nil
		},
	}
	h := newTestHost()
	_, err := Instantiate(h, namespace.NewRoot(), twice, "t", nil)
	assert.ErrorIs(t, err, namespace.ErrDuplicateIdentifier)
}

func TestRenderRequiresDeclaredTarget(t *testing.T) {
	blind := &Module{
		Name: "blind",
		UI: func(ns *NS, _ ir.IRObject) (*ir.Element, error) {
			return Panel("", Output(ns.ID("out"))), nil
		},
		Server: func(c *Context, _ Args) (Outputs, error) {
			return nil, c.Render("missing", func() (ir.IRValue, error) { return ir.IRNull{}, nil })
		},
	}
	h := newTestHost()
	_, err := Instantiate(h, namespace.NewRoot(), blind, "b", nil)
	assert.ErrorIs(t, err, namespace.ErrInvalidIdentifier)
	assert.Empty(t, h.targets)
}

func TestBehaviorFailureRollsBack(t *testing.T) {
	failing := &Module{
		Name: "failing",
		UI: func(ns *NS, _ ir.IRObject) (*ir.Element, error) {
			return Panel("", TextInput(ns.ID("q"), "Query", "")), nil
		},
		Server: func(c *Context, _ Args) (Outputs, error) {
			if _, err := c.Reactive("tmp", func() (ir.IRValue, error) { return ir.IRNull{}, nil }); err != nil {
				return nil, err
			}
			return nil, errors.New("boom")
		},
	}
	h := newTestHost()
	root := namespace.NewRoot()
	_, err := Instantiate(h, root, failing, "f", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	assert.Empty(t, h.inputs)
	assert.Equal(t, 0, h.graph.Stats().Cells)
	_, ok := root.Lookup("f")
	assert.False(t, ok)
}

func TestDestroyReleasesEverything(t *testing.T) {
	h := newTestHost()
	root := namespace.NewRoot()
	w, err := Instantiate(h, root, wrapper, "w", choicesArg("a"))
	require.NoError(t, err)
	require.NoError(t, h.graph.Flush())

	picked, _ := w.Output("picked")
	w.Destroy()
	w.Destroy()

	assert.True(t, w.Destroyed())
	assert.True(t, w.Children()[0].Destroyed())
	assert.Empty(t, h.inputs)
	assert.Empty(t, h.targets)
	assert.Equal(t, 0, h.graph.Stats().Cells)

	_, err = picked.Get()
	assert.ErrorIs(t, err, reactive.ErrDisposed)

	_, err = Instantiate(h, root, wrapper, "w", choicesArg("a"))
	assert.NoError(t, err)
}

func TestBehaviorNameCollision(t *testing.T) {
	clash := &Module{
		Name: "clash",
		UI: func(ns *NS, _ ir.IRObject) (*ir.Element, error) {
			return Panel("", TextInput(ns.ID("value"), "Value", "")), nil
		},
		Server: func(c *Context, _ Args) (Outputs, error) {
			_, err := c.Reactive("value", func() (ir.IRValue, error) { return ir.IRNull{}, nil })
			return nil, err
		},
	}
	h := newTestHost()
	_, err := Instantiate(h, namespace.NewRoot(), clash, "c", nil)
	assert.ErrorIs(t, err, namespace.ErrDuplicateIdentifier)
}

func TestSelfEmbeddingBounded(t *testing.T) {
	var loop *Module
	loop = &Module{
		Name: "loop",
		UI: func(ns *NS, _ ir.IRObject) (*ir.Element, error) {
			return Panel("", ns.Embed(loop, "again", nil)), nil
		},
	}
	h := newTestHost()
	_, err := Instantiate(h, namespace.NewRoot(), loop, "l", nil)
	assert.ErrorIs(t, err, ErrInvalidModule)
}

func TestModuleValidate(t *testing.T) {
	tests := []struct {
		name string
		m    *Module
	}{
		{"nil", nil},
		{"no name", &Module{}},
		{"bad param", &Module{Name: "m", Params: []Param{{Name: "a-b", Kind: Static}}}},
		{"dup param", &Module{Name: "m", Params: []Param{{Name: "a", Kind: Static}, {Name: "a", Kind: Static}}}},
		{"no kind", &Module{Name: "m", Params: []Param{{Name: "a"}}}},
		{"reactive default", &Module{Name: "m", Params: []Param{{Name: "a", Kind: Reactive, Default: ir.IRInt(1)}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.m.Validate(), ErrInvalidModule)
		})
	}
	assert.NoError(t, picker.Validate())
}

func TestConstFeedsReactiveParameter(t *testing.T) {
	composite := &Module{
		Name: "composite",
		Server: func(c *Context, _ Args) (Outputs, error) {
			k, err := c.Const("seven", ir.IRInt(7))
			if err != nil {
				return nil, err
			}
			s, err := c.Module(scaler, "times", Args{"input": ReactiveArg(k)})
			if err != nil {
				return nil, err
			}
			out, _ := s.Output("scaled")
			return Outputs{"result": out}, nil
		},
	}
	h := newTestHost()
	inst, err := Instantiate(h, namespace.NewRoot(), composite, "c", nil)
	require.NoError(t, err)
	v, err := inst.Value("result")
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(14), v)
	assert.Equal(t, "c.times", inst.Children()[0].ID())
}
