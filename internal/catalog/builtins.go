package catalog

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/module"
)

// Select is a single-choice control. Its "value" output is the current
// choice.
var Select = &module.Module{
	Name: "select",
	Params: []module.Param{
		{Name: "label", Kind: module.Static, Default: ir.IRString("Select")},
		{Name: "choices", Kind: module.Static, Required: true},
		{Name: "selected", Kind: module.Static},
	},
	UI: func(ns *module.NS, config ir.IRObject) (*ir.Element, error) {
		choices, ok := config["choices"].(ir.IRArray)
		if !ok || len(choices) == 0 {
			return nil, &module.ArgumentError{
				Code:   module.ErrInvalidArgument,
				Module: "select",
				Param:  "choices",
				Reason: "must be a non-empty array",
			}
		}
		selected := config["selected"]
		if selected != nil && !contains(choices, selected) {
			return nil, &module.ArgumentError{
				Code:   module.ErrInvalidArgument,
				Module: "select",
				Param:  "selected",
				Reason: fmt.Sprintf("%s is not one of the choices", ir.Format(selected)),
			}
		}
		return module.SelectInput(ns.ID("choice"), str(config, "label"), choices, selected), nil
	},
	Server: func(c *module.Context, _ module.Args) (module.Outputs, error) {
		choice, err := c.Input("choice")
		if err != nil {
			return nil, err
		}
		return module.Outputs{"value": choice}, nil
	},
}

// Text is a free-text control. Its "value" output is the current text.
var Text = &module.Module{
	Name: "text",
	Params: []module.Param{
		{Name: "label", Kind: module.Static, Default: ir.IRString("Text")},
		{Name: "value", Kind: module.Static, Default: ir.IRString("")},
	},
	UI: func(ns *module.NS, config ir.IRObject) (*ir.Element, error) {
		return module.TextInput(ns.ID("text"), str(config, "label"), str(config, "value")), nil
	},
	Server: func(c *module.Context, _ module.Args) (module.Outputs, error) {
		text, err := c.Input("text")
		if err != nil {
			return nil, err
		}
		return module.Outputs{"value": text}, nil
	},
}

// Number is an integer control with an optional hint line. Its "value"
// output is the current number; a non-integer from the client is an error
// downstream rather than a silent coercion.
var Number = &module.Module{
	Name: "number",
	Params: []module.Param{
		{Name: "label", Kind: module.Static, Default: ir.IRString("Number")},
		{Name: "value", Kind: module.Static, Default: ir.IRInt(0)},
		{Name: "hint", Kind: module.Static, Default: ir.IRString("")},
	},
	UI: func(ns *module.NS, config ir.IRObject) (*ir.Element, error) {
		initial, ok := config["value"].(ir.IRInt)
		if !ok {
			return nil, &module.ArgumentError{Code: module.ErrInvalidArgument, Module: "number", Param: "value", Reason: "must be an integer"}
		}
		input := module.NumericInput(ns.ID("number"), str(config, "label"), int64(initial))
		hint := str(config, "hint")
		if hint == "" {
			return input, nil
		}
		return module.Panel("", input, module.Label(hint)), nil
	},
	Server: func(c *module.Context, _ module.Args) (module.Outputs, error) {
		number, err := c.Input("number")
		if err != nil {
			return nil, err
		}
		value, err := c.Reactive("value", func() (ir.IRValue, error) {
			v, err := number.Get()
			if err != nil {
				return nil, err
			}
			if _, ok := v.(ir.IRInt); !ok {
				return nil, fmt.Errorf("number must be an integer, got %s", ir.Format(v))
			}
			return v, nil
		})
		if err != nil {
			return nil, err
		}
		return module.Outputs{"value": value}, nil
	},
}

// Counter counts clicks on its button. The button's value is the click
// count reported by the client; "count" is start + clicks*step.
var Counter = &module.Module{
	Name: "counter",
	Params: []module.Param{
		{Name: "label", Kind: module.Static, Default: ir.IRString("Count")},
		{Name: "start", Kind: module.Static, Default: ir.IRInt(0)},
		{Name: "step", Kind: module.Static, Default: ir.IRInt(1)},
	},
	UI: func(ns *module.NS, config ir.IRObject) (*ir.Element, error) {
		for _, p := range []string{"start", "step"} {
			if _, ok := config[p].(ir.IRInt); !ok {
				return nil, &module.ArgumentError{Code: module.ErrInvalidArgument, Module: "counter", Param: p, Reason: "must be an integer"}
			}
		}
		return module.Panel("",
			module.Button(ns.ID("increment"), str(config, "label")),
			module.Output(ns.ID("display")),
		), nil
	},
	Server: func(c *module.Context, args module.Args) (module.Outputs, error) {
		clicks, err := c.Input("increment")
		if err != nil {
			return nil, err
		}
		start := args.Static("start").(ir.IRInt)
		step := args.Static("step").(ir.IRInt)
		label := args.Static("label")

		count, err := c.Reactive("count", func() (ir.IRValue, error) {
			v, err := clicks.Get()
			if err != nil {
				return nil, err
			}
			n, ok := v.(ir.IRInt)
			if !ok {
				return nil, fmt.Errorf("click count must be an integer, got %s", ir.Format(v))
			}
			return start + n*step, nil
		})
		if err != nil {
			return nil, err
		}
		err = c.Render("display", func() (ir.IRValue, error) {
			v, err := count.Get()
			if err != nil {
				return nil, err
			}
			return ir.IRString(fmt.Sprintf("%s: %d", text(label), v.(ir.IRInt))), nil
		})
		if err != nil {
			return nil, err
		}
		return module.Outputs{"count": count}, nil
	},
}

// Summary renders a reactive source under a heading. Its "length" output
// is the rune count of a string or the length of an array, else 0.
var Summary = &module.Module{
	Name: "summary",
	Params: []module.Param{
		{Name: "source", Kind: module.Reactive, Required: true},
		{Name: "title", Kind: module.Static, Default: ir.IRString("Summary")},
	},
	UI: func(ns *module.NS, config ir.IRObject) (*ir.Element, error) {
		return module.Panel(str(config, "title"), module.Output(ns.ID("summary"))), nil
	},
	Server: func(c *module.Context, args module.Args) (module.Outputs, error) {
		length, err := c.Reactive("length", func() (ir.IRValue, error) {
			v, err := args.Value("source")
			if err != nil {
				return nil, err
			}
			return ir.IRInt(lengthOf(v)), nil
		})
		if err != nil {
			return nil, err
		}
		title := text(args.Static("title"))
		err = c.Render("summary", func() (ir.IRValue, error) {
			v, err := args.Value("source")
			if err != nil {
				return nil, err
			}
			n, err := length.Get()
			if err != nil {
				return nil, err
			}
			return ir.IRObject{
				"title":  ir.IRString(title),
				"value":  v,
				"length": n,
			}, nil
		})
		if err != nil {
			return nil, err
		}
		return module.Outputs{"length": length}, nil
	},
}

// Filter is a composite: it embeds a Select as child "pick" and keeps the
// items that match the current pick. String items match when they contain
// the pick; other items match when equal to it. The pick "*" keeps all.
var Filter = &module.Module{
	Name: "filter",
	Params: []module.Param{
		{Name: "items", Kind: module.Reactive, Required: true},
		{Name: "label", Kind: module.Static, Default: ir.IRString("Filter")},
		{Name: "choices", Kind: module.Static, Required: true},
	},
	UI: func(ns *module.NS, config ir.IRObject) (*ir.Element, error) {
		pick := ns.Embed(Select, "pick", ir.IRObject{
			"label":   config["label"],
			"choices": config["choices"],
		})
		if err := ns.Err(); err != nil {
			return nil, err
		}
		return module.Panel(str(config, "label"), pick, module.Output(ns.ID("result"))), nil
	},
	Server: func(c *module.Context, args module.Args) (module.Outputs, error) {
		pick, err := c.Module(Select, "pick", nil)
		if err != nil {
			return nil, err
		}
		choice, _ := pick.Output("value")

		matches, err := c.Reactive("matches", func() (ir.IRValue, error) {
			items, err := args.Value("items")
			if err != nil {
				return nil, err
			}
			p, err := choice.Get()
			if err != nil {
				return nil, err
			}
			return filterItems(items, p), nil
		})
		if err != nil {
			return nil, err
		}
		if err := c.Render("result", matches.Get); err != nil {
			return nil, err
		}
		return module.Outputs{"matches": matches}, nil
	},
}

func filterItems(items, pick ir.IRValue) ir.IRArray {
	arr, ok := items.(ir.IRArray)
	if !ok {
		return ir.IRArray{}
	}
	out := ir.IRArray{}
	for _, item := range arr {
		if matchItem(item, pick) {
			out = append(out, item)
		}
	}
	return out
}

func matchItem(item, pick ir.IRValue) bool {
	if pick == ir.IRString("*") {
		return true
	}
	s, sok := item.(ir.IRString)
	p, pok := pick.(ir.IRString)
	if sok && pok {
		return strings.Contains(string(s), string(p))
	}
	return ir.Equal(item, pick)
}

func lengthOf(v ir.IRValue) int {
	switch v := v.(type) {
	case ir.IRString:
		return utf8.RuneCountInString(string(v))
	case ir.IRArray:
		return len(v)
	case ir.IRObject:
		return len(v)
	default:
		return 0
	}
}

func contains(arr ir.IRArray, v ir.IRValue) bool {
	for _, item := range arr {
		if ir.Equal(item, v) {
			return true
		}
	}
	return false
}

func str(config ir.IRObject, key string) string {
	return text(config[key])
}

// text renders a value as plain text: strings unquoted, everything else
// in canonical form.
func text(v ir.IRValue) string {
	switch v := v.(type) {
	case nil:
		return ""
	case ir.IRString:
		return string(v)
	case ir.IRNull:
		return ""
	default:
		return ir.Format(v)
	}
}
