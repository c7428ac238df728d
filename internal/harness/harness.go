package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/weave/internal/catalog"
	"github.com/roach88/weave/internal/compiler"
	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/store"
	"github.com/roach88/weave/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and a fixed session token.
type Harness struct {
	store    *store.Store
	registry *catalog.Registry
	logger   *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithRegistry replaces the module registry (default: catalog.Builtins()).
func WithRegistry(reg *catalog.Registry) Option {
	return func(h *Harness) {
		h.registry = reg
	}
}

// WithLogger sets the logger handed to every session.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load, validate and assemble the application
// 3. Open the session (first render at seq 1)
// 4. Dispatch events with per-step expectations
// 5. Check final outputs and assertions
// 6. Close the session and replay the journal for determinism
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		registry: catalog.Builtins(),
		logger:   testutil.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}

	setup, appName, appHash, err := h.assemble(scenario.App)
	if err != nil {
		return nil, err
	}

	token := scenario.Session
	if token == "" {
		token = DefaultSession
	}
	root := engine.New(token,
		engine.WithLogger(h.logger),
		engine.WithJournal(st),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithApp(appName, appHash),
	)
	if err := setup(root); err != nil {
		root.Close(ctx)
		return nil, fmt.Errorf("failed to mount app: %w", err)
	}

	result := NewResult()
	initial, err := root.Open(ctx)
	if err != nil {
		root.Close(ctx)
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	result.AddDeltaTraces(initial)

	if err := h.executeEvents(ctx, root, scenario.Events, result); err != nil {
		root.Close(ctx)
		return nil, fmt.Errorf("failed to execute events: %w", err)
	}

	if !root.Closed() {
		rendered, err := root.Session().Rendered()
		if err != nil {
			return nil, fmt.Errorf("failed to read outputs: %w", err)
		}
		result.Outputs = rendered
	}
	checkFinal(scenario.Expect, result)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	root.Close(ctx)
	if err := h.verifyReplay(ctx, token, setup, result); err != nil {
		return nil, err
	}

	return result, nil
}

// assemble loads and validates the application and returns its setup.
func (h *Harness) assemble(path string) (engine.SetupFunc, string, string, error) {
	spec, err := compiler.Load(path)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to load app: %w", err)
	}
	if errs := compiler.Validate(spec, h.registry); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, "", "", fmt.Errorf("invalid app %s:\n  %s", path, strings.Join(msgs, "\n  "))
	}
	setup, err := catalog.Assemble(*spec, h.registry)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to assemble app: %w", err)
	}
	hash, err := ir.AppHash(*spec)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to hash app: %w", err)
	}
	return setup, spec.Name, hash, nil
}

// executeEvents dispatches every step and checks its expectations.
func (h *Harness) executeEvents(ctx context.Context, root *engine.Root, steps []EventStep, result *Result) error {
	for i, step := range steps {
		value, err := ir.FromGo(step.Value)
		if err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}

		deltas, err := root.Dispatch(ctx, ir.Event{Target: step.Target, Value: value})
		if err != nil && engine.IsSessionClosed(err) && root.Fault() != nil {
			result.AddError(fmt.Sprintf("events[%d]: session closed by earlier fault: %v", i, root.Fault()))
			return nil
		}
		seq := root.Clock().Current()
		result.AddEventTrace(seq, step.Target, value)

		if err != nil {
			code := string(engine.CodeOf(err))
			result.AddErrorTrace(seq, step.Target, code)
			if step.Error == "" {
				result.AddError(fmt.Sprintf("events[%d]: %s rejected: %v", i, step.Target, err))
			} else if step.Error != code {
				result.AddError(fmt.Sprintf("events[%d]: expected error %s, got %s", i, step.Error, code))
			}
			continue
		}
		result.AddDeltaTraces(deltas)

		if step.Error != "" {
			result.AddError(fmt.Sprintf("events[%d]: expected error %s, event was accepted", i, step.Error))
		}
		checkStepDeltas(i, step, deltas, result)
	}
	return nil
}

// checkStepDeltas validates the deltas a step must produce (subset match).
func checkStepDeltas(index int, step EventStep, deltas []ir.Delta, result *Result) {
	got := make(map[string]ir.IRValue, len(deltas))
	for _, d := range deltas {
		got[d.Target] = d.Value
	}
	for _, target := range sortedKeys(step.Deltas) {
		want, _ := ir.FromGo(step.Deltas[target])
		actual, ok := got[target]
		switch {
		case !ok:
			result.AddError(fmt.Sprintf("events[%d]: expected delta to %s, none rendered", index, target))
		case !ir.Equal(actual, want):
			result.AddError(fmt.Sprintf("events[%d]: delta %s: expected %s, got %s",
				index, target, ir.Format(want), ir.Format(actual)))
		}
	}
}

// checkFinal validates the expect clause against the finished run.
func checkFinal(expect *FinalExpect, result *Result) {
	if expect == nil {
		return
	}
	for _, target := range sortedKeys(expect.Outputs) {
		want, _ := ir.FromGo(expect.Outputs[target])
		actual, ok := result.Outputs[target]
		switch {
		case !ok:
			result.AddError(fmt.Sprintf("expect.outputs: %s was never rendered", target))
		case !ir.Equal(actual, want):
			result.AddError(fmt.Sprintf("expect.outputs: %s: expected %s, got %s",
				target, ir.Format(want), ir.Format(actual)))
		}
	}
	if expect.Deltas != nil {
		if n := len(result.Deltas()); n != *expect.Deltas {
			result.AddError(fmt.Sprintf("expect.deltas: expected %d, got %d", *expect.Deltas, n))
		}
	}
}

// verifyReplay replays the journaled session into a fresh root and
// records whether it reproduced the same deltas.
func (h *Harness) verifyReplay(ctx context.Context, token string, setup engine.SetupFunc, result *Result) error {
	log, err := h.store.ReadSessionLog(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	rep, err := engine.Replay(ctx, setup, log, engine.WithLogger(h.logger))
	if err != nil {
		return fmt.Errorf("failed to replay session: %w", err)
	}
	result.Replay = &ReplaySummary{
		Events:     rep.Events,
		Deltas:     rep.Deltas,
		Rejected:   rep.Rejected,
		Mismatches: len(rep.Mismatches),
	}
	for _, m := range rep.Mismatches {
		result.AddError(fmt.Sprintf("replay: seq %d %s: journaled %s, replayed %s", m.Seq, m.Target, m.Want, m.Got))
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
