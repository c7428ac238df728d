package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/weave/internal/ir"
)

// DefaultSession is the session token used when a scenario names none.
const DefaultSession = "test-session"

// Scenario defines a conformance test scenario: an application, a stream of
// interface events, and what the session must render in response.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// App is the path to the application definition (.cue file or CUE
	// package directory). Relative paths are resolved against the
	// scenario file location.
	App string `yaml:"app"`

	// Session is an optional fixed session token.
	// If empty, defaults to DefaultSession.
	Session string `yaml:"session,omitempty"`

	// Events are dispatched in order after the session is opened.
	Events []EventStep `yaml:"events"`

	// Expect validates the session after the last event.
	Expect *FinalExpect `yaml:"expect,omitempty"`

	// Assertions validate the trace.
	// Supported types: delta_contains, delta_order, delta_count
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// EventStep is one interface event.
type EventStep struct {
	// Target is the qualified identifier of the control (e.g. "dataset.choice").
	Target string `yaml:"target"`

	// Value is the new control value. Floats are rejected.
	Value any `yaml:"value"`

	// Error is the expected runtime error code (e.g. "INVALID_IDENTIFIER").
	// If empty, the event must be accepted.
	Error string `yaml:"error,omitempty"`

	// Deltas lists render targets this event must update, with their new
	// values. Subset match: other deltas are allowed.
	Deltas map[string]any `yaml:"deltas,omitempty"`
}

// FinalExpect specifies the session state after the last event.
type FinalExpect struct {
	// Outputs maps render targets to their last rendered value.
	// Subset match: only the listed targets are validated.
	Outputs map[string]any `yaml:"outputs,omitempty"`

	// Deltas is the expected total number of deltas, the opening render
	// included.
	Deltas *int `yaml:"deltas,omitempty"`
}

// Assertion validates the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "delta_contains": a delta to Target (with Value, if set) was rendered
	// - "delta_order": Targets were first rendered in this order
	// - "delta_count": Target was rendered exactly Count times
	Type string `yaml:"type"`

	// Target is the qualified render target (delta_contains, delta_count).
	Target string `yaml:"target,omitempty"`

	// Value is the expected delta value (delta_contains).
	Value any `yaml:"value,omitempty"`

	// Targets is the expected render order (delta_order).
	Targets []string `yaml:"targets,omitempty"`

	// Count is the expected number of deltas (delta_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertDeltaContains = "delta_contains"
	AssertDeltaOrder    = "delta_order"
	AssertDeltaCount    = "delta_count"
)

// LoadScenario reads and parses a scenario YAML file, resolving the app
// path relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the app path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve the app path BEFORE validation
	if scenario.App != "" && !filepath.IsAbs(scenario.App) && basePath != "" {
		scenario.App = filepath.Join(basePath, scenario.App)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without validating it.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.App == "" {
		return fmt.Errorf("app is required")
	}
	if _, err := os.Stat(s.App); os.IsNotExist(err) {
		return fmt.Errorf("app not found: %s", s.App)
	}

	if len(s.Events) == 0 && s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("scenario checks nothing: add events, expect, or assertions")
	}

	for i, step := range s.Events {
		if step.Target == "" {
			return fmt.Errorf("events[%d]: target is required", i)
		}
		if _, err := ir.FromGo(step.Value); err != nil {
			return fmt.Errorf("events[%d]: value: %w", i, err)
		}
		for target, v := range step.Deltas {
			if _, err := ir.FromGo(v); err != nil {
				return fmt.Errorf("events[%d].deltas[%s]: %w", i, target, err)
			}
		}
	}

	if s.Expect != nil {
		if s.Expect.Deltas != nil && *s.Expect.Deltas < 0 {
			return fmt.Errorf("expect: deltas must be non-negative")
		}
		for target, v := range s.Expect.Outputs {
			if _, err := ir.FromGo(v); err != nil {
				return fmt.Errorf("expect.outputs[%s]: %w", target, err)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertDeltaContains:
		if a.Target == "" {
			return fmt.Errorf("assertions[%d]: target is required for delta_contains", index)
		}
		if _, err := ir.FromGo(a.Value); err != nil {
			return fmt.Errorf("assertions[%d]: value: %w", index, err)
		}
	case AssertDeltaOrder:
		if len(a.Targets) == 0 {
			return fmt.Errorf("assertions[%d]: targets list is required for delta_order", index)
		}
	case AssertDeltaCount:
		if a.Target == "" {
			return fmt.Errorf("assertions[%d]: target is required for delta_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for delta_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
