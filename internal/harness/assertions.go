package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/weave/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, ev := range e.Trace {
		switch ev.Type {
		case TraceTypeError:
			fmt.Fprintf(&buf, "  [%d] seq=%d %s %s rejected: %s\n", i+1, ev.Seq, ev.Type, ev.Target, ev.Code)
		default:
			fmt.Fprintf(&buf, "  [%d] seq=%d %s %s = %s\n", i+1, ev.Seq, ev.Type, ev.Target, ir.Format(ev.Value))
		}
	}

	return buf.String()
}

// assertDeltaContains checks that some delta rendered the target, with the
// expected value when one is given.
func assertDeltaContains(trace []TraceEvent, assertion Assertion) error {
	want, err := ir.FromGo(assertion.Value)
	if err != nil {
		return err
	}
	for _, ev := range trace {
		if ev.Type != TraceTypeDelta || ev.Target != assertion.Target {
			continue
		}
		if assertion.Value == nil || ir.Equal(ev.Value, want) {
			return nil
		}
	}

	expected := "delta to " + assertion.Target
	if assertion.Value != nil {
		expected += " with value " + ir.Format(want)
	}
	return &AssertionError{
		Type:     AssertDeltaContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertDeltaOrder checks that targets were first rendered in the given
// order. Other deltas may appear in between.
func assertDeltaOrder(trace []TraceEvent, assertion Assertion) error {
	first := make(map[string]int)
	for i, ev := range trace {
		if ev.Type != TraceTypeDelta {
			continue
		}
		if _, seen := first[ev.Target]; !seen {
			first[ev.Target] = i
		}
	}

	for _, target := range assertion.Targets {
		if _, ok := first[target]; !ok {
			return &AssertionError{
				Type:     AssertDeltaOrder,
				Expected: fmt.Sprintf("targets in order: %v", assertion.Targets),
				Actual:   fmt.Sprintf("%s never rendered", target),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(assertion.Targets); i++ {
		prev, cur := assertion.Targets[i-1], assertion.Targets[i]
		if first[prev] > first[cur] {
			return &AssertionError{
				Type:     AssertDeltaOrder,
				Expected: fmt.Sprintf("targets in order: %v", assertion.Targets),
				Actual:   fmt.Sprintf("%s rendered before %s", cur, prev),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertDeltaCount checks that the target was rendered exactly Count times.
func assertDeltaCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type == TraceTypeDelta && ev.Target == assertion.Target {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertDeltaCount,
			Expected: fmt.Sprintf("%s rendered %d times", assertion.Target, assertion.Count),
			Actual:   fmt.Sprintf("rendered %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertDeltaContains:
			err = assertDeltaContains(result.Trace, assertion)
		case AssertDeltaOrder:
			err = assertDeltaOrder(result.Trace, assertion)
		case AssertDeltaCount:
			err = assertDeltaCount(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
