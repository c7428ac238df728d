// Package harness provides conformance testing for weave applications.
//
// The harness loads an application definition, opens one session against
// it, dispatches a scripted stream of interface events, and validates what
// the session rendered.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	app: ../apps/explorer.cue
//	session: test-session
//	events:
//	  - target: dataset.choice
//	    value: mtcars
//	    deltas:
//	      view.summary: { title: Current, value: mtcars, length: 6 }
//	  - target: nope.choice
//	    value: x
//	    error: INVALID_IDENTIFIER
//	expect:
//	  outputs:
//	    clicks.display: "Count: 0"
//	  deltas: 3
//	assertions:
//	  - type: delta_count
//	    target: view.summary
//	    count: 2
//
// # Assertion Types
//
//   - delta_contains: a delta to target was rendered (with value, if given)
//   - delta_order: targets were first rendered in the given order
//   - delta_count: target was rendered exactly count times
//
// # Deterministic Testing
//
// Every scenario runs with a deterministic logical clock, a fixed session
// token, and an in-memory SQLite journal. After the last event the journal
// is replayed into a fresh session; any delta that differs fails the
// scenario. Traces are therefore stable across runs and suitable for
// golden file comparison (RunWithGolden).
package harness
