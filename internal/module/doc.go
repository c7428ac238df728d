// Package module implements module instances: namespaced pairs of an
// interface descriptor and a behaviour function.
//
// A Module is a definition. Instantiating it with an identifier and
// arguments inside a parent scope:
//
//  1. binds and checks the arguments against the module's Params,
//  2. creates the instance's child scope (sibling ids must be unique),
//  3. runs the Descriptor with an NS that qualifies local names,
//  4. creates one source cell per input control in the produced tree,
//  5. runs the Behavior with a Context that resolves local names against
//     the same scope, and collects its named outputs.
//
// Any failure rolls the partial instance back: cells are destroyed,
// controls unregistered, and the identifier released for a retry.
//
// A descriptor may embed another module with NS.Embed; the embedded child
// gets a scope nested in the parent's, so two children declaring the same
// local control never collide:
//
//	filter1            (instance scope)
//	├── filter1.result (render target)
//	└── filter1.pick   (embedded select)
//	    └── filter1.pick.choice
//
// Module code never builds qualified identifiers by hand and never parses
// them back; it holds cell handles.
package module
