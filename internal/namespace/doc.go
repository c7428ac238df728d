// Package namespace turns module-local control names into identifiers that
// are unique across a whole composed interface.
//
// A qualified identifier is the chain of instance IDs from the root scope
// down to the declaring module, followed by the local name, joined with
// Separator:
//
//	root
//	 ├── a          (instance)   a.choice
//	 └── filter1    (instance)   filter1.result
//	      └── pick  (nested)     filter1.pick.choice
//
// Local names are restricted to [A-Za-z0-9_], so the separator can never
// appear inside a segment and qualification is injective. Sibling instances
// with the same ID are rejected when the second one is created.
package namespace
