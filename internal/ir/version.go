package ir

// Release identifiers. EngineVersion tracks the weave release; IRVersion
// changes only when journal rows or hash inputs change shape, which
// invalidates previously journaled sessions for replay.
const (
	EngineVersion = "0.1.0"
	IRVersion     = "1"
)

// Version reports both identifiers, e.g. "0.1.0 (ir 1)".
func Version() string {
	return EngineVersion + " (ir " + IRVersion + ")"
}
