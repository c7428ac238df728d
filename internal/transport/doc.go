// Package transport serves sessions to remote clients over socket.io.
//
// Every connection gets its own composition root from an engine.Factory;
// nothing is shared between connections except the application definition
// and the journal. The exchange is:
//
//	client                         server
//	  │ ── connect ─────────────────▶ │  open session, mount app
//	  │ ◀──────────────────── tree ── │  composed interface tree
//	  │ ◀────────────────── render ── │  first render, every target
//	  │ ── input {target, value} ───▶ │  queued, applied in order
//	  │ ◀────────────────── render ── │  changed targets only
//	  │ ◀──────────────── rejected ── │  event refused, session lives on
//	  │ ◀────────────────── closed ── │  fatal error, session torn down
//	  │ ── disconnect ──────────────▶ │  session closed and released
package transport
