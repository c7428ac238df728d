// Package ir provides the shared value and record types for weave.
//
// This package contains type definitions and their encodings only. All
// other internal packages import ir; ir imports nothing internal. This
// keeps ir the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - numeric values are int64
//   - Every element in a composed tree carries a qualified identifier
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
//   - Canonical JSON (RFC 8785 ordering, NFC strings) for hashes and storage
package ir
