// Package canon provides the canonical JSON form and content digests used to
// compare simulation states byte for byte.
//
// Two runs of the same program from the same initial state must produce the
// same digest at every tick. Everything that feeds a digest goes through
// MarshalCanonical; encoding/json output is never hashed.
//
// Key design constraints:
//   - Object keys sorted by UTF-16 code units
//   - Numbers rendered in the shortest round-trip form (ECMAScript rules)
//   - NaN, Inf and null are rejected
//   - Strings are NFC normalized
//
// canon imports nothing internal.
package canon
