// Package protocol owns wire contract and parsing primitives.
//
// Ownership boundary:
// - frame/header primitives
// - tlv payload primitives
// - per-message schema validation
package protocol
