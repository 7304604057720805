// Package registry owns the session table.
//
// Ownership boundary:
// - slot allocation, lookup, release, drain
// - gui-exclusivity and capacity invariants
// - post-connect handshake
// - liveness self-healing during lookup
//
// Slots mutate only inside allocate, release, releaseAll, and the
// self-healing branch of lookup. No other code path touches the table.
package registry
