// Package transport owns connection establishment.
//
// Ownership boundary:
// - connection method enumeration and gui-exclusive classification
// - one connector per method behind a uniform contract
// - typed connect errors (unsupported/refused/timeout/invalid params)
//
// Transport does not own the session table; connected handles are handed
// to the registry, which owns their lifetime.
package transport
