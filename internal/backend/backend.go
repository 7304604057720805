// Package backend defines the opaque simulation backend contract and an
// in-memory core that answers every command family. The core backs the
// in-process and direct-local transports, the simd daemon, and tests.
package backend

import (
	"errors"

	"github.com/danmuck/simctl/internal/command"
)

var ErrNotConnected = errors.New("backend: not connected")

// Handle is one connected backend. The registry treats it as opaque:
// CanSubmit is the liveness oracle, SubmitAndWait is strictly one
// command in, one status out, and Disconnect tears the transport down.
type Handle interface {
	CanSubmit() bool
	SubmitAndWait(cmd command.Command) (command.Status, error)
	Disconnect() error
}
