//go:build !linux

package transport

// SysV shared memory attach is linux-only. Other platforms still reach a
// shared-memory server published inside this process; a real segment
// attach reports ErrUnsupported.
func newSharedMemoryConnector() Connector {
	return sharedMemoryConnector{attach: nil}
}
