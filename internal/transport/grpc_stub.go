//go:build !grpc

package transport

import (
	"fmt"

	"github.com/danmuck/simctl/internal/backend"
)

// Built without the grpc tag: the method stays addressable but every
// connect reports the unsupported error instead of panicking.
func newGRPCConnector() Connector {
	return grpcStubConnector{}
}

type grpcStubConnector struct{}

func (grpcStubConnector) Connect(Params) (backend.Handle, error) {
	return nil, fmt.Errorf("%w: grpc support not compiled in (build with -tags grpc)", ErrUnsupported)
}
