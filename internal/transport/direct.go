package transport

import (
	"fmt"

	"github.com/danmuck/simctl/internal/backend"
)

// directConnector hands back a caller-supplied backend handle. Used when
// the server loop already lives in this process under caller control.
type directConnector struct{}

func (directConnector) Connect(params Params) (backend.Handle, error) {
	if params.Backend == nil {
		return nil, fmt.Errorf("%w: direct connect requires a backend handle", ErrInvalidParams)
	}
	return params.Backend, nil
}
