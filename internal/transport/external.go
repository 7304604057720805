package transport

import (
	"fmt"
	"strings"
	"sync"

	"github.com/danmuck/simctl/internal/backend"
)

// Factory opens one connection to an externally provided backend.
type Factory func(params Params) (backend.Handle, error)

var (
	extMu       sync.RWMutex
	extBackends = map[string]Factory{}
)

// RegisterExternal installs a named backend factory. Re-registering a
// name replaces the previous factory.
func RegisterExternal(name string, f Factory) error {
	key := strings.TrimSpace(name)
	if key == "" || f == nil {
		return fmt.Errorf("%w: external backend needs a name and a factory", ErrInvalidParams)
	}
	extMu.Lock()
	defer extMu.Unlock()
	extBackends[key] = f
	return nil
}

// ExternalBackendNames lists registered factories in no particular order.
func ExternalBackendNames() []string {
	extMu.RLock()
	defer extMu.RUnlock()
	out := make([]string, 0, len(extBackends))
	for name := range extBackends {
		out = append(out, name)
	}
	return out
}

type externalConnector struct{}

func (externalConnector) Connect(params Params) (backend.Handle, error) {
	name := strings.TrimSpace(params.BackendName)
	if name == "" {
		return nil, fmt.Errorf("%w: external connect requires a backend name", ErrInvalidParams)
	}
	extMu.RLock()
	f, ok := extBackends[name]
	extMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no external backend registered as %q", ErrUnsupported, name)
	}
	return f(params)
}
