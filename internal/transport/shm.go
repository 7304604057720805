package transport

import (
	"fmt"
	"sync/atomic"

	"github.com/danmuck/simctl/internal/backend"
	"github.com/danmuck/simctl/internal/command"
)

// sharedMemoryConnector attaches to a shared-memory server by key. A
// server published in this process is reached directly; otherwise the
// platform attach (SysV, linux only) takes over.
type sharedMemoryConnector struct {
	attach func(key int, params Params) (backend.Handle, error)
}

func (c sharedMemoryConnector) Connect(params Params) (backend.Handle, error) {
	if core, ok := lookupPublishedCore(params.SharedMemoryKey); ok {
		return &attachedCoreHandle{core: core}, nil
	}
	if c.attach == nil {
		return nil, fmt.Errorf("%w: shared memory attach", ErrUnsupported)
	}
	return c.attach(params.SharedMemoryKey, params)
}

// attachedCoreHandle reaches a core owned by some other session in this
// process. Disconnect detaches the client only; the server keeps
// running.
type attachedCoreHandle struct {
	core     *backend.SimCore
	detached atomic.Bool
}

func (h *attachedCoreHandle) CanSubmit() bool {
	return !h.detached.Load() && h.core.CanSubmit()
}

func (h *attachedCoreHandle) SubmitAndWait(cmd command.Command) (command.Status, error) {
	if h.detached.Load() {
		return command.Status{}, backend.ErrNotConnected
	}
	return h.core.SubmitAndWait(cmd)
}

func (h *attachedCoreHandle) Disconnect() error {
	h.detached.Store(true)
	return nil
}
