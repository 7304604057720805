package transport

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/simctl/internal/backend"
	"github.com/danmuck/simctl/internal/command"
)

// inprocConnector boots a SimCore with its own server loop goroutine.
// The pinned variant locks the loop to one OS thread, for backends whose
// rendering context is thread-affine. The publishKey variant additionally
// registers the core under a shared-memory key so attach-style methods in
// this process can reach it.
type inprocConnector struct {
	pinned     bool
	publishKey bool
}

func (c inprocConnector) Connect(params Params) (backend.Handle, error) {
	core := backend.NewSimCore()
	h := newInprocHandle(core, c.pinned)
	if c.publishKey {
		if err := publishCore(params.SharedMemoryKey, core, h); err != nil {
			_ = h.Disconnect()
			return nil, err
		}
		log.Debug().Int("key", params.SharedMemoryKey).Msg("transport.inproc published shm key")
	}
	return h, nil
}

type submitRequest struct {
	cmd  command.Command
	resp chan submitResult
}

type submitResult struct {
	status command.Status
	err    error
}

// inprocHandle pumps commands through a dedicated loop goroutine so the
// server side always executes on one goroutine, mirroring a real
// in-process physics server loop.
type inprocHandle struct {
	core *backend.SimCore
	req  chan submitRequest

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	key int // non-zero when published
}

func newInprocHandle(core *backend.SimCore, pinned bool) *inprocHandle {
	h := &inprocHandle{
		core: core,
		req:  make(chan submitRequest),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go h.loop(pinned)
	return h
}

func (h *inprocHandle) loop(pinned bool) {
	defer close(h.done)
	if pinned {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	for {
		select {
		case <-h.stop:
			return
		case req := <-h.req:
			st, err := h.core.SubmitAndWait(req.cmd)
			req.resp <- submitResult{status: st, err: err}
		}
	}
}

func (h *inprocHandle) CanSubmit() bool {
	select {
	case <-h.stop:
		return false
	default:
	}
	return h.core.CanSubmit()
}

func (h *inprocHandle) SubmitAndWait(cmd command.Command) (command.Status, error) {
	resp := make(chan submitResult, 1)
	select {
	case <-h.stop:
		return command.Status{}, backend.ErrNotConnected
	case h.req <- submitRequest{cmd: cmd, resp: resp}:
	}
	res := <-resp
	return res.status, res.err
}

func (h *inprocHandle) Disconnect() error {
	h.stopOnce.Do(func() {
		close(h.stop)
		<-h.done
		if h.key != 0 {
			unpublishCore(h.key)
		}
		_ = h.core.Disconnect()
	})
	return nil
}

// Process-local shared-memory server table. An in-process shared-memory
// server publishes its core here; attach-style connects in the same
// process find it before falling back to a real SysV segment.
var (
	shmMu      sync.Mutex
	shmServers = map[int]*backend.SimCore{}
)

func publishCore(key int, core *backend.SimCore, h *inprocHandle) error {
	shmMu.Lock()
	defer shmMu.Unlock()
	if _, ok := shmServers[key]; ok {
		return fmt.Errorf("%w: shared memory key %d already in use", ErrInvalidParams, key)
	}
	shmServers[key] = core
	h.key = key
	return nil
}

func unpublishCore(key int) {
	shmMu.Lock()
	defer shmMu.Unlock()
	delete(shmServers, key)
}

func lookupPublishedCore(key int) (*backend.SimCore, bool) {
	shmMu.Lock()
	defer shmMu.Unlock()
	core, ok := shmServers[key]
	return core, ok
}
