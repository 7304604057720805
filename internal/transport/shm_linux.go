//go:build linux

package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/danmuck/simctl/internal/backend"
	"github.com/danmuck/simctl/internal/command"
	"github.com/danmuck/simctl/internal/protocol"
)

const (
	shmMagic       uint32 = 0x53494D53 // "SIMS"
	shmSegmentSize        = 1 << 20

	// Segment layout offsets.
	shmOffMagic       = 0
	shmOffClientReady = 4
	shmOffServerReady = 8
	shmOffLength      = 12
	shmOffData        = 16

	shmPollInterval = 100 * time.Microsecond
)

func newSharedMemoryConnector() Connector {
	return sharedMemoryConnector{attach: sysvAttach}
}

// sysvAttach maps an existing SysV segment created by an out-of-process
// shared-memory server.
func sysvAttach(key int, params Params) (backend.Handle, error) {
	id, err := unix.SysvShmGet(key, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: shmget key=%d: %v", ErrRefused, key, err)
	}
	seg, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: shmat key=%d: %v", ErrRefused, key, err)
	}
	if len(seg) < shmOffData {
		_ = unix.SysvShmDetach(seg)
		return nil, fmt.Errorf("%w: segment too small for key %d", ErrRefused, key)
	}
	if binary.BigEndian.Uint32(seg[shmOffMagic:]) != shmMagic {
		_ = unix.SysvShmDetach(seg)
		return nil, fmt.Errorf("%w: no simulation server at key %d", ErrRefused, key)
	}
	h := &shmHandle{seg: seg, ioTimeout: params.IOTimeout}
	h.alive.Store(true)
	return h, nil
}

// shmHandle drives the request/reply cell of an attached segment. The
// client owns the client_ready flag, the server owns server_ready; one
// exchange is in the cell at a time.
type shmHandle struct {
	seg       []byte
	ioTimeout time.Duration
	mu        sync.Mutex
	alive     atomic.Bool
}

func (h *shmHandle) CanSubmit() bool {
	if !h.alive.Load() {
		return false
	}
	return binary.BigEndian.Uint32(h.seg[shmOffMagic:]) == shmMagic
}

func (h *shmHandle) SubmitAndWait(cmd command.Command) (command.Status, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.alive.Load() {
		return command.Status{}, backend.ErrNotConnected
	}

	payload, err := command.EncodeCommandFrame(uint64(time.Now().UnixNano()), cmd)
	if err != nil {
		return command.Status{}, err
	}
	if len(payload) > len(h.seg)-shmOffData {
		return command.Status{}, protocol.ErrPayloadTooLarge
	}

	copy(h.seg[shmOffData:], payload)
	binary.BigEndian.PutUint32(h.seg[shmOffLength:], uint32(len(payload)))
	binary.BigEndian.PutUint32(h.seg[shmOffServerReady:], 0)
	binary.BigEndian.PutUint32(h.seg[shmOffClientReady:], 1)

	deadline := time.Now().Add(h.ioTimeout)
	for binary.BigEndian.Uint32(h.seg[shmOffServerReady:]) == 0 {
		if time.Now().After(deadline) {
			h.alive.Store(false)
			return command.Status{}, fmt.Errorf("%w: shared memory reply", ErrConnectTimeout)
		}
		time.Sleep(shmPollInterval)
	}

	replyLen := binary.BigEndian.Uint32(h.seg[shmOffLength:])
	if int(replyLen) > len(h.seg)-shmOffData {
		h.alive.Store(false)
		return command.Status{}, protocol.ErrPayloadTooLarge
	}
	reply := make([]byte, replyLen)
	copy(reply, h.seg[shmOffData:shmOffData+int(replyLen)])
	binary.BigEndian.PutUint32(h.seg[shmOffClientReady:], 0)

	fr, err := protocol.ReadFrame(bytes.NewReader(reply), protocol.DefaultLimits())
	if err != nil {
		h.alive.Store(false)
		return command.Status{}, err
	}
	st, err := command.DecodeStatusFrame(fr)
	if err != nil {
		h.alive.Store(false)
		return command.Status{}, err
	}
	return st, nil
}

func (h *shmHandle) Disconnect() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.alive.Swap(false) {
		return nil
	}
	return unix.SysvShmDetach(h.seg)
}
