package transport

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/simctl/internal/backend"
	"github.com/danmuck/simctl/internal/command"
	"github.com/danmuck/simctl/internal/protocol"
)

const maxDatagram = 64 * 1024

// netConnector dials a framed command/status endpoint over tcp or udp.
type netConnector struct {
	network string
}

func (c netConnector) Connect(params Params) (backend.Handle, error) {
	addr := strings.TrimSpace(params.Address)
	if addr == "" {
		return nil, fmt.Errorf("%w: %s connect requires an address", ErrInvalidParams, c.network)
	}
	conn, err := net.DialTimeout(c.network, addr, params.ConnectTimeout)
	if err != nil {
		return nil, mapDialError(err)
	}
	h := &netHandle{
		conn:      conn,
		datagram:  c.network == "udp",
		ioTimeout: params.IOTimeout,
	}
	if !h.datagram {
		h.reader = bufio.NewReader(conn)
	}
	h.alive.Store(true)
	h.nextMessageID.Store(uint64(time.Now().UnixNano()))
	return h, nil
}

func mapDialError(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrConnectTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrRefused, err)
}

// netHandle is one dialed connection. The liveness flag drops on the
// first transport-level failure and never recovers; the registry heals
// by freeing the slot on the next lookup.
type netHandle struct {
	conn          net.Conn
	reader        *bufio.Reader
	datagram      bool
	ioTimeout     time.Duration
	mu            sync.Mutex
	alive         atomic.Bool
	nextMessageID atomic.Uint64
}

func (h *netHandle) CanSubmit() bool {
	return h.alive.Load()
}

func (h *netHandle) SubmitAndWait(cmd command.Command) (command.Status, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.alive.Load() {
		return command.Status{}, backend.ErrNotConnected
	}

	messageID := h.nextMessageID.Add(1)
	payload, err := command.EncodeCommandFrame(messageID, cmd)
	if err != nil {
		return command.Status{}, err
	}

	deadline := time.Now().Add(h.ioTimeout)
	if err := h.conn.SetWriteDeadline(deadline); err != nil {
		return h.fail(err)
	}
	if _, err := h.conn.Write(payload); err != nil {
		return h.fail(err)
	}
	if err := h.conn.SetReadDeadline(deadline); err != nil {
		return h.fail(err)
	}

	fr, err := h.readFrame()
	if err != nil {
		return h.fail(err)
	}
	if fr.Header.MessageID != messageID {
		return h.fail(fmt.Errorf("transport: reply message_id mismatch: got %d want %d",
			fr.Header.MessageID, messageID))
	}
	st, err := command.DecodeStatusFrame(fr)
	if err != nil {
		return h.fail(err)
	}
	if st.CommandID != cmd.CommandID {
		return h.fail(fmt.Errorf("transport: reply command_id mismatch: got %q want %q",
			st.CommandID, cmd.CommandID))
	}
	return st, nil
}

func (h *netHandle) readFrame() (protocol.Frame, error) {
	limits := protocol.DefaultLimits()
	if !h.datagram {
		return protocol.ReadFrame(h.reader, limits)
	}
	buf := make([]byte, maxDatagram)
	n, err := h.conn.Read(buf)
	if err != nil {
		return protocol.Frame{}, err
	}
	return protocol.ReadFrame(bytes.NewReader(buf[:n]), limits)
}

func (h *netHandle) fail(err error) (command.Status, error) {
	h.alive.Store(false)
	return command.Status{}, err
}

func (h *netHandle) Disconnect() error {
	h.alive.Store(false)
	return h.conn.Close()
}
