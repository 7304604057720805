// Package session wraps one connected, handshaked backend handle with
// its connection method, state machine, and blocking command channel.
package session

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/simctl/internal/backend"
	"github.com/danmuck/simctl/internal/command"
	"github.com/danmuck/simctl/internal/observability"
	"github.com/danmuck/simctl/internal/transport"
)

var (
	ErrCommandInFlight = errors.New("session: command already in flight")
	ErrSessionNotReady = errors.New("session: not ready for commands")
	ErrCommandTimeout  = errors.New("session: command timed out")
)

// DefaultCommandTimeout bounds one submit/wait round trip.
const DefaultCommandTimeout = 20 * time.Second

// State is the session lifecycle phase.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateReady
	StateBusy
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session is one live connection owned by the registry. Submit allows a
// single outstanding command; concurrent submits on the same session are
// a caller error and are rejected, never queued.
type Session struct {
	id     int
	method transport.Method
	handle backend.Handle

	state     atomic.Int32
	timeoutNS atomic.Int64
	inFlight  atomic.Bool
}

// New wraps a freshly connected handle. The session starts in the
// handshaking state; the registry promotes it once the handshake passes.
func New(id int, method transport.Method, handle backend.Handle) *Session {
	s := &Session{id: id, method: method, handle: handle}
	s.state.Store(int32(StateHandshaking))
	s.timeoutNS.Store(int64(DefaultCommandTimeout))
	return s
}

func (s *Session) ID() int                  { return s.id }
func (s *Session) Method() transport.Method { return s.method }
func (s *Session) Handle() backend.Handle   { return s.handle }
func (s *Session) State() State             { return State(s.state.Load()) }

// Alive consults the transport's liveness oracle.
func (s *Session) Alive() bool {
	if s.State() == StateDisconnected {
		return false
	}
	return s.handle.CanSubmit()
}

// MarkReady promotes a handshaked session to command service.
func (s *Session) MarkReady() {
	s.state.Store(int32(StateReady))
}

// MarkDisconnected retires the session; any edge may take it here.
func (s *Session) MarkDisconnected() {
	s.state.Store(int32(StateDisconnected))
}

// SetCommandTimeout overrides the per-session submit/wait bound.
func (s *Session) SetCommandTimeout(d time.Duration) {
	if d > 0 {
		s.timeoutNS.Store(int64(d))
	}
}

func (s *Session) CommandTimeout() time.Duration {
	return time.Duration(s.timeoutNS.Load())
}

// Submit sends one command and blocks until its status arrives or the
// session timeout expires. A missing command id is filled in here.
func (s *Session) Submit(cmd command.Command) (command.Status, error) {
	state := s.State()
	if state != StateReady && state != StateHandshaking {
		return command.Status{}, fmt.Errorf("%w: state=%s", ErrSessionNotReady, state)
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return command.Status{}, ErrCommandInFlight
	}
	defer s.inFlight.Store(false)

	if state == StateReady {
		s.state.Store(int32(StateBusy))
		defer s.state.CompareAndSwap(int32(StateBusy), int32(StateReady))
	}

	if cmd.CommandID == "" {
		cmd.CommandID = uuid.NewString()
	}

	start := time.Now()
	st, err := s.waitStatus(cmd)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.RecordCommand(s.method.String(), cmd.Kind.String(), outcome, time.Since(start))
	if err != nil {
		log.Debug().Err(err).Int("client_id", s.id).Str("kind", cmd.Kind.String()).Msg("session.Submit")
	}
	return st, err
}

// waitStatus bounds the blocking SubmitAndWait. On timeout the reply
// goroutine is abandoned; the session's liveness is undefined until the
// next registry lookup re-probes the oracle.
func (s *Session) waitStatus(cmd command.Command) (command.Status, error) {
	type result struct {
		status command.Status
		err    error
	}
	done := make(chan result, 1)
	go func() {
		st, err := s.handle.SubmitAndWait(cmd)
		done <- result{status: st, err: err}
	}()

	timer := time.NewTimer(s.CommandTimeout())
	defer timer.Stop()
	select {
	case res := <-done:
		return res.status, res.err
	case <-timer.C:
		return command.Status{}, fmt.Errorf("%w: %s after %s", ErrCommandTimeout, cmd.Kind, s.CommandTimeout())
	}
}
