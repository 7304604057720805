package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/simctl/internal/command"
	"github.com/danmuck/simctl/internal/observability"
	"github.com/danmuck/simctl/internal/session"
	"github.com/danmuck/simctl/internal/transport"
)

// Capacity is the fixed size of the session table.
const Capacity = 1024

var (
	ErrNotConnected      = errors.New("registry: not connected")
	ErrCapacityExceeded  = errors.New("registry: session table full")
	ErrExclusiveConflict = errors.New("registry: a gui-exclusive connection is already live")
	ErrHandshakeFailed   = errors.New("registry: handshake failed")
)

// slot is one table entry. A slot is free iff sess is nil and it is not
// reserved; reserved marks an allocate in flight so the table stays
// consistent while the transport connects outside the lock.
type slot struct {
	sess     *session.Session
	reserved bool
	method   transport.Method
}

// Registry is the process-wide session table. Table-level mutation is
// serialized behind mu; per-session command traffic is not, by contract.
type Registry struct {
	mu     sync.Mutex
	slots  [Capacity]slot
	active int
}

func New() *Registry {
	return &Registry{}
}

// ActiveCount reports the number of populated slots.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Allocate opens a connection with the given method, runs the mandatory
// handshake, and stores the session. Exclusivity and capacity are
// checked before any transport I/O, so those failures never leave
// partial state.
func (r *Registry) Allocate(method transport.Method, params transport.Params) (int, error) {
	id, err := r.reserve(method)
	if err != nil {
		observability.RecordConnect(method.String(), outcomeFor(err))
		return 0, err
	}

	handle, err := transport.Connect(method, params)
	if err != nil {
		r.unreserve(id)
		observability.RecordConnect(method.String(), "connect_error")
		log.Warn().Err(err).Str("method", method.String()).Msg("registry.Allocate connect")
		return 0, err
	}

	sess := session.New(id, method, handle)
	if params.IOTimeout > 0 {
		sess.SetCommandTimeout(params.IOTimeout)
	}
	if err := handshake(sess); err != nil {
		_ = handle.Disconnect()
		sess.MarkDisconnected()
		r.unreserve(id)
		observability.RecordConnect(method.String(), "handshake_failed")
		log.Warn().Err(err).Str("method", method.String()).Msg("registry.Allocate handshake")
		return 0, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	sess.MarkReady()

	r.mu.Lock()
	r.slots[id] = slot{sess: sess, method: method}
	r.active++
	active := r.active
	r.mu.Unlock()

	observability.RecordConnect(method.String(), "ok")
	observability.SetActiveSessions(active)
	log.Info().Int("client_id", id).Str("method", method.String()).Msg("registry session allocated")
	return id, nil
}

// reserve runs the pre-I/O invariant checks and claims the first free
// slot. Reserved slots count toward exclusivity so two concurrent
// gui-exclusive allocates cannot both pass the scan.
func (r *Registry) reserve(method transport.Method) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if method.GUIExclusive() {
		for i := range r.slots {
			s := &r.slots[i]
			if (s.sess != nil || s.reserved) && s.method.GUIExclusive() {
				return 0, fmt.Errorf("%w: slot %d uses %s", ErrExclusiveConflict, i, s.method)
			}
		}
	}
	for i := range r.slots {
		if r.slots[i].sess == nil && !r.slots[i].reserved {
			r.slots[i] = slot{reserved: true, method: method}
			return i, nil
		}
	}
	return 0, ErrCapacityExceeded
}

func (r *Registry) unreserve(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slots[id].reserved && r.slots[id].sess == nil {
		r.slots[id] = slot{}
	}
}

// Lookup returns the live session for id. A session whose liveness
// oracle fails is disconnected and its slot freed before reporting
// ErrNotConnected, so callers never observe a half-dead session.
func (r *Registry) Lookup(id int) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id < 0 || id >= Capacity {
		return nil, fmt.Errorf("%w: client id %d out of range", ErrNotConnected, id)
	}
	sess := r.slots[id].sess
	if sess == nil {
		return nil, fmt.Errorf("%w: client id %d", ErrNotConnected, id)
	}
	if !sess.Alive() {
		r.freeLocked(id)
		log.Info().Int("client_id", id).Msg("registry healed dead session")
		return nil, fmt.Errorf("%w: client id %d transport died", ErrNotConnected, id)
	}
	return sess, nil
}

// Release disconnects and frees one slot. Idempotent; releasing a free
// or out-of-range id is a no-op.
func (r *Registry) Release(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= Capacity || r.slots[id].sess == nil {
		return
	}
	r.freeLocked(id)
	log.Info().Int("client_id", id).Msg("registry session released")
}

// ReleaseAll disconnects every live slot. Used once at process teardown.
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if r.slots[i].sess != nil {
			r.freeLocked(i)
		}
	}
}

// freeLocked disconnects and clears one populated slot. Callers hold mu.
func (r *Registry) freeLocked(id int) {
	sess := r.slots[id].sess
	sess.MarkDisconnected()
	_ = sess.Handle().Disconnect()
	r.slots[id] = slot{}
	r.active--
	observability.SetActiveSessions(r.active)
}

// handshake runs the mandatory post-connect synchronization pair. Both
// commands must complete with their expected status kinds before the
// session may serve callers.
func handshake(sess *session.Session) error {
	st, err := sess.Submit(command.Command{Kind: command.SyncBodyInfo})
	if err != nil {
		return fmt.Errorf("sync body info: %w", err)
	}
	if _, err := command.Extract(st, command.BodyInfoSynced); err != nil {
		return fmt.Errorf("sync body info: %w", err)
	}

	st, err = sess.Submit(command.Command{Kind: command.SyncUserData})
	if err != nil {
		return fmt.Errorf("sync user data: %w", err)
	}
	if _, err := command.Extract(st, command.UserDataSynced); err != nil {
		return fmt.Errorf("sync user data: %w", err)
	}
	return nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrExclusiveConflict):
		return "conflict"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity"
	default:
		return "error"
	}
}
