package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/danmuck/simctl/internal/backend"
	"github.com/danmuck/simctl/internal/command"
	"github.com/danmuck/simctl/internal/testutil/testlog"
	"github.com/danmuck/simctl/internal/transport"
)

// fakeBackend answers the handshake and step commands, with controllable
// liveness and an optional bad handshake reply.
type fakeBackend struct {
	mu           sync.Mutex
	alive        bool
	badHandshake bool
	disconnects  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{alive: true}
}

func (f *fakeBackend) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeBackend) kill() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = false
}

func (f *fakeBackend) SubmitAndWait(cmd command.Command) (command.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive {
		return command.Status{}, backend.ErrNotConnected
	}
	st := command.Status{CommandID: cmd.CommandID}
	switch cmd.Kind {
	case command.SyncBodyInfo:
		if f.badHandshake {
			st.Kind = command.Failed
			st.ErrorMessage = "sync rejected"
			return st, nil
		}
		st.Kind = command.BodyInfoSynced
	case command.SyncUserData:
		st.Kind = command.UserDataSynced
	case command.StepSimulation:
		st.Kind = command.StepCompleted
		st.StepCount = cmd.NumSteps
	default:
		st.Kind = command.Failed
		st.ErrorMessage = "unsupported"
	}
	return st, nil
}

func (f *fakeBackend) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = false
	f.disconnects++
	return nil
}

func directParams(b backend.Handle) transport.Params {
	return transport.Params{Backend: b}
}

func TestAllocateLookupRelease(t *testing.T) {
	testlog.Start(t)
	r := New()

	id, err := r.Allocate(transport.DirectLocal, directParams(newFakeBackend()))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if r.ActiveCount() != 1 {
		t.Fatalf("active count: %d", r.ActiveCount())
	}

	sess, err := r.Lookup(id)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if sess.Method() != transport.DirectLocal {
		t.Fatalf("method mismatch: %s", sess.Method())
	}

	r.Release(id)
	if r.ActiveCount() != 0 {
		t.Fatalf("active count after release: %d", r.ActiveCount())
	}
	if _, err := r.Lookup(id); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestProtocolRoundTrip(t *testing.T) {
	testlog.Start(t)
	r := New()

	id, err := r.Allocate(transport.DirectLocal, directParams(backend.NewSimCore()))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	defer r.Release(id)

	sess, err := r.Lookup(id)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	st, err := sess.Submit(command.Command{Kind: command.StepSimulation, NumSteps: 1})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := command.Extract(st, command.StepCompleted); err != nil {
		t.Fatalf("extract step completed: %v", err)
	}
	if _, err := command.Extract(st, command.LoadCompleted); !errors.Is(err, command.ErrProtocolMismatch) {
		t.Fatalf("expected ErrProtocolMismatch, got %v", err)
	}
}

func TestGUIExclusivityScenario(t *testing.T) {
	testlog.Start(t)
	r := New()

	first, err := r.Allocate(transport.InProcessDefault, transport.Params{})
	if err != nil {
		t.Fatalf("first gui allocate: %v", err)
	}

	_, err = r.Allocate(transport.InProcessMainThread, transport.Params{})
	if !errors.Is(err, ErrExclusiveConflict) {
		t.Fatalf("expected ErrExclusiveConflict, got %v", err)
	}

	// Non-exclusive methods are unaffected by a live GUI session.
	other, err := r.Allocate(transport.DirectLocal, directParams(newFakeBackend()))
	if err != nil {
		t.Fatalf("direct allocate during gui session: %v", err)
	}
	r.Release(other)

	r.Release(first)
	second, err := r.Allocate(transport.InProcessMainThread, transport.Params{})
	if err != nil {
		t.Fatalf("gui allocate after release: %v", err)
	}
	r.Release(second)
}

func TestCapacityExceededLeavesTableUnchanged(t *testing.T) {
	testlog.Start(t)
	r := New()
	for i := 0; i < Capacity; i++ {
		if _, err := r.Allocate(transport.DirectLocal, directParams(newFakeBackend())); err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
	}
	if r.ActiveCount() != Capacity {
		t.Fatalf("active count: %d", r.ActiveCount())
	}

	_, err := r.Allocate(transport.DirectLocal, directParams(newFakeBackend()))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if r.ActiveCount() != Capacity {
		t.Fatalf("table changed after capacity failure: %d", r.ActiveCount())
	}
	r.ReleaseAll()
}

func TestLookupSelfHealsDeadSession(t *testing.T) {
	testlog.Start(t)
	r := New()
	fake := newFakeBackend()

	id, err := r.Allocate(transport.DirectLocal, directParams(fake))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	fake.kill()

	if _, err := r.Lookup(id); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if r.ActiveCount() != 0 {
		t.Fatalf("slot should have been freed, active=%d", r.ActiveCount())
	}

	// The healed index is reusable.
	next, err := r.Allocate(transport.DirectLocal, directParams(newFakeBackend()))
	if err != nil {
		t.Fatalf("allocate after heal: %v", err)
	}
	if next != id {
		t.Fatalf("expected index %d to be reused, got %d", id, next)
	}
	r.Release(next)
}

func TestReleaseIdempotent(t *testing.T) {
	testlog.Start(t)
	r := New()
	fake := newFakeBackend()

	id, err := r.Allocate(transport.DirectLocal, directParams(fake))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	r.Release(id)
	r.Release(id)
	r.Release(-1)
	r.Release(Capacity + 5)

	if fake.disconnects != 1 {
		t.Fatalf("expected exactly one disconnect, got %d", fake.disconnects)
	}
	if r.ActiveCount() != 0 {
		t.Fatalf("active count: %d", r.ActiveCount())
	}
}

func TestReleaseAllDrainsEverySlot(t *testing.T) {
	testlog.Start(t)
	r := New()
	ids := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		id, err := r.Allocate(transport.DirectLocal, directParams(newFakeBackend()))
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	r.ReleaseAll()
	if r.ActiveCount() != 0 {
		t.Fatalf("active count after drain: %d", r.ActiveCount())
	}
	for _, id := range ids {
		if _, err := r.Lookup(id); !errors.Is(err, ErrNotConnected) {
			t.Fatalf("id %d should be gone, got %v", id, err)
		}
	}
}

func TestHandshakeFailureLeavesSlotFree(t *testing.T) {
	testlog.Start(t)
	r := New()
	fake := newFakeBackend()
	fake.badHandshake = true

	_, err := r.Allocate(transport.DirectLocal, directParams(fake))
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("expected ErrHandshakeFailed, got %v", err)
	}
	if r.ActiveCount() != 0 {
		t.Fatalf("failed handshake must not occupy a slot, active=%d", r.ActiveCount())
	}
	if fake.disconnects != 1 {
		t.Fatalf("transport should be torn down after failed handshake, disconnects=%d", fake.disconnects)
	}
}

func TestConnectFailurePropagatesTypedError(t *testing.T) {
	testlog.Start(t)
	r := New()

	_, err := r.Allocate(transport.DirectLocal, transport.Params{})
	if !errors.Is(err, transport.ErrInvalidParams) {
		t.Fatalf("expected transport.ErrInvalidParams, got %v", err)
	}
	if r.ActiveCount() != 0 {
		t.Fatalf("failed connect must not occupy a slot")
	}
}

func TestLookupOutOfRange(t *testing.T) {
	testlog.Start(t)
	r := New()
	for _, id := range []int{-1, Capacity, Capacity + 100} {
		if _, err := r.Lookup(id); !errors.Is(err, ErrNotConnected) {
			t.Fatalf("id %d: expected ErrNotConnected, got %v", id, err)
		}
	}
}
