package transport

import (
	"errors"
	"testing"

	"github.com/danmuck/simctl/internal/backend"
	"github.com/danmuck/simctl/internal/testutil/testlog"
)

func TestExternalBackendRegistration(t *testing.T) {
	testlog.Start(t)
	err := RegisterExternal("loopback-test", func(params Params) (backend.Handle, error) {
		return backend.NewSimCore(), nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	h, err := Connect(ExternalBackend, Params{BackendName: "loopback-test"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer h.Disconnect()
	if !h.CanSubmit() {
		t.Fatalf("external backend should be live")
	}
}

func TestExternalBackendUnknownName(t *testing.T) {
	testlog.Start(t)
	_, err := Connect(ExternalBackend, Params{BackendName: "no-such-backend"})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestExternalBackendRequiresName(t *testing.T) {
	testlog.Start(t)
	_, err := Connect(ExternalBackend, Params{})
	if !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestRegisterExternalValidation(t *testing.T) {
	testlog.Start(t)
	if err := RegisterExternal("", nil); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}
