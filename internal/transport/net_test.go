package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/simctl/internal/backend"
	"github.com/danmuck/simctl/internal/command"
	"github.com/danmuck/simctl/internal/testutil/testlog"
)

func startTCPServer(t *testing.T) (string, *backend.SimCore) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	core := backend.NewSimCore()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = backend.Serve(ctx, ln, core) }()
	return ln.Addr().String(), core
}

func startUDPServer(t *testing.T) (string, *backend.SimCore) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen packet: %v", err)
	}
	core := backend.NewSimCore()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = backend.ServePacket(ctx, pc, core) }()
	return pc.LocalAddr().String(), core
}

func TestTCPRoundTrip(t *testing.T) {
	testlog.Start(t)
	addr, _ := startTCPServer(t)

	h, err := Connect(NetworkTCP, Params{Address: addr})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer h.Disconnect()

	st, err := h.SubmitAndWait(command.Command{Kind: command.StepSimulation, NumSteps: 3, CommandID: "cmd-1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if st.Kind != command.StepCompleted || st.StepCount != 3 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if st.CommandID != "cmd-1" {
		t.Fatalf("command id not echoed: %q", st.CommandID)
	}
}

func TestUDPRoundTrip(t *testing.T) {
	testlog.Start(t)
	addr, _ := startUDPServer(t)

	h, err := Connect(NetworkUDP, Params{Address: addr})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer h.Disconnect()

	st, err := h.SubmitAndWait(command.Command{Kind: command.LoadModel, ModelPath: "cube.urdf", CommandID: "cmd-2"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if st.Kind != command.LoadCompleted || st.BodyName != "cube" {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestTCPConnectRefused(t *testing.T) {
	testlog.Start(t)
	// Grab a port and close it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = Connect(NetworkTCP, Params{Address: addr, ConnectTimeout: time.Second})
	if !errors.Is(err, ErrRefused) {
		t.Fatalf("expected ErrRefused, got %v", err)
	}
}

func TestTCPRequiresAddress(t *testing.T) {
	testlog.Start(t)
	_, err := Connect(NetworkTCP, Params{})
	if !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestTCPLivenessDropsAfterServerGone(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	core := backend.NewSimCore()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = backend.Serve(ctx, ln, core) }()

	h, err := Connect(NetworkTCP, Params{Address: ln.Addr().String(), IOTimeout: time.Second})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer h.Disconnect()

	cancel() // stop the server; the next round trip must fail

	_, err = h.SubmitAndWait(command.Command{Kind: command.SyncBodyInfo, CommandID: "cmd-3"})
	if err == nil {
		t.Fatalf("expected submit to fail after server shutdown")
	}
	if h.CanSubmit() {
		t.Fatalf("liveness oracle should report dead after transport failure")
	}
}
