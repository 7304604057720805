package transport

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/simctl/internal/backend"
)

var (
	ErrUnsupported    = errors.New("transport: method not supported in this build")
	ErrRefused        = errors.New("transport: connection refused")
	ErrConnectTimeout = errors.New("transport: connect timed out")
	ErrInvalidParams  = errors.New("transport: invalid connect params")
	ErrUnknownMethod  = errors.New("transport: unknown connection method")
)

// Default SysV key published by an in-process shared-memory server.
const DefaultSharedMemoryKey = 12347

// Method is the closed enumeration of connection methods.
type Method int

const (
	InProcessDefault Method = iota
	InProcessMainThread
	InProcessSharedMemoryServer
	ExistingSharedMemoryServer
	DirectLocal
	NetworkUDP
	NetworkTCP
	NetworkGRPC
	ExternalBackend
)

func (m Method) String() string {
	switch m {
	case InProcessDefault:
		return "inproc"
	case InProcessMainThread:
		return "inproc_main_thread"
	case InProcessSharedMemoryServer:
		return "inproc_shm_server"
	case ExistingSharedMemoryServer:
		return "shm_attach"
	case DirectLocal:
		return "direct"
	case NetworkUDP:
		return "udp"
	case NetworkTCP:
		return "tcp"
	case NetworkGRPC:
		return "grpc"
	case ExternalBackend:
		return "external"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// GUIExclusive reports whether the method owns a local rendered window.
// At most one live session may use a GUI-exclusive method process-wide.
// Attaching to a window some other process owns does not count.
func (m Method) GUIExclusive() bool {
	switch m {
	case InProcessDefault, InProcessMainThread, InProcessSharedMemoryServer:
		return true
	default:
		return false
	}
}

// ParseMethod resolves a method name as printed by Method.String.
func ParseMethod(raw string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "inproc":
		return InProcessDefault, nil
	case "inproc_main_thread":
		return InProcessMainThread, nil
	case "inproc_shm_server":
		return InProcessSharedMemoryServer, nil
	case "shm_attach", "shm":
		return ExistingSharedMemoryServer, nil
	case "direct":
		return DirectLocal, nil
	case "udp":
		return NetworkUDP, nil
	case "tcp":
		return NetworkTCP, nil
	case "grpc":
		return NetworkGRPC, nil
	case "external":
		return ExternalBackend, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, raw)
	}
}

// Params carries the per-method connect arguments. Only the fields a
// method reads are consulted; the rest stay zero.
type Params struct {
	Address         string         // tcp, udp, grpc
	SharedMemoryKey int            // inproc_shm_server, shm_attach
	Backend         backend.Handle // direct
	BackendName     string         // external
	ConnectTimeout  time.Duration
	IOTimeout       time.Duration
}

func (p Params) withDefaults() Params {
	if p.ConnectTimeout <= 0 {
		p.ConnectTimeout = 5 * time.Second
	}
	if p.IOTimeout <= 0 {
		p.IOTimeout = 15 * time.Second
	}
	if p.SharedMemoryKey == 0 {
		p.SharedMemoryKey = DefaultSharedMemoryKey
	}
	return p
}

// Connector opens one connection for a single method.
type Connector interface {
	Connect(params Params) (backend.Handle, error)
}

// For returns the connector serving method m.
func For(m Method) (Connector, error) {
	switch m {
	case InProcessDefault:
		return inprocConnector{}, nil
	case InProcessMainThread:
		return inprocConnector{pinned: true}, nil
	case InProcessSharedMemoryServer:
		return inprocConnector{publishKey: true}, nil
	case ExistingSharedMemoryServer:
		return newSharedMemoryConnector(), nil
	case DirectLocal:
		return directConnector{}, nil
	case NetworkUDP:
		return netConnector{network: "udp"}, nil
	case NetworkTCP:
		return netConnector{network: "tcp"}, nil
	case NetworkGRPC:
		return newGRPCConnector(), nil
	case ExternalBackend:
		return externalConnector{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, m)
	}
}

// Connect resolves the connector for m and opens a connection.
func Connect(m Method, params Params) (backend.Handle, error) {
	c, err := For(m)
	if err != nil {
		return nil, err
	}
	return c.Connect(params.withDefaults())
}
