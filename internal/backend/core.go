package backend

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/danmuck/simctl/internal/command"
)

// One fixed-rate step of 1/240s, expressed in microseconds.
const stepTimeUS uint64 = 4167

// Body is one loaded simulation body.
type Body struct {
	ID        uint32
	Name      string
	ModelPath string
}

// SimCore is an in-memory simulation backend. It is safe for use by one
// submitter at a time plus concurrent liveness probes.
type SimCore struct {
	mu         sync.Mutex
	alive      bool
	bodies     map[uint32]Body
	nextBodyID uint32
	stepCount  uint32
	simTimeUS  uint64
	userData   map[string]string
}

func NewSimCore() *SimCore {
	return &SimCore{
		alive:    true,
		bodies:   make(map[uint32]Body),
		userData: make(map[string]string),
	}
}

func (c *SimCore) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *SimCore) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = false
	return nil
}

// Kill marks the core dead without a clean disconnect, so liveness
// probes start failing. Used to simulate a crashed server.
func (c *SimCore) Kill() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = false
}

func (c *SimCore) SubmitAndWait(cmd command.Command) (command.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive {
		return command.Status{}, ErrNotConnected
	}

	st := command.Status{CommandID: cmd.CommandID}
	switch cmd.Kind {
	case command.SyncBodyInfo:
		st.Kind = command.BodyInfoSynced
		st.BodyCount = uint32(len(c.bodies))
	case command.SyncUserData:
		st.Kind = command.UserDataSynced
		st.UserDataCount = uint32(len(c.userData))
	case command.StepSimulation:
		n := cmd.NumSteps
		if n == 0 {
			n = 1
		}
		c.stepCount += n
		c.simTimeUS += uint64(n) * stepTimeUS
		st.Kind = command.StepCompleted
		st.StepCount = c.stepCount
		st.SimTimeUS = c.simTimeUS
	case command.ResetSimulation:
		c.bodies = make(map[uint32]Body)
		c.userData = make(map[string]string)
		c.stepCount = 0
		c.simTimeUS = 0
		st.Kind = command.ResetCompleted
	case command.LoadModel:
		path := strings.TrimSpace(cmd.ModelPath)
		if path == "" {
			return failed(cmd, "load_model: empty model path"), nil
		}
		c.nextBodyID++
		body := Body{
			ID:        c.nextBodyID,
			Name:      bodyName(path),
			ModelPath: path,
		}
		c.bodies[body.ID] = body
		st.Kind = command.LoadCompleted
		st.BodyID = body.ID
		st.BodyName = body.Name
	case command.RemoveBody:
		if _, ok := c.bodies[cmd.BodyID]; !ok {
			return failed(cmd, fmt.Sprintf("remove_body: unknown body %d", cmd.BodyID)), nil
		}
		delete(c.bodies, cmd.BodyID)
		st.Kind = command.BodyRemoved
		st.BodyID = cmd.BodyID
	case command.GetBodyInfo:
		body, ok := c.bodies[cmd.BodyID]
		if !ok {
			return failed(cmd, fmt.Sprintf("get_body_info: unknown body %d", cmd.BodyID)), nil
		}
		st.Kind = command.BodyInfo
		st.BodyID = body.ID
		st.BodyName = body.Name
	case command.RequestState:
		st.Kind = command.StateReceived
		st.State = c.encodeState()
	default:
		return failed(cmd, fmt.Sprintf("unsupported command kind %s", cmd.Kind)), nil
	}
	return st, nil
}

// SetUserData stores one user-data entry on the core.
func (c *SimCore) SetUserData(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userData[key] = value
}

// BodyCount reports the number of loaded bodies.
func (c *SimCore) BodyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

// encodeState packs step count, sim time, and body count. Callers hold mu.
func (c *SimCore) encodeState() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint32(buf[0:4], c.stepCount)
	binary.BigEndian.PutUint64(buf[4:12], c.simTimeUS)
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(c.bodies)))
	return buf
}

func failed(cmd command.Command, msg string) command.Status {
	return command.Status{
		Kind:         command.Failed,
		CommandID:    cmd.CommandID,
		ErrorMessage: msg,
	}
}

func bodyName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
