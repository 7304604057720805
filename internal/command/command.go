// Package command defines the request/response envelopes exchanged with a
// simulation backend and the typed payload extraction over status kinds.
package command

import (
	"errors"
	"fmt"

	"github.com/danmuck/simctl/internal/protocol"
)

var (
	ErrProtocolMismatch = errors.New("command: status kind mismatch")
	ErrInvalidCommand   = errors.New("command: invalid command")
	ErrInvalidStatus    = errors.New("command: invalid status")
)

// Kind identifies one command family or status tag. Values share the
// protocol message-type id space.
type Kind uint32

const (
	SyncBodyInfo    = Kind(protocol.MsgSyncBodyInfo)
	SyncUserData    = Kind(protocol.MsgSyncUserData)
	StepSimulation  = Kind(protocol.MsgStepSimulation)
	ResetSimulation = Kind(protocol.MsgResetSimulation)
	LoadModel       = Kind(protocol.MsgLoadModel)
	RemoveBody      = Kind(protocol.MsgRemoveBody)
	GetBodyInfo     = Kind(protocol.MsgGetBodyInfo)
	RequestState    = Kind(protocol.MsgRequestState)

	BodyInfoSynced = Kind(protocol.MsgBodyInfoSynced)
	UserDataSynced = Kind(protocol.MsgUserDataSynced)
	StepCompleted  = Kind(protocol.MsgStepCompleted)
	ResetCompleted = Kind(protocol.MsgResetCompleted)
	LoadCompleted  = Kind(protocol.MsgLoadCompleted)
	BodyRemoved    = Kind(protocol.MsgBodyRemoved)
	BodyInfo       = Kind(protocol.MsgBodyInfo)
	StateReceived  = Kind(protocol.MsgStateReceived)
	Failed         = Kind(protocol.MsgFailed)
)

func (k Kind) String() string {
	switch k {
	case SyncBodyInfo:
		return "sync_body_info"
	case SyncUserData:
		return "sync_user_data"
	case StepSimulation:
		return "step_simulation"
	case ResetSimulation:
		return "reset_simulation"
	case LoadModel:
		return "load_model"
	case RemoveBody:
		return "remove_body"
	case GetBodyInfo:
		return "get_body_info"
	case RequestState:
		return "request_state"
	case BodyInfoSynced:
		return "body_info_synced"
	case UserDataSynced:
		return "user_data_synced"
	case StepCompleted:
		return "step_completed"
	case ResetCompleted:
		return "reset_completed"
	case LoadCompleted:
		return "load_completed"
	case BodyRemoved:
		return "body_removed"
	case BodyInfo:
		return "body_info"
	case StateReceived:
		return "state_received"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Command is one request envelope. Only the fields of its family are
// meaningful; the others stay zero.
type Command struct {
	Kind      Kind
	CommandID string
	ModelPath string // LoadModel
	NumSteps  uint32 // StepSimulation
	BodyID    uint32 // RemoveBody, GetBodyInfo
}

func (c Command) Validate() error {
	switch c.Kind {
	case SyncBodyInfo, SyncUserData, ResetSimulation, RequestState:
	case StepSimulation:
		if c.NumSteps == 0 {
			return fmt.Errorf("%w: step_simulation requires num_steps", ErrInvalidCommand)
		}
	case LoadModel:
		if c.ModelPath == "" {
			return fmt.Errorf("%w: load_model requires model_path", ErrInvalidCommand)
		}
	case RemoveBody, GetBodyInfo:
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidCommand, c.Kind)
	}
	return nil
}

// Status is one reply envelope. The kind tag gates which payload fields
// are meaningful; callers go through Extract.
type Status struct {
	Kind          Kind
	CommandID     string
	BodyCount     uint32
	UserDataCount uint32
	StepCount     uint32
	SimTimeUS     uint64
	BodyID        uint32
	BodyName      string
	State         []byte
	ErrorMessage  string
}

// Payload is the extracted view of a status whose kind matched the
// expected family.
type Payload struct {
	BodyCount     uint32
	UserDataCount uint32
	StepCount     uint32
	SimTimeUS     uint64
	BodyID        uint32
	BodyName      string
	State         []byte
}

// Extract returns the status payload iff the kind tag equals expected.
// A mismatch is a protocol error, never a partial read.
func Extract(st Status, expected Kind) (Payload, error) {
	if st.Kind != expected {
		if st.Kind == Failed {
			return Payload{}, fmt.Errorf("%w: got %s (%s) want %s",
				ErrProtocolMismatch, st.Kind, st.ErrorMessage, expected)
		}
		return Payload{}, fmt.Errorf("%w: got %s want %s", ErrProtocolMismatch, st.Kind, expected)
	}
	return Payload{
		BodyCount:     st.BodyCount,
		UserDataCount: st.UserDataCount,
		StepCount:     st.StepCount,
		SimTimeUS:     st.SimTimeUS,
		BodyID:        st.BodyID,
		BodyName:      st.BodyName,
		State:         st.State,
	}, nil
}
