package protocol

import "fmt"

// Message type IDs. Requests and replies share one id space; replies set
// FlagIsResponse in the frame header.
const (
	MsgSyncBodyInfo    uint32 = 1
	MsgSyncUserData    uint32 = 2
	MsgStepSimulation  uint32 = 3
	MsgResetSimulation uint32 = 4
	MsgLoadModel       uint32 = 5
	MsgRemoveBody      uint32 = 6
	MsgGetBodyInfo     uint32 = 7
	MsgRequestState    uint32 = 8

	MsgBodyInfoSynced uint32 = 101
	MsgUserDataSynced uint32 = 102
	MsgStepCompleted  uint32 = 103
	MsgResetCompleted uint32 = 104
	MsgLoadCompleted  uint32 = 105
	MsgBodyRemoved    uint32 = 106
	MsgBodyInfo       uint32 = 107
	MsgStateReceived  uint32 = 108
	MsgFailed         uint32 = 199
)

// Field IDs.
const (
	FieldCommandID uint16 = 1

	FieldNumSteps  uint16 = 10
	FieldStepCount uint16 = 11
	FieldSimTimeUS uint16 = 12

	FieldModelPath uint16 = 20
	FieldBodyID    uint16 = 21
	FieldBodyName  uint16 = 22
	FieldBodyCount uint16 = 23

	FieldUserDataCount uint16 = 30

	FieldState uint16 = 40

	FieldErrorMessage uint16 = 90
)

type Requirement struct {
	ID   uint16
	Type uint8
}

type ValidationError struct {
	MessageType uint32
	FieldID     uint16
	Reason      string
	Err         error
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

func (e ValidationError) Unwrap() error { return e.Err }

var requirements = map[uint32][]Requirement{
	MsgSyncBodyInfo: {
		{FieldCommandID, TypeString},
	},
	MsgSyncUserData: {
		{FieldCommandID, TypeString},
	},
	MsgStepSimulation: {
		{FieldCommandID, TypeString},
		{FieldNumSteps, TypeU32},
	},
	MsgResetSimulation: {
		{FieldCommandID, TypeString},
	},
	MsgLoadModel: {
		{FieldCommandID, TypeString},
		{FieldModelPath, TypeString},
	},
	MsgRemoveBody: {
		{FieldCommandID, TypeString},
		{FieldBodyID, TypeU32},
	},
	MsgGetBodyInfo: {
		{FieldCommandID, TypeString},
		{FieldBodyID, TypeU32},
	},
	MsgRequestState: {
		{FieldCommandID, TypeString},
	},

	MsgBodyInfoSynced: {
		{FieldCommandID, TypeString},
		{FieldBodyCount, TypeU32},
	},
	MsgUserDataSynced: {
		{FieldCommandID, TypeString},
		{FieldUserDataCount, TypeU32},
	},
	MsgStepCompleted: {
		{FieldCommandID, TypeString},
		{FieldStepCount, TypeU32},
		{FieldSimTimeUS, TypeU64},
	},
	MsgResetCompleted: {
		{FieldCommandID, TypeString},
	},
	MsgLoadCompleted: {
		{FieldCommandID, TypeString},
		{FieldBodyID, TypeU32},
		{FieldBodyName, TypeString},
	},
	MsgBodyRemoved: {
		{FieldCommandID, TypeString},
		{FieldBodyID, TypeU32},
	},
	MsgBodyInfo: {
		{FieldCommandID, TypeString},
		{FieldBodyID, TypeU32},
		{FieldBodyName, TypeString},
	},
	MsgStateReceived: {
		{FieldCommandID, TypeString},
		{FieldState, TypeBytes},
	},
	MsgFailed: {
		{FieldCommandID, TypeString},
		{FieldErrorMessage, TypeString},
	},
}

// Validate enforces required fields and required field types for a message
// type. Unknown fields are ignored.
func Validate(messageType uint32, fields []Field) error {
	reqs, ok := requirements[messageType]
	if !ok {
		return ValidationError{MessageType: messageType, Reason: "unknown message_type", Err: ErrUnknownMessageType}
	}
	for _, req := range reqs {
		f, found := GetField(fields, req.ID)
		if !found {
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field", Err: ErrMissingField}
		}
		if f.Type != req.Type {
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "field type mismatch", Err: ErrFieldTypeMismatch}
		}
	}
	return nil
}

// KnownMessageType reports whether id belongs to the protocol id space.
func KnownMessageType(id uint32) bool {
	_, ok := requirements[id]
	return ok
}
