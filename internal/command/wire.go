package command

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/danmuck/simctl/internal/protocol"
)

// Wire encoder for one command envelope into a framed protocol message.
func EncodeCommandFrame(messageID uint64, cmd Command) ([]byte, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cmd.CommandID) == "" {
		return nil, fmt.Errorf("%w: missing command_id", ErrInvalidCommand)
	}

	fields := []protocol.Field{
		protocol.StringField(protocol.FieldCommandID, cmd.CommandID),
	}
	switch cmd.Kind {
	case StepSimulation:
		fields = append(fields, protocol.U32Field(protocol.FieldNumSteps, cmd.NumSteps))
	case LoadModel:
		fields = append(fields, protocol.StringField(protocol.FieldModelPath, cmd.ModelPath))
	case RemoveBody, GetBodyInfo:
		fields = append(fields, protocol.U32Field(protocol.FieldBodyID, cmd.BodyID))
	}
	if err := protocol.Validate(uint32(cmd.Kind), fields); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err := protocol.WriteFrame(&buf, protocol.Frame{
		Header: protocol.Header{
			MessageID:   messageID,
			MessageType: uint32(cmd.Kind),
		},
		Payload: protocol.EncodeFields(fields),
	}, protocol.DefaultLimits())
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Wire decoder for one command frame payload with schema validation.
func DecodeCommandFrame(f protocol.Frame) (Command, error) {
	fields, err := protocol.DecodeFields(f.Payload)
	if err != nil {
		return Command{}, err
	}
	if err := protocol.Validate(f.Header.MessageType, fields); err != nil {
		return Command{}, err
	}
	cmd := Command{
		Kind:      Kind(f.Header.MessageType),
		CommandID: requiredString(fields, protocol.FieldCommandID),
	}
	switch cmd.Kind {
	case StepSimulation:
		cmd.NumSteps, err = requiredU32(fields, protocol.FieldNumSteps)
	case LoadModel:
		cmd.ModelPath = requiredString(fields, protocol.FieldModelPath)
	case RemoveBody, GetBodyInfo:
		cmd.BodyID, err = requiredU32(fields, protocol.FieldBodyID)
	}
	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// Wire encoder for one status envelope into a framed protocol response.
func EncodeStatusFrame(messageID uint64, st Status) ([]byte, error) {
	if strings.TrimSpace(st.CommandID) == "" {
		return nil, fmt.Errorf("%w: missing command_id", ErrInvalidStatus)
	}

	fields := []protocol.Field{
		protocol.StringField(protocol.FieldCommandID, st.CommandID),
	}
	flags := protocol.FlagIsResponse
	switch st.Kind {
	case BodyInfoSynced:
		fields = append(fields, protocol.U32Field(protocol.FieldBodyCount, st.BodyCount))
	case UserDataSynced:
		fields = append(fields, protocol.U32Field(protocol.FieldUserDataCount, st.UserDataCount))
	case StepCompleted:
		fields = append(fields,
			protocol.U32Field(protocol.FieldStepCount, st.StepCount),
			protocol.U64Field(protocol.FieldSimTimeUS, st.SimTimeUS))
	case ResetCompleted:
	case LoadCompleted, BodyInfo:
		fields = append(fields,
			protocol.U32Field(protocol.FieldBodyID, st.BodyID),
			protocol.StringField(protocol.FieldBodyName, st.BodyName))
	case BodyRemoved:
		fields = append(fields, protocol.U32Field(protocol.FieldBodyID, st.BodyID))
	case StateReceived:
		fields = append(fields, protocol.BytesField(protocol.FieldState, st.State))
	case Failed:
		fields = append(fields, protocol.StringField(protocol.FieldErrorMessage, st.ErrorMessage))
		flags |= protocol.FlagIsError
	default:
		return nil, fmt.Errorf("%w: unknown kind %s", ErrInvalidStatus, st.Kind)
	}
	if err := protocol.Validate(uint32(st.Kind), fields); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err := protocol.WriteFrame(&buf, protocol.Frame{
		Header: protocol.Header{
			MessageID:   messageID,
			MessageType: uint32(st.Kind),
			Flags:       flags,
		},
		Payload: protocol.EncodeFields(fields),
	}, protocol.DefaultLimits())
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Wire decoder for one status frame payload with schema validation.
func DecodeStatusFrame(f protocol.Frame) (Status, error) {
	if f.Header.Flags&protocol.FlagIsResponse == 0 {
		return Status{}, fmt.Errorf("%w: frame is not a response", ErrInvalidStatus)
	}
	fields, err := protocol.DecodeFields(f.Payload)
	if err != nil {
		return Status{}, err
	}
	if err := protocol.Validate(f.Header.MessageType, fields); err != nil {
		return Status{}, err
	}
	st := Status{
		Kind:      Kind(f.Header.MessageType),
		CommandID: requiredString(fields, protocol.FieldCommandID),
	}
	switch st.Kind {
	case BodyInfoSynced:
		st.BodyCount, err = requiredU32(fields, protocol.FieldBodyCount)
	case UserDataSynced:
		st.UserDataCount, err = requiredU32(fields, protocol.FieldUserDataCount)
	case StepCompleted:
		if st.StepCount, err = requiredU32(fields, protocol.FieldStepCount); err == nil {
			st.SimTimeUS, err = requiredU64(fields, protocol.FieldSimTimeUS)
		}
	case ResetCompleted:
	case LoadCompleted, BodyInfo:
		st.BodyID, err = requiredU32(fields, protocol.FieldBodyID)
		st.BodyName = requiredString(fields, protocol.FieldBodyName)
	case BodyRemoved:
		st.BodyID, err = requiredU32(fields, protocol.FieldBodyID)
	case StateReceived:
		if sf, ok := protocol.GetField(fields, protocol.FieldState); ok {
			st.State = sf.Value
		}
	case Failed:
		st.ErrorMessage = requiredString(fields, protocol.FieldErrorMessage)
	default:
		return Status{}, fmt.Errorf("%w: unknown kind %s", ErrInvalidStatus, st.Kind)
	}
	if err != nil {
		return Status{}, err
	}
	return st, nil
}

func requiredString(fields []protocol.Field, id uint16) string {
	f, ok := protocol.GetField(fields, id)
	if !ok {
		return ""
	}
	return string(f.Value)
}

func requiredU32(fields []protocol.Field, id uint16) (uint32, error) {
	f, ok := protocol.GetField(fields, id)
	if !ok {
		return 0, fmt.Errorf("%w: missing field %d", ErrInvalidStatus, id)
	}
	return protocol.U32FromBytes(f.Value)
}

func requiredU64(fields []protocol.Field, id uint16) (uint64, error) {
	f, ok := protocol.GetField(fields, id)
	if !ok {
		return 0, fmt.Errorf("%w: missing field %d", ErrInvalidStatus, id)
	}
	return protocol.U64FromBytes(f.Value)
}
