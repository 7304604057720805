package protocol

import (
	"errors"
	"testing"
)

func TestValidateMissingField(t *testing.T) {
	fields := []Field{StringField(FieldCommandID, "cmd-1")}
	err := Validate(MsgStepSimulation, fields)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.FieldID != FieldNumSteps {
		t.Fatalf("expected missing num_steps, got field=%d", verr.FieldID)
	}
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestValidateTypeMismatch(t *testing.T) {
	fields := []Field{
		StringField(FieldCommandID, "cmd-1"),
		StringField(FieldNumSteps, "8"),
	}
	err := Validate(MsgStepSimulation, fields)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Reason != "field type mismatch" {
		t.Fatalf("unexpected reason: %q", verr.Reason)
	}
	if !errors.Is(err, ErrFieldTypeMismatch) {
		t.Fatalf("expected ErrFieldTypeMismatch, got %v", err)
	}
}

func TestValidateUnknownMessageType(t *testing.T) {
	err := Validate(9999, nil)
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
	if KnownMessageType(9999) {
		t.Fatalf("9999 should not be a known message type")
	}
}

func TestValidateIgnoresUnknownFields(t *testing.T) {
	fields := []Field{
		StringField(FieldCommandID, "cmd-1"),
		U32Field(FieldNumSteps, 4),
		StringField(9000, "extra"),
	}
	if err := Validate(MsgStepSimulation, fields); err != nil {
		t.Fatalf("unknown fields should be ignored: %v", err)
	}
}
