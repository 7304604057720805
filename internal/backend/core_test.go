package backend

import (
	"errors"
	"testing"

	"github.com/danmuck/simctl/internal/command"
	"github.com/danmuck/simctl/internal/testutil/testlog"
)

func submit(t *testing.T, core *SimCore, cmd command.Command) command.Status {
	t.Helper()
	if cmd.CommandID == "" {
		cmd.CommandID = "cmd-test"
	}
	st, err := core.SubmitAndWait(cmd)
	if err != nil {
		t.Fatalf("submit %s: %v", cmd.Kind, err)
	}
	return st
}

func TestCoreHandshakeCommands(t *testing.T) {
	testlog.Start(t)
	core := NewSimCore()
	core.SetUserData("gravity", "-9.81")

	st := submit(t, core, command.Command{Kind: command.SyncBodyInfo})
	if st.Kind != command.BodyInfoSynced || st.BodyCount != 0 {
		t.Fatalf("sync body info: %+v", st)
	}
	st = submit(t, core, command.Command{Kind: command.SyncUserData})
	if st.Kind != command.UserDataSynced || st.UserDataCount != 1 {
		t.Fatalf("sync user data: %+v", st)
	}
}

func TestCoreLoadStepRemove(t *testing.T) {
	testlog.Start(t)
	core := NewSimCore()

	st := submit(t, core, command.Command{Kind: command.LoadModel, ModelPath: "models/plane.urdf"})
	if st.Kind != command.LoadCompleted || st.BodyName != "plane" {
		t.Fatalf("load: %+v", st)
	}
	bodyID := st.BodyID

	st = submit(t, core, command.Command{Kind: command.GetBodyInfo, BodyID: bodyID})
	if st.Kind != command.BodyInfo || st.BodyName != "plane" {
		t.Fatalf("get body info: %+v", st)
	}

	st = submit(t, core, command.Command{Kind: command.StepSimulation, NumSteps: 10})
	if st.Kind != command.StepCompleted || st.StepCount != 10 {
		t.Fatalf("step: %+v", st)
	}
	if st.SimTimeUS != 10*stepTimeUS {
		t.Fatalf("sim time mismatch: %d", st.SimTimeUS)
	}

	st = submit(t, core, command.Command{Kind: command.RemoveBody, BodyID: bodyID})
	if st.Kind != command.BodyRemoved {
		t.Fatalf("remove: %+v", st)
	}
	if core.BodyCount() != 0 {
		t.Fatalf("expected empty body table")
	}
}

func TestCoreFailedStatuses(t *testing.T) {
	testlog.Start(t)
	core := NewSimCore()

	st := submit(t, core, command.Command{Kind: command.RemoveBody, BodyID: 99})
	if st.Kind != command.Failed {
		t.Fatalf("expected failed status, got %+v", st)
	}
	st = submit(t, core, command.Command{Kind: command.GetBodyInfo, BodyID: 99})
	if st.Kind != command.Failed {
		t.Fatalf("expected failed status, got %+v", st)
	}
	st = submit(t, core, command.Command{Kind: command.LoadModel})
	if st.Kind != command.Failed {
		t.Fatalf("expected failed status for empty path, got %+v", st)
	}
}

func TestCoreResetClearsState(t *testing.T) {
	testlog.Start(t)
	core := NewSimCore()
	submit(t, core, command.Command{Kind: command.LoadModel, ModelPath: "a.urdf"})
	submit(t, core, command.Command{Kind: command.StepSimulation, NumSteps: 5})

	st := submit(t, core, command.Command{Kind: command.ResetSimulation})
	if st.Kind != command.ResetCompleted {
		t.Fatalf("reset: %+v", st)
	}
	st = submit(t, core, command.Command{Kind: command.StepSimulation, NumSteps: 1})
	if st.StepCount != 1 {
		t.Fatalf("step count not reset: %+v", st)
	}
	if core.BodyCount() != 0 {
		t.Fatalf("bodies not cleared")
	}
}

func TestCoreDeadAfterKill(t *testing.T) {
	testlog.Start(t)
	core := NewSimCore()
	core.Kill()

	if core.CanSubmit() {
		t.Fatalf("killed core should refuse submissions")
	}
	_, err := core.SubmitAndWait(command.Command{Kind: command.SyncBodyInfo, CommandID: "cmd-1"})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
