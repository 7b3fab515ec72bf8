package debug

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/boardctl/pkg/capability"
	"github.com/OpenTraceLab/boardctl/pkg/device"
)

// recorder is a Debugger that logs every call.
type recorder struct {
	calls []string
	err   error
}

func (r *recorder) record(name string) error {
	r.calls = append(r.calls, name)
	return r.err
}

func (r *recorder) Halt(context.Context, *device.Device) error      { return r.record("halt") }
func (r *recorder) Resume(context.Context, *device.Device) error    { return r.record("resume") }
func (r *recorder) Reset(context.Context, *device.Device) error     { return r.record("reset") }
func (r *recorder) ResetRun(context.Context, *device.Device) error  { return r.record("reset run") }
func (r *recorder) ResetHalt(context.Context, *device.Device) error { return r.record("reset halt") }
func (r *recorder) ResetInit(context.Context, *device.Device) error { return r.record("reset init") }

func TestSelect(t *testing.T) {
	tests := []struct {
		name    string
		flags   Flags
		want    Command
		wantErr bool
	}{
		{"halt", Flags{Halt: true}, Command{Op: OpHalt}, false},
		{"resume", Flags{Resume: true}, Command{Op: OpResume}, false},
		{"reset", Flags{Reset: true}, Command{Op: OpReset, Reset: ResetPlain}, false},
		{"reset run", Flags{Reset: true, Run: true}, Command{Op: OpReset, Reset: ResetRun}, false},
		{"reset halt", Flags{Reset: true, HaltAfter: true}, Command{Op: OpReset, Reset: ResetHalt}, false},
		{"reset init", Flags{Reset: true, Init: true}, Command{Op: OpReset, Reset: ResetInit}, false},
		{"none", Flags{}, Command{}, true},
		{"two ops", Flags{Halt: true, Resume: true}, Command{}, true},
		{"two variants", Flags{Reset: true, Run: true, Init: true}, Command{}, true},
		{"variant without reset", Flags{Halt: true, Run: true}, Command{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(tt.flags)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSelection)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecuteDispatchesOnce(t *testing.T) {
	cmds := []struct {
		cmd  Command
		call string
	}{
		{Command{Op: OpHalt}, "halt"},
		{Command{Op: OpResume}, "resume"},
		{Command{Op: OpReset}, "reset"},
		{Command{Op: OpReset, Reset: ResetRun}, "reset run"},
		{Command{Op: OpReset, Reset: ResetHalt}, "reset halt"},
		{Command{Op: OpReset, Reset: ResetInit}, "reset init"},
	}
	dev := &device.Device{Caps: device.Capabilities{Debugger: device.DebuggerOpenOCD}}
	for _, c := range cmds {
		t.Run(c.call, func(t *testing.T) {
			rec := &recorder{}
			reg := capability.NewRegistry()
			reg.RegisterDebugger(device.DebuggerOpenOCD, rec)

			require.NoError(t, Execute(context.Background(), reg, dev, c.cmd))
			assert.Equal(t, []string{c.call}, rec.calls)
			assert.Equal(t, c.call, c.cmd.String())
		})
	}
}

func TestExecuteWithoutDebuggerTouchesNothing(t *testing.T) {
	rec := &recorder{}
	reg := capability.NewRegistry()
	reg.RegisterDebugger(device.DebuggerOpenOCD, rec)

	dev := &device.Device{Caps: device.Capabilities{Loader: device.LoaderBossa}}
	err := Execute(context.Background(), reg, dev, Command{Op: OpHalt})
	assert.ErrorIs(t, err, capability.ErrNoCapability)
	assert.Empty(t, rec.calls)
}

func TestExecuteDoesNotRetry(t *testing.T) {
	boom := errors.New("probe gone")
	rec := &recorder{err: boom}
	reg := capability.NewRegistry()
	reg.RegisterDebugger(device.DebuggerJLink, rec)

	dev := &device.Device{Caps: device.Capabilities{Debugger: device.DebuggerJLink}}
	err := Execute(context.Background(), reg, dev, Command{Op: OpReset, Reset: ResetInit})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "reset init: probe gone", err.Error())
	assert.Len(t, rec.calls, 1)
}
