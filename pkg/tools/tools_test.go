package tools

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/boardctl/pkg/capability"
	"github.com/OpenTraceLab/boardctl/pkg/device"
)

type invocation struct {
	name string
	args []string
}

// fakeRunner records invocations. If onRun is set it is called while the
// tool would be running.
type fakeRunner struct {
	runs  []invocation
	err   error
	onRun func(args []string)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.runs = append(f.runs, invocation{name, args})
	if f.onRun != nil {
		f.onRun(args)
	}
	return f.err
}

var stlink = &device.Device{
	ID:  "1a2b3c4d",
	USB: device.USBInfo{VendorID: 0x0483, ProductID: 0x374b, SerialNumber: "066FFF"},
	Caps: device.Capabilities{
		Loader:        device.LoaderOpenOCD,
		Debugger:      device.DebuggerOpenOCD,
		OpenOCDSerial: "adapter serial 066FFF",
		TraceITM:      true,
	},
}

func TestOpenOCD(t *testing.T) {
	ctx := context.Background()
	r := &fakeRunner{}
	o := &OpenOCD{Runner: r, Path: "openocd", Config: "openocd.cfg"}

	require.NoError(t, o.Load(ctx, stlink, "build/app.elf"))
	require.NoError(t, o.ResetHalt(ctx, stlink))
	require.NoError(t, o.TraceITM(ctx, stlink, 72_000_000, 2_000_000))
	require.NoError(t, o.Serve(ctx, stlink))

	prefix := []string{"--file", "openocd.cfg", "--command", "adapter serial 066FFF"}
	want := []invocation{
		{"openocd", append(append([]string{}, prefix...), "--command", "program {build/app.elf} verify reset exit")},
		{"openocd", append(append([]string{}, prefix...), "--command", "init", "--command", "reset halt", "--command", "exit")},
		{"openocd", append(append([]string{}, prefix...),
			"--command", "init",
			"--command", "tpiu config internal - uart off 72000000 2000000",
			"--command", "itm ports on")},
		{"openocd", prefix},
	}
	assert.Equal(t, want, r.runs)
}

func TestOpenOCDWithoutSerial(t *testing.T) {
	r := &fakeRunner{}
	o := &OpenOCD{Runner: r, Path: "openocd", Config: "board.cfg"}
	require.NoError(t, o.Halt(context.Background(), &device.Device{}))
	assert.Equal(t, []string{"--file", "board.cfg", "--command", "init", "--command", "halt", "--command", "exit"}, r.runs[0].args)
}

func TestJLinkCommandFile(t *testing.T) {
	var script string
	var scriptPath string
	r := &fakeRunner{onRun: func(args []string) {
		scriptPath = args[len(args)-1]
		b, err := os.ReadFile(scriptPath)
		require.NoError(t, err)
		script = string(b)
	}}
	j := &JLink{Runner: r, Path: "JLinkExe", Device: "STM32F407VG", Interface: "SWD", Speed: 4000}

	dev := &device.Device{USB: device.USBInfo{SerialNumber: "000260012345"}}
	require.NoError(t, j.ResetRun(context.Background(), dev))

	assert.Equal(t, "r\ng\nexit\n", script)
	assert.Equal(t, []string{
		"-device", "STM32F407VG", "-if", "SWD", "-speed", "4000", "-USB", "000260012345",
		"-autoconnect", "1", "-NoGui", "1", "-ExitOnError", "1", "-CommanderScript", scriptPath,
	}, r.runs[0].args)
	_, err := os.Stat(scriptPath)
	assert.True(t, os.IsNotExist(err), "command file removed")
}

func TestLoaders(t *testing.T) {
	ctx := context.Background()

	t.Run("bossa", func(t *testing.T) {
		r := &fakeRunner{}
		b := &Bossa{Runner: r, Path: "bossac"}
		dev := &device.Device{Caps: device.Capabilities{BootloaderPath: "/dev/ttyACM1"}}
		require.NoError(t, b.Check(dev))
		require.NoError(t, b.Load(ctx, dev, "fw.bin"))
		assert.Equal(t, []string{"--port=/dev/ttyACM1", "-e", "-w", "-v", "-b", "-R", "fw.bin"}, r.runs[0].args)
		assert.ErrorIs(t, b.Check(&device.Device{}), capability.ErrNoCapability)
	})

	t.Run("teensy", func(t *testing.T) {
		r := &fakeRunner{}
		tl := &Teensy{Runner: r, Path: "teensy_loader_cli", MCU: "TEENSY40"}
		require.NoError(t, tl.Load(ctx, &device.Device{}, "fw.hex"))
		assert.Equal(t, invocation{"teensy_loader_cli", []string{"--mcu=TEENSY40", "-w", "-v", "fw.hex"}}, r.runs[0])
	})

	t.Run("dfu", func(t *testing.T) {
		r := &fakeRunner{}
		d := &DFU{Runner: r, Path: "dfu-util", Address: 0x08000000}
		dev := &device.Device{USB: device.USBInfo{VendorID: 0x0483, ProductID: 0xdf11, SerialNumber: "3574364C3034"}}
		require.NoError(t, d.Load(ctx, dev, "fw.bin"))
		assert.Equal(t, []string{
			"-d", "0483:df11", "-a", "0", "-s", "0x08000000:leave", "-S", "3574364C3034", "-D", "fw.bin",
		}, r.runs[0].args)
	})

	t.Run("blackmagic", func(t *testing.T) {
		r := &fakeRunner{}
		b := &BlackMagic{Runner: r, GDB: "arm-none-eabi-gdb"}
		assert.ErrorIs(t, b.Check(&device.Device{}), capability.ErrNoCapability)

		dev := &device.Device{Caps: device.Capabilities{CDCPath: "/dev/ttyACM0"}}
		require.NoError(t, b.Load(ctx, dev, "app.elf"))
		args := r.runs[0].args
		assert.Contains(t, args, "target extended-remote /dev/ttyACM0")
		assert.Equal(t, "app.elf", args[len(args)-1])
	})
}

func TestMassStorage(t *testing.T) {
	mount := t.TempDir()
	src := filepath.Join(t.TempDir(), "blinky.uf2")
	require.NoError(t, os.WriteFile(src, []byte("UF2\nfirmware"), 0o644))

	var m MassStorage
	assert.ErrorIs(t, m.Check(&device.Device{}), capability.ErrNoCapability)

	dev := &device.Device{Caps: device.Capabilities{MSDPath: mount}}
	require.NoError(t, m.Check(dev))
	require.NoError(t, m.Load(context.Background(), dev, src))

	got, err := os.ReadFile(filepath.Join(mount, "blinky.uf2"))
	require.NoError(t, err)
	assert.Equal(t, "UF2\nfirmware", string(got))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Load(ctx, dev, src), context.Canceled)
}

func TestScreen(t *testing.T) {
	r := &fakeRunner{}
	s := &Screen{Runner: r, Path: "screen"}
	assert.ErrorIs(t, s.Run(context.Background(), &device.Device{}), capability.ErrNoCapability)
	assert.Empty(t, r.runs)

	dev := &device.Device{Caps: device.Capabilities{CDCPath: "/dev/ttyACM0"}}
	require.NoError(t, s.Run(context.Background(), dev))
	assert.Equal(t, invocation{"screen", []string{"/dev/ttyACM0", "115200"}}, r.runs[0])
}

func TestExecRunnerExitCode(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	r := &ExecRunner{Stdout: &discard{}, Stderr: &discard{}}

	require.NoError(t, r.Run(context.Background(), sh, "-c", "exit 0"))

	err = r.Run(context.Background(), sh, "-c", "exit 3")
	var ee *ExitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 3, ee.Code)
	assert.Equal(t, "sh failed with exit code 3", ee.Error())

	err = r.Run(context.Background(), filepath.Join(t.TempDir(), "missing-tool"))
	require.Error(t, err)
	assert.False(t, errors.As(err, &ee))
}

type discard struct{}

func (*discard) Write(p []byte) (int, error) { return len(p), nil }
