package tools

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/boardctl/pkg/device"
)

// JLink drives SEGGER J-Link Commander with a generated command file.
type JLink struct {
	Runner    Runner
	Path      string
	Device    string
	Interface string
	Speed     int
}

func (j *JLink) args(dev *device.Device, script string) []string {
	var args []string
	if j.Device != "" {
		args = append(args, "-device", j.Device)
	}
	if j.Interface != "" {
		args = append(args, "-if", j.Interface)
	}
	if j.Speed > 0 {
		args = append(args, "-speed", strconv.Itoa(j.Speed))
	}
	if sn := dev.USB.SerialNumber; sn != "" {
		args = append(args, "-USB", sn)
	}
	return append(args, "-autoconnect", "1", "-NoGui", "1", "-ExitOnError", "1", "-CommanderScript", script)
}

// exec writes the commands to a temporary command file and runs JLinkExe
// on it. An "exit" line is appended.
func (j *JLink) exec(ctx context.Context, dev *device.Device, cmds ...string) error {
	f, err := os.CreateTemp("", "boardctl-*.jlink")
	if err != nil {
		return fmt.Errorf("jlink: create command file: %w", err)
	}
	defer os.Remove(f.Name())

	script := strings.Join(append(cmds, "exit"), "\n") + "\n"
	if _, err := f.WriteString(script); err != nil {
		f.Close()
		return fmt.Errorf("jlink: write command file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("jlink: write command file: %w", err)
	}

	toolLog("jlink").Debug("commander script", "device", dev.ShortID(), "cmds", cmds)
	return j.Runner.Run(ctx, j.Path, j.args(dev, f.Name())...)
}

// Load flashes image and starts it.
func (j *JLink) Load(ctx context.Context, dev *device.Device, image string) error {
	return j.exec(ctx, dev, "r", "h", "loadfile "+image, "r", "g")
}

// Halt stops the target core.
func (j *JLink) Halt(ctx context.Context, dev *device.Device) error {
	return j.exec(ctx, dev, "h")
}

// Resume lets the halted core run.
func (j *JLink) Resume(ctx context.Context, dev *device.Device) error {
	return j.exec(ctx, dev, "g")
}

// Reset resets the target.
func (j *JLink) Reset(ctx context.Context, dev *device.Device) error {
	return j.exec(ctx, dev, "r")
}

// ResetRun resets the target and lets it run.
func (j *JLink) ResetRun(ctx context.Context, dev *device.Device) error {
	return j.exec(ctx, dev, "r", "g")
}

// ResetHalt resets the target and keeps it halted.
func (j *JLink) ResetHalt(ctx context.Context, dev *device.Device) error {
	return j.exec(ctx, dev, "r", "h")
}

// ResetInit is ResetHalt: J-Link has no target init scripts to run.
func (j *JLink) ResetInit(ctx context.Context, dev *device.Device) error {
	return j.ResetHalt(ctx, dev)
}
