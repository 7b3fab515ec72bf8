package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/OpenTraceLab/boardctl/pkg/device"
)

// OpenOCD loads, controls and traces targets through openocd. It serves the
// loader, debugger and tracer classes for the "openocd" tag.
type OpenOCD struct {
	Runner Runner
	Path   string
	Config string
}

func (o *OpenOCD) args(dev *device.Device, cmds ...string) []string {
	args := []string{"--file", o.Config}
	if sel, ok := dev.Caps.TraceSerial(); ok {
		args = append(args, "--command", sel)
	}
	for _, c := range cmds {
		args = append(args, "--command", c)
	}
	return args
}

func (o *OpenOCD) run(ctx context.Context, dev *device.Device, cmds ...string) error {
	toolLog("openocd").Debug("commands", "device", dev.ShortID(), "cmds", cmds)
	return o.Runner.Run(ctx, o.Path, o.args(dev, cmds...)...)
}

// Serve runs openocd as a debug server until it exits or ctx is cancelled.
func (o *OpenOCD) Serve(ctx context.Context, dev *device.Device) error {
	return o.run(ctx, dev)
}

// Load programs image, verifies it and resets the target.
func (o *OpenOCD) Load(ctx context.Context, dev *device.Device, image string) error {
	return o.run(ctx, dev, fmt.Sprintf("program {%s} verify reset exit", filepath.ToSlash(image)))
}

// Halt stops the target core.
func (o *OpenOCD) Halt(ctx context.Context, dev *device.Device) error {
	return o.run(ctx, dev, "init", "halt", "exit")
}

// Resume lets the halted core run.
func (o *OpenOCD) Resume(ctx context.Context, dev *device.Device) error {
	return o.run(ctx, dev, "init", "resume", "exit")
}

// Reset resets the target with openocd's default reset mode.
func (o *OpenOCD) Reset(ctx context.Context, dev *device.Device) error {
	return o.run(ctx, dev, "init", "reset", "exit")
}

// ResetRun resets the target and lets it run.
func (o *OpenOCD) ResetRun(ctx context.Context, dev *device.Device) error {
	return o.run(ctx, dev, "init", "reset run", "exit")
}

// ResetHalt resets the target and halts it at the reset vector.
func (o *OpenOCD) ResetHalt(ctx context.Context, dev *device.Device) error {
	return o.run(ctx, dev, "init", "reset halt", "exit")
}

// ResetInit resets, halts and runs the config's reset-init handlers.
func (o *OpenOCD) ResetInit(ctx context.Context, dev *device.Device) error {
	return o.run(ctx, dev, "init", "reset init", "exit")
}

// TraceITM routes SWO through the internal TPIU and keeps openocd running
// while trace data is captured.
func (o *OpenOCD) TraceITM(ctx context.Context, dev *device.Device, targetClock, traceClock uint32) error {
	return o.run(ctx, dev,
		"init",
		fmt.Sprintf("tpiu config internal - uart off %d %d", targetClock, traceClock),
		"itm ports on",
	)
}
