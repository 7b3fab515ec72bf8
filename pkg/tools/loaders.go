package tools

import (
	"context"
	"fmt"

	"github.com/OpenTraceLab/boardctl/pkg/capability"
	"github.com/OpenTraceLab/boardctl/pkg/device"
)

// Bossa flashes SAM D boards through their bootloader serial port.
type Bossa struct {
	Runner Runner
	Path   string
}

// Check requires the bootloader serial port.
func (b *Bossa) Check(dev *device.Device) error {
	if _, ok := dev.Caps.Bootloader(); !ok {
		return capability.MissingError("bootloader port")
	}
	return nil
}

// Load erases, writes, verifies and boots from flash.
func (b *Bossa) Load(ctx context.Context, dev *device.Device, image string) error {
	port, _ := dev.Caps.Bootloader()
	return b.Runner.Run(ctx, b.Path, "--port="+port, "-e", "-w", "-v", "-b", "-R", image)
}

// Teensy flashes PJRC Teensy boards with teensy_loader_cli.
type Teensy struct {
	Runner Runner
	Path   string
	MCU    string
}

// Load writes image and reboots the board.
func (t *Teensy) Load(ctx context.Context, dev *device.Device, image string) error {
	return t.Runner.Run(ctx, t.Path, "--mcu="+t.MCU, "-w", "-v", image)
}

// DFU flashes STM32 system bootloaders with dfu-util.
type DFU struct {
	Runner  Runner
	Path    string
	Address uint32
}

// Load downloads image to Address and leaves DFU mode.
func (d *DFU) Load(ctx context.Context, dev *device.Device, image string) error {
	args := []string{
		"-d", fmt.Sprintf("%04x:%04x", dev.USB.VendorID, dev.USB.ProductID),
		"-a", "0",
		"-s", fmt.Sprintf("0x%08x:leave", d.Address),
	}
	if sn := dev.USB.SerialNumber; sn != "" {
		args = append(args, "-S", sn)
	}
	args = append(args, "-D", image)
	return d.Runner.Run(ctx, d.Path, args...)
}

// BlackMagic loads through the Black Magic Probe's built-in GDB server.
type BlackMagic struct {
	Runner Runner
	GDB    string
}

// Check requires the probe's GDB server port.
func (b *BlackMagic) Check(dev *device.Device) error {
	if _, ok := dev.Caps.Console(); !ok {
		return capability.MissingError("gdb server port")
	}
	return nil
}

// Load scans SWD, attaches, loads and verifies image.
func (b *BlackMagic) Load(ctx context.Context, dev *device.Device, image string) error {
	port, _ := dev.Caps.Console()
	return b.Runner.Run(ctx, b.GDB,
		"-nx", "--batch",
		"-ex", "target extended-remote "+port,
		"-ex", "monitor swdp_scan",
		"-ex", "attach 1",
		"-ex", "load",
		"-ex", "compare-sections",
		"-ex", "kill",
		image,
	)
}
