package tools

import (
	"context"
	"strconv"

	"github.com/OpenTraceLab/boardctl/pkg/capability"
	"github.com/OpenTraceLab/boardctl/pkg/console"
	"github.com/OpenTraceLab/boardctl/pkg/device"
)

// GDB starts an interactive debugger on a built image.
type GDB struct {
	Runner Runner
	Path   string
}

// Run starts gdb on image and waits for it to exit.
func (g *GDB) Run(ctx context.Context, image string) error {
	return g.Runner.Run(ctx, g.Path, image)
}

// Screen attaches GNU screen to a device's console port.
type Screen struct {
	Runner Runner
	Path   string
}

// Check requires the console port.
func (s *Screen) Check(dev *device.Device) error {
	if _, ok := dev.Caps.Console(); !ok {
		return capability.MissingError("serial device path")
	}
	return nil
}

// Run attaches screen to the console port at the console baud rate.
func (s *Screen) Run(ctx context.Context, dev *device.Device) error {
	if err := s.Check(dev); err != nil {
		return err
	}
	port, _ := dev.Caps.Console()
	return s.Runner.Run(ctx, s.Path, port, strconv.Itoa(console.BaudRate))
}
