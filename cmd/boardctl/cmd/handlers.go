package cmd

import (
	"github.com/OpenTraceLab/boardctl/internal/config"
	"github.com/OpenTraceLab/boardctl/pkg/builder"
	"github.com/OpenTraceLab/boardctl/pkg/capability"
	"github.com/OpenTraceLab/boardctl/pkg/dap"
	"github.com/OpenTraceLab/boardctl/pkg/device"
	"github.com/OpenTraceLab/boardctl/pkg/tools"
)

// capabilities binds every loader, debugger and tracer tag to its handler.
func capabilities(c *config.Config) *capability.Registry {
	reg := capability.NewRegistry()

	ocd := &tools.OpenOCD{Runner: runner, Path: c.OpenOCD.Path, Config: c.OpenOCD.Config}
	reg.RegisterLoader(device.LoaderOpenOCD, ocd)
	reg.RegisterDebugger(device.DebuggerOpenOCD, ocd)
	reg.RegisterTracer(device.DebuggerOpenOCD, ocd)

	jlink := &tools.JLink{
		Runner:    runner,
		Path:      c.JLink.Path,
		Device:    c.JLink.Device,
		Interface: c.JLink.Interface,
		Speed:     c.JLink.Speed,
	}
	reg.RegisterLoader(device.LoaderJLink, jlink)
	reg.RegisterDebugger(device.DebuggerJLink, jlink)

	reg.RegisterLoader(device.LoaderBossa, &tools.Bossa{Runner: runner, Path: c.Bossac.Path})
	reg.RegisterLoader(device.LoaderTeensy, &tools.Teensy{Runner: runner, Path: c.Teensy.Path, MCU: c.Teensy.MCU})
	reg.RegisterLoader(device.LoaderDFU, &tools.DFU{Runner: runner, Path: c.DFU.Path, Address: c.DFU.Address})
	reg.RegisterLoader(device.LoaderBlackMagic, &tools.BlackMagic{Runner: runner, GDB: c.GDB.Path})
	reg.RegisterLoader(device.LoaderMSD, tools.MassStorage{})

	dbg := dap.NewDebugger()
	dbg.Open = openProbe
	reg.RegisterDebugger(device.DebuggerCMSISDAP, dbg)

	return reg
}

func newBuilder(c *config.Config) *builder.Builder {
	return &builder.Builder{Runner: runner, Command: c.Build.Command, Artifact: c.Build.Artifact}
}
