package dap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OpenTraceLab/boardctl/internal/logging"
	"github.com/OpenTraceLab/boardctl/pkg/device"
)

// Cortex-M debug registers
const (
	RegAIRCR = 0xE000ED0C
	RegDHCSR = 0xE000EDF0
	RegDEMCR = 0xE000EDFC

	DBGKey    = 0xA05F << 16
	CDebugEn  = 1 << 0
	CHalt     = 1 << 1
	SHalt     = 1 << 17
	SResetSt  = 1 << 25
	VectKey   = 0x05FA << 16
	SysReset  = 1 << 2
	VCCoreRst = 1 << 0
)

const (
	DefaultClockHz     = 1_000_000
	DefaultHaltTimeout = 500 * time.Millisecond

	pollInterval = 5 * time.Millisecond
)

// ErrNotHalted is returned when the core does not report S_HALT in time.
var ErrNotHalted = errors.New("dap: core did not halt")

// Debugger performs run control on Cortex-M targets through a CMSIS-DAP
// probe. Each operation opens the probe, connects, acts once and
// disconnects.
type Debugger struct {
	// Open returns the transport for a device. Defaults to OpenUSB with the
	// device's VID, PID and serial.
	Open        func(dev *device.Device) (Transport, error)
	ClockHz     uint32
	HaltTimeout time.Duration
}

// NewDebugger returns a Debugger using USB and default timings.
func NewDebugger() *Debugger {
	return &Debugger{
		Open: func(dev *device.Device) (Transport, error) {
			return OpenUSB(dev.USB.VendorID, dev.USB.ProductID, dev.USB.SerialNumber)
		},
		ClockHz:     DefaultClockHz,
		HaltTimeout: DefaultHaltTimeout,
	}
}

type core struct {
	p       *Probe
	timeout time.Duration
}

func (d *Debugger) with(ctx context.Context, dev *device.Device, op string, fn func(*core) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := d.Open(dev)
	if err != nil {
		return err
	}
	p := NewProbe(t)
	defer p.Close()

	id, err := p.Connect(d.ClockHz)
	if err != nil {
		return fmt.Errorf("dap: connect: %w", err)
	}
	logging.For(logging.ComponentDAP).Debug(op, "device", dev.ShortID(), "dp", id.String())

	c := &core{p: p, timeout: d.HaltTimeout}
	if c.timeout <= 0 {
		c.timeout = DefaultHaltTimeout
	}
	return fn(c)
}

// Halt stops the core and waits for S_HALT.
func (d *Debugger) Halt(ctx context.Context, dev *device.Device) error {
	return d.with(ctx, dev, "halt", func(c *core) error {
		if err := c.p.Write32(RegDHCSR, DBGKey|CDebugEn|CHalt); err != nil {
			return err
		}
		return c.waitHalted(ctx)
	})
}

// Resume clears C_HALT.
func (d *Debugger) Resume(ctx context.Context, dev *device.Device) error {
	return d.with(ctx, dev, "resume", func(c *core) error {
		return c.p.Write32(RegDHCSR, DBGKey|CDebugEn)
	})
}

// Reset uses the probe's own reset sequence, falling back to a system reset
// request when the probe has none.
func (d *Debugger) Reset(ctx context.Context, dev *device.Device) error {
	return d.with(ctx, dev, "reset", func(c *core) error {
		done, err := c.p.ResetTarget()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		return c.sysReset()
	})
}

// ResetRun clears vector catch and requests a system reset.
func (d *Debugger) ResetRun(ctx context.Context, dev *device.Device) error {
	return d.with(ctx, dev, "reset run", func(c *core) error {
		if err := c.vectorCatch(false); err != nil {
			return err
		}
		if err := c.p.Write32(RegDHCSR, DBGKey|CDebugEn); err != nil {
			return err
		}
		return c.sysReset()
	})
}

// ResetHalt resets and stops at the reset vector. Vector catch stays enabled.
func (d *Debugger) ResetHalt(ctx context.Context, dev *device.Device) error {
	return d.with(ctx, dev, "reset halt", func(c *core) error {
		return c.resetHalt(ctx)
	})
}

// ResetInit is ResetHalt followed by clearing vector catch so later resets
// run freely.
func (d *Debugger) ResetInit(ctx context.Context, dev *device.Device) error {
	return d.with(ctx, dev, "reset init", func(c *core) error {
		if err := c.resetHalt(ctx); err != nil {
			return err
		}
		return c.vectorCatch(false)
	})
}

func (c *core) resetHalt(ctx context.Context) error {
	if err := c.p.Write32(RegDHCSR, DBGKey|CDebugEn); err != nil {
		return err
	}
	if err := c.vectorCatch(true); err != nil {
		return err
	}
	if err := c.sysReset(); err != nil {
		return err
	}
	return c.waitHalted(ctx)
}

func (c *core) vectorCatch(on bool) error {
	v, err := c.p.Read32(RegDEMCR)
	if err != nil {
		return err
	}
	if on {
		v |= VCCoreRst
	} else {
		v &^= VCCoreRst
	}
	return c.p.Write32(RegDEMCR, v)
}

// sysReset requests a system reset through AIRCR. The target may reset
// before acknowledging the write, so a failed acknowledge is not an error.
func (c *core) sysReset() error {
	err := c.p.Write32(RegAIRCR, VectKey|SysReset)
	var te *TransferError
	if errors.As(err, &te) {
		logging.For(logging.ComponentDAP).Debug("AIRCR write not acknowledged", "err", err)
		return c.p.ClearErrors()
	}
	return err
}

func (c *core) waitHalted(ctx context.Context) error {
	deadline := time.Now().Add(c.timeout)
	var last error
	for {
		v, err := c.p.Read32(RegDHCSR)
		if err == nil && v&SHalt != 0 {
			return nil
		}
		if err != nil {
			last = err
			_ = c.p.ClearErrors()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			if last != nil {
				return fmt.Errorf("%w: %v", ErrNotHalted, last)
			}
			return ErrNotHalted
		}
		time.Sleep(pollInterval)
	}
}
