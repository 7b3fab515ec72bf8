// Package itm starts ITM trace capture on a device.
package itm

import (
	"context"
	"fmt"

	"github.com/OpenTraceLab/boardctl/internal/config"
	"github.com/OpenTraceLab/boardctl/internal/logging"
	"github.com/OpenTraceLab/boardctl/pkg/capability"
	"github.com/OpenTraceLab/boardctl/pkg/device"
)

// TraceClock is the SWO output rate in Hz.
const TraceClock uint32 = 2_000_000

// ResolveTargetClock picks the target core clock. The flag value wins over
// the configuration; zero means unset.
func ResolveTargetClock(flag uint32, cfg *config.Config) (uint32, error) {
	if flag != 0 {
		return flag, nil
	}
	if clk, ok := cfg.TargetClock(); ok {
		return clk, nil
	}
	return 0, fmt.Errorf("%w: itm-target-clock is required for ITM trace", config.ErrMissing)
}

// Start resolves the device's tracer and invokes it once with targetClock
// and TraceClock. The call blocks for as long as the tracer runs.
func Start(ctx context.Context, reg *capability.Registry, dev *device.Device, targetClock uint32) error {
	tr, err := reg.ResolveTracer(dev)
	if err != nil {
		return err
	}
	logging.For(logging.ComponentITM).Info("Starting ITM trace",
		"device", dev.ShortID(), "target_clk", targetClock, "trace_clk", TraceClock)
	if err := tr.TraceITM(ctx, dev, targetClock, TraceClock); err != nil {
		return fmt.Errorf("itm trace: %w", err)
	}
	return nil
}
