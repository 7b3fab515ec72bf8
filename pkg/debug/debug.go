// Package debug selects and performs a single run-control operation on a
// device's target.
package debug

import (
	"context"
	"errors"
	"fmt"

	"github.com/OpenTraceLab/boardctl/internal/logging"
	"github.com/OpenTraceLab/boardctl/pkg/capability"
	"github.com/OpenTraceLab/boardctl/pkg/device"
)

// Op is the requested run-control operation.
type Op int

const (
	OpHalt Op = iota + 1
	OpResume
	OpReset
)

func (o Op) String() string {
	switch o {
	case OpHalt:
		return "halt"
	case OpResume:
		return "resume"
	case OpReset:
		return "reset"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// ResetVariant refines OpReset.
type ResetVariant int

const (
	ResetPlain ResetVariant = iota
	ResetRun
	ResetHalt
	ResetInit
)

func (v ResetVariant) String() string {
	switch v {
	case ResetPlain:
		return "plain"
	case ResetRun:
		return "run"
	case ResetHalt:
		return "halt"
	case ResetInit:
		return "init"
	}
	return fmt.Sprintf("ResetVariant(%d)", int(v))
}

// Command is one fully selected debug operation.
type Command struct {
	Op    Op
	Reset ResetVariant
}

func (c Command) String() string {
	if c.Op == OpReset && c.Reset != ResetPlain {
		return "reset " + c.Reset.String()
	}
	return c.Op.String()
}

// ErrSelection is returned when the requested flags do not name exactly one
// command.
var ErrSelection = errors.New("debug: invalid command selection")

// Flags carries the raw selector flags from the command line.
type Flags struct {
	Halt, Resume, Reset bool
	Run, HaltAfter, Init bool
}

// Select turns selector flags into a Command. Exactly one of Halt, Resume
// and Reset must be set; at most one reset variant may be set and only with
// Reset.
func Select(f Flags) (Command, error) {
	ops := 0
	var cmd Command
	if f.Halt {
		ops++
		cmd.Op = OpHalt
	}
	if f.Resume {
		ops++
		cmd.Op = OpResume
	}
	if f.Reset {
		ops++
		cmd.Op = OpReset
	}
	if ops != 1 {
		return Command{}, fmt.Errorf("%w: need exactly one of halt, resume or reset", ErrSelection)
	}

	variants := 0
	if f.Run {
		variants++
		cmd.Reset = ResetRun
	}
	if f.HaltAfter {
		variants++
		cmd.Reset = ResetHalt
	}
	if f.Init {
		variants++
		cmd.Reset = ResetInit
	}
	if variants > 1 {
		return Command{}, fmt.Errorf("%w: --run, --halt and --init are mutually exclusive", ErrSelection)
	}
	if variants == 1 && cmd.Op != OpReset {
		return Command{}, fmt.Errorf("%w: reset variant given without reset", ErrSelection)
	}
	return cmd, nil
}

// Execute resolves the device's debugger and performs cmd exactly once.
// Nothing is sent to the device when resolution fails.
func Execute(ctx context.Context, reg *capability.Registry, dev *device.Device, cmd Command) error {
	dbg, err := reg.ResolveDebugger(dev)
	if err != nil {
		return err
	}
	log := logging.For(logging.ComponentDispatch)
	log.Debug("debug command", "device", dev.ShortID(), "cmd", cmd.String())

	switch cmd.Op {
	case OpHalt:
		err = dbg.Halt(ctx, dev)
	case OpResume:
		err = dbg.Resume(ctx, dev)
	case OpReset:
		switch cmd.Reset {
		case ResetRun:
			err = dbg.ResetRun(ctx, dev)
		case ResetHalt:
			err = dbg.ResetHalt(ctx, dev)
		case ResetInit:
			err = dbg.ResetInit(ctx, dev)
		default:
			err = dbg.Reset(ctx, dev)
		}
	default:
		return fmt.Errorf("%w: unknown op %s", ErrSelection, cmd.Op)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}
