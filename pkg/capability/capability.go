// Package capability resolves a device's loader and debugger tags to the
// handlers that act on it.
//
// Resolution is a pure lookup performed before any hardware is touched: a
// device without the tag, a tag without a handler, or a handler whose
// prerequisites (serial port, mount point, ...) are missing all fail here.
package capability

import (
	"context"
	"errors"
	"fmt"

	"github.com/OpenTraceLab/boardctl/pkg/device"
)

// Class names a group of commands that share a handler kind.
type Class string

const (
	ClassLoader   Class = "loader"
	ClassDebugger Class = "debugger"
	ClassTracer   Class = "trace"
)

// ErrNoCapability is returned when the device exposes no tag, or lacks a
// prerequisite, for the requested class.
var ErrNoCapability = errors.New("device has no associated handler")

// UnknownCapabilityError is returned when a tag has no registered handler.
type UnknownCapabilityError struct {
	Class Class
	Tag   string
}

func (e *UnknownCapabilityError) Error() string {
	return fmt.Sprintf("unknown %s type: %s", e.Class, e.Tag)
}

// Loader writes a firmware image to a device.
type Loader interface {
	Load(ctx context.Context, dev *device.Device, image string) error
}

// Debugger performs single-shot run control on a device's target.
type Debugger interface {
	Halt(ctx context.Context, dev *device.Device) error
	Resume(ctx context.Context, dev *device.Device) error
	Reset(ctx context.Context, dev *device.Device) error
	ResetRun(ctx context.Context, dev *device.Device) error
	ResetHalt(ctx context.Context, dev *device.Device) error
	ResetInit(ctx context.Context, dev *device.Device) error
}

// Tracer streams ITM trace output from a device.
type Tracer interface {
	TraceITM(ctx context.Context, dev *device.Device, targetClock, traceClock uint32) error
}

// Prerequisite is implemented by handlers that need more from a device than
// its tag, such as a serial path.
type Prerequisite interface {
	Check(dev *device.Device) error
}

// MissingError builds the error a Prerequisite returns for an absent field.
func MissingError(what string) error {
	return fmt.Errorf("%w: no %s found for device", ErrNoCapability, what)
}

// Registry maps capability tags to handlers. It is built once at startup.
type Registry struct {
	loaders   map[device.LoaderType]Loader
	debuggers map[device.DebuggerType]Debugger
	tracers   map[device.DebuggerType]Tracer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		loaders:   make(map[device.LoaderType]Loader),
		debuggers: make(map[device.DebuggerType]Debugger),
		tracers:   make(map[device.DebuggerType]Tracer),
	}
}

// RegisterLoader binds a loader tag.
func (r *Registry) RegisterLoader(tag device.LoaderType, l Loader) {
	r.loaders[tag] = l
}

// RegisterDebugger binds a debugger tag.
func (r *Registry) RegisterDebugger(tag device.DebuggerType, d Debugger) {
	r.debuggers[tag] = d
}

// RegisterTracer binds a tracer to a debugger tag.
func (r *Registry) RegisterTracer(tag device.DebuggerType, t Tracer) {
	r.tracers[tag] = t
}

// ResolveLoader returns the loader for dev.
func (r *Registry) ResolveLoader(dev *device.Device) (Loader, error) {
	tag, ok := dev.Caps.LoaderTag()
	if !ok {
		return nil, fmt.Errorf("%w: no loader", ErrNoCapability)
	}
	l, ok := r.loaders[tag]
	if !ok {
		return nil, &UnknownCapabilityError{Class: ClassLoader, Tag: string(tag)}
	}
	if err := check(l, dev); err != nil {
		return nil, err
	}
	return l, nil
}

// ResolveDebugger returns the debugger for dev.
func (r *Registry) ResolveDebugger(dev *device.Device) (Debugger, error) {
	tag, ok := dev.Caps.DebuggerTag()
	if !ok {
		return nil, fmt.Errorf("%w: no debugger", ErrNoCapability)
	}
	d, ok := r.debuggers[tag]
	if !ok {
		return nil, &UnknownCapabilityError{Class: ClassDebugger, Tag: string(tag)}
	}
	if err := check(d, dev); err != nil {
		return nil, err
	}
	return d, nil
}

// ResolveTracer returns the ITM tracer for dev.
func (r *Registry) ResolveTracer(dev *device.Device) (Tracer, error) {
	if !dev.Caps.CanTraceITM() {
		return nil, fmt.Errorf("%w: device does not support ITM trace", ErrNoCapability)
	}
	tag, ok := dev.Caps.DebuggerTag()
	if !ok {
		return nil, fmt.Errorf("%w: no debugger for ITM trace", ErrNoCapability)
	}
	t, ok := r.tracers[tag]
	if !ok {
		return nil, &UnknownCapabilityError{Class: ClassTracer, Tag: string(tag)}
	}
	if err := check(t, dev); err != nil {
		return nil, err
	}
	return t, nil
}

func check(h any, dev *device.Device) error {
	if p, ok := h.(Prerequisite); ok {
		return p.Check(dev)
	}
	return nil
}
