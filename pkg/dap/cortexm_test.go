package dap

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/OpenTraceLab/boardctl/pkg/device"
)

var probeDev = &device.Device{
	ID:  "5e5e5e5e00",
	USB: device.USBInfo{VendorID: 0x2e8a, ProductID: 0x000c, SerialNumber: "E6614103E7"},
}

func simDebugger(sim *SimProbe) *Debugger {
	return &Debugger{
		Open:        func(*device.Device) (Transport, error) { return sim, nil },
		ClockHz:     DefaultClockHz,
		HaltTimeout: 20 * time.Millisecond,
	}
}

func TestProbeConnect(t *testing.T) {
	sim := NewSimProbe()
	p := NewProbe(sim)

	id, err := p.Connect(2_000_000)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if id.DesignerName() != "ARM" {
		t.Errorf("designer = %s, want ARM", id.DesignerName())
	}
	if sim.csw != cswWord {
		t.Errorf("CSW = %#x, want %#x", sim.csw, cswWord)
	}
	if got := sim.Commands[1]; !bytes.Equal(got, EncodeSWJClock(2_000_000)) {
		t.Errorf("second command = % X, want SWJ clock", got)
	}

	v, err := p.ReadAP(APIDR)
	if err != nil || v != 0x24770011 {
		t.Errorf("ReadAP(IDR) = %#x, %v", v, err)
	}

	if n, err := p.PacketSize(); err != nil || n != DefaultPacketSize {
		t.Errorf("PacketSize() = %d, %v", n, err)
	}
	if s, err := p.Info(InfoFirmware); err != nil || s != "2.1.0" {
		t.Errorf("Info(firmware) = %q, %v", s, err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !sim.Closed {
		t.Error("transport not closed")
	}
}

func TestProbeMemory(t *testing.T) {
	sim := NewSimProbe()
	p := NewProbe(sim)
	if _, err := p.Connect(DefaultClockHz); err != nil {
		t.Fatal(err)
	}
	if err := p.Write32(0x20000000, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	v, err := p.Read32(0x20000000)
	if err != nil || v != 0xdeadbeef {
		t.Errorf("Read32() = %#x, %v", v, err)
	}
}

func TestDebuggerOperations(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		run         func(*Debugger) error
		setup       func(*SimProbe)
		halted      bool
		vectorCatch bool
		sysResets   int
	}{
		{"halt", func(d *Debugger) error { return d.Halt(ctx, probeDev) }, nil, true, false, 0},
		{"resume", func(d *Debugger) error { return d.Resume(ctx, probeDev) },
			func(s *SimProbe) { s.debugEn, s.Halted = true, true }, false, false, 0},
		{"reset", func(d *Debugger) error { return d.Reset(ctx, probeDev) }, nil, false, false, 1},
		{"reset run", func(d *Debugger) error { return d.ResetRun(ctx, probeDev) },
			func(s *SimProbe) { s.Mem[RegDEMCR] = VCCoreRst }, false, false, 1},
		{"reset halt", func(d *Debugger) error { return d.ResetHalt(ctx, probeDev) }, nil, true, true, 1},
		{"reset init", func(d *Debugger) error { return d.ResetInit(ctx, probeDev) }, nil, true, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewSimProbe()
			if tt.setup != nil {
				tt.setup(sim)
			}
			if err := tt.run(simDebugger(sim)); err != nil {
				t.Fatalf("error = %v", err)
			}
			if sim.Halted != tt.halted {
				t.Errorf("halted = %v, want %v", sim.Halted, tt.halted)
			}
			if sim.VectorCatch() != tt.vectorCatch {
				t.Errorf("vector catch = %v, want %v", sim.VectorCatch(), tt.vectorCatch)
			}
			if sim.SysResets != tt.sysResets {
				t.Errorf("system resets = %d, want %d", sim.SysResets, tt.sysResets)
			}
			if !sim.Closed {
				t.Error("probe left open")
			}
		})
	}
}

func TestResetUsesProbeSequence(t *testing.T) {
	sim := NewSimProbe()
	sim.ResetSequence = true
	if err := simDebugger(sim).Reset(context.Background(), probeDev); err != nil {
		t.Fatal(err)
	}
	if sim.TargetResets != 1 || sim.SysResets != 0 {
		t.Errorf("target resets = %d, system resets = %d", sim.TargetResets, sim.SysResets)
	}
}

func TestDebuggerFault(t *testing.T) {
	sim := NewSimProbe()
	sim.FaultAP = true
	err := simDebugger(sim).Halt(context.Background(), probeDev)
	var te *TransferError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransferError, got %v", err)
	}
	if !sim.Closed {
		t.Error("probe left open after failure")
	}
}

func TestDebuggerOpenError(t *testing.T) {
	d := &Debugger{Open: func(*device.Device) (Transport, error) { return nil, ErrProbeNotFound }}
	if err := d.Halt(context.Background(), probeDev); !errors.Is(err, ErrProbeNotFound) {
		t.Errorf("err = %v, want ErrProbeNotFound", err)
	}
}

func TestDebuggerCancelled(t *testing.T) {
	sim := NewSimProbe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := simDebugger(sim).Halt(ctx, probeDev); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(sim.Commands) != 0 {
		t.Errorf("%d commands sent after cancellation", len(sim.Commands))
	}
}
