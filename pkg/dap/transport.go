// Package dap drives CMSIS-DAP probes natively over USB to halt, resume and
// reset Cortex-M targets without an external debug server.
package dap

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

const (
	// DefaultPacketSize is the CMSIS-DAP v1 HID report size and the usual v2
	// bulk packet size.
	DefaultPacketSize = 64
	DefaultTimeout    = 5 * time.Second
)

// ErrProbeNotFound is returned when no attached probe matches.
var ErrProbeNotFound = errors.New("dap: probe not found")

// Transport exchanges one command packet for one response packet.
type Transport interface {
	WriteRead(cmd []byte) ([]byte, error)
	PacketSize() int
	Close() error
}

// USBTransport talks to a CMSIS-DAP v2 probe over its vendor bulk endpoints.
type USBTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	packetSize int
	timeout    time.Duration
}

// OpenUSB opens the probe with the given VID:PID. A non-empty serial selects
// among several identical probes.
func OpenUSB(vid, pid uint16, serial string) (*USBTransport, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == vid && uint16(desc.Product) == pid
	})
	if len(devs) == 0 {
		ctx.Close()
		if err != nil {
			return nil, fmt.Errorf("dap: open %04x:%04x: %w", vid, pid, err)
		}
		return nil, fmt.Errorf("%w (%04x:%04x)", ErrProbeNotFound, vid, pid)
	}

	var dev *gousb.Device
	for _, d := range devs {
		if dev == nil && matchSerial(d, serial) {
			dev = d
			continue
		}
		d.Close()
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("%w (%04x:%04x serial %q)", ErrProbeNotFound, vid, pid, serial)
	}

	// Linux binds cdc_acm/usbhid to some probes; not every platform can detach.
	_ = dev.SetAutoDetach(true)

	t := &USBTransport{
		ctx:        ctx,
		dev:        dev,
		packetSize: DefaultPacketSize,
		timeout:    DefaultTimeout,
	}
	if err := t.claim(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func matchSerial(d *gousb.Device, serial string) bool {
	if serial == "" {
		return true
	}
	sn, err := d.SerialNumber()
	return err == nil && sn == serial
}

// claim selects the first vendor-specific interface with a bulk OUT/IN pair.
func (t *USBTransport) claim() error {
	num, err := t.dev.ActiveConfigNum()
	if err != nil {
		return fmt.Errorf("dap: active config: %w", err)
	}
	cfg, err := t.dev.Config(num)
	if err != nil {
		return fmt.Errorf("dap: config %d: %w", num, err)
	}
	t.cfg = cfg

	for _, desc := range cfg.Desc.Interfaces {
		if len(desc.AltSettings) == 0 {
			continue
		}
		alt := desc.AltSettings[0]
		if alt.Class != gousb.ClassVendorSpec {
			continue
		}
		out, in := bulkPair(alt)
		if out == nil || in == nil {
			continue
		}
		intf, err := cfg.Interface(desc.Number, alt.Alternate)
		if err != nil {
			return fmt.Errorf("dap: claim interface %d: %w", desc.Number, err)
		}
		t.intf = intf
		if t.epOut, err = intf.OutEndpoint(out.Number); err != nil {
			return fmt.Errorf("dap: OUT endpoint: %w", err)
		}
		if t.epIn, err = intf.InEndpoint(in.Number); err != nil {
			return fmt.Errorf("dap: IN endpoint: %w", err)
		}
		t.packetSize = in.MaxPacketSize
		return nil
	}
	return errors.New("dap: no CMSIS-DAP v2 bulk interface (HID-only probes are not supported)")
}

func bulkPair(alt gousb.InterfaceSetting) (out, in *gousb.EndpointDesc) {
	for _, ep := range alt.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch {
		case ep.Direction == gousb.EndpointDirectionOut && out == nil:
			out = &ep
		case ep.Direction == gousb.EndpointDirectionIn && in == nil:
			in = &ep
		}
	}
	return out, in
}

// WriteRead sends cmd and returns the probe's response.
func (t *USBTransport) WriteRead(cmd []byte) ([]byte, error) {
	if len(cmd) > t.packetSize {
		return nil, fmt.Errorf("dap: command of %d bytes exceeds packet size %d", len(cmd), t.packetSize)
	}
	if _, err := t.epOut.Write(cmd); err != nil {
		return nil, fmt.Errorf("dap: USB write: %w", err)
	}
	resp := make([]byte, t.packetSize)
	n, err := t.epIn.Read(resp)
	if err != nil {
		return nil, fmt.Errorf("dap: USB read: %w", err)
	}
	return resp[:n], nil
}

func (t *USBTransport) PacketSize() int { return t.packetSize }

// Close releases the interface, device and USB context.
func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		t.cfg.Close()
		t.cfg = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}
