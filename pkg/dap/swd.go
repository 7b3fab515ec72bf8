package dap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/OpenTraceLab/boardctl/internal/logging"
)

// DP registers
const (
	DPIDR    = 0x0 // read
	DPAbort  = 0x0 // write
	CtrlStat = 0x4
	Select   = 0x8
	RDBuff   = 0xC
)

// MEM-AP registers (bank in bits [7:4])
const (
	APCSW = 0x00
	APTAR = 0x04
	APDRW = 0x0C
	APIDR = 0xFC
)

const (
	cdbgPwrUpReq = 1 << 28
	cdbgPwrUpAck = 1 << 29
	csysPwrUpReq = 1 << 30
	csysPwrUpAck = 1 << 31

	abortClearAll = 0x1E

	// 32-bit accesses, no auto-increment, debug software access enabled.
	cswWord = 0x23000002

	powerUpPolls = 100
)

// ErrPowerUp is returned when the debug domain does not acknowledge power-up.
var ErrPowerUp = errors.New("dap: debug power-up not acknowledged")

// Probe is an SWD connection to the first MEM-AP of a target.
type Probe struct {
	t   Transport
	ap  uint8
	sel uint32
	log *slog.Logger
}

// NewProbe wraps an open transport. Connect must be called before any
// register access.
func NewProbe(t Transport) *Probe {
	return &Probe{t: t, sel: ^uint32(0), log: logging.For(logging.ComponentDAP)}
}

func (p *Probe) info(id byte) ([]byte, error) {
	resp, err := p.t.WriteRead(EncodeInfo(id))
	if err != nil {
		return nil, err
	}
	return DecodeInfo(resp)
}

// Info returns a DAP_Info string. Some firmware NUL-terminates strings.
func (p *Probe) Info(id byte) (string, error) {
	b, err := p.info(id)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00"), nil
}

// Connect switches the probe to SWD, runs the line reset and JTAG-to-SWD
// sequence, powers up the debug domain and configures the MEM-AP.
func (p *Probe) Connect(clockHz uint32) (DPID, error) {
	resp, err := p.t.WriteRead(EncodeConnect(PortSWD))
	if err != nil {
		return DPID{}, err
	}
	port, err := DecodeConnect(resp)
	if err != nil {
		return DPID{}, err
	}
	if port != PortSWD {
		return DPID{}, fmt.Errorf("dap: probe connected port %d, want SWD", port)
	}

	steps := []struct {
		cmd    []byte
		decode func([]byte) error
	}{
		{EncodeSWJClock(clockHz), DecodeSWJClock},
		{EncodeTransferConfigure(0, 64, 0), DecodeTransferConfigure},
		{EncodeSWDConfigure(0), DecodeSWDConfigure},
		{EncodeSWJSequence(51, ones), DecodeSWJSequence},
		{EncodeSWJSequence(16, []byte{0x9E, 0xE7}), DecodeSWJSequence},
		{EncodeSWJSequence(51, ones), DecodeSWJSequence},
		{EncodeSWJSequence(8, []byte{0x00}), DecodeSWJSequence},
	}
	for _, s := range steps {
		resp, err := p.t.WriteRead(s.cmd)
		if err != nil {
			return DPID{}, err
		}
		if err := s.decode(resp); err != nil {
			return DPID{}, err
		}
	}

	idr, err := p.ReadDP(DPIDR)
	if err != nil {
		return DPID{}, fmt.Errorf("dap: read DPIDR: %w", err)
	}
	id := DecodeDPIDR(idr)
	p.log.Debug("connected", "dpidr", fmt.Sprintf("0x%08x", idr), "designer", id.DesignerName(), "version", id.Version)

	if err := p.WriteDP(DPAbort, abortClearAll); err != nil {
		return id, err
	}
	if err := p.powerUp(); err != nil {
		return id, err
	}
	if err := p.WriteAP(APCSW, cswWord); err != nil {
		return id, fmt.Errorf("dap: configure CSW: %w", err)
	}
	return id, nil
}

var ones = []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func (p *Probe) powerUp() error {
	if err := p.WriteDP(CtrlStat, cdbgPwrUpReq|csysPwrUpReq); err != nil {
		return err
	}
	for i := 0; i < powerUpPolls; i++ {
		v, err := p.ReadDP(CtrlStat)
		if err != nil {
			return err
		}
		if v&(cdbgPwrUpAck|csysPwrUpAck) == cdbgPwrUpAck|csysPwrUpAck {
			return nil
		}
	}
	return ErrPowerUp
}

func (p *Probe) transfer(xfers ...Transfer) ([]uint32, error) {
	resp, err := p.t.WriteRead(EncodeTransfer(xfers))
	if err != nil {
		return nil, err
	}
	return DecodeTransfer(resp, xfers)
}

func (p *Probe) ReadDP(addr byte) (uint32, error) {
	v, err := p.transfer(Transfer{Read: true, Addr: addr})
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func (p *Probe) WriteDP(addr byte, v uint32) error {
	_, err := p.transfer(Transfer{Addr: addr, Value: v})
	return err
}

// selectBank points SELECT at the AP bank holding reg, skipping the write
// when it is already selected.
func (p *Probe) selectBank(reg byte) error {
	sel := uint32(p.ap)<<24 | uint32(reg&0xF0)
	if sel == p.sel {
		return nil
	}
	if err := p.WriteDP(Select, sel); err != nil {
		p.sel = ^uint32(0)
		return err
	}
	p.sel = sel
	return nil
}

func (p *Probe) ReadAP(reg byte) (uint32, error) {
	if err := p.selectBank(reg); err != nil {
		return 0, err
	}
	v, err := p.transfer(Transfer{AP: true, Read: true, Addr: reg & 0x0C})
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func (p *Probe) WriteAP(reg byte, v uint32) error {
	if err := p.selectBank(reg); err != nil {
		return err
	}
	_, err := p.transfer(Transfer{AP: true, Addr: reg & 0x0C, Value: v})
	return err
}

// Read32 reads a word of target memory through the MEM-AP.
func (p *Probe) Read32(addr uint32) (uint32, error) {
	if err := p.selectBank(APDRW); err != nil {
		return 0, err
	}
	v, err := p.transfer(
		Transfer{AP: true, Addr: APTAR, Value: addr},
		Transfer{AP: true, Read: true, Addr: APDRW},
	)
	if err != nil {
		return 0, fmt.Errorf("read 0x%08x: %w", addr, err)
	}
	return v[0], nil
}

// Write32 writes a word of target memory through the MEM-AP.
func (p *Probe) Write32(addr, v uint32) error {
	if err := p.selectBank(APDRW); err != nil {
		return err
	}
	if _, err := p.transfer(
		Transfer{AP: true, Addr: APTAR, Value: addr},
		Transfer{AP: true, Addr: APDRW, Value: v},
	); err != nil {
		return fmt.Errorf("write 0x%08x: %w", addr, err)
	}
	return nil
}

// ClearErrors writes ABORT to clear sticky error flags after a fault.
func (p *Probe) ClearErrors() error {
	return p.WriteDP(DPAbort, abortClearAll)
}

// ResetTarget runs the probe's device-specific reset sequence. It reports
// false when the probe has none.
func (p *Probe) ResetTarget() (bool, error) {
	resp, err := p.t.WriteRead(EncodeResetTarget())
	if err != nil {
		return false, err
	}
	return DecodeResetTarget(resp)
}

// PacketCount returns how many commands the probe can buffer.
func (p *Probe) PacketCount() (int, error) {
	b, err := p.info(InfoPacketCount)
	if err != nil {
		return 0, err
	}
	if len(b) < 1 {
		return 0, errors.New("dap: empty packet count")
	}
	return int(b[0]), nil
}

// PacketSize returns the probe's reported maximum packet size.
func (p *Probe) PacketSize() (int, error) {
	b, err := p.info(InfoPacketSize)
	if err != nil {
		return 0, err
	}
	if len(b) < 2 {
		return 0, errors.New("dap: short packet size")
	}
	return int(binary.LittleEndian.Uint16(b)), nil
}

// Close disconnects and releases the transport.
func (p *Probe) Close() error {
	if resp, err := p.t.WriteRead(EncodeDisconnect()); err == nil {
		if err := DecodeDisconnect(resp); err != nil {
			p.log.Debug("disconnect", "err", err)
		}
	}
	return p.t.Close()
}
