package dap

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CMSIS-DAP command IDs
const (
	CmdInfo              = 0x00
	CmdHostStatus        = 0x01
	CmdConnect           = 0x02
	CmdDisconnect        = 0x03
	CmdTransferConfigure = 0x04
	CmdTransfer          = 0x05
	CmdResetTarget       = 0x0A
	CmdSWJClock          = 0x11
	CmdSWJSequence       = 0x12
	CmdSWDConfigure      = 0x13
)

// DAP_Info IDs
const (
	InfoVendor      = 0x01
	InfoProduct     = 0x02
	InfoSerial      = 0x03
	InfoFirmware    = 0x04
	InfoPacketCount = 0xFE
	InfoPacketSize  = 0xFF
)

// Connection ports
const (
	PortDefault = 0
	PortSWD     = 1
	PortJTAG    = 2
)

const (
	StatusOK    = 0x00
	StatusError = 0xFF
)

// Transfer request bits
const (
	ReqAP   = 0x01
	ReqRead = 0x02
)

// Transfer acknowledge values
const (
	AckOK    = 0x01
	AckWait  = 0x02
	AckFault = 0x04
	AckNone  = 0x07
)

// ErrStatus is wrapped by every decoder when the probe reports DAP_ERROR.
var ErrStatus = errors.New("dap: command failed")

// TransferError reports a DAP_Transfer that did not complete.
type TransferError struct {
	Done int
	Ack  byte
}

func (e *TransferError) Error() string {
	var what string
	switch e.Ack & 0x07 {
	case AckWait:
		what = "WAIT"
	case AckFault:
		what = "FAULT"
	case AckNone:
		what = "no response"
	default:
		what = fmt.Sprintf("ack 0x%02x", e.Ack)
	}
	return fmt.Sprintf("dap: transfer %d failed: %s", e.Done, what)
}

// expect validates the echoed command byte and minimum length.
func expect(resp []byte, cmd byte, n int) error {
	if len(resp) < n {
		return fmt.Errorf("dap: response to 0x%02x too short (%d bytes)", cmd, len(resp))
	}
	if resp[0] != cmd {
		return fmt.Errorf("dap: response id 0x%02x, want 0x%02x", resp[0], cmd)
	}
	return nil
}

// decodeStatus handles the common [cmd, status] response.
func decodeStatus(resp []byte, cmd byte) error {
	if err := expect(resp, cmd, 2); err != nil {
		return err
	}
	if resp[1] != StatusOK {
		return fmt.Errorf("%w (command 0x%02x)", ErrStatus, cmd)
	}
	return nil
}

func EncodeInfo(id byte) []byte { return []byte{CmdInfo, id} }

// DecodeInfo returns the raw info bytes.
func DecodeInfo(resp []byte) ([]byte, error) {
	if err := expect(resp, CmdInfo, 2); err != nil {
		return nil, err
	}
	n := int(resp[1])
	if len(resp) < 2+n {
		return nil, fmt.Errorf("dap: info truncated: want %d bytes, have %d", n, len(resp)-2)
	}
	return resp[2 : 2+n], nil
}

func EncodeConnect(port byte) []byte { return []byte{CmdConnect, port} }

func DecodeConnect(resp []byte) (byte, error) {
	if err := expect(resp, CmdConnect, 2); err != nil {
		return 0, err
	}
	if resp[1] == PortDefault {
		return 0, fmt.Errorf("%w: connect refused", ErrStatus)
	}
	return resp[1], nil
}

func EncodeDisconnect() []byte { return []byte{CmdDisconnect} }

func DecodeDisconnect(resp []byte) error { return decodeStatus(resp, CmdDisconnect) }

func EncodeSWJClock(hz uint32) []byte {
	return binary.LittleEndian.AppendUint32([]byte{CmdSWJClock}, hz)
}

func DecodeSWJClock(resp []byte) error { return decodeStatus(resp, CmdSWJClock) }

// EncodeSWJSequence drives bits on SWDIO/TMS, LSB first. A count of 256 is
// encoded as zero.
func EncodeSWJSequence(bits int, data []byte) []byte {
	cmd := []byte{CmdSWJSequence, byte(bits)}
	return append(cmd, data[:(bits+7)/8]...)
}

func DecodeSWJSequence(resp []byte) error { return decodeStatus(resp, CmdSWJSequence) }

func EncodeSWDConfigure(cfg byte) []byte { return []byte{CmdSWDConfigure, cfg} }

func DecodeSWDConfigure(resp []byte) error { return decodeStatus(resp, CmdSWDConfigure) }

// EncodeTransferConfigure sets idle cycles and WAIT/match retry counts.
func EncodeTransferConfigure(idle byte, waitRetry, matchRetry uint16) []byte {
	cmd := []byte{CmdTransferConfigure, idle}
	cmd = binary.LittleEndian.AppendUint16(cmd, waitRetry)
	return binary.LittleEndian.AppendUint16(cmd, matchRetry)
}

func DecodeTransferConfigure(resp []byte) error { return decodeStatus(resp, CmdTransferConfigure) }

// Transfer is one DP or AP register access. Addr is the register offset
// (0x0, 0x4, 0x8 or 0xC).
type Transfer struct {
	AP    bool
	Read  bool
	Addr  byte
	Value uint32
}

func (t Transfer) request() byte {
	req := t.Addr & 0x0C
	if t.AP {
		req |= ReqAP
	}
	if t.Read {
		req |= ReqRead
	}
	return req
}

// EncodeTransfer batches register accesses on DAP index 0.
func EncodeTransfer(xfers []Transfer) []byte {
	cmd := []byte{CmdTransfer, 0, byte(len(xfers))}
	for _, x := range xfers {
		cmd = append(cmd, x.request())
		if !x.Read {
			cmd = binary.LittleEndian.AppendUint32(cmd, x.Value)
		}
	}
	return cmd
}

// DecodeTransfer returns the values of the read requests in xfers, in order.
func DecodeTransfer(resp []byte, xfers []Transfer) ([]uint32, error) {
	if err := expect(resp, CmdTransfer, 3); err != nil {
		return nil, err
	}
	done, ack := int(resp[1]), resp[2]
	if done != len(xfers) || ack != AckOK {
		return nil, &TransferError{Done: done, Ack: ack}
	}
	var vals []uint32
	off := 3
	for _, x := range xfers {
		if !x.Read {
			continue
		}
		if off+4 > len(resp) {
			return nil, fmt.Errorf("dap: transfer response truncated at byte %d", off)
		}
		vals = append(vals, binary.LittleEndian.Uint32(resp[off:]))
		off += 4
	}
	return vals, nil
}

func EncodeResetTarget() []byte { return []byte{CmdResetTarget} }

// DecodeResetTarget reports whether the probe ran a device-specific reset
// sequence.
func DecodeResetTarget(resp []byte) (bool, error) {
	if err := decodeStatus(resp, CmdResetTarget); err != nil {
		return false, err
	}
	return len(resp) > 2 && resp[2] == 1, nil
}

// Host status LEDs
const (
	LEDConnect = 0x00
	LEDRunning = 0x01
)

func EncodeHostStatus(led byte, on bool) []byte {
	var v byte
	if on {
		v = 1
	}
	return []byte{CmdHostStatus, led, v}
}

func DecodeHostStatus(resp []byte) error { return decodeStatus(resp, CmdHostStatus) }
