package dap

import (
	"encoding/binary"
	"errors"
)

// SimProbe is an in-memory CMSIS-DAP probe attached to a Cortex-M core. It
// answers the commands Probe issues and models the halt, vector catch and
// reset behaviour of DHCSR, DEMCR and AIRCR.
type SimProbe struct {
	IDR uint32
	// ResetSequence makes DAP_ResetTarget report a device-specific sequence.
	ResetSequence bool
	// FaultAP answers every AP access with a FAULT acknowledge.
	FaultAP bool

	Mem    map[uint32]uint32
	Halted bool

	// Counters for tests.
	SysResets    int
	TargetResets int
	Commands     [][]byte
	Closed       bool

	debugEn  bool
	resetSt  bool
	ctrlStat uint32
	sel      uint32
	csw      uint32
	tar      uint32
}

// NewSimProbe returns a running core behind an ARM SW-DP v2.
func NewSimProbe() *SimProbe {
	return &SimProbe{IDR: 0x2BA01477, Mem: make(map[uint32]uint32)}
}

var errSimClosed = errors.New("sim: probe closed")

func (s *SimProbe) PacketSize() int { return DefaultPacketSize }

func (s *SimProbe) Close() error {
	s.Closed = true
	return nil
}

func (s *SimProbe) WriteRead(cmd []byte) ([]byte, error) {
	if s.Closed {
		return nil, errSimClosed
	}
	s.Commands = append(s.Commands, append([]byte(nil), cmd...))
	if len(cmd) == 0 {
		return []byte{StatusError}, nil
	}

	switch cmd[0] {
	case CmdInfo:
		return s.info(cmd)
	case CmdConnect:
		port := byte(PortSWD)
		if len(cmd) > 1 && cmd[1] != PortDefault {
			port = cmd[1]
		}
		return []byte{CmdConnect, port}, nil
	case CmdHostStatus, CmdDisconnect, CmdTransferConfigure, CmdSWJClock, CmdSWJSequence, CmdSWDConfigure:
		return []byte{cmd[0], StatusOK}, nil
	case CmdResetTarget:
		s.TargetResets++
		var exec byte
		if s.ResetSequence {
			exec = 1
			s.coreReset()
		}
		return []byte{CmdResetTarget, StatusOK, exec}, nil
	case CmdTransfer:
		return s.transfer(cmd), nil
	}
	return []byte{StatusError}, nil
}

func (s *SimProbe) info(cmd []byte) ([]byte, error) {
	if len(cmd) < 2 {
		return []byte{CmdInfo, 0}, nil
	}
	var v []byte
	switch cmd[1] {
	case InfoVendor:
		v = []byte("OpenTraceLab\x00")
	case InfoProduct:
		v = []byte("SimProbe CMSIS-DAP\x00")
	case InfoFirmware:
		v = []byte("2.1.0\x00")
	case InfoPacketCount:
		v = []byte{4}
	case InfoPacketSize:
		v = binary.LittleEndian.AppendUint16(nil, DefaultPacketSize)
	}
	return append([]byte{CmdInfo, byte(len(v))}, v...), nil
}

func (s *SimProbe) transfer(cmd []byte) []byte {
	if len(cmd) < 3 {
		return []byte{CmdTransfer, 0, AckNone}
	}
	count := int(cmd[2])
	resp := []byte{CmdTransfer, 0, AckOK}
	off := 3
	for i := 0; i < count; i++ {
		if off >= len(cmd) {
			resp[1], resp[2] = byte(i), AckNone
			return resp
		}
		req := cmd[off]
		off++
		ap, read, addr := req&ReqAP != 0, req&ReqRead != 0, req&0x0C

		if ap && s.FaultAP {
			resp[1], resp[2] = byte(i), AckFault
			return resp
		}
		if read {
			var v uint32
			if ap {
				v = s.readAP(addr)
			} else {
				v = s.readDP(addr)
			}
			resp = binary.LittleEndian.AppendUint32(resp, v)
			continue
		}
		if off+4 > len(cmd) {
			resp[1], resp[2] = byte(i), AckNone
			return resp
		}
		v := binary.LittleEndian.Uint32(cmd[off:])
		off += 4
		if ap {
			s.writeAP(addr, v)
		} else {
			s.writeDP(addr, v)
		}
	}
	resp[1] = byte(count)
	return resp
}

func (s *SimProbe) readDP(addr byte) uint32 {
	switch addr {
	case DPIDR:
		return s.IDR
	case CtrlStat:
		// Power-up requests are acknowledged immediately.
		return s.ctrlStat | (s.ctrlStat&(cdbgPwrUpReq|csysPwrUpReq))<<1
	case Select:
		return s.sel
	}
	return 0
}

func (s *SimProbe) writeDP(addr byte, v uint32) {
	switch addr {
	case CtrlStat:
		s.ctrlStat = v
	case Select:
		s.sel = v
	}
}

func (s *SimProbe) readAP(addr byte) uint32 {
	reg := byte(s.sel&0xF0) | addr
	switch reg {
	case APCSW:
		return s.csw
	case APTAR:
		return s.tar
	case APDRW:
		return s.load(s.tar)
	case APIDR:
		return 0x24770011
	}
	return 0
}

func (s *SimProbe) writeAP(addr byte, v uint32) {
	reg := byte(s.sel&0xF0) | addr
	switch reg {
	case APCSW:
		s.csw = v
	case APTAR:
		s.tar = v
	case APDRW:
		s.store(s.tar, v)
	}
}

func (s *SimProbe) load(addr uint32) uint32 {
	if addr != RegDHCSR {
		return s.Mem[addr]
	}
	var v uint32
	if s.debugEn {
		v |= CDebugEn
	}
	if s.Halted {
		v |= CHalt | SHalt
	}
	if s.resetSt {
		v |= SResetSt
		s.resetSt = false
	}
	return v
}

func (s *SimProbe) store(addr, v uint32) {
	switch addr {
	case RegDHCSR:
		if v&0xFFFF0000 != DBGKey {
			return
		}
		s.debugEn = v&CDebugEn != 0
		s.Halted = s.debugEn && v&CHalt != 0
	case RegAIRCR:
		if v&0xFFFF0000 == VectKey && v&SysReset != 0 {
			s.SysResets++
			s.coreReset()
		}
	default:
		s.Mem[addr] = v
	}
}

func (s *SimProbe) coreReset() {
	s.resetSt = true
	s.Halted = s.debugEn && s.Mem[RegDEMCR]&VCCoreRst != 0
}

// VectorCatch reports whether DEMCR.VC_CORERESET is set.
func (s *SimProbe) VectorCatch() bool {
	return s.Mem[RegDEMCR]&VCCoreRst != 0
}
