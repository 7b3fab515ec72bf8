package dap

import "fmt"

// designers maps the 11-bit JEP106 designer field (continuation count in
// bits [10:7], identity code in bits [6:0]) to a name.
var designers = map[uint16]string{
	0x00E: "Freescale",
	0x015: "NXP",
	0x017: "Texas Instruments",
	0x01F: "Atmel",
	0x020: "STMicroelectronics",
	0x144: "Nordic Semiconductor",
	0x23B: "ARM",
	0x493: "Raspberry Pi",
}

// DPID is a decoded SW-DP identification register.
type DPID struct {
	Raw      uint32
	Revision uint8
	PartNo   uint8
	MinDP    bool
	Version  uint8
	Designer uint16
}

// DecodeDPIDR splits a DPIDR value into its fields.
func DecodeDPIDR(v uint32) DPID {
	return DPID{
		Raw:      v,
		Revision: uint8(v >> 28),
		PartNo:   uint8(v >> 20),
		MinDP:    v&(1<<16) != 0,
		Version:  uint8(v>>12) & 0xF,
		Designer: uint16(v>>1) & 0x7FF,
	}
}

// DesignerName returns the JEP106 name of the DP designer.
func (id DPID) DesignerName() string {
	if name, ok := designers[id.Designer]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (bank %d, 0x%02X)", id.Designer>>7+1, id.Designer&0x7F)
}

func (id DPID) String() string {
	return fmt.Sprintf("0x%08X (%s, DPv%d, part 0x%02X, rev %d)",
		id.Raw, id.DesignerName(), id.Version, id.PartNo, id.Revision)
}
