package device

import "fmt"

// Profile is the static knowledge attached to a recognised VID/PID pair.
type Profile struct {
	VendorID    uint16
	ProductID   uint16
	Type        Type
	Description string
	Loader      LoaderType
	Debugger    DebuggerType
	TraceITM    bool

	// OpenOCD selects the probe by serial when set.
	OpenOCD bool
	// Bossa marks devices whose CDC port is the bossac bootloader port.
	Bossa bool
}

var knownProfiles = []Profile{
	{VendorID: 0x0483, ProductID: 0x3748, Type: TypeSTLinkV2, Description: "ST-Link/V2",
		Loader: LoaderOpenOCD, Debugger: DebuggerOpenOCD, TraceITM: true, OpenOCD: true},
	{VendorID: 0x0483, ProductID: 0x374b, Type: TypeSTLinkV21, Description: "ST-Link/V2-1",
		Loader: LoaderOpenOCD, Debugger: DebuggerOpenOCD, TraceITM: true, OpenOCD: true},
	{VendorID: 0x0483, ProductID: 0x374e, Type: TypeSTLinkV3, Description: "ST-Link/V3",
		Loader: LoaderOpenOCD, Debugger: DebuggerOpenOCD, TraceITM: true, OpenOCD: true},
	{VendorID: 0x0483, ProductID: 0x374f, Type: TypeSTLinkV3, Description: "ST-Link/V3",
		Loader: LoaderOpenOCD, Debugger: DebuggerOpenOCD, TraceITM: true, OpenOCD: true},
	{VendorID: 0x0483, ProductID: 0xdf11, Type: TypeSTM32DFU, Description: "STM32 DFU Bootloader",
		Loader: LoaderDFU},
	{VendorID: 0x1366, ProductID: 0x0101, Type: TypeJLink, Description: "SEGGER J-Link",
		Loader: LoaderJLink, Debugger: DebuggerJLink},
	{VendorID: 0x1366, ProductID: 0x0105, Type: TypeJLink, Description: "SEGGER J-Link",
		Loader: LoaderJLink, Debugger: DebuggerJLink},
	{VendorID: 0x1366, ProductID: 0x1015, Type: TypeJLink, Description: "SEGGER J-Link OB",
		Loader: LoaderJLink, Debugger: DebuggerJLink},
	{VendorID: 0x1cbe, ProductID: 0x00fd, Type: TypeTIICDI, Description: "TI In-Circuit Debug Interface",
		Loader: LoaderOpenOCD, Debugger: DebuggerOpenOCD, OpenOCD: true},
	{VendorID: 0x0d28, ProductID: 0x0204, Type: TypeDAPLink, Description: "DAPLink CMSIS-DAP",
		Loader: LoaderMSD, Debugger: DebuggerCMSISDAP},
	{VendorID: 0x2e8a, ProductID: 0x000c, Type: TypeRPiDebugProbe, Description: "Raspberry Pi Debug Probe (CMSIS-DAP)",
		Loader: LoaderOpenOCD, Debugger: DebuggerCMSISDAP, OpenOCD: true},
	{VendorID: 0x2e8a, ProductID: 0x0003, Type: TypeRP2Boot, Description: "RP2 Boot (UF2)",
		Loader: LoaderMSD},
	{VendorID: 0x239a, ProductID: 0x000b, Type: TypeFeatherM0, Description: "Adafruit Feather M0 (bootloader)",
		Loader: LoaderBossa, Bossa: true},
	{VendorID: 0x239a, ProductID: 0x800b, Type: TypeFeatherM0, Description: "Adafruit Feather M0",
		Loader: LoaderBossa, Bossa: true},
	{VendorID: 0x2341, ProductID: 0x004d, Type: TypeArduinoZero, Description: "Arduino Zero (bootloader)",
		Loader: LoaderBossa, Bossa: true},
	{VendorID: 0x2341, ProductID: 0x804d, Type: TypeArduinoZero, Description: "Arduino Zero",
		Loader: LoaderBossa, Bossa: true},
	{VendorID: 0x16c0, ProductID: 0x0483, Type: TypeTeensy, Description: "Teensy (serial)",
		Loader: LoaderTeensy},
	{VendorID: 0x16c0, ProductID: 0x0486, Type: TypeTeensy, Description: "Teensy (HID)",
		Loader: LoaderTeensy},
	{VendorID: 0x1d50, ProductID: 0x6018, Type: TypeBlackMagic, Description: "Black Magic Probe",
		Loader: LoaderBlackMagic},
}

// Classify returns the profile for a VID/PID pair.
func Classify(vid, pid uint16) (Profile, bool) {
	for _, p := range knownProfiles {
		if p.VendorID == vid && p.ProductID == pid {
			return p, true
		}
	}
	return Profile{}, false
}

// Profiles returns a copy of the known-board table.
func Profiles() []Profile {
	return append([]Profile(nil), knownProfiles...)
}

// Label returns a user-friendly description for the profile.
func (p Profile) Label() string {
	if p.Description != "" {
		return p.Description
	}
	return fmt.Sprintf("%s (%04X:%04X)", p.Type, p.VendorID, p.ProductID)
}

func openOCDSerialCommand(serial string) string {
	return fmt.Sprintf("adapter serial %s", serial)
}
