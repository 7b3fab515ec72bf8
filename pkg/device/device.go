package device

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Type classifies a recognised board or probe.
type Type string

const (
	TypeSTLinkV2      Type = "stlink-v2"
	TypeSTLinkV21     Type = "stlink-v2-1"
	TypeSTLinkV3      Type = "stlink-v3"
	TypeJLink         Type = "jlink"
	TypeTIICDI        Type = "ti-icdi"
	TypeDAPLink       Type = "daplink"
	TypeRPiDebugProbe Type = "rpi-debug-probe"
	TypeRP2Boot       Type = "rp2-boot"
	TypeFeatherM0     Type = "feather-m0"
	TypeArduinoZero   Type = "arduino-zero"
	TypeTeensy        Type = "teensy"
	TypeBlackMagic    Type = "blackmagic"
	TypeSTM32DFU      Type = "stm32-dfu"
)

// LoaderType tags the flashing handler used for a device.
type LoaderType string

const (
	LoaderOpenOCD    LoaderType = "openocd"
	LoaderJLink      LoaderType = "jlink"
	LoaderBossa      LoaderType = "bossa"
	LoaderTeensy     LoaderType = "teensy"
	LoaderDFU        LoaderType = "dfu"
	LoaderBlackMagic LoaderType = "blackmagic"
	LoaderMSD        LoaderType = "msd"
)

// DebuggerType tags the debug-control handler used for a device.
type DebuggerType string

const (
	DebuggerOpenOCD  DebuggerType = "openocd"
	DebuggerJLink    DebuggerType = "jlink"
	DebuggerCMSISDAP DebuggerType = "cmsis-dap"
)

// USBInfo holds the identity fields read from the USB descriptors.
type USBInfo struct {
	VendorID     uint16
	ProductID    uint16
	Vendor       string
	Product      string
	SerialNumber string
	Bus          int
	Address      int
}

// Capabilities is the single place that records what a device can do. A zero
// value field means the capability is absent.
type Capabilities struct {
	Loader         LoaderType
	Debugger       DebuggerType
	BootloaderPath string
	CDCPath        string
	MSDPath        string
	OpenOCDSerial  string
	TraceITM       bool
}

// LoaderTag reports the loader tag, if any.
func (c Capabilities) LoaderTag() (LoaderType, bool) { return c.Loader, c.Loader != "" }

// DebuggerTag reports the debugger tag, if any.
func (c Capabilities) DebuggerTag() (DebuggerType, bool) { return c.Debugger, c.Debugger != "" }

// Bootloader reports the bootloader serial path used by bossac.
func (c Capabilities) Bootloader() (string, bool) { return c.BootloaderPath, c.BootloaderPath != "" }

// Console reports the CDC serial console path.
func (c Capabilities) Console() (string, bool) { return c.CDCPath, c.CDCPath != "" }

// MassStorage reports the mount point of the device's mass-storage volume.
func (c Capabilities) MassStorage() (string, bool) { return c.MSDPath, c.MSDPath != "" }

// TraceSerial reports the OpenOCD command selecting this probe by serial.
func (c Capabilities) TraceSerial() (string, bool) { return c.OpenOCDSerial, c.OpenOCDSerial != "" }

// CanTraceITM reports whether ITM trace is supported.
func (c Capabilities) CanTraceITM() bool { return c.TraceITM }

// Device describes one attached board. Devices are built by the Registry and
// never modified afterwards.
type Device struct {
	ID   string
	USB  USBInfo
	Type Type
	Caps Capabilities
}

// Hash returns the stable content hash of the identity fields. Strings are
// length-prefixed so field boundaries cannot shift between identities.
func Hash(u USBInfo) string {
	buf := make([]byte, 0, 64)
	buf = binary.BigEndian.AppendUint16(buf, u.VendorID)
	buf = binary.BigEndian.AppendUint16(buf, u.ProductID)
	for _, s := range []string{u.Vendor, u.Product, u.SerialNumber} {
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// ShortID returns the first eight hex characters of the device hash.
func (d *Device) ShortID() string {
	if len(d.ID) < 8 {
		return d.ID
	}
	return d.ID[:8]
}

// TypeName returns the device type or "Unknown".
func (d *Device) TypeName() string {
	if d.Type == "" {
		return "Unknown"
	}
	return string(d.Type)
}

// String returns a short label used in log lines.
func (d *Device) String() string {
	return fmt.Sprintf("%s (%04x:%04x %s)", d.ShortID(), d.USB.VendorID, d.USB.ProductID, d.USB.Product)
}
