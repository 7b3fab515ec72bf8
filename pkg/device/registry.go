package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OpenTraceLab/boardctl/internal/logging"
)

// ErrNoMatch is returned by SelectOne when no device matched the filter.
var ErrNoMatch = errors.New("no matching devices found")

// AmbiguousMatchError is returned by SelectOne when more than one device
// matched the filter.
type AmbiguousMatchError struct {
	Count int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("more than one device found (%d)", e.Count)
}

// Enumerator lists the USB devices currently attached to the host.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]USBInfo, error)
}

// Paths holds the host-side paths derived for a device.
type Paths struct {
	CDC string
	MSD string
}

// Locator resolves host paths (serial ports, mount points) for a device.
type Locator interface {
	Locate(u USBInfo) Paths
}

// Filter narrows the enumerated devices. Zero fields match everything.
type Filter struct {
	VendorID  uint16
	ProductID uint16
	Serial    string // substring of the serial number
	IDPrefix  string
	Type      Type

	// SerialEquals and IDEquals require the whole value to match.
	SerialEquals string
	IDEquals     string

	// All includes devices that match no known profile.
	All bool
}

// Empty reports whether the filter has no criteria.
func (f Filter) Empty() bool {
	return f.VendorID == 0 && f.ProductID == 0 && f.Serial == "" && f.IDPrefix == "" && f.Type == "" &&
		f.SerialEquals == "" && f.IDEquals == ""
}

// Merge returns f with zero fields taken from def.
func (f Filter) Merge(def Filter) Filter {
	if f.VendorID == 0 {
		f.VendorID = def.VendorID
	}
	if f.ProductID == 0 {
		f.ProductID = def.ProductID
	}
	if f.Serial == "" {
		f.Serial = def.Serial
	}
	if f.IDPrefix == "" {
		f.IDPrefix = def.IDPrefix
	}
	if f.Type == "" {
		f.Type = def.Type
	}
	if f.SerialEquals == "" {
		f.SerialEquals = def.SerialEquals
	}
	if f.IDEquals == "" {
		f.IDEquals = def.IDEquals
	}
	f.All = f.All || def.All
	return f
}

// Match reports whether d satisfies every criterion of f.
func (f Filter) Match(d *Device) bool {
	if f.VendorID != 0 && d.USB.VendorID != f.VendorID {
		return false
	}
	if f.ProductID != 0 && d.USB.ProductID != f.ProductID {
		return false
	}
	if f.Serial != "" && !strings.Contains(d.USB.SerialNumber, f.Serial) {
		return false
	}
	if f.IDPrefix != "" && !strings.HasPrefix(d.ID, strings.ToLower(f.IDPrefix)) {
		return false
	}
	if f.Type != "" && d.Type != f.Type {
		return false
	}
	if f.SerialEquals != "" && d.USB.SerialNumber != f.SerialEquals {
		return false
	}
	if f.IDEquals != "" && d.ID != strings.ToLower(f.IDEquals) {
		return false
	}
	return true
}

// Override replaces capability tags on devices matched by its selectors.
type Override struct {
	IDPrefix  string
	VendorID  uint16
	ProductID uint16
	Serial    string

	Type     Type
	Loader   LoaderType
	Debugger DebuggerType
	TraceITM *bool
}

func (o Override) matches(id string, u USBInfo) bool {
	if o.IDPrefix != "" && !strings.HasPrefix(id, strings.ToLower(o.IDPrefix)) {
		return false
	}
	if o.VendorID != 0 && o.VendorID != u.VendorID {
		return false
	}
	if o.ProductID != 0 && o.ProductID != u.ProductID {
		return false
	}
	if o.Serial != "" && o.Serial != u.SerialNumber {
		return false
	}
	return true
}

// Registry turns raw USB enumeration into Devices.
type Registry struct {
	enum      Enumerator
	locator   Locator
	overrides []Override
}

// NewRegistry creates a registry. locator may be nil, in which case no host
// paths are derived.
func NewRegistry(enum Enumerator, locator Locator, overrides ...Override) *Registry {
	return &Registry{enum: enum, locator: locator, overrides: overrides}
}

// Search enumerates attached devices and returns those matching f, in
// enumeration order. No match yields an empty slice and a nil error.
func (r *Registry) Search(ctx context.Context, f Filter) ([]*Device, error) {
	log := logging.For(logging.ComponentRegistry)

	infos, err := r.enum.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	devices := make([]*Device, 0, len(infos))
	for _, u := range infos {
		d, ok := r.build(u, f.All)
		if !ok {
			continue
		}
		if !f.Match(d) {
			continue
		}
		if r.locator != nil {
			r.attachPaths(d)
		}
		log.Debug("device matched", "id", d.ShortID(), "type", d.TypeName())
		devices = append(devices, d)
	}
	return devices, nil
}

func (r *Registry) build(u USBInfo, all bool) (*Device, bool) {
	d := &Device{ID: Hash(u), USB: u}

	profile, known := Classify(u.VendorID, u.ProductID)
	if known {
		d.Type = profile.Type
		d.Caps = Capabilities{
			Loader:   profile.Loader,
			Debugger: profile.Debugger,
			TraceITM: profile.TraceITM,
		}
		if profile.OpenOCD && u.SerialNumber != "" {
			d.Caps.OpenOCDSerial = openOCDSerialCommand(u.SerialNumber)
		}
	}

	overridden := false
	for _, o := range r.overrides {
		if !o.matches(d.ID, u) {
			continue
		}
		overridden = true
		if o.Type != "" {
			d.Type = o.Type
		}
		if o.Loader != "" {
			d.Caps.Loader = o.Loader
		}
		if o.Debugger != "" {
			d.Caps.Debugger = o.Debugger
		}
		if o.TraceITM != nil {
			d.Caps.TraceITM = *o.TraceITM
		}
	}

	if !known && !overridden && !all {
		return nil, false
	}
	return d, true
}

func (r *Registry) attachPaths(d *Device) {
	p := r.locator.Locate(d.USB)
	d.Caps.CDCPath = p.CDC
	d.Caps.MSDPath = p.MSD
	if profile, ok := Classify(d.USB.VendorID, d.USB.ProductID); ok && profile.Bossa {
		d.Caps.BootloaderPath = p.CDC
	}
}

// SelectOne narrows a search result to exactly one device.
func SelectOne(devices []*Device) (*Device, error) {
	switch len(devices) {
	case 0:
		return nil, ErrNoMatch
	case 1:
		return devices[0], nil
	default:
		return nil, &AmbiguousMatchError{Count: len(devices)}
	}
}

// StaticEnumerator returns a fixed device list.
type StaticEnumerator []USBInfo

// Enumerate implements Enumerator.
func (s StaticEnumerator) Enumerate(context.Context) ([]USBInfo, error) {
	return append([]USBInfo(nil), s...), nil
}

// StaticLocator resolves paths from a map keyed by serial number.
type StaticLocator map[string]Paths

// Locate implements Locator.
func (s StaticLocator) Locate(u USBInfo) Paths {
	return s[u.SerialNumber]
}
