package device

import (
	"context"
	"errors"

	"github.com/google/gousb"

	"github.com/OpenTraceLab/boardctl/internal/logging"
)

// USBEnumerator lists attached devices through libusb.
type USBEnumerator struct{}

// Enumerate implements Enumerator. Devices that cannot be opened (typically
// for lack of permissions) are still reported, with empty string fields.
func (USBEnumerator) Enumerate(ctx context.Context) ([]USBInfo, error) {
	usb := gousb.NewContext()
	defer usb.Close()

	var descs []gousb.DeviceDesc
	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		descs = append(descs, *desc)
		return true
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil && !errors.Is(err, gousb.ErrorAccess) && !errors.Is(err, gousb.ErrorNotSupported) {
		logUSBError(err)
	}

	type busAddr struct{ bus, addr int }
	opened := make(map[busAddr]*gousb.Device, len(devs))
	for _, d := range devs {
		opened[busAddr{d.Desc.Bus, d.Desc.Address}] = d
	}

	infos := make([]USBInfo, 0, len(descs))
	for _, desc := range descs {
		u := USBInfo{
			VendorID:  uint16(desc.Vendor),
			ProductID: uint16(desc.Product),
			Bus:       desc.Bus,
			Address:   desc.Address,
		}
		if d, ok := opened[busAddr{desc.Bus, desc.Address}]; ok {
			u.Vendor, _ = d.Manufacturer()
			u.Product, _ = d.Product()
			u.SerialNumber, _ = d.SerialNumber()
		}
		infos = append(infos, u)
	}
	return infos, nil
}

func logUSBError(err error) {
	logging.For(logging.ComponentRegistry).Warn("usb enumeration incomplete", "err", err)
}
