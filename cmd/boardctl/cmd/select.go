package cmd

import (
	"context"

	"github.com/OpenTraceLab/boardctl/internal/config"
	"github.com/OpenTraceLab/boardctl/pkg/device"
)

// filter combines the selection flags and the --match expression, flags
// winning. The configured defaults apply only when neither selects anything.
func filter() (device.Filter, error) {
	f := device.Filter{
		Serial:   selSerial,
		IDPrefix: selDevice,
		Type:     device.Type(selType),
		All:      selAll,
	}
	var err error
	if selVID != "" {
		if f.VendorID, err = device.ParseID(selVID); err != nil {
			return f, err
		}
	}
	if selPID != "" {
		if f.ProductID, err = device.ParseID(selPID); err != nil {
			return f, err
		}
	}

	q, err := device.ParseQuery(selMatch)
	if err != nil {
		return f, err
	}
	f = f.Merge(q)
	if !f.Empty() {
		return f, nil
	}

	return f.Merge(device.Filter{
		Serial:   cfg.Filter.Serial,
		IDPrefix: cfg.Filter.Device,
		Type:     device.Type(cfg.Filter.Type),
	}), nil
}

func overrides(c *config.Config) []device.Override {
	out := make([]device.Override, 0, len(c.Devices))
	for _, d := range c.Devices {
		out = append(out, device.Override{
			IDPrefix:  d.ID,
			VendorID:  d.VendorID,
			ProductID: d.ProductID,
			Serial:    d.Serial,
			Type:      device.Type(d.Type),
			Loader:    device.LoaderType(d.Loader),
			Debugger:  device.DebuggerType(d.Debugger),
			TraceITM:  d.TraceITM,
		})
	}
	return out
}

func searchDevices(ctx context.Context) ([]*device.Device, error) {
	f, err := filter()
	if err != nil {
		return nil, err
	}
	reg := device.NewRegistry(newEnumerator(), newLocator(), overrides(cfg)...)
	return reg.Search(ctx, f)
}

// selectDevice returns the single device matching the selection.
func selectDevice(ctx context.Context) (*device.Device, error) {
	devices, err := searchDevices(ctx)
	if err != nil {
		return nil, err
	}
	return device.SelectOne(devices)
}
