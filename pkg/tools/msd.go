package tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/OpenTraceLab/boardctl/pkg/capability"
	"github.com/OpenTraceLab/boardctl/pkg/device"
)

// MassStorage loads by copying the image onto a drag-and-drop volume such as
// DAPLink or the RP2 boot ROM.
type MassStorage struct{}

// Check requires a mounted volume.
func (MassStorage) Check(dev *device.Device) error {
	if _, ok := dev.Caps.MassStorage(); !ok {
		return capability.MissingError("mass storage volume")
	}
	return nil
}

// Load copies image to the volume root and syncs it.
func (MassStorage) Load(ctx context.Context, dev *device.Device, image string) error {
	mount, _ := dev.Caps.MassStorage()
	dst := filepath.Join(mount, filepath.Base(image))
	toolLog("msd").Debug("copy", "src", image, "dst", dst)

	src, err := os.Open(image)
	if err != nil {
		return fmt.Errorf("msd: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("msd: %w", err)
	}
	if _, err := io.Copy(out, &ctxReader{ctx: ctx, r: src}); err != nil {
		out.Close()
		return fmt.Errorf("msd: copy to %s: %w", dst, err)
	}
	// The probe starts flashing once the file lands; make sure it does.
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("msd: sync %s: %w", dst, err)
	}
	return out.Close()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
