package device

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.bug.st/serial/enumerator"

	"github.com/OpenTraceLab/boardctl/internal/logging"
)

// HostLocator resolves CDC serial ports through the OS serial port list and
// mass-storage mount points through /dev/disk/by-id and the mount table.
type HostLocator struct {
	ByIDDir    string
	MountsFile string

	// ports is filled lazily on first use.
	ports []*enumerator.PortDetails
	listed bool
}

// NewHostLocator returns a locator reading the standard Linux locations.
func NewHostLocator() *HostLocator {
	return &HostLocator{
		ByIDDir:    "/dev/disk/by-id",
		MountsFile: "/proc/mounts",
	}
}

// Locate implements Locator.
func (h *HostLocator) Locate(u USBInfo) Paths {
	return Paths{
		CDC: h.serialPort(u),
		MSD: h.mountPoint(u),
	}
}

func (h *HostLocator) serialPort(u USBInfo) string {
	if !h.listed {
		h.listed = true
		ports, err := enumerator.GetDetailedPortsList()
		if err != nil {
			logging.For(logging.ComponentRegistry).Debug("serial port listing failed", "err", err)
		}
		h.ports = ports
	}
	return MatchPort(h.ports, u)
}

// MatchPort returns the first USB serial port belonging to u.
func MatchPort(ports []*enumerator.PortDetails, u USBInfo) string {
	vid := fmt.Sprintf("%04x", u.VendorID)
	pid := fmt.Sprintf("%04x", u.ProductID)
	for _, p := range ports {
		if p == nil || !p.IsUSB {
			continue
		}
		if !strings.EqualFold(p.VID, vid) || !strings.EqualFold(p.PID, pid) {
			continue
		}
		if u.SerialNumber != "" && p.SerialNumber != u.SerialNumber {
			continue
		}
		return p.Name
	}
	return ""
}

func (h *HostLocator) mountPoint(u USBInfo) string {
	if u.SerialNumber == "" || h.ByIDDir == "" {
		return ""
	}
	entries, err := os.ReadDir(h.ByIDDir)
	if err != nil {
		return ""
	}

	nodes := make(map[string]bool)
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "usb-") || !strings.Contains(name, u.SerialNumber) {
			continue
		}
		target, err := filepath.EvalSymlinks(filepath.Join(h.ByIDDir, name))
		if err != nil {
			continue
		}
		nodes[target] = true
	}
	if len(nodes) == 0 {
		return ""
	}

	f, err := os.Open(h.MountsFile)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		if nodes[fields[0]] {
			return strings.ReplaceAll(fields[1], `\040`, " ")
		}
	}
	return ""
}
