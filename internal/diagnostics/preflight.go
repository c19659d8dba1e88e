package diagnostics

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/visualix/visualix/internal/core"
)

// Preflight checks that the host can take on another media command.
type Preflight struct {
	dirs          []string
	minFreeDiskMB uint64
	minFreeMemMB  uint64

	diskFree func(path string) (uint64, error)
	memFree  func() (uint64, error)
}

// NewPreflight checks free disk space on dirs and, when minFreeMemMB is
// non-zero, available memory.
func NewPreflight(dirs []string, minFreeDiskMB, minFreeMemMB uint64) *Preflight {
	return &Preflight{
		dirs:          dirs,
		minFreeDiskMB: minFreeDiskMB,
		minFreeMemMB:  minFreeMemMB,
		diskFree: func(path string) (uint64, error) {
			u, err := disk.Usage(path)
			if err != nil {
				return 0, err
			}
			return u.Free, nil
		},
		memFree: func() (uint64, error) {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return 0, err
			}
			return vm.Available, nil
		},
	}
}

// Check returns a storage error when a threshold is not met. Probe failures
// are ignored so an unsupported platform never blocks work.
func (p *Preflight) Check() error {
	const mb = 1024 * 1024
	if p.minFreeDiskMB > 0 {
		for _, dir := range p.dirs {
			free, err := p.diskFree(dir)
			if err != nil {
				continue
			}
			if free/mb < p.minFreeDiskMB {
				return core.ErrStorage(fmt.Sprintf("insufficient disk space in %s: %d MB free, %d MB required",
					dir, free/mb, p.minFreeDiskMB))
			}
		}
	}
	if p.minFreeMemMB > 0 {
		if free, err := p.memFree(); err == nil && free/mb < p.minFreeMemMB {
			return core.ErrStorage(fmt.Sprintf("insufficient memory: %d MB available, %d MB required",
				free/mb, p.minFreeMemMB))
		}
	}
	return nil
}
