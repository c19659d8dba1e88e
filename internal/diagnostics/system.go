package diagnostics

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// GPUInfo names a graphics card that hardware encoders may use.
type GPUInfo struct {
	Name   string `json:"name"`
	Vendor string `json:"vendor,omitempty"`
}

// DiskInfo is the usage of the filesystem holding Path.
type DiskInfo struct {
	Path        string  `json:"path"`
	TotalGB     float64 `json:"total_gb"`
	FreeGB      float64 `json:"free_gb"`
	UsedPercent float64 `json:"used_percent"`
}

// SystemInfo is a point-in-time view of the host.
type SystemInfo struct {
	Hostname   string     `json:"hostname"`
	OS         string     `json:"os"`
	Arch       string     `json:"arch"`
	GoVersion  string     `json:"go_version"`
	Goroutines int        `json:"goroutines"`
	CPUModel   string     `json:"cpu_model"`
	CPUCores   int        `json:"cpu_cores"`
	CPUThreads int        `json:"cpu_threads"`
	CPUPercent float64    `json:"cpu_percent"`
	MemTotalMB float64    `json:"mem_total_mb"`
	MemUsedMB  float64    `json:"mem_used_mb"`
	MemPercent float64    `json:"mem_percent"`
	LoadAvg1   float64    `json:"load_avg_1"`
	LoadAvg5   float64    `json:"load_avg_5"`
	LoadAvg15  float64    `json:"load_avg_15"`
	Disks      []DiskInfo `json:"disks,omitempty"`
	GPUs       []GPUInfo  `json:"gpus,omitempty"`
	Uptime     string     `json:"uptime"`
}

// Collector gathers SystemInfo. Static hardware facts are cached.
type Collector struct {
	mu      sync.Mutex
	started time.Time

	lastCPUTotal float64
	lastCPUIdle  float64

	hwCollected bool
	cpuModel    string
	cpuCores    int
	cpuThreads  int
	gpus        []GPUInfo
}

// NewCollector creates a collector.
func NewCollector() *Collector {
	return &Collector{started: time.Now()}
}

// Collect samples the host. Disk usage is reported for every path in dirs.
func (c *Collector) Collect(dirs ...string) SystemInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	host, _ := os.Hostname()
	info := SystemInfo{
		Hostname:   host,
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		Uptime:     time.Since(c.started).Round(time.Second).String(),
	}

	c.collectHardware(&info)
	c.collectCPU(&info)

	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemTotalMB = float64(vm.Total) / 1024 / 1024
		info.MemUsedMB = float64(vm.Used) / 1024 / 1024
		info.MemPercent = vm.UsedPercent
	}
	if avg, err := load.Avg(); err == nil {
		info.LoadAvg1, info.LoadAvg5, info.LoadAvg15 = avg.Load1, avg.Load5, avg.Load15
	}

	seen := make(map[string]bool)
	for _, dir := range dirs {
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true
		if d, err := DiskUsage(dir); err == nil {
			info.Disks = append(info.Disks, d)
		}
	}
	return info
}

func (c *Collector) collectHardware(info *SystemInfo) {
	if !c.hwCollected {
		if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
			c.cpuModel = strings.TrimSpace(infos[0].ModelName)
		}
		if n, err := cpu.Counts(false); err == nil {
			c.cpuCores = n
		}
		if n, err := cpu.Counts(true); err == nil {
			c.cpuThreads = n
		}
		c.gpus = queryGPUs()
		c.hwCollected = true
	}
	info.CPUModel = c.cpuModel
	info.CPUCores = c.cpuCores
	info.CPUThreads = c.cpuThreads
	info.GPUs = append([]GPUInfo(nil), c.gpus...)
}

// collectCPU derives utilisation from the delta since the previous sample;
// the first sample reports zero.
func (c *Collector) collectCPU(info *SystemInfo) {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return
	}
	t := times[0]
	total := t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
	idle := t.Idle + t.Iowait
	if c.lastCPUTotal > 0 {
		if dt := total - c.lastCPUTotal; dt > 0 {
			info.CPUPercent = (1 - (idle-c.lastCPUIdle)/dt) * 100
		}
	}
	c.lastCPUTotal = total
	c.lastCPUIdle = idle
}

func queryGPUs() []GPUInfo {
	gi, err := ghw.GPU(ghw.WithDisableWarnings())
	if err != nil || gi == nil {
		return nil
	}
	out := make([]GPUInfo, 0, len(gi.GraphicsCards))
	for _, card := range gi.GraphicsCards {
		g := GPUInfo{Name: fmt.Sprintf("GPU %d", card.Index)}
		if card.DeviceInfo != nil {
			if card.DeviceInfo.Product != nil && card.DeviceInfo.Product.Name != "" {
				g.Name = strings.TrimSpace(card.DeviceInfo.Product.Name)
			}
			if card.DeviceInfo.Vendor != nil {
				g.Vendor = strings.TrimSpace(card.DeviceInfo.Vendor.Name)
			}
		}
		out = append(out, g)
	}
	return out
}

// DiskUsage reports the filesystem usage for path.
func DiskUsage(path string) (DiskInfo, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return DiskInfo{}, err
	}
	const gb = 1024 * 1024 * 1024
	return DiskInfo{
		Path:        path,
		TotalGB:     float64(u.Total) / gb,
		FreeGB:      float64(u.Free) / gb,
		UsedPercent: u.UsedPercent,
	}, nil
}
