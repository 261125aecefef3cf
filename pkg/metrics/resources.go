package metrics

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	// ProcessRSS tracks resident memory of the process in bytes.
	ProcessRSS = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crosscat_process_rss_bytes",
		Help: "Resident memory of the process",
	})

	// ProcessCPUPercent tracks average CPU use since the monitor started.
	ProcessCPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crosscat_process_cpu_percent",
		Help: "Average CPU use since the resource monitor started",
	})

	// SystemMemoryPercent tracks host memory use.
	SystemMemoryPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crosscat_system_memory_used_percent",
		Help: "Host memory in use",
	})
)

// ResourceUsage is one reading of process and host resources.
type ResourceUsage struct {
	CPUPercent          float64
	MemoryRSS           uint64
	SystemMemoryPercent float64
	GoroutineCount      int
}

// ResourceMonitor samples process resources for long CLI runs.
type ResourceMonitor struct {
	process      *process.Process
	startCPUTime float64
	startTime    time.Time
	mu           sync.Mutex
}

// NewResourceMonitor creates a monitor for the current process.
func NewResourceMonitor() (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	rm := &ResourceMonitor{process: proc, startTime: time.Now()}
	if cpuTime, err := proc.Times(); err == nil {
		rm.startCPUTime = cpuTime.Total()
	}
	return rm, nil
}

// Sample reads current usage and publishes it to the resource gauges.
// Readings the platform cannot provide are left at zero.
func (rm *ResourceMonitor) Sample() ResourceUsage {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	usage := ResourceUsage{GoroutineCount: runtime.NumGoroutine()}
	if cpuTime, err := rm.process.Times(); err == nil {
		if elapsed := time.Since(rm.startTime).Seconds(); elapsed > 0 {
			usage.CPUPercent = (cpuTime.Total() - rm.startCPUTime) / elapsed * 100
		}
	}
	if memInfo, err := rm.process.MemoryInfo(); err == nil {
		usage.MemoryRSS = memInfo.RSS
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryPercent = vmStat.UsedPercent
	}

	ProcessRSS.Set(float64(usage.MemoryRSS))
	ProcessCPUPercent.Set(usage.CPUPercent)
	SystemMemoryPercent.Set(usage.SystemMemoryPercent)
	return usage
}
