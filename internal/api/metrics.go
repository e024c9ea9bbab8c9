package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats содержит снимок ресурсов процесса симулятора
type ProcessStats struct {
	Uptime     string  `json:"uptime"`
	UptimeSec  float64 `json:"uptime_seconds"`
	AllocMB    float64 `json:"alloc_mb"`
	HeapMB     float64 `json:"heap_mb"`
	SysMB      float64 `json:"sys_mb"`
	NumGC      uint32  `json:"num_gc"`
	Goroutines int     `json:"goroutines"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSMB      float64 `json:"rss_mb"`
}

// ServerMetrics собирает метрики процесса
type ServerMetrics struct {
	StartTime time.Time
	proc      *process.Process
}

// NewServerMetrics создает новый экземпляр метрик
func NewServerMetrics() *ServerMetrics {
	sm := &ServerMetrics{StartTime: time.Now()}
	// Без gopsutil-процесса CPU и RSS просто не заполняются
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		sm.proc = proc
	}
	return sm
}

// GetUptime возвращает время работы сервера
func (sm *ServerMetrics) GetUptime() string {
	return formatUptime(time.Since(sm.StartTime))
}

func formatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// Snapshot собирает ProcessStats
func (sm *ServerMetrics) Snapshot() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	st := ProcessStats{
		Uptime:     sm.GetUptime(),
		UptimeSec:  time.Since(sm.StartTime).Seconds(),
		AllocMB:    float64(m.Alloc) / 1024 / 1024,
		HeapMB:     float64(m.HeapAlloc) / 1024 / 1024,
		SysMB:      float64(m.Sys) / 1024 / 1024,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}

	if sm.proc != nil {
		if cpu, err := sm.proc.CPUPercent(); err == nil {
			st.CPUPercent = cpu
		}
		if mem, err := sm.proc.MemoryInfo(); err == nil && mem != nil {
			st.RSSMB = float64(mem.RSS) / 1024 / 1024
		}
	}
	return st
}
