// Package monitor reports on the relay process and the host it runs on.
package monitor

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

type ProcessStats struct {
	PID        int     `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
	Goroutines int     `json:"goroutines"`
	Uptime     string  `json:"uptime"`
}

// Process samples the stats of one process. The zero value is not usable.
type Process struct {
	proc    *process.Process
	started time.Time
}

// Self returns a sampler for the current process.
func Self() (*Process, error) {
	pid := os.Getpid()
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("inspect process %d: %w", pid, err)
	}
	started := time.Now()
	if ms, err := p.CreateTime(); err == nil {
		started = time.UnixMilli(ms)
	}
	return &Process{proc: p, started: started}, nil
}

// Stats takes a sample. Fields the platform cannot report stay zero.
func (p *Process) Stats() ProcessStats {
	stats := ProcessStats{
		PID:        int(p.proc.Pid),
		Goroutines: runtime.NumGoroutine(),
		Uptime:     time.Since(p.started).Round(time.Second).String(),
	}
	if mem, err := p.proc.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	if cpu, err := p.proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	return stats
}
