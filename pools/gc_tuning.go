package pools

import (
	"runtime"
	"runtime/debug"
	"time"
)

// GCConfig holds garbage collector tuning knobs applied once at startup.
type GCConfig struct {
	// GOGC sets the garbage collection target percentage; 0 leaves the
	// runtime default (100) in place.
	GOGC int

	// MemoryLimit sets a soft memory limit in bytes; 0 means no limit.
	MemoryLimit int64
}

// DefaultGCConfig favors throughput over memory footprint, appropriate for
// a server holding many concurrent keep-alive connections.
func DefaultGCConfig() GCConfig {
	return GCConfig{GOGC: 200}
}

// ApplyGCConfig applies cfg to the running process.
func ApplyGCConfig(cfg GCConfig) {
	if cfg.GOGC > 0 {
		debug.SetGCPercent(cfg.GOGC)
	}
	if cfg.MemoryLimit > 0 {
		debug.SetMemoryLimit(cfg.MemoryLimit)
	}
}

// GCStats is a snapshot of runtime GC counters, useful for a host
// application's own metrics endpoint.
type GCStats struct {
	NumGC        uint32
	PauseTotal   time.Duration
	LastPause    time.Duration
	AvgPause     time.Duration
	AllocBytes   uint64
	TotalAlloc   uint64
	Sys          uint64
	NumGoroutine int
}

// GetGCStats reads runtime.MemStats into a GCStats snapshot.
func GetGCStats() GCStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := GCStats{
		NumGC:        ms.NumGC,
		AllocBytes:   ms.Alloc,
		TotalAlloc:   ms.TotalAlloc,
		Sys:          ms.Sys,
		NumGoroutine: runtime.NumGoroutine(),
	}

	if ms.NumGC > 0 {
		stats.LastPause = time.Duration(ms.PauseNs[(ms.NumGC+255)%256])

		numPauses := ms.NumGC
		if numPauses > 256 {
			numPauses = 256
		}
		var totalPause uint64
		for i := uint32(0); i < numPauses; i++ {
			totalPause += ms.PauseNs[i]
		}
		stats.PauseTotal = time.Duration(totalPause)
		stats.AvgPause = time.Duration(totalPause / uint64(numPauses))
	}

	return stats
}
