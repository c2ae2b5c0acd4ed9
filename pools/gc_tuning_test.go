package pools

import (
	"runtime/debug"
	"testing"
)

func TestDefaultGCConfig(t *testing.T) {
	cfg := DefaultGCConfig()
	if cfg.GOGC != 200 {
		t.Fatalf("expected default GOGC 200, got %d", cfg.GOGC)
	}
}

func TestApplyGCConfigIgnoresZeroValues(t *testing.T) {
	// A zero-valued config must not panic and must leave the runtime's GC
	// settings alone rather than disabling GC or setting a zero memory limit.
	gcBefore := debug.SetGCPercent(-1)
	debug.SetGCPercent(gcBefore)
	limitBefore := debug.SetMemoryLimit(-1)

	ApplyGCConfig(GCConfig{})

	if got := debug.SetGCPercent(gcBefore); got != gcBefore {
		t.Errorf("GC percent changed to %d, want %d", got, gcBefore)
	}
	if got := debug.SetMemoryLimit(-1); got != limitBefore {
		t.Errorf("memory limit changed to %d, want %d", got, limitBefore)
	}
}

func TestGetGCStatsReportsGoroutineCount(t *testing.T) {
	stats := GetGCStats()
	if stats.NumGoroutine < 1 {
		t.Fatalf("expected at least 1 goroutine, got %d", stats.NumGoroutine)
	}
}
