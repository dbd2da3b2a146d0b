// =============================================================================
// pkg/memory/memory.go - RAM Monitoring and Memory Utilities
// =============================================================================
//
// This package provides utilities for monitoring process memory usage while
// telemetry artifacts are merged:
//   - RSS (Resident Set Size) monitoring
//   - Memory threshold warnings
//   - Snapshot logging of Go heap statistics
//
// The accumulated series only ever grow, so RSS is expected to rise roughly
// linearly with merged observations. A jump far above that line means more
// than one decoded artifact was resident at once.
//
// =============================================================================

package memory

import (
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/interfaces"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
	"github.com/karthikiyer56/block-proving-profiler/helpers"
)

// =============================================================================
// MemoryMonitor - Track Process Memory Usage
// =============================================================================

// MemoryMonitor tracks and reports process memory usage.
//
// USAGE:
//
//	monitor := NewMemoryMonitor(logger, 32) // 32 GB threshold
//
//	// After each merge:
//	monitor.Check()
//
//	// At the end of the run:
//	monitor.LogSummary(logger)
type MemoryMonitor struct {
	mu sync.Mutex

	// logger for warnings
	logger interfaces.Logger

	// warningThresholdGB is the RSS threshold for warnings
	warningThresholdGB float64

	// warningLogged tracks if we've logged a warning (to avoid spam)
	warningLogged bool

	// peakRSSBytes is the maximum RSS observed
	peakRSSBytes int64

	// lastCheck is when we last checked memory
	lastCheck time.Time

	// checkCount is the number of checks performed
	checkCount int

	// rss reads the current RSS; replaced in tests
	rss func() int64
}

// NewMemoryMonitor creates a new MemoryMonitor.
//
// PARAMETERS:
//   - logger: Logger for warning messages
//   - warningThresholdGB: RSS threshold in GB for warnings
func NewMemoryMonitor(logger interfaces.Logger, warningThresholdGB float64) *MemoryMonitor {
	return &MemoryMonitor{
		logger:             logger,
		warningThresholdGB: warningThresholdGB,
		rss:                GetRSSBytes,
	}
}

// Check reads current memory usage and logs a warning if threshold exceeded.
//
// BEHAVIOR:
//   - Gets current RSS
//   - Updates peak if necessary
//   - Logs warning if > threshold (once per breach)
//   - Returns current RSS in bytes
func (m *MemoryMonitor) Check() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	rss := m.rss()
	m.checkCount++
	m.lastCheck = time.Now()

	if rss > m.peakRSSBytes {
		m.peakRSSBytes = rss
	}

	rssGB := float64(rss) / float64(types.GB)
	if rssGB > m.warningThresholdGB && !m.warningLogged {
		m.logger.Error("MEMORY WARNING: RSS %.2f GB exceeds threshold %.0f GB",
			rssGB, m.warningThresholdGB)
		m.warningLogged = true
	}

	// Re-arm once we drop clearly below the threshold
	if rssGB < m.warningThresholdGB*0.9 {
		m.warningLogged = false
	}

	return rss
}

// CurrentRSSGB returns the current RSS in gigabytes.
func (m *MemoryMonitor) CurrentRSSGB() float64 {
	return float64(m.rss()) / float64(types.GB)
}

// PeakRSSGB returns the peak RSS observed in gigabytes.
func (m *MemoryMonitor) PeakRSSGB() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.peakRSSBytes) / float64(types.GB)
}

// LogSummary logs a summary of memory usage.
func (m *MemoryMonitor) LogSummary(logger interfaces.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()

	currentRSS := m.rss()
	logger.Info("")
	logger.Info("MEMORY SUMMARY:")
	logger.Info("  Current RSS:       %s", helpers.FormatBytes(currentRSS))
	logger.Info("  Peak RSS:          %s", helpers.FormatBytes(m.peakRSSBytes))
	logger.Info("  Warning Threshold: %.0f GB", m.warningThresholdGB)
	logger.Info("  Checks Performed:  %d", m.checkCount)
	logger.Info("")
}

var _ interfaces.MemoryMonitor = (*MemoryMonitor)(nil)

// =============================================================================
// MemorySnapshot - Point-in-Time Memory Snapshot
// =============================================================================

// MemorySnapshot captures memory statistics at a point in time.
type MemorySnapshot struct {
	Timestamp  time.Time
	RSS        int64  // Resident Set Size in bytes
	HeapAlloc  uint64 // Go heap allocation in bytes
	HeapInuse  uint64 // Go heap memory in use in bytes
	NumGC      uint32 // completed GC cycles
	Goroutines int
}

// TakeMemorySnapshot captures current memory statistics.
func TakeMemorySnapshot() MemorySnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return MemorySnapshot{
		Timestamp:  time.Now(),
		RSS:        GetRSSBytes(),
		HeapAlloc:  memStats.HeapAlloc,
		HeapInuse:  memStats.HeapInuse,
		NumGC:      memStats.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
}

// Log logs the snapshot to the logger.
func (s *MemorySnapshot) Log(logger interfaces.Logger, label string) {
	logger.Info("%s Memory Snapshot:", label)
	logger.Info("  RSS:          %s", helpers.FormatBytes(s.RSS))
	logger.Info("  Heap Alloc:   %s", helpers.FormatBytes(int64(s.HeapAlloc)))
	logger.Info("  Heap InUse:   %s", helpers.FormatBytes(int64(s.HeapInuse)))
	logger.Info("  GC Cycles:    %d", s.NumGC)
	logger.Info("  Goroutines:   %d", s.Goroutines)
}

// =============================================================================
// Platform-Specific RSS Reading
// =============================================================================

// GetRSSBytes returns the maximum Resident Set Size of the process in bytes.
//
// NOTE:
//
//	On macOS, Getrusage returns RSS in bytes.
//	On Linux, Getrusage returns RSS in kilobytes (we multiply by 1024).
func GetRSSBytes() int64 {
	var rusage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &rusage); err != nil {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		return int64(memStats.Sys)
	}

	rss := int64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		rss *= 1024
	}
	return rss
}
