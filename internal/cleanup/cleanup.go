// Package cleanup prunes aged conversation history and watches disk
// usage for the data directory.
package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/HyphaGroup/gevulot/internal/conversation"
	"github.com/HyphaGroup/gevulot/internal/logger"
)

// Cleaner performs periodic resource cleanup.
type Cleaner struct {
	store     *conversation.Store
	dataDir   string
	interval  time.Duration
	retention time.Duration
	diskWarn  float64
	diskError float64
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Config holds cleanup configuration.
type Config struct {
	Store            *conversation.Store
	DataDir          string
	Interval         time.Duration // How often to run cleanup
	HistoryRetention time.Duration // How long to keep ended sessions
	DiskWarnPercent  float64       // Warn at this disk usage percentage
	DiskErrorPercent float64       // Error at this disk usage percentage
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(store *conversation.Store, dataDir string) Config {
	return Config{
		Store:            store,
		DataDir:          dataDir,
		Interval:         1 * time.Hour,
		HistoryRetention: 30 * 24 * time.Hour,
		DiskWarnPercent:  80.0,
		DiskErrorPercent: 90.0,
	}
}

// New creates a new Cleaner with the given configuration.
func New(cfg Config) *Cleaner {
	return &Cleaner{
		store:     cfg.Store,
		dataDir:   cfg.DataDir,
		interval:  cfg.Interval,
		retention: cfg.HistoryRetention,
		diskWarn:  cfg.DiskWarnPercent,
		diskError: cfg.DiskErrorPercent,
	}
}

// Start begins the periodic cleanup loop.
func (c *Cleaner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		// Run immediately on start
		c.runCleanup()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.runCleanup()
			}
		}
	}()

	logger.Printf("🧹 Cleanup started (interval=%v, retention=%v)", c.interval, c.retention)
}

// Stop halts the cleanup loop.
func (c *Cleaner) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.wg.Wait()
		logger.Println("🧹 Cleanup stopped")
	}
}

// RunOnce performs a single cleanup pass and returns the number of
// pruned sessions. Used by the cleanup CLI command.
func (c *Cleaner) RunOnce() (int, error) {
	c.cleanupTmpFiles()
	c.checkDiskUsage()
	return c.pruneHistory()
}

// runCleanup performs all cleanup tasks.
func (c *Cleaner) runCleanup() {
	c.cleanupTmpFiles()
	if _, err := c.pruneHistory(); err != nil {
		logger.Printf("⚠️  History prune error: %v", err)
	}
	c.checkDiskUsage()
}

// pruneHistory removes ended sessions past the retention window.
func (c *Cleaner) pruneHistory() (int, error) {
	if c.store == nil || c.retention <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-c.retention)
	removed, err := c.store.PruneBefore(cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logger.Printf("🧹 Pruned %d ended sessions older than %v", removed, c.retention)
	}
	return removed, nil
}

// cleanupTmpFiles removes orphaned .tmp files older than retention.
// Backup staging and interrupted writes leave these behind.
func (c *Cleaner) cleanupTmpFiles() {
	cutoff := time.Now().Add(-c.retention)
	var removed int

	err := filepath.Walk(c.dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if !info.IsDir() && strings.HasSuffix(info.Name(), ".tmp") {
			if info.ModTime().Before(cutoff) {
				if err := os.Remove(path); err == nil {
					removed++
				}
			}
		}
		return nil
	})

	if err != nil {
		logger.Printf("⚠️  Cleanup walk error: %v", err)
	}
	if removed > 0 {
		logger.Printf("🧹 Removed %d orphaned .tmp files", removed)
	}
}

// checkDiskUsage monitors disk usage and logs warnings.
func (c *Cleaner) checkDiskUsage() {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(c.dataDir, &stat); err != nil {
		return
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	used := total - free
	usedPercent := float64(used) / float64(total) * 100

	if usedPercent >= c.diskError {
		logger.Printf("🔴 CRITICAL: Disk usage at %.1f%% (data dir)", usedPercent)
	} else if usedPercent >= c.diskWarn {
		logger.Printf("🟠 WARNING: Disk usage at %.1f%% (data dir)", usedPercent)
	}
}

// DiskUsage returns current disk usage stats.
func (c *Cleaner) DiskUsage() (usedBytes, totalBytes uint64, usedPercent float64, err error) {
	var stat syscall.Statfs_t
	if err = syscall.Statfs(c.dataDir, &stat); err != nil {
		return
	}

	totalBytes = stat.Blocks * uint64(stat.Bsize)
	freeBytes := stat.Bfree * uint64(stat.Bsize)
	usedBytes = totalBytes - freeBytes
	usedPercent = float64(usedBytes) / float64(totalBytes) * 100
	return
}
