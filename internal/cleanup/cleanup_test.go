package cleanup

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HyphaGroup/gevulot/internal/conversation"
)

func newTestStore(t *testing.T) *conversation.Store {
	t.Helper()
	store, err := conversation.OpenStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(nil, "/test/data")

	if cfg.DataDir != "/test/data" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "/test/data")
	}
	if cfg.Interval != 1*time.Hour {
		t.Errorf("Interval = %v, want %v", cfg.Interval, 1*time.Hour)
	}
	if cfg.HistoryRetention != 30*24*time.Hour {
		t.Errorf("HistoryRetention = %v, want 30 days", cfg.HistoryRetention)
	}
	if cfg.DiskWarnPercent != 80.0 {
		t.Errorf("DiskWarnPercent = %f, want 80.0", cfg.DiskWarnPercent)
	}
	if cfg.DiskErrorPercent != 90.0 {
		t.Errorf("DiskErrorPercent = %f, want 90.0", cfg.DiskErrorPercent)
	}
}

func TestCleaner_StartStop(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Config{
		DataDir:          tmpDir,
		Interval:         100 * time.Millisecond, // Fast for testing
		HistoryRetention: 1 * time.Hour,
		DiskWarnPercent:  80.0,
		DiskErrorPercent: 90.0,
	}

	cleaner := New(cfg)
	cleaner.Start()

	// Give it time to run at least once
	time.Sleep(150 * time.Millisecond)

	cleaner.Stop()

	// Verify it stopped (no panic, no hanging)
}

func TestCleaner_PruneHistory(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	if err := store.CreateSession(&conversation.Session{ID: "sess_old", State: "active", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := store.UpdateSessionState("sess_old", "destroyed", true); err != nil {
		t.Fatalf("UpdateSessionState() error = %v", err)
	}
	if err := store.CreateSession(&conversation.Session{ID: "sess_live", State: "active", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	// Tiny retention so the just-ended session is already past it
	cleaner := New(Config{
		Store:            store,
		DataDir:          t.TempDir(),
		HistoryRetention: time.Millisecond,
	})
	time.Sleep(10 * time.Millisecond)

	removed, err := cleaner.pruneHistory()
	if err != nil {
		t.Fatalf("pruneHistory() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("pruneHistory() removed %d, want 1", removed)
	}

	if _, err := store.GetSession("sess_old"); !errors.Is(err, conversation.ErrSessionNotFound) {
		t.Errorf("GetSession(sess_old) error = %v, want ErrSessionNotFound", err)
	}
	if _, err := store.GetSession("sess_live"); err != nil {
		t.Errorf("GetSession(sess_live) error = %v, want kept", err)
	}
}

func TestCleaner_PruneHistory_Disabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"nil store", Config{DataDir: "/tmp", HistoryRetention: time.Hour}},
		{"zero retention", Config{Store: nil, DataDir: "/tmp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaner := New(tt.cfg)
			removed, err := cleaner.pruneHistory()
			if err != nil {
				t.Fatalf("pruneHistory() error = %v", err)
			}
			if removed != 0 {
				t.Errorf("pruneHistory() removed %d, want 0", removed)
			}
		})
	}
}

func TestCleaner_CleanupTmpFiles(t *testing.T) {
	tmpDir := t.TempDir()

	// Create some .tmp files with different ages
	oldTmpFile := filepath.Join(tmpDir, "old.tmp")
	newTmpFile := filepath.Join(tmpDir, "new.tmp")
	regularFile := filepath.Join(tmpDir, "history.db")

	_ = os.WriteFile(oldTmpFile, []byte("old"), 0o644)
	_ = os.WriteFile(newTmpFile, []byte("new"), 0o644)
	_ = os.WriteFile(regularFile, []byte("keep"), 0o644)

	// Make old file appear old
	oldTime := time.Now().Add(-2 * time.Hour)
	_ = os.Chtimes(oldTmpFile, oldTime, oldTime)

	cfg := Config{
		DataDir:          tmpDir,
		Interval:         1 * time.Hour, // Won't run during test
		HistoryRetention: 1 * time.Hour,
		DiskWarnPercent:  80.0,
		DiskErrorPercent: 90.0,
	}

	cleaner := New(cfg)
	cleaner.cleanupTmpFiles()

	// Old .tmp should be removed
	if _, err := os.Stat(oldTmpFile); !errors.Is(err, fs.ErrNotExist) {
		t.Error("old .tmp file should have been removed")
	}

	// New .tmp should still exist
	if _, err := os.Stat(newTmpFile); err != nil {
		t.Error("new .tmp file should still exist")
	}

	// Regular file should still exist
	if _, err := os.Stat(regularFile); err != nil {
		t.Error("regular file should still exist")
	}
}

func TestCleaner_CleanupTmpFiles_Nested(t *testing.T) {
	tmpDir := t.TempDir()

	// Create nested directory structure
	nestedDir := filepath.Join(tmpDir, "backups", "staging")
	_ = os.MkdirAll(nestedDir, 0o755)

	nestedTmpFile := filepath.Join(nestedDir, "nested.tmp")
	_ = os.WriteFile(nestedTmpFile, []byte("nested"), 0o644)

	// Make it old
	oldTime := time.Now().Add(-2 * time.Hour)
	_ = os.Chtimes(nestedTmpFile, oldTime, oldTime)

	cfg := Config{
		DataDir:          tmpDir,
		HistoryRetention: 1 * time.Hour,
	}

	cleaner := New(cfg)
	cleaner.cleanupTmpFiles()

	// Nested old .tmp should be removed
	if _, err := os.Stat(nestedTmpFile); !errors.Is(err, fs.ErrNotExist) {
		t.Error("nested old .tmp file should have been removed")
	}
}

func TestCleaner_DiskUsage(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Config{
		DataDir: tmpDir,
	}

	cleaner := New(cfg)
	used, total, percent, err := cleaner.DiskUsage()

	if err != nil {
		t.Fatalf("DiskUsage() error = %v", err)
	}

	if total == 0 {
		t.Error("total bytes should be > 0")
	}
	if used > total {
		t.Error("used bytes should be <= total bytes")
	}
	if percent < 0 || percent > 100 {
		t.Errorf("percent = %f, should be between 0 and 100", percent)
	}
}

func TestCleaner_DiskUsage_InvalidPath(t *testing.T) {
	cfg := Config{
		DataDir: "/nonexistent/path/that/does/not/exist",
	}

	cleaner := New(cfg)
	_, _, _, err := cleaner.DiskUsage()

	if err == nil {
		t.Error("expected error for nonexistent path")
	}
}

func TestCleaner_RunOnce(t *testing.T) {
	store := newTestStore(t)
	tmpDir := t.TempDir()

	cleaner := New(Config{
		Store:            store,
		DataDir:          tmpDir,
		HistoryRetention: 1 * time.Hour,
		DiskWarnPercent:  80.0,
		DiskErrorPercent: 90.0,
	})

	removed, err := cleaner.RunOnce()
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("RunOnce() removed %d on empty store, want 0", removed)
	}
}
