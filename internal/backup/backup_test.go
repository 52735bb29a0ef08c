package backup

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBackupCreateAndRestore(t *testing.T) {
	dataDir := t.TempDir()
	backupDir := filepath.Join(dataDir, "backups")

	_ = os.WriteFile(filepath.Join(dataDir, "history.db"), []byte("history"), 0o644)
	_ = os.MkdirAll(filepath.Join(dataDir, "logs"), 0o755)
	_ = os.WriteFile(filepath.Join(dataDir, "logs", "gevulot.log"), []byte("log line"), 0o644)

	mgr, err := New(Config{DataDir: dataDir, BackupDir: backupDir, Retention: 5})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	snapshot, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(snapshot.Filename, "gevulot_") || !strings.HasSuffix(snapshot.Filename, ".tar.gz") {
		t.Errorf("Filename = %q, want gevulot_*.tar.gz", snapshot.Filename)
	}
	if snapshot.SizeBytes == 0 {
		t.Error("SizeBytes = 0, want non-empty archive")
	}
	if _, err := os.Stat(filepath.Join(backupDir, snapshot.Filename)); err != nil {
		t.Fatalf("archive missing: %v", err)
	}

	// No staging leftovers
	entries, _ := os.ReadDir(backupDir)
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("staging file left behind: %s", entry.Name())
		}
	}

	// Wipe the data files and restore them from the snapshot
	_ = os.Remove(filepath.Join(dataDir, "history.db"))
	_ = os.RemoveAll(filepath.Join(dataDir, "logs"))

	if err := mgr.Restore(snapshot.Filename); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dataDir, "history.db"))
	if err != nil {
		t.Fatalf("restored file missing: %v", err)
	}
	if string(got) != "history" {
		t.Errorf("restored content = %q, want %q", got, "history")
	}
	if _, err := os.Stat(filepath.Join(dataDir, "logs", "gevulot.log")); err != nil {
		t.Errorf("nested restored file missing: %v", err)
	}
}

func TestBackupSkipsBackupDirAndStaging(t *testing.T) {
	dataDir := t.TempDir()
	backupDir := filepath.Join(dataDir, "backups")

	_ = os.WriteFile(filepath.Join(dataDir, "history.db"), []byte("db"), 0o644)
	_ = os.WriteFile(filepath.Join(dataDir, "leftover.tmp"), []byte("junk"), 0o644)

	mgr, err := New(Config{DataDir: dataDir, BackupDir: backupDir, Retention: 5})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// A pre-existing snapshot must not be re-archived
	_ = os.WriteFile(filepath.Join(backupDir, "gevulot_20260101_000000.tar.gz"), []byte("old"), 0o644)

	snapshot, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	file, err := os.Open(filepath.Join(backupDir, snapshot.Filename))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer file.Close()
	gr, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	tr := tar.NewReader(gr)

	var names []string
	for {
		header, err := tr.Next()
		if err != nil {
			break
		}
		names = append(names, header.Name)
	}

	for _, name := range names {
		if strings.HasPrefix(name, "backups") {
			t.Errorf("archive contains backup dir entry: %s", name)
		}
		if strings.HasSuffix(name, ".tmp") {
			t.Errorf("archive contains staging file: %s", name)
		}
	}
	found := false
	for _, name := range names {
		if name == "history.db" {
			found = true
		}
	}
	if !found {
		t.Errorf("archive entries = %v, want history.db included", names)
	}
}

func TestListSnapshotsAndRetention(t *testing.T) {
	dataDir := t.TempDir()
	backupDir := filepath.Join(dataDir, "backups")

	mgr, err := New(Config{DataDir: dataDir, BackupDir: backupDir, Retention: 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, name := range []string{
		"gevulot_20260101_000000.tar.gz",
		"gevulot_20260102_000000.tar.gz",
		"gevulot_20260103_000000.tar.gz",
		"not-a-snapshot.tar.gz",
		"notes.txt",
	} {
		_ = os.WriteFile(filepath.Join(backupDir, name), []byte("x"), 0o644)
	}

	snapshots, err := mgr.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("ListSnapshots() returned %d, want 3", len(snapshots))
	}
	if snapshots[0].Filename != "gevulot_20260103_000000.tar.gz" {
		t.Errorf("first snapshot = %s, want newest", snapshots[0].Filename)
	}
	want := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	if !snapshots[0].Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", snapshots[0].Timestamp, want)
	}

	mgr.enforceRetention()

	snapshots, err = mgr.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots() after retention error = %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("retention kept %d snapshots, want 2", len(snapshots))
	}
	for _, s := range snapshots {
		if s.Filename == "gevulot_20260101_000000.tar.gz" {
			t.Error("oldest snapshot should have been removed")
		}
	}
}

func TestRestoreRejectsTraversal(t *testing.T) {
	dataDir := t.TempDir()
	backupDir := filepath.Join(dataDir, "backups")

	mgr, err := New(Config{DataDir: dataDir, BackupDir: backupDir, Retention: 5})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Craft an archive with an escaping entry
	evilPath := filepath.Join(backupDir, "gevulot_20260101_000000.tar.gz")
	file, err := os.Create(evilPath)
	if err != nil {
		t.Fatalf("create evil archive: %v", err)
	}
	gw := gzip.NewWriter(file)
	tw := tar.NewWriter(gw)
	content := []byte("pwned")
	_ = tw.WriteHeader(&tar.Header{
		Name:     "../escape.txt",
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     int64(len(content)),
	})
	_, _ = tw.Write(content)
	_ = tw.Close()
	_ = gw.Close()
	_ = file.Close()

	if err := mgr.Restore("gevulot_20260101_000000.tar.gz"); err == nil {
		t.Fatal("Restore() accepted a traversal entry")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dataDir), "escape.txt")); err == nil {
		t.Error("traversal entry was written outside the data dir")
	}
}

func TestRestoreMissingSnapshot(t *testing.T) {
	dataDir := t.TempDir()
	mgr, err := New(Config{DataDir: dataDir, BackupDir: filepath.Join(dataDir, "backups"), Retention: 5})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := mgr.Restore("gevulot_19990101_000000.tar.gz"); err == nil {
		t.Error("Restore() of missing snapshot should error")
	}
}
