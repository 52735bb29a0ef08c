// Package backup provides tar.gz snapshots of the data directory.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HyphaGroup/gevulot/internal/audit"
	"github.com/HyphaGroup/gevulot/internal/logger"
	"github.com/HyphaGroup/gevulot/internal/validation"
)

const snapshotPrefix = "gevulot_"

// Manager handles backup and restore operations.
type Manager struct {
	dataDir   string
	backupDir string
	retention int
	interval  time.Duration
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
}

// Config holds backup configuration.
type Config struct {
	DataDir   string
	BackupDir string
	Retention int           // Number of snapshots to keep
	Interval  time.Duration // How often to run backups (0 = disabled)
}

// Snapshot represents one backup archive.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
}

// New creates a new backup Manager.
func New(cfg Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.BackupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	return &Manager{
		dataDir:   cfg.DataDir,
		backupDir: cfg.BackupDir,
		retention: cfg.Retention,
		interval:  cfg.Interval,
	}, nil
}

// Start begins periodic backup if interval > 0.
func (m *Manager) Start() {
	if m.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Create(); err != nil {
					logger.Printf("⚠️  Backup failed: %v", err)
				}
			}
		}
	}()

	logger.Printf("📦 Backup automation started (interval=%v, retention=%d)", m.interval, m.retention)
}

// Stop halts periodic backup.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
		m.wg.Wait()
		logger.Println("📦 Backup automation stopped")
	}
}

// Create snapshots the data directory into a new archive. The archive
// is staged with a .tmp suffix and renamed only once complete, so a
// crash never leaves a half-written snapshot behind.
func (m *Manager) Create() (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.dataDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("data directory not found: %s", m.dataDir)
	}

	timestamp := time.Now()
	filename := fmt.Sprintf("%s%s.tar.gz", snapshotPrefix, timestamp.Format("20060102_150405"))
	backupPath := filepath.Join(m.backupDir, filename)
	stagingPath := backupPath + ".tmp"

	if err := m.writeArchive(stagingPath); err != nil {
		_ = os.Remove(stagingPath)
		audit.Log(&audit.Event{Operation: audit.OpBackupCreate, Success: false, Error: err.Error()})
		return nil, err
	}

	if err := os.Rename(stagingPath, backupPath); err != nil {
		_ = os.Remove(stagingPath)
		return nil, fmt.Errorf("failed to finalize backup: %w", err)
	}

	stat, err := os.Stat(backupPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}

	snapshot := &Snapshot{
		Timestamp: timestamp,
		Filename:  filename,
		SizeBytes: stat.Size(),
	}

	logger.Printf("📦 Created backup: %s (%d bytes)", filename, stat.Size())
	audit.Log(&audit.Event{
		Operation: audit.OpBackupCreate,
		Success:   true,
		Details:   map[string]interface{}{"filename": filename, "size_bytes": stat.Size()},
	})

	m.enforceRetention()

	return snapshot, nil
}

// writeArchive tars the data directory into path, skipping the backup
// directory itself and staging leftovers.
func (m *Manager) writeArchive(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer func() { _ = file.Close() }()

	gw := gzip.NewWriter(file)
	defer func() { _ = gw.Close() }()

	tw := tar.NewWriter(gw)
	defer func() { _ = tw.Close() }()

	absBackupDir, _ := filepath.Abs(m.backupDir)

	return filepath.Walk(m.dataDir, func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// The backup directory usually lives inside the data directory
		if abs, _ := filepath.Abs(walkPath); abs == absBackupDir {
			return filepath.SkipDir
		}
		if strings.HasSuffix(info.Name(), ".tmp") {
			return nil
		}

		relPath, err := filepath.Rel(m.dataDir, walkPath)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(relPath)

		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		if !info.IsDir() {
			f, err := os.Open(walkPath)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			if _, err := io.Copy(tw, f); err != nil {
				return err
			}
		}

		return nil
	})
}

// Restore extracts a snapshot back into the data directory. Archive
// entries are validated against path traversal before extraction.
func (m *Manager) Restore(filename string) error {
	backupPath := filepath.Join(m.backupDir, filename)
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup not found: %s", filename)
	}

	file, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer func() { _ = file.Close() }()

	gr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to decompress backup: %w", err)
	}
	defer func() { _ = gr.Close() }()

	tr := tar.NewReader(gr)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read backup: %w", err)
		}

		relPath, err := validation.SanitizePath(header.Name)
		if err != nil {
			return fmt.Errorf("unsafe archive entry %q: %w", header.Name, err)
		}
		targetPath := filepath.Join(m.dataDir, relPath)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			f, err := os.Create(targetPath)
			if err != nil {
				return fmt.Errorf("failed to create file: %w", err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				_ = f.Close()
				return fmt.Errorf("failed to write file: %w", err)
			}
			_ = f.Close()
		}
	}

	logger.Printf("📦 Restored from backup: %s", filename)
	return nil
}

// ListSnapshots returns all snapshots, newest first.
func (m *Manager) ListSnapshots() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var snapshots []Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tar.gz") {
			continue
		}

		// Parse filename: gevulot_YYYYMMDD_HHMMSS.tar.gz
		name := strings.TrimSuffix(entry.Name(), ".tar.gz")
		if !strings.HasPrefix(name, snapshotPrefix) {
			continue
		}
		timestamp, err := time.Parse("20060102_150405", strings.TrimPrefix(name, snapshotPrefix))
		if err != nil {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		snapshots = append(snapshots, Snapshot{
			Timestamp: timestamp,
			Filename:  entry.Name(),
			SizeBytes: info.Size(),
		})
	}

	// Sort by timestamp descending
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp.After(snapshots[j].Timestamp)
	})

	return snapshots, nil
}

// enforceRetention removes old snapshots beyond the retention limit.
func (m *Manager) enforceRetention() {
	if m.retention <= 0 {
		return
	}

	snapshots, err := m.ListSnapshots()
	if err != nil {
		return
	}

	if len(snapshots) <= m.retention {
		return
	}

	for i := m.retention; i < len(snapshots); i++ {
		backupPath := filepath.Join(m.backupDir, snapshots[i].Filename)
		if err := os.Remove(backupPath); err == nil {
			logger.Printf("📦 Removed old backup: %s", snapshots[i].Filename)
		}
	}
}

// ExportManifest creates a JSON manifest of all snapshots.
func (m *Manager) ExportManifest() ([]byte, error) {
	snapshots, err := m.ListSnapshots()
	if err != nil {
		return nil, err
	}

	manifest := struct {
		ExportedAt time.Time  `json:"exported_at"`
		BackupDir  string     `json:"backup_dir"`
		Snapshots  []Snapshot `json:"snapshots"`
	}{
		ExportedAt: time.Now(),
		BackupDir:  m.backupDir,
		Snapshots:  snapshots,
	}

	return json.MarshalIndent(manifest, "", "  ")
}
