package backup

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/samber/lo"
)

var filenamePattern = regexp.MustCompile(`^settings_backup_(\d+)\.json$`)

// Info describes one backup file.
type Info struct {
	Filename  string `json:"filename"`
	Timestamp int64  `json:"timestamp"` // epoch seconds
	Size      int64  `json:"size"`      // bytes
}

// Time returns the backup timestamp.
func (i Info) Time() time.Time {
	return time.Unix(i.Timestamp, 0)
}

// Config contains configuration for the backup manager.
type Config struct {
	// SettingsPath is the file to back up. Default: DefaultSettingsPath()
	SettingsPath string

	// BackupDir holds the backup files. Default: DefaultBackupDir()
	BackupDir string

	// Keep, when positive, is the number of newest backups retained after
	// each Backup.
	Keep int
}

// Manager performs backup operations. Its methods are safe for concurrent
// use.
type Manager struct {
	cfg    Config
	mu     sync.Mutex
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates a Manager, filling empty paths with OS defaults.
func NewManager(cfg Config) *Manager {
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = DefaultSettingsPath()
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = DefaultBackupDir()
	}
	return &Manager{
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "backup"),
	}
}

// SettingsPath returns the file being backed up.
func (m *Manager) SettingsPath() string { return m.cfg.SettingsPath }

// BackupDir returns the directory holding backups.
func (m *Manager) BackupDir() string { return m.cfg.BackupDir }

// Backup copies the settings file to a new backup named after the current
// epoch second. A backup taken within the same second replaces the earlier
// one.
func (m *Manager) Backup() (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.cfg.SettingsPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, fmt.Errorf("%w: %s", ErrSettingsNotFound, m.cfg.SettingsPath)
		}
		return Info{}, fmt.Errorf("stat settings: %w", err)
	}

	if err := os.MkdirAll(m.cfg.BackupDir, 0o755); err != nil {
		return Info{}, fmt.Errorf("create backup dir: %w", err)
	}

	ts := m.now().Unix()
	name := "settings_backup_" + strconv.FormatInt(ts, 10) + ".json"
	dst := filepath.Join(m.cfg.BackupDir, name)

	size, err := copyFile(m.cfg.SettingsPath, dst)
	if err != nil {
		return Info{}, fmt.Errorf("write backup %s: %w", name, err)
	}
	m.logger.Info("backup created", "filename", name, "size", size)

	if m.cfg.Keep > 0 {
		m.pruneLocked()
	}
	return Info{Filename: name, Timestamp: ts, Size: size}, nil
}

// Restore copies the named backup over the settings file, creating its
// directory if needed.
func (m *Manager) Restore(filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, err := m.resolve(filename)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.cfg.SettingsPath), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if _, err := copyFile(src, m.cfg.SettingsPath); err != nil {
		return fmt.Errorf("restore %s: %w", filename, err)
	}
	m.logger.Info("settings restored", "filename", filename, "settings_path", m.cfg.SettingsPath)
	return nil
}

// List returns the backups in the backup directory, newest first. A missing
// directory yields an empty list.
func (m *Manager) List() ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked()
}

// Delete removes the named backup.
func (m *Manager) Delete(filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, err := m.resolve(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete %s: %w", filename, err)
	}
	m.logger.Info("backup deleted", "filename", filename)
	return nil
}

func (m *Manager) listLocked() ([]Info, error) {
	entries, err := os.ReadDir(m.cfg.BackupDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	infos := lo.FilterMap(entries, func(e os.DirEntry, _ int) (Info, bool) {
		if e.IsDir() {
			return Info{}, false
		}
		ts, ok := parseFilename(e.Name())
		if !ok {
			return Info{}, false
		}
		fi, err := e.Info()
		if err != nil {
			return Info{}, false
		}
		return Info{Filename: e.Name(), Timestamp: ts, Size: fi.Size()}, true
	})

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Timestamp > infos[j].Timestamp
	})
	return infos, nil
}

// pruneLocked removes all but the newest Keep backups. Failures are logged.
func (m *Manager) pruneLocked() {
	infos, err := m.listLocked()
	if err != nil {
		m.logger.Warn("backup pruning skipped", "error", err)
		return
	}
	if len(infos) <= m.cfg.Keep {
		return
	}
	for _, info := range lo.Drop(infos, m.cfg.Keep) {
		if err := os.Remove(filepath.Join(m.cfg.BackupDir, info.Filename)); err != nil {
			m.logger.Warn("failed to prune backup", "filename", info.Filename, "error", err)
			continue
		}
		m.logger.Debug("pruned backup", "filename", info.Filename)
	}
}

func (m *Manager) resolve(filename string) (string, error) {
	if _, ok := parseFilename(filename); !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	path := filepath.Join(m.cfg.BackupDir, filename)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrBackupNotFound, filename)
		}
		return "", fmt.Errorf("stat backup: %w", err)
	}
	return path, nil
}

func parseFilename(name string) (int64, bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	ts, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// copyFile writes src to a temporary file next to dst and renames it into
// place, so readers never observe a partial file.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, in)
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return 0, err
	}
	return n, nil
}
