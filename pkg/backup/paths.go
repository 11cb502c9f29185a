package backup

import (
	"os"
	"path/filepath"
	"runtime"
)

const backupDirName = "swiftcast-backups"

// DefaultSettingsPath returns the provider settings file for this OS:
// %APPDATA%\Claude\settings.json on Windows,
// ~/Library/Application Support/Claude/settings.json on macOS and
// ~/.config/Claude/settings.json elsewhere.
func DefaultSettingsPath() string {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
	case "darwin":
		base = filepath.Join(homeDir(), "Library", "Application Support")
	default:
		base = filepath.Join(homeDir(), ".config")
	}
	return filepath.Join(base, "Claude", "settings.json")
}

// DefaultBackupDir returns %APPDATA%\swiftcast-backups on Windows and
// ~/.config/swiftcast-backups elsewhere, macOS included.
func DefaultBackupDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), backupDirName)
	}
	return filepath.Join(homeDir(), ".config", backupDirName)
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
