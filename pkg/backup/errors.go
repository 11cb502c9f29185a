package backup

import "errors"

var (
	// ErrSettingsNotFound is returned by Backup when the settings file does
	// not exist.
	ErrSettingsNotFound = errors.New("settings file not found")

	// ErrBackupNotFound is returned when the named backup does not exist.
	ErrBackupNotFound = errors.New("backup file not found")

	// ErrInvalidFilename is returned for names that do not match
	// settings_backup_<epochSeconds>.json.
	ErrInvalidFilename = errors.New("invalid backup filename")
)
