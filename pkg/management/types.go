package management

import (
	"time"

	"keyrelay-hq/keyrelay/pkg/accounts"
	"keyrelay-hq/keyrelay/pkg/backup"
	"keyrelay-hq/keyrelay/pkg/usage"
)

// CreateAccountRequest is the body of POST /api/accounts.
type CreateAccountRequest struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

// AccountListResponse is returned by GET /api/accounts. Keys are masked.
type AccountListResponse struct {
	Accounts []accounts.Account `json:"accounts"`
}

// ActiveAccountResponse reports the active account, or null when none is.
type ActiveAccountResponse struct {
	Active *accounts.Account `json:"active"`
}

// StartProxyRequest is the optional body of POST /api/proxy/start. A zero
// port uses the configured one.
type StartProxyRequest struct {
	Port int `json:"port"`
}

// BackupInfo describes one backup file.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp int64     `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
}

func toBackupInfo(i backup.Info) BackupInfo {
	return BackupInfo{
		Filename:  i.Filename,
		Timestamp: i.Timestamp,
		CreatedAt: i.Time().UTC(),
		Size:      i.Size,
	}
}

// BackupListResponse is returned by GET /api/backups, newest first.
type BackupListResponse struct {
	Backups []BackupInfo `json:"backups"`
}

// UsageListResponse is returned by GET /api/usage, newest first.
type UsageListResponse struct {
	Records []*usage.Record `json:"records"`
}

// UsageSummaryResponse is returned by GET /api/usage/summary.
type UsageSummaryResponse struct {
	Accounts []usage.Summary `json:"accounts"`
}
