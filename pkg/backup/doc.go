// Package backup copies the provider settings file to timestamped backups
// and restores it from them.
//
// Backups live in a single directory and are named
// settings_backup_<epochSeconds>.json. Only names of that form are accepted
// by Restore and Delete, so callers cannot reach outside the backup
// directory.
//
// Besides the on-demand Manager operations, Scheduler takes backups on a
// cron schedule and Watcher takes one whenever the settings file changes.
package backup
