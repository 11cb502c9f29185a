// Package storage provides usage.Storage backends.
//
// SQLiteStorage persists records with github.com/mattn/go-sqlite3 in WAL mode
// and is the default. MemoryStorage keeps records in a slice and is intended
// for tests and for running with usage persistence disabled.
//
// Both backends return Query results newest first and Summary rows ordered by
// account ID.
package storage
