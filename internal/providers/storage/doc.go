// Package storage persists the single JSON blob each widget may keep
// between mounts. Memory is used when no database path is configured;
// SQLite (modernc, pure Go) otherwise.
package storage
