// Package db opens the per-workspace SQLite state database. All
// pipeline state that is not part of the knowledge base lives in
// <workspace>/.labline/labline.db.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	stateDir = ".labline"
	dbFile   = "labline.db"
)

// Config locates the workspace whose state database to open.
type Config struct {
	Workspace string
}

// EnsureWorkspace creates the hidden state directory under the
// workspace root and returns its path.
func EnsureWorkspace(workspace string) (string, error) {
	dir := filepath.Join(workspace, stateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	return dir, nil
}

// Path returns the database file path for a workspace.
func Path(workspace string) string {
	root := workspace
	if root == "" {
		root = "."
	}
	return filepath.Join(root, stateDir, dbFile)
}

// Open ensures the state directory exists and opens the database with
// foreign key enforcement on.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	path := Path(cfg.Workspace)
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return conn, nil
}
