// Package source abstracts the document store the pipeline reads from.
package source

import (
	"context"
	"time"
)

// FileInfo describes one discoverable file in a source folder.
type FileInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Modified time.Time `json:"modified"`
}

// Store lists and reads the raw project documents. Spreadsheets come
// back as cell grids, documents as plain text.
type Store interface {
	ListSpreadsheets(ctx context.Context, folderID string) ([]FileInfo, error)
	ListDocuments(ctx context.Context, folderID string) ([]FileInfo, error)
	ReadGrid(ctx context.Context, id string) ([][]string, error)
	ReadDocument(ctx context.Context, id string) (string, error)
}
