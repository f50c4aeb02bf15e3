package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSStore reads from a local mirror directory. Folder IDs are
// subdirectories under Root; spreadsheets are .csv files and documents
// are .txt or .md files. Useful for offline runs and tests.
type FSStore struct {
	Root string
}

func NewFSStore(root string) *FSStore {
	return &FSStore{Root: root}
}

func (s *FSStore) folder(folderID string) string {
	if folderID == "" {
		return s.Root
	}
	return filepath.Join(s.Root, folderID)
}

func (s *FSStore) list(folderID string, exts ...string) ([]FileInfo, error) {
	dir := s.folder(folderID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list folder %s: %w", folderID, err)
	}
	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		match := false
		for _, want := range exts {
			if ext == want {
				match = true
				break
			}
		}
		if !match {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		files = append(files, FileInfo{
			ID:       filepath.Join(folderID, e.Name()),
			Name:     name,
			Modified: info.ModTime().UTC(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (s *FSStore) ListSpreadsheets(ctx context.Context, folderID string) ([]FileInfo, error) {
	return s.list(folderID, ".csv")
}

func (s *FSStore) ListDocuments(ctx context.Context, folderID string) ([]FileInfo, error) {
	return s.list(folderID, ".txt", ".md")
}

func (s *FSStore) ReadGrid(ctx context.Context, id string) ([][]string, error) {
	f, err := os.Open(filepath.Join(s.Root, id))
	if err != nil {
		return nil, fmt.Errorf("read grid %s: %w", id, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read grid %s: %w", id, err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\uFEFF")
	}
	return rows, nil
}

func (s *FSStore) ReadDocument(ctx context.Context, id string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.Root, id))
	if err != nil {
		return "", fmt.Errorf("read document %s: %w", id, err)
	}
	return strings.TrimPrefix(string(data), "\uFEFF"), nil
}
