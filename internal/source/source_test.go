package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNameMatchesPeriod(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		want bool
	}{
		{"Device Testing - H1 2024 - 03_12_2024 LOD", true},
		{"STAMPEDE - H1 2024 RnD Journal", true},
		{"STAMPEDE - H2 2024 RnD Journal", false},
		{"Device Testing 02_15_2024 Preheat", true},
		{"Device Testing 08_15_2024 Preheat", false},
		{"Random notes", false},
		{"Broken 99_99_2024 date", false},
	}
	for _, c := range cases {
		if got := NameMatchesPeriod(c.name, start, end); got != c.want {
			t.Errorf("NameMatchesPeriod(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestFilterByPeriod(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	files := []FileInfo{
		{ID: "a", Name: "no markers", Modified: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{ID: "b", Name: "no markers either", Modified: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "c", Name: "H1 2024 journal"},
		{ID: "d", Name: "stale copy H1 2024", Modified: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)},
	}
	got := FilterByPeriod(files, start, end)
	ids := map[string]bool{}
	for _, f := range got {
		ids[f.ID] = true
	}
	if !ids["a"] || !ids["c"] || !ids["d"] {
		t.Fatalf("expected a, c, d; got %v", got)
	}
	if ids["b"] {
		t.Fatal("file b should be filtered out")
	}
}

func TestFSStore(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "H1_2024")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatal(err)
	}
	csvBody := "Purpose,,Check LOD\nTester,,Adit\n"
	if err := os.WriteFile(filepath.Join(folder, "01_05_2024 LOD.csv"), []byte(csvBody), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(folder, "journal.txt"), []byte("1/5/2024\nAdit\nNotes.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(folder, "ignore.bin"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewFSStore(root)
	ctx := context.Background()

	sheets, err := store.ListSpreadsheets(ctx, "H1_2024")
	if err != nil {
		t.Fatalf("list spreadsheets: %v", err)
	}
	if len(sheets) != 1 || sheets[0].Name != "01_05_2024 LOD" {
		t.Fatalf("sheets: %+v", sheets)
	}

	docs, err := store.ListDocuments(ctx, "H1_2024")
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if len(docs) != 1 || docs[0].Name != "journal" {
		t.Fatalf("docs: %+v", docs)
	}

	grid, err := store.ReadGrid(ctx, sheets[0].ID)
	if err != nil {
		t.Fatalf("read grid: %v", err)
	}
	if len(grid) != 2 || grid[0][2] != "Check LOD" {
		t.Fatalf("grid: %v", grid)
	}

	text, err := store.ReadDocument(ctx, docs[0].ID)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if text == "" {
		t.Fatal("empty document")
	}

	if _, err := store.ListSpreadsheets(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing folder")
	}
}
