package parse

import (
	"strings"
	"testing"
	"time"
)

const sampleJournal = `2/3/2026
Bowo
Ran the preheat sweep on TS-006.
Results look stable above 93C.

Dwi

Checked the optics alignment [a] after the sweep.

2026-02-04
Kabir
Firmware 1.4.2 flashed to all units.

February 5, 2026
Bowo
LOD repeat confirmed yesterday's numbers.
`

func TestJournalTextDates(t *testing.T) {
	entries := JournalText(sampleJournal, "RnD Journal")
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d: %+v", len(entries), entries)
	}
	for i, e := range entries {
		if e.Date == nil {
			t.Fatalf("entry %d has no date", i)
		}
		if e.SourceFile != "RnD Journal" {
			t.Fatalf("entry %d source: %q", i, e.SourceFile)
		}
	}
	if !entries[0].Date.Equal(time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("first date: %v", entries[0].Date)
	}
	if !entries[2].Date.Equal(time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("iso date: %v", entries[2].Date)
	}
	if !entries[3].Date.Equal(time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("month-name date: %v", entries[3].Date)
	}
}

func TestJournalTextAuthors(t *testing.T) {
	entries := JournalText(sampleJournal, "j")

	if entries[0].Author != "Bowo" {
		t.Fatalf("first author: %q", entries[0].Author)
	}
	if !strings.Contains(entries[0].Content, "preheat sweep") {
		t.Fatalf("first content: %q", entries[0].Content)
	}
	if entries[1].Author != "Dwi" {
		t.Fatalf("second author block not split, got %q", entries[1].Author)
	}
	if entries[1].Date == nil || entries[1].Date.Day() != 3 {
		t.Fatal("second author block should keep the same date")
	}
	if strings.Contains(entries[1].Content, "[a]") {
		t.Fatalf("placeholder not stripped: %q", entries[1].Content)
	}
}

func TestJournalTextDashDates(t *testing.T) {
	entries := JournalText("2-10-2026\nKabir\nShort note.\n", "j")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if !entries[0].Date.Equal(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date: %v", entries[0].Date)
	}
}

func TestFilterEntries(t *testing.T) {
	entries := JournalText(sampleJournal, "j")
	start := time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	filtered := FilterEntries(entries, start, end)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 entries in range, got %d", len(filtered))
	}
	for _, e := range filtered {
		if e.Date.Before(start) || e.Date.After(end) {
			t.Fatalf("entry out of range: %v", e.Date)
		}
	}
}

func TestEntriesText(t *testing.T) {
	entries := JournalText(sampleJournal, "j")
	text := EntriesText(entries)

	if !strings.Contains(text, "## Journal Entries") {
		t.Fatal("missing heading")
	}
	if !strings.Contains(text, "**Kabir**") {
		t.Fatal("missing author")
	}
	// Newest first.
	if strings.Index(text, "February 5, 2026") > strings.Index(text, "2/3/2026") {
		t.Fatal("entries not sorted newest first")
	}

	if got := EntriesText(nil); got != "No journal entries for this period." {
		t.Fatalf("empty rendering: %q", got)
	}
}
