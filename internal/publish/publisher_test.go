package publish

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMarkdownPublisher(t *testing.T) {
	dir := t.TempDir()
	pub := NewMarkdownPublisher(dir)

	r := Report{
		WeekStart:       time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC),
		WeekEnd:         time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC),
		Analysis:        "Week went well.",
		Recommendations: "Run the LOD repeat.",
		Constraints:     `{"devices": "TS-006 down"}`,
		Charts:          []Chart{{Name: "ct_trend.png", Data: []byte{1, 2, 3}}},
		Experiments:     4,
		JournalEntries:  9,
	}
	path, err := pub.Publish(context.Background(), r)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if filepath.Base(path) != "weekly_2026-02-16.md" {
		t.Fatalf("report name: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		"# Weekly Report: 2026-02-09 to 2026-02-16",
		"**Experiments analyzed**: 4",
		"Run the LOD repeat.",
		"TS-006 down",
		"![2026-02-16_ct_trend.png]",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("report missing %q:\n%s", want, text)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "2026-02-16_ct_trend.png")); err != nil {
		t.Fatalf("chart not written: %v", err)
	}
}

func TestMarkdownPublisherNoConstraints(t *testing.T) {
	pub := NewMarkdownPublisher(t.TempDir())
	r := Report{
		WeekStart:   time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC),
		WeekEnd:     time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC),
		Analysis:    "a",
		Constraints: "{}",
	}
	path, err := pub.Publish(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "Practical Constraints") {
		t.Fatal("empty constraints should be omitted")
	}
}
