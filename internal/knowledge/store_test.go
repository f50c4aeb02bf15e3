package knowledge

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"labline/internal/domain"
)

func TestDraftLifecycle(t *testing.T) {
	store := NewStore(t.TempDir())

	if store.HasDraft("H1_2022") || store.HasFinal("H1_2022") {
		t.Fatal("fresh store should be empty")
	}

	path, err := store.WriteDraft("H1_2022", "# draft content")
	if err != nil {
		t.Fatalf("write draft: %v", err)
	}
	if !strings.HasSuffix(path, "H1_2022_DRAFT.md") {
		t.Fatalf("draft path: %s", path)
	}
	if !store.HasDraft("H1_2022") {
		t.Fatal("draft should exist")
	}

	final, err := store.Promote("H1_2022")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if !strings.HasSuffix(final, "H1_2022.md") {
		t.Fatalf("final path: %s", final)
	}
	if store.HasDraft("H1_2022") {
		t.Fatal("draft should be gone after promote")
	}
	if !store.HasFinal("H1_2022") {
		t.Fatal("final should exist after promote")
	}

	content, err := store.FinalSummary("H1_2022")
	if err != nil || content != "# draft content" {
		t.Fatalf("final content: %q %v", content, err)
	}
}

func TestPromoteWithoutDraft(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.Promote("H1_2022"); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected ErrNoDraft, got %v", err)
	}
}

func TestFinalSummariesOrderAndSkip(t *testing.T) {
	store := NewStore(t.TempDir())
	for _, p := range []string{"H1_2022", "H1_2023"} {
		if _, err := store.WriteDraft(p, "summary of "+p); err != nil {
			t.Fatal(err)
		}
		if _, err := store.Promote(p); err != nil {
			t.Fatal(err)
		}
	}

	got := store.FinalSummaries([]string{"H1_2022", "H2_2022", "H1_2023"})
	if len(got) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(got))
	}
	if !strings.HasPrefix(got[0], "### H1_2022\n") || !strings.HasPrefix(got[1], "### H1_2023\n") {
		t.Fatalf("order or framing wrong: %v", got)
	}
}

func TestArcRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	if got := store.LoadArcNarrative(); !strings.Contains(got, "No project arc available") {
		t.Fatalf("placeholder: %q", got)
	}

	arc := domain.ProjectArc{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Narrative:   "Four years of device iterations.",
		Periods:     []string{"H1_2022"},
	}
	if err := store.WriteArc(arc); err != nil {
		t.Fatal(err)
	}
	if got := store.LoadArcNarrative(); got != arc.Narrative {
		t.Fatalf("narrative: %q", got)
	}
}

func TestLearningsRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	learnings, err := store.LoadLearnings()
	if err != nil {
		t.Fatal(err)
	}
	if learnings.WeeksAnalyzed != 0 {
		t.Fatal("expected empty learnings")
	}

	learnings.KeyLearnings = []string{"preheat improves Ct"}
	learnings.WeeksAnalyzed = 3
	if err := store.SaveLearnings(learnings); err != nil {
		t.Fatal(err)
	}

	reloaded, err := store.LoadLearnings()
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.WeeksAnalyzed != 3 || len(reloaded.KeyLearnings) != 1 {
		t.Fatalf("reloaded: %+v", reloaded)
	}
}

func TestRenderDraft(t *testing.T) {
	content := RenderDraft(DraftInput{
		Period:      "H1_2024",
		Start:       "2024-01-01",
		End:         "2024-06-30",
		Sheets:      7,
		Documents:   2,
		GeneratedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		Summary:     "The period summary.",
		Warnings:    []string{"2 sheets failed to parse"},
	})

	for _, want := range []string{
		"# H1_2024 Summary (DRAFT)",
		"**Period**: 2024-01-01 to 2024-06-30",
		"**Spreadsheets processed**: 7",
		"- 2 sheets failed to parse",
		"No experiment data found.",
		"ll promote H1_2024",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("draft missing %q:\n%s", want, content)
		}
	}
}

func TestLearningsBadJSON(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	if err := os.WriteFile(dir+"/cumulative_learnings.json", []byte("{bad"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.LoadLearnings(); err == nil {
		t.Fatal("expected error for malformed learnings")
	}
}
