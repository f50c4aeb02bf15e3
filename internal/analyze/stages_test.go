package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"labline/internal/domain"
)

// fakeSummarizer records prompts and replies from a canned script.
type fakeSummarizer struct {
	prompts []string
	reply   func(prompt string) (string, error)
}

func (f *fakeSummarizer) Generate(ctx context.Context, system, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.reply != nil {
		return f.reply(prompt)
	}
	return "ok", nil
}

func TestSummarizeExperimentBatches(t *testing.T) {
	fake := &fakeSummarizer{reply: func(string) (string, error) {
		return fmt.Sprintf("batch summary %d", 0), nil
	}}
	texts := make([]string, 25)
	for i := range texts {
		texts[i] = fmt.Sprintf("experiment %d", i)
	}

	out, err := SummarizeExperimentBatches(context.Background(), fake, texts, 12)
	if err != nil {
		t.Fatalf("batches: %v", err)
	}
	if len(fake.prompts) != 3 {
		t.Fatalf("expected 3 batch calls for 25 experiments, got %d", len(fake.prompts))
	}
	if !strings.Contains(fake.prompts[0], "experiment 0") || strings.Contains(fake.prompts[0], "experiment 12") {
		t.Fatal("first batch has wrong contents")
	}
	if !strings.Contains(fake.prompts[2], "experiment 24") {
		t.Fatal("last batch missing tail experiment")
	}
	if strings.Count(out, "batch summary") != 3 {
		t.Fatalf("joined output: %q", out)
	}
}

func TestSummarizeExperimentBatchesEmpty(t *testing.T) {
	fake := &fakeSummarizer{}
	out, err := SummarizeExperimentBatches(context.Background(), fake, nil, 12)
	if err != nil || out != "" {
		t.Fatalf("expected no-op, got %q %v", out, err)
	}
	if len(fake.prompts) != 0 {
		t.Fatal("should not call model with no experiments")
	}
}

func TestSummarizeDocumentsTruncates(t *testing.T) {
	fake := &fakeSummarizer{}
	big := strings.Repeat("x", maxCombinedDocChars+500)
	if _, err := SummarizeDocuments(context.Background(), fake, []string{big}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fake.prompts[0], "[... truncated ...]") {
		t.Fatal("long input not truncated")
	}
}

func TestSummarizeHalfYearFirstPeriod(t *testing.T) {
	fake := &fakeSummarizer{}
	if _, err := SummarizeHalfYear(context.Background(), fake, nil, "", "", "H1_2022", "2022-01-01", "2022-06-30"); err != nil {
		t.Fatal(err)
	}
	p := fake.prompts[0]
	if !strings.Contains(p, "None (this is the first period)") {
		t.Fatal("missing first-period placeholder")
	}
	if !strings.Contains(p, "No experiment data found for this period.") {
		t.Fatal("missing empty-experiment placeholder")
	}
	if !strings.Contains(p, "H1_2022, 2022-01-01 to 2022-06-30") {
		t.Fatalf("period header missing:\n%s", p)
	}
}

func TestSummarizeHalfYearError(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	fake := &fakeSummarizer{reply: func(string) (string, error) { return "", wantErr }}
	_, err := SummarizeHalfYear(context.Background(), fake, nil, "", "", "H1_2022", "2022-01-01", "2022-06-30")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestExtractLearnings(t *testing.T) {
	response := "Analysis text here.\n\n```json\n" +
		`{"key_learnings": ["preheat helps"], "open_questions": ["sputum inhibition?"], "experiment_history_summary": {"LOD": "at 6600 cp"}, "goal_progress": {}}` +
		"\n```\nTrailing text."
	learnings := ExtractLearnings(response)
	if learnings == nil {
		t.Fatal("expected learnings")
	}
	if len(learnings.KeyLearnings) != 1 || learnings.KeyLearnings[0] != "preheat helps" {
		t.Fatalf("key learnings: %v", learnings.KeyLearnings)
	}
	if learnings.Families["LOD"] != "at 6600 cp" {
		t.Fatalf("families: %v", learnings.Families)
	}

	if got := ExtractLearnings("no json here"); got != nil {
		t.Fatal("expected nil for missing block")
	}
	if got := ExtractLearnings("```json\nnot json\n```"); got != nil {
		t.Fatal("expected nil for malformed block")
	}
}

func TestRunWeeklyAnalysis(t *testing.T) {
	fake := &fakeSummarizer{reply: func(string) (string, error) {
		return "Summary.\n```json\n{\"key_learnings\": [\"a\"], \"open_questions\": [], \"experiment_history_summary\": {}, \"goal_progress\": {}}\n```", nil
	}}
	cumulative := &domain.CumulativeLearnings{WeeksAnalyzed: 4}

	analysis, err := RunWeeklyAnalysis(context.Background(), fake, "arc text", "", "journal", cumulative)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fake.prompts[0], "No experiments this week.") {
		t.Fatal("empty experiment placeholder missing")
	}
	if analysis.UpdatedLearnings == nil {
		t.Fatal("expected updated learnings")
	}
	if analysis.UpdatedLearnings.WeeksAnalyzed != 5 {
		t.Fatalf("weeks analyzed: %d", analysis.UpdatedLearnings.WeeksAnalyzed)
	}
}

func TestExtractConstraintsSkipsEmpty(t *testing.T) {
	fake := &fakeSummarizer{}
	out, err := ExtractConstraints(context.Background(), fake, "No journal entries for this period.")
	if err != nil || out != "{}" {
		t.Fatalf("got %q %v", out, err)
	}
	if len(fake.prompts) != 0 {
		t.Fatal("should not call model for empty journal")
	}
}
