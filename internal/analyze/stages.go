package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"labline/internal/domain"
)

// maxCombinedDocChars bounds the journal text sent in one request.
const maxCombinedDocChars = 100000

// maxArcChars bounds the project arc context in the weekly prompt.
const maxArcChars = 50000

var learningsJSONRe = regexp.MustCompile("(?s)```json\\s*\n(.*?)\n```")

// SummarizeExperimentBatches analyzes rendered experiment texts in
// batches of batchSize and joins the batch summaries.
func SummarizeExperimentBatches(ctx context.Context, s Summarizer, texts []string, batchSize int) (string, error) {
	if len(texts) == 0 {
		return "", nil
	}
	if batchSize <= 0 {
		batchSize = 12
	}
	var summaries []string
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := strings.Join(texts[i:end], "\n\n---\n\n")
		out, err := s.Generate(ctx, SystemScientist, fmt.Sprintf(experimentBatchPrompt, batch))
		if err != nil {
			return "", fmt.Errorf("experiment batch %d: %w", i/batchSize+1, err)
		}
		summaries = append(summaries, out)
	}
	return strings.Join(summaries, "\n\n---\n\n"), nil
}

// SummarizeDocuments analyzes the combined journal/meeting texts.
// docs are "### name\ntext" blocks; long input is truncated.
func SummarizeDocuments(ctx context.Context, s Summarizer, docs []string) (string, error) {
	if len(docs) == 0 {
		return "", nil
	}
	combined := strings.Join(docs, "\n\n---\n\n")
	if len(combined) > maxCombinedDocChars {
		combined = combined[:maxCombinedDocChars] + "\n\n[... truncated ...]"
	}
	out, err := s.Generate(ctx, SystemScientist, fmt.Sprintf(journalInsightsPrompt, combined))
	if err != nil {
		return "", fmt.Errorf("journal insights: %w", err)
	}
	return out, nil
}

// SummarizeHalfYear produces the period narrative from the batch and
// journal analyses plus all previously approved summaries.
func SummarizeHalfYear(ctx context.Context, s Summarizer, previous []string, experiments, journal, period, start, end string) (string, error) {
	prompt := formatHalfYearPrompt(previous, experiments, journal, period, start, end)
	out, err := s.Generate(ctx, SystemScientist, prompt)
	if err != nil {
		return "", fmt.Errorf("half-year summary %s: %w", period, err)
	}
	return out, nil
}

// SynthesizeArc builds the whole-project narrative from approved
// period summaries.
func SynthesizeArc(ctx context.Context, s Summarizer, summaries []string) (string, error) {
	if len(summaries) == 0 {
		return "", fmt.Errorf("no summaries to synthesize")
	}
	combined := strings.Join(summaries, "\n\n")
	out, err := s.Generate(ctx, SystemScientist, fmt.Sprintf(projectArcPrompt, combined))
	if err != nil {
		return "", fmt.Errorf("project arc: %w", err)
	}
	return out, nil
}

// RunWeeklyAnalysis is stage 1 of the weekly pipeline.
func RunWeeklyAnalysis(ctx context.Context, s Summarizer, arc string, experimentData, journalText string, cumulative *domain.CumulativeLearnings) (*domain.Analysis, error) {
	if experimentData == "" {
		experimentData = "No experiments this week."
	}
	if len(arc) > maxArcChars {
		arc = arc[:maxArcChars] + "\n\n[... truncated for length ...]"
	}
	cumulativeText := "{}"
	if cumulative != nil {
		if data, err := json.MarshalIndent(cumulative, "", "  "); err == nil {
			cumulativeText = string(data)
		}
	}

	prompt := fmt.Sprintf(weeklyAnalysisPrompt, arc, experimentData, cumulativeText, journalText)
	raw, err := s.Generate(ctx, SystemScientist, prompt)
	if err != nil {
		return nil, fmt.Errorf("weekly analysis: %w", err)
	}

	analysis := &domain.Analysis{Raw: raw}
	if updated := ExtractLearnings(raw); updated != nil {
		if cumulative != nil {
			updated.WeeksAnalyzed = cumulative.WeeksAnalyzed + 1
		} else {
			updated.WeeksAnalyzed = 1
		}
		analysis.UpdatedLearnings = updated
	}
	return analysis, nil
}

// ExtractConstraints pulls planning constraints out of the week's
// journal text. Returns "{}" when there is nothing to analyze.
func ExtractConstraints(ctx context.Context, s Summarizer, journalText string) (string, error) {
	if journalText == "" || journalText == "No journal entries for this period." {
		return "{}", nil
	}
	out, err := s.Generate(ctx, SystemAssistant, fmt.Sprintf(constraintExtractionPrompt, journalText))
	if err != nil {
		return "", fmt.Errorf("constraint extraction: %w", err)
	}
	return out, nil
}

// RunRecommendations is stage 2 of the weekly pipeline.
func RunRecommendations(ctx context.Context, s Summarizer, analysis *domain.Analysis, goalsText, constraints string) (*domain.Recommendations, error) {
	prompt := fmt.Sprintf(recommendationPrompt, goalsText, analysis.Raw, constraints)
	raw, err := s.Generate(ctx, SystemScientist, prompt)
	if err != nil {
		return nil, fmt.Errorf("recommendations: %w", err)
	}
	return &domain.Recommendations{Raw: raw}, nil
}

// ExtractLearnings parses the updated cumulative learnings JSON block
// from a model response. Returns nil when absent or malformed.
func ExtractLearnings(response string) *domain.CumulativeLearnings {
	m := learningsJSONRe.FindStringSubmatch(response)
	if m == nil {
		return nil
	}
	var learnings domain.CumulativeLearnings
	if err := json.Unmarshal([]byte(m[1]), &learnings); err != nil {
		return nil
	}
	return &learnings
}
