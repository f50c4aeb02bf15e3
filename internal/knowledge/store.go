// Package knowledge manages the on-disk knowledge base: period
// summaries, the project arc, and cumulative learnings. Drafts carry a
// _DRAFT suffix until an operator approves them.
package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"labline/internal/domain"
)

var ErrNoDraft = errors.New("no draft present")

const (
	arcFile       = "project_arc.json"
	learningsFile = "cumulative_learnings.json"
)

type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) DraftPath(period string) string {
	return filepath.Join(s.Dir, period+"_DRAFT.md")
}

func (s *Store) FinalPath(period string) string {
	return filepath.Join(s.Dir, period+".md")
}

func (s *Store) HasDraft(period string) bool {
	_, err := os.Stat(s.DraftPath(period))
	return err == nil
}

func (s *Store) HasFinal(period string) bool {
	_, err := os.Stat(s.FinalPath(period))
	return err == nil
}

// WriteDraft saves a period draft for review.
func (s *Store) WriteDraft(period, content string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	path := s.DraftPath(period)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Promote approves a period by renaming its draft to the final name.
func (s *Store) Promote(period string) (string, error) {
	draft := s.DraftPath(period)
	if _, err := os.Stat(draft); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNoDraft, period)
		}
		return "", err
	}
	final := s.FinalPath(period)
	if err := os.Rename(draft, final); err != nil {
		return "", err
	}
	return final, nil
}

// FinalSummary reads the approved summary for a period.
func (s *Store) FinalSummary(period string) (string, error) {
	data, err := os.ReadFile(s.FinalPath(period))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FinalSummaries loads approved summaries for the given periods in
// order, skipping those not yet approved. Each is returned as a
// "### period" block for prompt context.
func (s *Store) FinalSummaries(periods []string) []string {
	var out []string
	for _, p := range periods {
		content, err := s.FinalSummary(p)
		if err != nil {
			continue
		}
		out = append(out, fmt.Sprintf("### %s\n%s", p, content))
	}
	return out
}

// WriteArc saves the project arc.
func (s *Store) WriteArc(arc domain.ProjectArc) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(arc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.Dir, arcFile), data, 0o644)
}

// LoadArcNarrative returns the arc narrative, or a placeholder when no
// arc has been synthesized yet.
func (s *Store) LoadArcNarrative() string {
	data, err := os.ReadFile(filepath.Join(s.Dir, arcFile))
	if err != nil {
		return "No project arc available. This is the first run without bootstrap data."
	}
	var arc domain.ProjectArc
	if err := json.Unmarshal(data, &arc); err != nil {
		return "No project arc available. This is the first run without bootstrap data."
	}
	return arc.Narrative
}

// LoadLearnings returns the cumulative learnings, empty when missing.
func (s *Store) LoadLearnings() (*domain.CumulativeLearnings, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, learningsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &domain.CumulativeLearnings{}, nil
		}
		return nil, err
	}
	var learnings domain.CumulativeLearnings
	if err := json.Unmarshal(data, &learnings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", learningsFile, err)
	}
	return &learnings, nil
}

// SaveLearnings persists updated cumulative learnings.
func (s *Store) SaveLearnings(learnings *domain.CumulativeLearnings) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(learnings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.Dir, learningsFile), data, 0o644)
}

// DraftInput is everything needed to render a period draft.
type DraftInput struct {
	Period             string
	Start              string
	End                string
	Sheets             int
	Documents          int
	GeneratedAt        time.Time
	Summary            string
	ExperimentAnalysis string
	JournalAnalysis    string
	Warnings           []string
}

// RenderDraft produces the reviewable draft markdown for a period.
func RenderDraft(in DraftInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Summary (DRAFT)\n\n", in.Period)
	fmt.Fprintf(&b, "**Period**: %s to %s\n", in.Start, in.End)
	fmt.Fprintf(&b, "**Spreadsheets processed**: %d\n", in.Sheets)
	fmt.Fprintf(&b, "**Documents processed**: %d\n", in.Documents)
	fmt.Fprintf(&b, "**Generated**: %s\n", in.GeneratedAt.Format(time.RFC3339))
	if len(in.Warnings) > 0 {
		b.WriteString("\n**Warnings**:\n")
		for _, w := range in.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	b.WriteString("\n---\n\n## Summary\n\n")
	b.WriteString(in.Summary)
	b.WriteString("\n\n---\n\n## Raw Experiment Analysis\n\n")
	b.WriteString(orPlaceholder(in.ExperimentAnalysis, "No experiment data found."))
	b.WriteString("\n\n---\n\n## Raw Journal Analysis\n\n")
	b.WriteString(orPlaceholder(in.JournalAnalysis, "No documents found."))
	fmt.Fprintf(&b, "\n\n---\n\n**REVIEW INSTRUCTIONS**:\n"+
		"1. Review the summary above for accuracy\n"+
		"2. Edit as needed\n"+
		"3. When satisfied, promote with: ll promote %s\n", in.Period)
	return b.String()
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}
