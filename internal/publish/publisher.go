// Package publish renders and delivers weekly reports.
package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Report is a finished weekly report ready for delivery.
type Report struct {
	WeekStart       time.Time
	WeekEnd         time.Time
	Analysis        string
	Recommendations string
	Constraints     string
	Charts          []Chart
	Experiments     int
	JournalEntries  int
}

// Publisher delivers a report and returns a locator for it (a file
// path, URL, or document ID depending on the implementation).
type Publisher interface {
	Publish(ctx context.Context, r Report) (string, error)
}

// MarkdownPublisher writes reports as markdown files under Dir, one
// per week, named by the week end date. Chart images land next to the
// report.
type MarkdownPublisher struct {
	Dir string
}

func NewMarkdownPublisher(dir string) *MarkdownPublisher {
	return &MarkdownPublisher{Dir: dir}
}

func (p *MarkdownPublisher) Publish(ctx context.Context, r Report) (string, error) {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", err
	}

	var chartRefs []string
	for _, c := range r.Charts {
		name := fmt.Sprintf("%s_%s", r.WeekEnd.Format("2006-01-02"), c.Name)
		if err := os.WriteFile(filepath.Join(p.Dir, name), c.Data, 0o644); err != nil {
			return "", fmt.Errorf("write chart %s: %w", c.Name, err)
		}
		chartRefs = append(chartRefs, name)
	}

	path := filepath.Join(p.Dir, fmt.Sprintf("weekly_%s.md", r.WeekEnd.Format("2006-01-02")))
	if err := os.WriteFile(path, []byte(renderReport(r, chartRefs)), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func renderReport(r Report, chartRefs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Weekly Report: %s to %s\n\n",
		r.WeekStart.Format("2006-01-02"), r.WeekEnd.Format("2006-01-02"))
	fmt.Fprintf(&b, "**Experiments analyzed**: %d\n", r.Experiments)
	fmt.Fprintf(&b, "**Journal entries**: %d\n\n", r.JournalEntries)

	b.WriteString("## Analysis\n\n")
	b.WriteString(r.Analysis)
	b.WriteString("\n\n## Recommendations\n\n")
	b.WriteString(r.Recommendations)
	if r.Constraints != "" && r.Constraints != "{}" {
		b.WriteString("\n\n## Practical Constraints\n\n```json\n")
		b.WriteString(r.Constraints)
		b.WriteString("\n```\n")
	}
	if len(chartRefs) > 0 {
		b.WriteString("\n## Charts\n\n")
		for _, ref := range chartRefs {
			fmt.Fprintf(&b, "![%s](%s)\n", ref, ref)
		}
	}
	return b.String()
}
