package publish

import (
	"context"

	"labline/internal/domain"
)

// Chart is one rendered image for a report.
type Chart struct {
	Name string
	Data []byte
}

// ChartRenderer produces chart images from the week's experiments. A
// nil renderer means no charts; the pipeline treats that as normal.
type ChartRenderer interface {
	Render(ctx context.Context, experiments []domain.Experiment, goals []domain.Goal) ([]Chart, error)
}
