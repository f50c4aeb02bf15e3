package server

import (
	"time"

	"labline/internal/domain"
)

type PeriodResponse struct {
	Name     string `json:"name"`
	SourceID string `json:"source_id"`
	Start    string `json:"start" example:"2022-01-01"`
	End      string `json:"end" example:"2022-06-30"`
	Status   string `json:"status" enum:"pending,drafted,complete"`
}

type RunResponse struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Drafted    int    `json:"drafted"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	DryRun     bool   `json:"dry_run,omitempty"`
}

type RunFailureResponse struct {
	Period  string `json:"period"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type RunDetailResponse struct {
	Run      RunResponse          `json:"run"`
	Failures []RunFailureResponse `json:"failures"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

func periodResponse(p domain.Period) PeriodResponse {
	return PeriodResponse{
		Name:     p.Name,
		SourceID: p.SourceID,
		Start:    p.Start.Format("2006-01-02"),
		End:      p.End.Format("2006-01-02"),
		Status:   string(p.Status),
	}
}

func mapPeriods(periods []domain.Period) []PeriodResponse {
	out := make([]PeriodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, periodResponse(p))
	}
	return out
}

func runResponse(r domain.Run) RunResponse {
	return RunResponse{
		ID:         r.ID,
		Kind:       r.Kind,
		StartedAt:  r.StartedAt.Format(time.RFC3339),
		FinishedAt: r.FinishedAt.Format(time.RFC3339),
		Drafted:    r.Drafted,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
		DryRun:     r.DryRun,
	}
}

func mapRuns(runs []domain.Run) []RunResponse {
	out := make([]RunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, runResponse(r))
	}
	return out
}

func mapFailures(failures []domain.RunFailure) []RunFailureResponse {
	out := make([]RunFailureResponse, 0, len(failures))
	for _, f := range failures {
		out = append(out, RunFailureResponse{Period: f.Period, Kind: f.Kind, Message: f.Message})
	}
	return out
}

func mapEvents(evts []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(evts))
	for _, e := range evts {
		out = append(out, EventResponse{
			ID:         e.ID,
			TS:         e.TS.Format(time.RFC3339),
			Type:       e.Type,
			EntityKind: e.EntityKind,
			EntityID:   e.EntityID,
			Payload:    e.Payload,
		})
	}
	return out
}
