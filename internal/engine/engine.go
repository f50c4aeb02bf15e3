// Package engine orchestrates the pipeline: the bootstrap batch over
// half-year periods, the approval gate, the weekly report run, and the
// project arc synthesis.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"labline/internal/analyze"
	"labline/internal/config"
	"labline/internal/domain"
	"labline/internal/events"
	"labline/internal/knowledge"
	"labline/internal/parse"
	"labline/internal/publish"
	"labline/internal/registry"
	"labline/internal/repo"
	"labline/internal/source"
)

type Engine struct {
	DB         *sql.DB
	Repo       *repo.Repo
	Events     events.Writer
	Config     *config.Config
	Registry   *registry.Store
	Source     source.Store
	Summarizer analyze.Summarizer
	Knowledge  *knowledge.Store
	Publisher  publish.Publisher
	Charts     publish.ChartRenderer
	Logger     *log.Logger
	Now        func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.New(db),
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

func (e Engine) configuredPeriods() ([]domain.Period, error) {
	var out []domain.Period
	for _, spec := range e.Config.Periods {
		start, err := time.Parse("2006-01-02", spec.Start)
		if err != nil {
			return nil, fmt.Errorf("period %s start: %w", spec.Name, err)
		}
		end, err := time.Parse("2006-01-02", spec.End)
		if err != nil {
			return nil, fmt.Errorf("period %s end: %w", spec.Name, err)
		}
		out = append(out, domain.Period{
			Name:     spec.Name,
			SourceID: spec.Source,
			Start:    start,
			End:      end,
			Status:   domain.StatusPending,
		})
	}
	return out, nil
}

// Periods returns the registry state, registering any newly configured
// periods as pending.
func (e Engine) Periods(ctx context.Context) ([]domain.Period, error) {
	configured, err := e.configuredPeriods()
	if err != nil {
		return nil, err
	}
	return e.Registry.Sync(configured)
}

// GetPeriod looks up one period by name.
func (e Engine) GetPeriod(ctx context.Context, name string) (domain.Period, error) {
	if _, err := e.Periods(ctx); err != nil {
		return domain.Period{}, err
	}
	return e.Registry.Get(name)
}

// BootstrapOptions narrow a bootstrap run.
type BootstrapOptions struct {
	// Period restricts the run to a single named period.
	Period string
	// FolderID overrides the per-period source folder.
	FolderID string
}

// BootstrapSummary reports what a bootstrap run did.
type BootstrapSummary struct {
	Run      domain.Run
	Failures []domain.RunFailure
	Drafts   []string
}

// RunBootstrap walks the configured periods in chronological order and
// drafts every pending one. Drafted and complete periods are skipped,
// so an interrupted batch resumes where it left off. A period failure
// is recorded and the batch continues with the next period.
func (e Engine) RunBootstrap(ctx context.Context, opts BootstrapOptions) (BootstrapSummary, error) {
	started := e.now().UTC()

	periods, err := e.Periods(ctx)
	if err != nil {
		return BootstrapSummary{}, err
	}
	if opts.Period != "" {
		var selected []domain.Period
		for _, p := range periods {
			if p.Name == opts.Period {
				selected = append(selected, p)
				break
			}
		}
		if len(selected) == 0 {
			return BootstrapSummary{}, fmt.Errorf("%w: %s", registry.ErrUnknownPeriod, opts.Period)
		}
		periods = selected
	}

	summary := BootstrapSummary{
		Run: domain.Run{ID: uuid.NewString(), Kind: "bootstrap", StartedAt: started},
	}

	for _, p := range periods {
		if p.Status != domain.StatusPending {
			e.logf("skipping %s (already %s)", p.Name, p.Status)
			summary.Run.Skipped++
			continue
		}

		e.logf("processing %s (%s to %s)", p.Name,
			p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"))

		previous := e.Knowledge.FinalSummaries(e.namesBefore(p.Name))
		draftPath, err := e.processPeriod(ctx, p, opts.FolderID, previous)
		if err != nil {
			e.logf("period %s failed: %v", p.Name, err)
			summary.Run.Failed++
			summary.Failures = append(summary.Failures, domain.RunFailure{
				RunID:   summary.Run.ID,
				Period:  p.Name,
				Kind:    failureKind(err),
				Message: err.Error(),
			})
			continue
		}
		if err := e.Registry.SetStatus(p.Name, domain.StatusDrafted); err != nil {
			return summary, err
		}
		summary.Run.Drafted++
		summary.Drafts = append(summary.Drafts, draftPath)
		e.logf("saved draft %s", draftPath)
	}

	summary.Run.FinishedAt = e.now().UTC()
	if err := e.recordRun(ctx, summary.Run, summary.Failures); err != nil {
		return summary, err
	}
	return summary, nil
}

// namesBefore returns the configured period names preceding the given
// one, in order. Only approved summaries among them become context.
func (e Engine) namesBefore(name string) []string {
	var out []string
	for _, spec := range e.Config.Periods {
		if spec.Name == name {
			break
		}
		out = append(out, spec.Name)
	}
	return out
}

func (e Engine) processPeriod(ctx context.Context, p domain.Period, folderOverride string, previous []string) (string, error) {
	folder := p.SourceID
	if folderOverride != "" {
		folder = folderOverride
	}

	sheets, err := e.Source.ListSpreadsheets(ctx, folder)
	if err != nil {
		return "", &SourceUnavailableError{Period: p.Name, Err: err}
	}
	docs, err := e.Source.ListDocuments(ctx, folder)
	if err != nil {
		return "", &SourceUnavailableError{Period: p.Name, Err: err}
	}
	sheets = source.FilterByPeriod(sheets, p.Start, p.End)
	docs = source.FilterByPeriod(docs, p.Start, p.End)
	e.logf("  found %d sheets, %d docs for %s", len(sheets), len(docs), p.Name)

	var warnings []string
	var expTexts []string
	for _, f := range sheets {
		if strings.Contains(strings.ToLower(f.Name), "goal") {
			continue
		}
		grid, err := e.Source.ReadGrid(ctx, f.ID)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to read sheet %s: %v", f.Name, err))
			continue
		}
		exp := parse.ExperimentGrid(grid, f.Name)
		expTexts = append(expTexts, parse.ExperimentText(exp))
	}

	var docTexts []string
	for _, f := range docs {
		text, err := e.Source.ReadDocument(ctx, f.ID)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to read document %s: %v", f.Name, err))
			continue
		}
		docTexts = append(docTexts, fmt.Sprintf("### %s\n%s", f.Name, text))
	}

	expAnalysis, err := analyze.SummarizeExperimentBatches(ctx, e.Summarizer, expTexts, e.Config.BatchSize())
	if err != nil {
		return "", &AnalysisFailedError{Period: p.Name, Err: err}
	}
	journalAnalysis, err := analyze.SummarizeDocuments(ctx, e.Summarizer, docTexts)
	if err != nil {
		return "", &AnalysisFailedError{Period: p.Name, Err: err}
	}

	startStr := p.Start.Format("2006-01-02")
	endStr := p.End.Format("2006-01-02")
	summary, err := analyze.SummarizeHalfYear(ctx, e.Summarizer, previous, expAnalysis, journalAnalysis, p.Name, startStr, endStr)
	if err != nil {
		return "", &AnalysisFailedError{Period: p.Name, Err: err}
	}

	content := knowledge.RenderDraft(knowledge.DraftInput{
		Period:             p.Name,
		Start:              startStr,
		End:                endStr,
		Sheets:             len(expTexts),
		Documents:          len(docTexts),
		GeneratedAt:        e.now().UTC(),
		Summary:            summary,
		ExperimentAnalysis: expAnalysis,
		JournalAnalysis:    journalAnalysis,
		Warnings:           warnings,
	})
	return e.Knowledge.WriteDraft(p.Name, content)
}

// Promote approves a drafted period: the draft file loses its suffix
// and the registry moves to complete. Promoting a period twice is an
// error; promoting one that was never drafted fails before any file
// is touched.
func (e Engine) Promote(ctx context.Context, name string) (domain.Period, error) {
	p, err := e.GetPeriod(ctx, name)
	if err != nil {
		return domain.Period{}, err
	}
	if p.Status == domain.StatusComplete {
		return domain.Period{}, fmt.Errorf("%w: %s", ErrAlreadyComplete, name)
	}
	if p.Status == domain.StatusPending {
		return domain.Period{}, fmt.Errorf("%w: %s", knowledge.ErrNoDraft, name)
	}
	if err := registry.EnsureTransition(name, p.Status, domain.StatusComplete); err != nil {
		return domain.Period{}, err
	}
	finalPath, err := e.Knowledge.Promote(name)
	if err != nil {
		return domain.Period{}, err
	}
	if err := e.Registry.SetStatus(name, domain.StatusComplete); err != nil {
		return domain.Period{}, err
	}
	p.Status = domain.StatusComplete

	if err := e.appendEvent(ctx, "period.promoted", "period", name, events.EventPayload{
		"final_path": finalPath,
	}); err != nil {
		return domain.Period{}, err
	}
	return p, nil
}

// WeeklyOptions configure one weekly report run.
type WeeklyOptions struct {
	DaysBack int
	FolderID string
	// DryRun skips chart rendering and publishing.
	DryRun bool
	// AllFiles ignores the date window and processes the whole folder.
	AllFiles bool
}

// WeeklyResult is the outcome of a weekly run.
type WeeklyResult struct {
	WeekStart       time.Time
	WeekEnd         time.Time
	Analysis        *domain.Analysis
	Recommendations *domain.Recommendations
	Constraints     string
	ReportPath      string
	Experiments     int
	JournalEntries  int
}

// RunWeekly gathers the window's experiments, journals and goals, runs
// the two analysis stages, updates cumulative learnings, and publishes
// the report unless DryRun is set.
func (e Engine) RunWeekly(ctx context.Context, opts WeeklyOptions) (*WeeklyResult, error) {
	if opts.DaysBack <= 0 {
		opts.DaysBack = 7
	}
	folder := opts.FolderID
	if folder == "" {
		folder = e.Config.Source.FolderID
	}

	end := e.now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -opts.DaysBack)
	e.logf("analyzing period: %s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))

	allSheets, err := e.Source.ListSpreadsheets(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("list spreadsheets: %w", err)
	}
	allDocs, err := e.Source.ListDocuments(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	recentSheets := allSheets
	recentDocs := allDocs
	if !opts.AllFiles {
		recentSheets = source.FilterByPeriod(allSheets, start, end)
		recentDocs = source.FilterByPeriod(allDocs, start, end)
	}

	var experiments []domain.Experiment
	for _, f := range recentSheets {
		lower := strings.ToLower(f.Name)
		if strings.Contains(lower, "goal") || strings.Contains(lower, "journal") {
			continue
		}
		grid, err := e.Source.ReadGrid(ctx, f.ID)
		if err != nil {
			e.logf("  failed to read sheet %s: %v", f.Name, err)
			continue
		}
		exp := parse.ExperimentGrid(grid, f.Name)
		if len(exp.Trials) > 0 {
			experiments = append(experiments, *exp)
		}
	}

	var entries []domain.JournalEntry
	for _, f := range recentDocs {
		text, err := e.Source.ReadDocument(ctx, f.ID)
		if err != nil {
			e.logf("  failed to read document %s: %v", f.Name, err)
			continue
		}
		parsed := parse.JournalText(text, f.Name)
		if opts.AllFiles {
			entries = append(entries, parsed...)
		} else {
			entries = append(entries, parse.FilterEntries(parsed, start, end)...)
		}
	}

	var goals []domain.Goal
	for _, f := range allSheets {
		if !strings.Contains(strings.ToLower(f.Name), "goal") {
			continue
		}
		grid, err := e.Source.ReadGrid(ctx, f.ID)
		if err != nil {
			e.logf("  failed to parse goals sheet %s: %v", f.Name, err)
			break
		}
		goals = parse.GoalsGrid(grid)
		break
	}

	journalText := parse.EntriesText(entries)
	constraints, err := analyze.ExtractConstraints(ctx, e.Summarizer, journalText)
	if err != nil {
		return nil, err
	}

	learnings, err := e.Knowledge.LoadLearnings()
	if err != nil {
		return nil, err
	}
	arc := e.Knowledge.LoadArcNarrative()

	var expTexts []string
	for i := range experiments {
		expTexts = append(expTexts, parse.ExperimentText(&experiments[i]))
	}
	analysis, err := analyze.RunWeeklyAnalysis(ctx, e.Summarizer, arc,
		strings.Join(expTexts, "\n\n---\n\n"), journalText, learnings)
	if err != nil {
		return nil, err
	}

	recommendations, err := analyze.RunRecommendations(ctx, e.Summarizer, analysis, parse.GoalsText(goals), constraints)
	if err != nil {
		return nil, err
	}

	if analysis.UpdatedLearnings != nil {
		analysis.UpdatedLearnings.LastUpdated = e.now().UTC().Format(time.RFC3339)
		if err := e.Knowledge.SaveLearnings(analysis.UpdatedLearnings); err != nil {
			return nil, err
		}
		e.logf("  updated cumulative learnings")
	}

	result := &WeeklyResult{
		WeekStart:       start,
		WeekEnd:         end,
		Analysis:        analysis,
		Recommendations: recommendations,
		Constraints:     constraints,
		Experiments:     len(experiments),
		JournalEntries:  len(entries),
	}

	run := domain.Run{
		ID:        uuid.NewString(),
		Kind:      "weekly",
		StartedAt: e.now().UTC(),
		DryRun:    opts.DryRun,
	}

	if !opts.DryRun && e.Publisher != nil {
		var charts []publish.Chart
		if e.Charts != nil {
			charts, err = e.Charts.Render(ctx, experiments, goals)
			if err != nil {
				e.logf("  chart rendering failed: %v", err)
				charts = nil
			}
		}
		path, err := e.Publisher.Publish(ctx, publish.Report{
			WeekStart:       start,
			WeekEnd:         end,
			Analysis:        analysis.Raw,
			Recommendations: recommendations.Raw,
			Constraints:     constraints,
			Charts:          charts,
			Experiments:     len(experiments),
			JournalEntries:  len(entries),
		})
		if err != nil {
			return nil, fmt.Errorf("publish report: %w", err)
		}
		result.ReportPath = path
		run.Drafted = 1
	}

	run.FinishedAt = e.now().UTC()
	if err := e.recordRun(ctx, run, nil); err != nil {
		return nil, err
	}
	return result, nil
}

// SynthesizeArc rebuilds the project narrative from every approved
// period summary.
func (e Engine) SynthesizeArc(ctx context.Context) (domain.ProjectArc, error) {
	periods, err := e.Periods(ctx)
	if err != nil {
		return domain.ProjectArc{}, err
	}

	var approved []string
	var summaries []string
	for _, p := range periods {
		content, err := e.Knowledge.FinalSummary(p.Name)
		if err != nil {
			continue
		}
		approved = append(approved, p.Name)
		summaries = append(summaries, fmt.Sprintf("### %s\n%s", p.Name, content))
	}

	narrative, err := analyze.SynthesizeArc(ctx, e.Summarizer, summaries)
	if err != nil {
		return domain.ProjectArc{}, err
	}

	arc := domain.ProjectArc{
		GeneratedAt: e.now().UTC().Format(time.RFC3339),
		Narrative:   narrative,
		Periods:     approved,
	}
	if err := e.Knowledge.WriteArc(arc); err != nil {
		return domain.ProjectArc{}, err
	}
	if err := e.appendEvent(ctx, "arc.synthesized", "arc", "", events.EventPayload{
		"periods": approved,
	}); err != nil {
		return domain.ProjectArc{}, err
	}
	return arc, nil
}

func (e Engine) recordRun(ctx context.Context, run domain.Run, failures []domain.RunFailure) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertRunTx(ctx, tx, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, f := range failures {
		if err := e.Repo.InsertRunFailureTx(ctx, tx, f); err != nil {
			return fmt.Errorf("insert run failure: %w", err)
		}
	}
	if err := e.Events.Append(ctx, tx, "run.finished", "run", run.ID, events.EventPayload{
		"kind":    run.Kind,
		"drafted": run.Drafted,
		"skipped": run.Skipped,
		"failed":  run.Failed,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) appendEvent(ctx context.Context, evtType, entityKind, entityID string, payload events.EventPayload) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, evtType, entityKind, entityID, payload); err != nil {
		return err
	}
	return tx.Commit()
}
