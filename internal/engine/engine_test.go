package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"labline/internal/config"
	"labline/internal/db"
	"labline/internal/domain"
	"labline/internal/knowledge"
	"labline/internal/migrate"
	"labline/internal/publish"
	"labline/internal/registry"
	"labline/internal/source"
)

type scriptedSummarizer struct {
	calls int
	reply func(prompt string) (string, error)
}

func (s *scriptedSummarizer) Generate(ctx context.Context, system, prompt string) (string, error) {
	s.calls++
	if s.reply != nil {
		return s.reply(prompt)
	}
	return "generated summary", nil
}

// failingStore wraps a Store and refuses one folder.
type failingStore struct {
	source.Store
	failFolder string
}

func (f *failingStore) ListSpreadsheets(ctx context.Context, folderID string) ([]source.FileInfo, error) {
	if folderID == f.failFolder {
		return nil, errors.New("folder unreachable")
	}
	return f.Store.ListSpreadsheets(ctx, folderID)
}

type testEnv struct {
	engine     Engine
	summarizer *scriptedSummarizer
	workspace  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ws := t.TempDir()

	conn, err := db.Open(db.Config{Workspace: ws})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{}
	cfg.Project.ID = "stampede"
	cfg.Source.Kind = "fs"
	cfg.Source.Root = filepath.Join(ws, "mirror")
	cfg.Source.FolderID = "H1_2022"
	cfg.Periods = []config.PeriodSpec{
		{Name: "H1_2022", Source: "H1_2022", Start: "2022-01-01", End: "2022-06-30"},
		{Name: "H2_2022", Source: "H2_2022", Start: "2022-07-01", End: "2022-12-31"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	writeFixture(t, cfg.Source.Root, "H1_2022", "01_05_2022 LOD.csv", sampleSheetCSV)
	writeFixture(t, cfg.Source.Root, "H1_2022", "H1 2022 Goals.csv", sampleGoalsCSV)
	writeFixture(t, cfg.Source.Root, "H1_2022", "H1 2022 RnD Journal.txt", sampleJournalTxt)
	writeFixture(t, cfg.Source.Root, "H2_2022", "07_15_2022 Sweep.csv", sampleSheetCSV)
	writeFixture(t, cfg.Source.Root, "H2_2022", "H2 2022 RnD Journal.txt", "7/20/2022\nDwi\nSecond half notes.\n")

	fake := &scriptedSummarizer{}
	knowDir := cfg.KnowledgeDir(ws)

	eng := New(conn, cfg)
	eng.Registry = registry.NewStore(knowDir)
	eng.Knowledge = knowledge.NewStore(knowDir)
	eng.Source = source.NewFSStore(cfg.Source.Root)
	eng.Summarizer = fake
	eng.Publisher = publish.NewMarkdownPublisher(cfg.ReportsDir(ws))
	eng.Now = func() time.Time { return time.Date(2022, 1, 10, 12, 0, 0, 0, time.UTC) }

	return &testEnv{engine: eng, summarizer: fake, workspace: ws}
}

func writeFixture(t *testing.T, root, folder, name, content string) {
	t.Helper()
	dir := filepath.Join(root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const sampleSheetCSV = `Purpose,,Check LOD with real sample
Tester,,Adit
Device,,TS-003
Resume,,LOD confirmed
FAM,,TRIAL,RUN ID,,,,,,,,,,,,,NOTES
CH 0,6600 cp,,,,,Ch0 Ct,Ch1 Ct,Ch2 Ct,Ch3 Ct,Ch4 Ct,Ch0 Ct,Ch1 Ct,Ch2 Ct,Ch3 Ct,Ch4 Ct
CH 1,NC,1,0105_003_TS_6600_1,,,24.10,-,24.63,0,-,25.01,-,25.92,0,-,clean run
`

const sampleGoalsCSV = `,,,,,,,
,Active goal (short),,Active goal -reqs,Team Points,Sign off,Due Date,Type
,Clinical Verification Study,,Complete RSPAW protocol draft,50,KH,2022-03-01,core
`

const sampleJournalTxt = "1/5/2022\nAdit\nRan LOD titration on TS-003.\n"

func TestRunBootstrapDraftsAllPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	summary, err := env.engine.RunBootstrap(ctx, BootstrapOptions{})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if summary.Run.Drafted != 2 || summary.Run.Skipped != 0 || summary.Run.Failed != 0 {
		t.Fatalf("summary: %+v", summary.Run)
	}
	if len(summary.Drafts) != 2 {
		t.Fatalf("drafts: %v", summary.Drafts)
	}

	periods, err := env.engine.Periods(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range periods {
		if p.Status != domain.StatusDrafted {
			t.Fatalf("period %s: expected drafted, got %s", p.Name, p.Status)
		}
	}
	if !env.engine.Knowledge.HasDraft("H1_2022") || !env.engine.Knowledge.HasDraft("H2_2022") {
		t.Fatal("draft files missing")
	}

	runs, err := env.engine.Repo.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Kind != "bootstrap" || runs[0].Drafted != 2 {
		t.Fatalf("runs: %+v", runs)
	}

	evts, err := env.engine.Repo.LatestEvents(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) == 0 || evts[0].Type != "run.finished" {
		t.Fatalf("events: %+v", evts)
	}
}

func TestRunBootstrapIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.RunBootstrap(ctx, BootstrapOptions{}); err != nil {
		t.Fatal(err)
	}
	first := env.summarizer.calls

	summary, err := env.engine.RunBootstrap(ctx, BootstrapOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Run.Drafted != 0 || summary.Run.Skipped != 2 {
		t.Fatalf("second run should skip everything: %+v", summary.Run)
	}
	if env.summarizer.calls != first {
		t.Fatal("skipped periods must not reach the model")
	}
}

func TestRunBootstrapContinuesAfterFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.engine.Source = &failingStore{Store: env.engine.Source, failFolder: "H1_2022"}

	summary, err := env.engine.RunBootstrap(ctx, BootstrapOptions{})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if summary.Run.Failed != 1 || summary.Run.Drafted != 1 {
		t.Fatalf("summary: %+v", summary.Run)
	}
	if len(summary.Failures) != 1 {
		t.Fatalf("failures: %+v", summary.Failures)
	}
	f := summary.Failures[0]
	if f.Period != "H1_2022" || f.Kind != "source_unavailable" {
		t.Fatalf("failure: %+v", f)
	}

	p, err := env.engine.GetPeriod(ctx, "H1_2022")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != domain.StatusPending {
		t.Fatalf("failed period should stay pending, got %s", p.Status)
	}
	p2, _ := env.engine.GetPeriod(ctx, "H2_2022")
	if p2.Status != domain.StatusDrafted {
		t.Fatalf("later period should still draft, got %s", p2.Status)
	}

	stored, err := env.engine.Repo.ListRunFailures(ctx, summary.Run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].Kind != "source_unavailable" {
		t.Fatalf("stored failures: %+v", stored)
	}
}

func TestRunBootstrapAnalysisFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.summarizer.reply = func(string) (string, error) { return "", errors.New("model down") }

	summary, err := env.engine.RunBootstrap(ctx, BootstrapOptions{Period: "H1_2022"})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Run.Failed != 1 {
		t.Fatalf("summary: %+v", summary.Run)
	}
	if summary.Failures[0].Kind != "analysis_failed" {
		t.Fatalf("failure kind: %s", summary.Failures[0].Kind)
	}
}

func TestRunBootstrapSinglePeriod(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	summary, err := env.engine.RunBootstrap(ctx, BootstrapOptions{Period: "H2_2022"})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Run.Drafted != 1 {
		t.Fatalf("summary: %+v", summary.Run)
	}
	p, _ := env.engine.GetPeriod(ctx, "H1_2022")
	if p.Status != domain.StatusPending {
		t.Fatal("other periods must be untouched")
	}

	if _, err := env.engine.RunBootstrap(ctx, BootstrapOptions{Period: "H1_1999"}); !errors.Is(err, registry.ErrUnknownPeriod) {
		t.Fatalf("expected ErrUnknownPeriod, got %v", err)
	}
}

func TestBootstrapScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Draft and approve the first period, then run the full batch.
	if _, err := env.engine.RunBootstrap(ctx, BootstrapOptions{Period: "H1_2022"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.engine.Promote(ctx, "H1_2022"); err != nil {
		t.Fatal(err)
	}

	summary, err := env.engine.RunBootstrap(ctx, BootstrapOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Run.Drafted != 1 || summary.Run.Skipped != 1 || summary.Run.Failed != 0 {
		t.Fatalf("summary: %+v", summary.Run)
	}
}

func TestPromoteGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A period that was never drafted cannot be promoted, and the
	// failed gate must not touch any knowledge files.
	if _, err := env.engine.Promote(ctx, "H1_2022"); !errors.Is(err, knowledge.ErrNoDraft) {
		t.Fatalf("expected ErrNoDraft, got %v", err)
	}
	if env.engine.Knowledge.HasFinal("H1_2022") {
		t.Fatal("failed promote must not create a final")
	}

	if _, err := env.engine.RunBootstrap(ctx, BootstrapOptions{Period: "H1_2022"}); err != nil {
		t.Fatal(err)
	}
	p, err := env.engine.Promote(ctx, "H1_2022")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if p.Status != domain.StatusComplete {
		t.Fatalf("status: %s", p.Status)
	}
	if env.engine.Knowledge.HasDraft("H1_2022") || !env.engine.Knowledge.HasFinal("H1_2022") {
		t.Fatal("draft should be renamed to final")
	}

	if _, err := env.engine.Promote(ctx, "H1_2022"); !errors.Is(err, ErrAlreadyComplete) {
		t.Fatalf("expected ErrAlreadyComplete, got %v", err)
	}
	if _, err := env.engine.Promote(ctx, "H9_2099"); !errors.Is(err, registry.ErrUnknownPeriod) {
		t.Fatalf("expected ErrUnknownPeriod, got %v", err)
	}
}

func TestDraftWarningsRecorded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// An unreadable sheet becomes a warning, not a failure.
	writeFixture(t, env.engine.Config.Source.Root, "H1_2022", "01_06_2022 broken.csv", "\"unclosed")

	summary, err := env.engine.RunBootstrap(ctx, BootstrapOptions{Period: "H1_2022"})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Run.Drafted != 1 || summary.Run.Failed != 0 {
		t.Fatalf("summary: %+v", summary.Run)
	}
	data, err := os.ReadFile(summary.Drafts[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "failed to read sheet 01_06_2022 broken") {
		t.Fatalf("draft missing warning:\n%s", data)
	}
}

func TestPreviousSummariesFeedLaterPeriods(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var sawPrevious bool
	env.summarizer.reply = func(prompt string) (string, error) {
		if strings.Contains(prompt, "### H1_2022") && strings.Contains(prompt, "approved H1 summary") {
			sawPrevious = true
		}
		return "generated summary", nil
	}

	// Approve a hand-edited H1 draft.
	if _, err := env.engine.Periods(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := env.engine.Knowledge.WriteDraft("H1_2022", "approved H1 summary"); err != nil {
		t.Fatal(err)
	}
	if err := env.engine.Registry.SetStatus("H1_2022", domain.StatusDrafted); err != nil {
		t.Fatal(err)
	}
	if _, err := env.engine.Promote(ctx, "H1_2022"); err != nil {
		t.Fatal(err)
	}

	if _, err := env.engine.RunBootstrap(ctx, BootstrapOptions{Period: "H2_2022"}); err != nil {
		t.Fatal(err)
	}
	if !sawPrevious {
		t.Fatal("approved summary should appear in later period context")
	}
}

func TestRunWeeklyDryRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.summarizer.reply = func(prompt string) (string, error) {
		if strings.Contains(prompt, "UPDATED CUMULATIVE LEARNINGS") {
			return "Analysis.\n```json\n{\"key_learnings\": [\"preheat helps\"], \"open_questions\": [], \"experiment_history_summary\": {}, \"goal_progress\": {}}\n```", nil
		}
		return "generated summary", nil
	}

	result, err := env.engine.RunWeekly(ctx, WeeklyOptions{DaysBack: 7, DryRun: true})
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}
	if result.ReportPath != "" {
		t.Fatal("dry run must not publish")
	}
	if result.Experiments != 1 {
		t.Fatalf("experiments: %d", result.Experiments)
	}
	if result.JournalEntries != 1 {
		t.Fatalf("journal entries: %d", result.JournalEntries)
	}
	if result.Analysis == nil || result.Analysis.UpdatedLearnings == nil {
		t.Fatal("expected updated learnings")
	}

	learnings, err := env.engine.Knowledge.LoadLearnings()
	if err != nil {
		t.Fatal(err)
	}
	if len(learnings.KeyLearnings) != 1 || learnings.WeeksAnalyzed != 1 {
		t.Fatalf("persisted learnings: %+v", learnings)
	}

	runs, _ := env.engine.Repo.ListRuns(ctx, 10)
	if len(runs) != 1 || runs[0].Kind != "weekly" || !runs[0].DryRun {
		t.Fatalf("runs: %+v", runs)
	}
}

func TestRunWeeklyPublishes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.engine.RunWeekly(ctx, WeeklyOptions{DaysBack: 7})
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}
	if result.ReportPath == "" {
		t.Fatal("expected a published report")
	}
	data, err := os.ReadFile(result.ReportPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# Weekly Report: 2022-01-03 to 2022-01-10") {
		t.Fatalf("report window wrong:\n%s", data)
	}
}

func TestSynthesizeArc(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.SynthesizeArc(ctx); err == nil {
		t.Fatal("arc without approved summaries should fail")
	}

	if _, err := env.engine.RunBootstrap(ctx, BootstrapOptions{}); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"H1_2022", "H2_2022"} {
		if _, err := env.engine.Promote(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	arc, err := env.engine.SynthesizeArc(ctx)
	if err != nil {
		t.Fatalf("arc: %v", err)
	}
	if arc.Narrative != "generated summary" {
		t.Fatalf("narrative: %q", arc.Narrative)
	}
	if fmt.Sprint(arc.Periods) != "[H1_2022 H2_2022]" {
		t.Fatalf("periods: %v", arc.Periods)
	}
	if env.engine.Knowledge.LoadArcNarrative() != "generated summary" {
		t.Fatal("arc not persisted")
	}
}
